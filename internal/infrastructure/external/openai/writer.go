// Package openai phrases case summaries with a chat completion model.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

const systemPrompt = "You write one or two sentence status updates for hospital discharge coordinators. " +
	"Use only the facts in the JSON you are given. Mention the patient, the current stage, the next step and the due date when present. " +
	"Respond with plain text only."

// Config holds model settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// chatClient is the subset of the go-openai client the writer uses
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// SummaryWriter implements port.SummaryWriter
type SummaryWriter struct {
	client      chatClient
	model       string
	temperature float32
	maxTokens   int
	logger      *zap.Logger
}

// NewSummaryWriter creates a writer backed by the OpenAI API
func NewSummaryWriter(cfg Config, logger *zap.Logger) *SummaryWriter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newSummaryWriter(openai.NewClientWithConfig(clientCfg), cfg, logger)
}

func newSummaryWriter(client chatClient, cfg Config, logger *zap.Logger) *SummaryWriter {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 120
	}
	return &SummaryWriter{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		logger:      logger,
	}
}

// WriteMessage asks the model to phrase summary as a short update
func (w *SummaryWriter) WriteMessage(ctx context.Context, summary *entity.CaseSummary) (string, error) {
	facts, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       w.model,
		Temperature: w.temperature,
		MaxTokens:   w.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(facts)},
		},
	})
	if err != nil {
		w.logger.Error("OpenAI API call failed", zap.String("case_id", summary.CaseID), zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	message := strings.TrimSpace(resp.Choices[0].Message.Content)
	if message == "" {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	w.logger.Debug("Summary message written",
		zap.String("case_id", summary.CaseID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return message, nil
}

var _ port.SummaryWriter = (*SummaryWriter)(nil)
