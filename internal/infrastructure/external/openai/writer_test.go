package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func reply(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}
}

var sample = &entity.CaseSummary{
	CaseID:       "case-1",
	PatientName:  "Ada",
	CurrentState: "S2",
	StateLabel:   "Orders placed",
	NextAction:   "REFERRAL",
}

func TestSummaryWriter_WriteMessage(t *testing.T) {
	chat := &fakeChat{resp: reply("  Ada has orders placed; send the referral next.\n")}
	w := newSummaryWriter(chat, Config{Temperature: 0.2}, zap.NewNop())

	msg, err := w.WriteMessage(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, "Ada has orders placed; send the referral next.", msg)

	assert.Equal(t, openai.GPT4oMini, chat.req.Model)
	assert.Equal(t, 120, chat.req.MaxTokens)
	require.Len(t, chat.req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, chat.req.Messages[0].Role)
	assert.Contains(t, chat.req.Messages[1].Content, `"caseId":"case-1"`)
}

func TestSummaryWriter_Failures(t *testing.T) {
	boom := errors.New("boom")

	_, err := newSummaryWriter(&fakeChat{err: boom}, Config{}, zap.NewNop()).WriteMessage(context.Background(), sample)
	assert.ErrorIs(t, err, boom)

	_, err = newSummaryWriter(&fakeChat{}, Config{}, zap.NewNop()).WriteMessage(context.Background(), sample)
	assert.Error(t, err)

	_, err = newSummaryWriter(&fakeChat{resp: reply("   ")}, Config{}, zap.NewNop()).WriteMessage(context.Background(), sample)
	assert.Error(t, err)
}

func TestSummaryWriter_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply("Ada: referral next."))
	}))
	defer srv.Close()

	w := NewSummaryWriter(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"}, zap.NewNop())
	msg, err := w.WriteMessage(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, "Ada: referral next.", msg)
}
