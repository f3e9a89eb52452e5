package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// Channel is the Contact.Channel value routed through Lark
const Channel = "lark"

// Notifier implements port.Notifier. Contacts on other channels are skipped.
type Notifier struct {
	sender messageSender
	logger *zap.Logger
}

// NewNotifier creates a notifier sending through client
func NewNotifier(client *Client, logger *zap.Logger) *Notifier {
	return newNotifier(client, logger)
}

func newNotifier(sender messageSender, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Notify sends summary.Message to the contact's Lark address. Addresses
// starting with "oc_" are group chats, anything else is an open_id.
func (n *Notifier) Notify(ctx context.Context, summary *entity.CaseSummary) error {
	if summary == nil {
		return fmt.Errorf("summary cannot be nil")
	}
	if !strings.EqualFold(summary.Contact.Channel, Channel) || summary.Contact.Address == "" {
		n.logger.Debug("Skipping notification for non-lark contact",
			zap.String("case_id", summary.CaseID),
			zap.String("channel", summary.Contact.Channel))
		return nil
	}
	if summary.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": summary.Message})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	receiveIDType := "open_id"
	if strings.HasPrefix(summary.Contact.Address, "oc_") {
		receiveIDType = "chat_id"
	}

	messageID, err := n.sender.SendMessage(ctx, receiveIDType, summary.Contact.Address, "text", string(content))
	if err != nil {
		return fmt.Errorf("failed to notify case %s: %w", summary.CaseID, err)
	}

	n.logger.Info("Case notification sent",
		zap.String("case_id", summary.CaseID),
		zap.String("state", summary.CurrentState),
		zap.String("message_id", messageID))
	return nil
}

var _ port.Notifier = (*Notifier)(nil)
