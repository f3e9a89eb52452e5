package service

import (
	"context"
	"fmt"

	"github.com/garyjia/discharge-planner/internal/application/dispatcher"
	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/domain/event"
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
)

// SummarySource reads the current summary of a case
type SummarySource interface {
	Summary(ctx context.Context, tenantID, caseID string) (*entity.CaseSummary, error)
}

// NotificationService forwards case summaries to the outbound channel after transitions
type NotificationService interface {
	// NotifyCase sends the current summary of a case
	NotifyCase(ctx context.Context, tenantID, caseID string) error
	// Register subscribes the service to case events
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	summaries SummarySource
	writer    port.SummaryWriter
	notifier  port.Notifier
	logger    Logger
}

// NewNotificationService creates a new NotificationService. writer may be nil,
// in which case the plain template message is sent.
func NewNotificationService(
	summaries SummarySource,
	writer port.SummaryWriter,
	notifier port.Notifier,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		summaries: summaries,
		writer:    writer,
		notifier:  notifier,
		logger:    logger,
	}
}

// Register subscribes the service to case events
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	handler := func(ctx context.Context, evt *event.Event) error {
		return s.NotifyCase(ctx, evt.TenantID, evt.SubjectID)
	}
	d.SubscribeNamed(event.TypeCaseOpened, "case-notification-opened", handler)
	d.SubscribeNamed(event.TypeCaseTransitioned, "case-notification", handler)
}

// NotifyCase sends the current summary of a case
func (s *notificationServiceImpl) NotifyCase(ctx context.Context, tenantID, caseID string) error {
	summary, err := s.summaries.Summary(ctx, tenantID, caseID)
	if err != nil {
		s.logger.Error("Failed to build case summary", "error", err, "tenant_id", tenantID, "case_id", caseID)
		return fmt.Errorf("build summary: %w", err)
	}

	if s.writer != nil {
		msg, err := s.writer.WriteMessage(ctx, summary)
		if err != nil {
			s.logger.Error("Summary writer failed, using template", "error", err, "case_id", caseID)
			summary.Message = domainwf.TemplateMessage(summary)
		} else if msg != "" {
			summary.Message = msg
		}
	}

	if err := s.notifier.Notify(ctx, summary); err != nil {
		s.logger.Error("Failed to send case notification", "error", err, "tenant_id", tenantID, "case_id", caseID)
		return fmt.Errorf("notify: %w", err)
	}

	s.logger.Info("Case notification sent",
		"tenant_id", tenantID,
		"case_id", caseID,
		"state", summary.CurrentState,
		"next_action", summary.NextAction,
	)
	return nil
}
