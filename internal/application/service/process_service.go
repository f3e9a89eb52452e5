package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/discharge-planner/internal/application/dispatcher"
	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/domain/event"
	"github.com/garyjia/discharge-planner/internal/domain/process"
	"github.com/garyjia/discharge-planner/pkg/tracing"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ProcessService manages tenant process definitions and the subjects moving through them
type ProcessService interface {
	// SaveDraft stores an authored definition. Editing the shape of a published
	// definition starts a new draft version.
	SaveDraft(ctx context.Context, def *entity.ProcessDefinition) (*entity.ProcessDefinition, error)
	GetDefinition(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error)
	ListDefinitions(ctx context.Context, tenantID string) ([]*entity.ProcessDefinition, error)
	// Validate returns every structural violation, empty when the graph is sound
	Validate(ctx context.Context, tenantID, id string) ([]process.Violation, error)
	// Publish makes the definition usable by subjects. It fails with the full
	// violation list when the graph is unsound.
	Publish(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error)
	// Graph renders the working definition as Mermaid. With subjectID set it
	// renders the version the subject runs on with its progress overlaid.
	Graph(ctx context.Context, tenantID, id, subjectID string) (string, error)

	// Subject operations run on published versions only. A subject stays on
	// the version it entered; later drafts and publishes do not move it.

	EnterSubject(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error)
	GetSubject(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error)
	AvailableTransitions(ctx context.Context, tenantID, definitionID, subjectID string) ([]entity.Edge, error)
	Advance(ctx context.Context, tenantID, definitionID, subjectID, targetNodeID string) (*entity.SubjectWorkflowState, error)
	Completion(ctx context.Context, tenantID, definitionID, subjectID string) (process.Completion, error)
	Kanban(ctx context.Context, tenantID, definitionID string) (*process.Kanban, error)
}

type processServiceImpl struct {
	definitionRepo port.DefinitionRepository
	subjectRepo    port.SubjectStateRepository
	txManager      port.TransactionManager
	tracker        *process.Tracker
	dispatcher     dispatcher.Dispatcher
	metrics        port.Metrics
	logger         Logger
	now            func() time.Time
}

// ProcessOption configures the process service
type ProcessOption func(*processServiceImpl)

// WithProcessDispatcher sets the dispatcher for definition and subject events
func WithProcessDispatcher(d dispatcher.Dispatcher) ProcessOption {
	return func(s *processServiceImpl) {
		s.dispatcher = d
	}
}

// WithProcessMetrics sets the metrics sink for subject moves
func WithProcessMetrics(m port.Metrics) ProcessOption {
	return func(s *processServiceImpl) {
		s.metrics = m
	}
}

// WithProcessClock overrides the time source
func WithProcessClock(now func() time.Time) ProcessOption {
	return func(s *processServiceImpl) {
		s.now = now
		s.tracker = process.NewTracker(process.WithClock(now))
	}
}

// NewProcessService creates a new ProcessService
func NewProcessService(
	definitionRepo port.DefinitionRepository,
	subjectRepo port.SubjectStateRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...ProcessOption,
) ProcessService {
	s := &processServiceImpl{
		definitionRepo: definitionRepo,
		subjectRepo:    subjectRepo,
		txManager:      txManager,
		tracker:        process.NewTracker(),
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveDraft stores an authored definition
func (s *processServiceImpl) SaveDraft(ctx context.Context, def *entity.ProcessDefinition) (*entity.ProcessDefinition, error) {
	if def == nil {
		return nil, apperr.Validation("SAVE_DEFINITION", "definition is required")
	}
	var problems []string
	if strings.TrimSpace(def.TenantID) == "" {
		problems = append(problems, "tenantId is required")
	}
	if strings.TrimSpace(def.Name) == "" {
		problems = append(problems, "name is required")
	}
	for _, n := range def.Nodes {
		if !n.Type.IsValid() {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
		}
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("SAVE_DEFINITION", problems...)
	}

	next := def.Clone()
	now := s.now()

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var existing *entity.ProcessDefinition
		if next.ID != "" {
			found, err := s.definitionRepo.Get(txCtx, next.TenantID, next.ID)
			if err != nil && !isNotFound(err) {
				return fmt.Errorf("get definition: %w", err)
			}
			existing = found
		} else {
			next.ID = uuid.New().String()
		}

		switch {
		case existing == nil:
			next.Version = 1
			next.Status = entity.DefinitionStatusDraft
			next.PublishedAt = nil
			next.CreatedAt = now
		case existing.IsPublished() && existing.SameShape(next):
			next.Version = existing.Version
			next.Status = existing.Status
			next.PublishedAt = existing.PublishedAt
			next.CreatedAt = existing.CreatedAt
		case existing.IsPublished():
			next.Version = existing.Version + 1
			next.Status = entity.DefinitionStatusDraft
			next.PublishedAt = nil
			next.CreatedAt = existing.CreatedAt
		default:
			next.Version = existing.Version
			next.Status = entity.DefinitionStatusDraft
			next.PublishedAt = nil
			next.CreatedAt = existing.CreatedAt
		}
		next.UpdatedAt = now

		if err := s.definitionRepo.Save(txCtx, next); err != nil {
			return fmt.Errorf("save definition: %w", err)
		}
		// a same-shape edit of a published version only renames it
		if next.IsPublished() {
			if err := s.definitionRepo.SavePublished(txCtx, next); err != nil {
				return fmt.Errorf("save published definition: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to save definition", "error", err, "tenant_id", def.TenantID, "definition_id", def.ID)
		return nil, err
	}

	s.logger.Info("Definition saved",
		"tenant_id", next.TenantID,
		"definition_id", next.ID,
		"version", next.Version,
		"status", next.Status,
	)
	return next, nil
}

// GetDefinition returns one definition
func (s *processServiceImpl) GetDefinition(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error) {
	return s.definitionRepo.Get(ctx, tenantID, id)
}

// ListDefinitions returns a tenant's definitions
func (s *processServiceImpl) ListDefinitions(ctx context.Context, tenantID string) ([]*entity.ProcessDefinition, error) {
	defs, err := s.definitionRepo.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return defs, nil
}

// Validate returns every structural violation
func (s *processServiceImpl) Validate(ctx context.Context, tenantID, id string) ([]process.Violation, error) {
	def, err := s.definitionRepo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return process.Validate(def), nil
}

// Publish makes the definition usable by subjects
func (s *processServiceImpl) Publish(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error) {
	ctx, span := tracing.StartSpan(ctx, "process.publish", map[string]string{
		"tenant.id":     tenantID,
		"definition.id": id,
	})

	var published *entity.ProcessDefinition
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		def, err := s.definitionRepo.Get(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		if err := process.ValidationError(def, process.Validate(def)); err != nil {
			return err
		}
		if def.IsPublished() {
			published = def
			return nil
		}

		now := s.now()
		def.Status = entity.DefinitionStatusPublished
		def.PublishedAt = &now
		def.UpdatedAt = now
		if err := s.definitionRepo.Save(txCtx, def); err != nil {
			return fmt.Errorf("save definition: %w", err)
		}
		if err := s.definitionRepo.SavePublished(txCtx, def); err != nil {
			return fmt.Errorf("save published definition: %w", err)
		}
		published = def
		return nil
	})
	tracing.EndSpan(span, err)
	if err != nil {
		s.logger.Info("Publish rejected", "tenant_id", tenantID, "definition_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Definition published", "tenant_id", tenantID, "definition_id", id, "version", published.Version)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeDefinitionPublished, tenantID, id, map[string]interface{}{
			"version": published.Version,
		}))
	}
	return published, nil
}

// Graph renders the definition as Mermaid
func (s *processServiceImpl) Graph(ctx context.Context, tenantID, id, subjectID string) (string, error) {
	if subjectID == "" {
		def, err := s.definitionRepo.Get(ctx, tenantID, id)
		if err != nil {
			return "", err
		}
		return process.GenerateMermaid(def, nil), nil
	}

	state, def, err := s.subject(ctx, tenantID, id, subjectID, "GRAPH")
	if err != nil {
		return "", err
	}
	return process.GenerateMermaid(def, &process.GraphOverlay{
		VisitedNodes: state.VisitedNodeIDs,
		CurrentNode:  state.CurrentNodeID,
	}), nil
}

// EnterSubject places a subject at the start node of a published definition
func (s *processServiceImpl) EnterSubject(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, apperr.Validation("ENTER", "subjectId is required")
	}

	var entered *entity.SubjectWorkflowState
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		def, err := s.publishedDefinition(txCtx, tenantID, definitionID, 0, "ENTER")
		if err != nil {
			return err
		}

		if _, err := s.subjectRepo.Get(txCtx, tenantID, definitionID, subjectID); err == nil {
			return apperr.Conflict("subject", subjectID)
		} else if !isNotFound(err) {
			return fmt.Errorf("get subject: %w", err)
		}

		state, err := s.tracker.Start(def, subjectID)
		if err != nil {
			return err
		}
		if err := s.subjectRepo.Save(txCtx, state); err != nil {
			return fmt.Errorf("save subject: %w", err)
		}
		entered = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subject entered", "tenant_id", tenantID, "definition_id", definitionID, "subject_id", subjectID, "node_id", entered.CurrentNodeID)
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeSubjectEntered, tenantID, subjectID, map[string]interface{}{
			"definition_id": definitionID,
			"node_id":       entered.CurrentNodeID,
		}))
	}
	return entered, nil
}

// GetSubject returns the subject's workflow state
func (s *processServiceImpl) GetSubject(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error) {
	return s.subjectRepo.Get(ctx, tenantID, definitionID, subjectID)
}

// AvailableTransitions lists the edges leaving the subject's current node
func (s *processServiceImpl) AvailableTransitions(ctx context.Context, tenantID, definitionID, subjectID string) ([]entity.Edge, error) {
	state, def, err := s.subject(ctx, tenantID, definitionID, subjectID, "TRANSITIONS")
	if err != nil {
		return nil, err
	}
	return process.AvailableTransitions(def, state.CurrentNodeID), nil
}

// Advance moves the subject along an existing edge to targetNodeID
func (s *processServiceImpl) Advance(ctx context.Context, tenantID, definitionID, subjectID, targetNodeID string) (*entity.SubjectWorkflowState, error) {
	ctx, span := tracing.StartSpan(ctx, "process.advance", map[string]string{
		"tenant.id":     tenantID,
		"definition.id": definitionID,
		"subject.id":    subjectID,
		"target.node":   targetNodeID,
	})

	var (
		from     string
		advanced *entity.SubjectWorkflowState
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		state, def, err := s.subject(txCtx, tenantID, definitionID, subjectID, "ADVANCE")
		if err != nil {
			return err
		}
		from = state.CurrentNodeID

		next, err := s.tracker.ExecuteTransition(def, state, targetNodeID)
		if err != nil {
			return err
		}
		if err := s.subjectRepo.Save(txCtx, next); err != nil {
			return fmt.Errorf("save subject: %w", err)
		}
		advanced = next
		return nil
	})
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subject advanced",
		"tenant_id", tenantID,
		"definition_id", definitionID,
		"subject_id", subjectID,
		"from", from,
		"to", advanced.CurrentNodeID,
	)
	if s.metrics != nil {
		s.metrics.ObserveSubjectMove(tenantID, definitionID)
	}
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeSubjectAdvanced, tenantID, subjectID, map[string]interface{}{
			"definition_id": definitionID,
			"from_node":     from,
			"to_node":       advanced.CurrentNodeID,
		}))
	}
	return advanced, nil
}

// Completion reports which mandatory nodes the subject has not visited
func (s *processServiceImpl) Completion(ctx context.Context, tenantID, definitionID, subjectID string) (process.Completion, error) {
	state, def, err := s.subject(ctx, tenantID, definitionID, subjectID, "COMPLETION")
	if err != nil {
		return process.Completion{}, err
	}
	return process.CheckMandatoryCompletion(def, state.VisitedNodeIDs), nil
}

// Kanban groups the definition's subjects by the nodes of its latest published version
func (s *processServiceImpl) Kanban(ctx context.Context, tenantID, definitionID string) (*process.Kanban, error) {
	def, err := s.publishedDefinition(ctx, tenantID, definitionID, 0, "KANBAN")
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjectRepo.ListByDefinition(ctx, tenantID, definitionID)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return process.BuildKanban(def, subjects), nil
}

// publishedDefinition returns the published snapshot of version, the latest
// one when version is 0. A definition that exists but has no such snapshot
// fails validation.
func (s *processServiceImpl) publishedDefinition(ctx context.Context, tenantID, id string, version int, action string) (*entity.ProcessDefinition, error) {
	def, err := s.definitionRepo.GetPublished(ctx, tenantID, id, version)
	if err == nil {
		return def, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("get published definition: %w", err)
	}
	if _, err := s.definitionRepo.Get(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if version > 0 {
		return nil, apperr.Validation(action, fmt.Sprintf("definition %q version %d is not published", id, version))
	}
	return nil, apperr.Validation(action, fmt.Sprintf("definition %q is not published", id))
}

// subject loads a subject's state and the published version it is pinned to
func (s *processServiceImpl) subject(ctx context.Context, tenantID, definitionID, subjectID, action string) (*entity.SubjectWorkflowState, *entity.ProcessDefinition, error) {
	state, err := s.subjectRepo.Get(ctx, tenantID, definitionID, subjectID)
	if err != nil {
		return nil, nil, err
	}
	def, err := s.publishedDefinition(ctx, tenantID, definitionID, state.DefinitionVersion, action)
	if err != nil {
		return nil, nil, err
	}
	return state, def, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
