package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/dispatcher"
	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/domain/event"
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
	"github.com/garyjia/discharge-planner/pkg/tracing"
)

// engineImpl is the concrete implementation of CaseEngine
type engineImpl struct {
	caseRepo  port.CaseRepository
	auditRepo port.AuditRepository
	txManager port.TransactionManager

	machine    *CaseMachine
	dispatcher dispatcher.Dispatcher
	locker     port.CaseLocker
	metrics    port.Metrics
	logger     *zap.Logger

	locks *keyedMutex
}

// EngineOption configures the case engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLocker adds a cross-process lock taken around every Apply
func WithLocker(l port.CaseLocker) EngineOption {
	return func(e *engineImpl) {
		e.locker = l
	}
}

// WithMetrics sets the transition metrics sink
func WithMetrics(m port.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithMachine replaces the default case machine
func WithMachine(m *CaseMachine) EngineOption {
	return func(e *engineImpl) {
		e.machine = m
	}
}

// NewEngine creates a new case engine
func NewEngine(
	caseRepo port.CaseRepository,
	auditRepo port.AuditRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) CaseEngine {
	e := &engineImpl{
		caseRepo:  caseRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		machine:   NewCaseMachine(),
		logger:    zap.NewNop(),
		locks:     newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// OpenCase creates a case in the initial state
func (e *engineImpl) OpenCase(ctx context.Context, req OpenCaseRequest) (*entity.Case, error) {
	var missing []string
	if strings.TrimSpace(req.TenantID) == "" {
		missing = append(missing, "tenant id is required")
	}
	if strings.TrimSpace(req.PatientID) == "" {
		missing = append(missing, "patient id is required")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("OPEN", missing...)
	}

	c := e.machine.NewCase(req.TenantID, req.PatientID, req.PatientName, req.Contact)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.caseRepo.Create(txCtx, c); err != nil {
			return fmt.Errorf("failed to create case: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Case opened",
		zap.String("tenant_id", c.TenantID),
		zap.String("case_id", c.ID),
		zap.String("state", c.CurrentState),
	)

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeCaseOpened, c.TenantID, c.ID, map[string]interface{}{
			"patient_id": c.PatientID,
			"state":      c.CurrentState,
		}))
	}

	return c.Clone(), nil
}

// Apply runs one action against the stored case
func (e *engineImpl) Apply(ctx context.Context, tenantID, caseID string, cmd Command) (*Result, error) {
	release := e.locks.Lock(tenantID + "/" + caseID)
	defer release()

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, tenantID, caseID)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire case lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				e.logger.Warn("Failed to release case lock",
					zap.String("tenant_id", tenantID),
					zap.String("case_id", caseID),
					zap.Error(err),
				)
			}
		}()
	}

	ctx, span := tracing.StartSpan(ctx, "case.apply", map[string]string{
		"tenant.id":   tenantID,
		"case.id":     caseID,
		"case.action": cmd.Action.String(),
	})

	start := time.Now()
	var (
		result    *Result
		fromState string
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.loadCase(txCtx, tenantID, caseID)
		if err != nil {
			return err
		}
		fromState = current.CurrentState

		res, err := e.machine.Apply(txCtx, current, cmd)
		if err != nil {
			return err
		}

		if err := e.caseRepo.Update(txCtx, res.Case, current.Version); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		if err := e.auditRepo.Append(txCtx, res.Entry); err != nil {
			return fmt.Errorf("failed to append audit entry: %w", err)
		}

		result = res
		return nil
	})

	if err != nil {
		e.observeRejection(tenantID, cmd.Action, fromState, err)
		tracing.EndSpan(span, err)
		return nil, err
	}

	span.SetAttribute("case.to_state", result.To.String())
	tracing.EndSpan(span, nil)

	if e.metrics != nil {
		e.metrics.ObserveTransition(tenantID, cmd.Action.String(), result.From.String(), result.To.String(), time.Since(start))
	}

	fields := []zap.Field{
		zap.String("tenant_id", tenantID),
		zap.String("case_id", caseID),
		zap.String("action", cmd.Action.String()),
		zap.String("from", result.From.String()),
		zap.String("to", result.To.String()),
		zap.Int("version", result.Case.Version),
	}
	if result.ResumedWithoutSnapshot {
		e.logger.Warn("Resumed without a saved state, case returned to monitoring", fields...)
	} else {
		e.logger.Info("Case transitioned", fields...)
	}

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(event.TypeCaseTransitioned, tenantID, caseID, map[string]interface{}{
			"action":     cmd.Action.String(),
			"from_state": result.From.String(),
			"to_state":   result.To.String(),
			"version":    result.Case.Version,
			"actor_id":   cmd.Actor.ID,
		}))
	}

	return result, nil
}

// GetCase returns the case with its full audit history
func (e *engineImpl) GetCase(ctx context.Context, tenantID, caseID string) (*entity.Case, error) {
	return e.loadCase(ctx, tenantID, caseID)
}

// ListCases returns a page of cases for a tenant
func (e *engineImpl) ListCases(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Case, error) {
	cases, err := e.caseRepo.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

// PermittedActions lists the actions the case accepts now
func (e *engineImpl) PermittedActions(ctx context.Context, tenantID, caseID string) ([]domainwf.Action, error) {
	c, err := e.caseRepo.Get(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	return e.machine.Permitted(c), nil
}

// Summary returns the outbound read model for the case
func (e *engineImpl) Summary(ctx context.Context, tenantID, caseID string) (*entity.CaseSummary, error) {
	c, err := e.caseRepo.Get(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}
	return domainwf.BuildSummary(c), nil
}

// loadCase reads the case row and attaches its audit trail
func (e *engineImpl) loadCase(ctx context.Context, tenantID, caseID string) (*entity.Case, error) {
	c, err := e.caseRepo.Get(ctx, tenantID, caseID)
	if err != nil {
		return nil, err
	}

	entries, err := e.auditRepo.ListByCase(ctx, tenantID, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	c.AuditHistory = entries
	return c, nil
}

func (e *engineImpl) observeRejection(tenantID string, action domainwf.Action, state string, err error) {
	kind := apperr.KindName(err)
	if e.metrics != nil {
		e.metrics.ObserveRejection(tenantID, action.String(), state, kind)
	}

	fields := []zap.Field{
		zap.String("tenant_id", tenantID),
		zap.String("action", action.String()),
		zap.String("state", state),
		zap.String("kind", kind),
		zap.Error(err),
	}
	if kind == "internal" {
		e.logger.Error("Case action failed", fields...)
		return
	}
	e.logger.Info("Case action rejected", fields...)
}
