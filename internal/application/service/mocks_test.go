package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/garyjia/discharge-planner/internal/application/dispatcher"
	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/domain/event"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockDefinitionRepo struct {
	mu        sync.Mutex
	defs      map[string]*entity.ProcessDefinition
	published map[string]*entity.ProcessDefinition
}

func newMockDefinitionRepo() *mockDefinitionRepo {
	return &mockDefinitionRepo{
		defs:      make(map[string]*entity.ProcessDefinition),
		published: make(map[string]*entity.ProcessDefinition),
	}
}

func (m *mockDefinitionRepo) Save(ctx context.Context, def *entity.ProcessDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.TenantID+"/"+def.ID] = def.Clone()
	return nil
}

func (m *mockDefinitionRepo) Get(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[tenantID+"/"+id]
	if !ok {
		return nil, apperr.NotFound("definition", id)
	}
	return def.Clone(), nil
}

func (m *mockDefinitionRepo) List(ctx context.Context, tenantID string) ([]*entity.ProcessDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ProcessDefinition
	for _, def := range m.defs {
		if def.TenantID == tenantID {
			out = append(out, def.Clone())
		}
	}
	return out, nil
}

func (m *mockDefinitionRepo) SavePublished(ctx context.Context, def *entity.ProcessDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[fmt.Sprintf("%s/%s/%d", def.TenantID, def.ID, def.Version)] = def.Clone()
	return nil
}

func (m *mockDefinitionRepo) GetPublished(ctx context.Context, tenantID, id string, version int) (*entity.ProcessDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *entity.ProcessDefinition
	for _, def := range m.published {
		if def.TenantID != tenantID || def.ID != id {
			continue
		}
		if (version > 0 && def.Version == version) || (version == 0 && (found == nil || def.Version > found.Version)) {
			found = def
		}
	}
	if found == nil {
		return nil, apperr.NotFound("published definition", id)
	}
	return found.Clone(), nil
}

type mockSubjectRepo struct {
	mu     sync.Mutex
	states map[string]*entity.SubjectWorkflowState
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{states: make(map[string]*entity.SubjectWorkflowState)}
}

func (m *mockSubjectRepo) Save(ctx context.Context, state *entity.SubjectWorkflowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.TenantID+"/"+state.DefinitionID+"/"+state.SubjectID] = state.Clone()
	return nil
}

func (m *mockSubjectRepo) Get(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[tenantID+"/"+definitionID+"/"+subjectID]
	if !ok {
		return nil, apperr.NotFound("subject", subjectID)
	}
	return s.Clone(), nil
}

func (m *mockSubjectRepo) ListByDefinition(ctx context.Context, tenantID, definitionID string) ([]*entity.SubjectWorkflowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.SubjectWorkflowState
	for _, s := range m.states {
		if s.TenantID == tenantID && s.DefinitionID == definitionID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	events   []*event.Event
	handlers map[event.Type][]dispatcher.Handler
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{handlers: make(map[event.Type][]dispatcher.Handler)}
}

func (d *recordingDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {
	d.SubscribeNamed(eventType, "", handler)
}

func (d *recordingDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

func (d *recordingDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.Lock()
	d.events = append(d.events, evt)
	handlers := append([]dispatcher.Handler(nil), d.handlers[evt.Type]...)
	d.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = d.Dispatch(ctx, evt)
}

func (d *recordingDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return make([]dispatcher.HandlerInfo, len(d.handlers[eventType]))
}

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type countingMetrics struct {
	moves int
}

func (m *countingMetrics) ObserveTransition(tenantID, action, from, to string, d time.Duration) {}
func (m *countingMetrics) ObserveRejection(tenantID, action, state, kind string)             {}
func (m *countingMetrics) ObserveSubjectMove(tenantID, definitionID string)                   { m.moves++ }

type stubSummaries struct {
	summary *entity.CaseSummary
	err     error
}

func (s *stubSummaries) Summary(ctx context.Context, tenantID, caseID string) (*entity.CaseSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *s.summary
	return &out, nil
}

type stubWriter struct {
	msg string
	err error
}

func (w *stubWriter) WriteMessage(ctx context.Context, summary *entity.CaseSummary) (string, error) {
	return w.msg, w.err
}

type recordingNotifier struct {
	sent []*entity.CaseSummary
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, summary *entity.CaseSummary) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, summary)
	return nil
}

type stubCaseReader struct {
	c *entity.Case
}

func (r *stubCaseReader) GetCase(ctx context.Context, tenantID, caseID string) (*entity.Case, error) {
	if r.c == nil || r.c.TenantID != tenantID || r.c.ID != caseID {
		return nil, apperr.NotFound("case", caseID)
	}
	return r.c.Clone(), nil
}

type lineExporter struct{}

func (lineExporter) ContentType() string { return "text/plain" }

func (lineExporter) Export(w io.Writer, c *entity.Case, entries []entity.AuditEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%d %s %s->%s\n", e.Sequence, e.Action, e.FromState, e.ToState); err != nil {
			return err
		}
	}
	return nil
}
