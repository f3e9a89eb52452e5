// Package memory keeps definitions, subjects, cases and audit trails in process
// memory. Values are copied on save and on read so callers never share pointers
// with the store.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

type tables struct {
	definitions map[string]*entity.ProcessDefinition
	published   map[string]*entity.ProcessDefinition
	subjects    map[string]*entity.SubjectWorkflowState
	cases       map[string]*entity.Case
	audits      map[string][]entity.AuditEntry
}

func newTables() tables {
	return tables{
		definitions: make(map[string]*entity.ProcessDefinition),
		published:   make(map[string]*entity.ProcessDefinition),
		subjects:    make(map[string]*entity.SubjectWorkflowState),
		cases:       make(map[string]*entity.Case),
		audits:      make(map[string][]entity.AuditEntry),
	}
}

// Store holds every table. Safe for concurrent use.
//
// Rows are grouped into scopes: one case with its audit trail, one subject, one
// definition with its published versions. Inside a transaction the first read
// or write of a scope locks it until the transaction ends, so transactions on
// different scopes run in parallel and a rollback only reverts its own writes.
type Store struct {
	mu   sync.RWMutex
	data tables

	scopesMu sync.Mutex
	scopes   map[string]*sync.Mutex
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		data:   newTables(),
		scopes: make(map[string]*sync.Mutex),
	}
}

type txKey struct{}

type tx struct {
	held map[string]*sync.Mutex
	undo []func()
}

// WithTransaction implements port.TransactionManager. Writes made by fn are
// reverted when it fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	t := &tx{held: make(map[string]*sync.Mutex)}
	defer func() {
		if r := recover(); r != nil {
			s.rollback(t)
			t.release()
			panic(r)
		}
		if err != nil {
			s.rollback(t)
		}
		t.release()
	}()

	return fn(context.WithValue(ctx, txKey{}, t))
}

func (s *Store) rollback(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = nil
}

func (s *Store) scopeLock(scope string) *sync.Mutex {
	s.scopesMu.Lock()
	defer s.scopesMu.Unlock()
	m, ok := s.scopes[scope]
	if !ok {
		m = &sync.Mutex{}
		s.scopes[scope] = m
	}
	return m
}

// enter locks scope for the transaction on ctx, if any. Only the first scope
// of a transaction waits; a later scope held elsewhere fails with a conflict
// so two transactions never wait on each other.
func (s *Store) enter(ctx context.Context, resource, id, scope string) (*tx, error) {
	t, _ := ctx.Value(txKey{}).(*tx)
	if t == nil {
		return nil, nil
	}
	if _, ok := t.held[scope]; ok {
		return t, nil
	}
	m := s.scopeLock(scope)
	if len(t.held) == 0 {
		m.Lock()
	} else if !m.TryLock() {
		return nil, apperr.Conflict(resource, id)
	}
	t.held[scope] = m
	return t, nil
}

// write applies a change to scope. Outside a transaction the scope is locked
// only while apply runs.
func (s *Store) write(ctx context.Context, resource, id, scope string, apply func() (undo func(), err error)) error {
	t, err := s.enter(ctx, resource, id, scope)
	if err != nil {
		return err
	}
	if t == nil {
		m := s.scopeLock(scope)
		m.Lock()
		defer m.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	undo, err := apply()
	if err != nil {
		return err
	}
	if t != nil {
		t.undo = append(t.undo, undo)
	}
	return nil
}

// put stores v under k and returns the change that reverts it
func put[V any](m map[string]V, k string, v V) func() {
	prev, had := m[k]
	m[k] = v
	return func() {
		if had {
			m[k] = prev
		} else {
			delete(m, k)
		}
	}
}

func key(parts ...string) string {
	k := parts[0]
	for _, p := range parts[1:] {
		k += "\x00" + p
	}
	return k
}

func definitionScope(tenantID, id string) string { return key("definition", tenantID, id) }

func subjectScope(tenantID, definitionID, subjectID string) string {
	return key("subject", tenantID, definitionID, subjectID)
}

func caseScope(tenantID, caseID string) string { return key("case", tenantID, caseID) }

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct{ s *Store }

// SubjectStateRepository implements port.SubjectStateRepository
type SubjectStateRepository struct{ s *Store }

// CaseRepository implements port.CaseRepository
type CaseRepository struct{ s *Store }

// AuditRepository implements port.AuditRepository
type AuditRepository struct{ s *Store }

// Definitions returns the definition repository over s
func (s *Store) Definitions() port.DefinitionRepository { return &DefinitionRepository{s: s} }

// Subjects returns the subject state repository over s
func (s *Store) Subjects() port.SubjectStateRepository { return &SubjectStateRepository{s: s} }

// Cases returns the case repository over s
func (s *Store) Cases() port.CaseRepository { return &CaseRepository{s: s} }

// Audits returns the audit repository over s
func (s *Store) Audits() port.AuditRepository { return &AuditRepository{s: s} }

// Save inserts or replaces a definition
func (r *DefinitionRepository) Save(ctx context.Context, def *entity.ProcessDefinition) error {
	stored := def.Clone()
	return r.s.write(ctx, "definition", def.ID, definitionScope(def.TenantID, def.ID), func() (func(), error) {
		return put(r.s.data.definitions, key(def.TenantID, def.ID), stored), nil
	})
}

// Get retrieves a definition
func (r *DefinitionRepository) Get(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error) {
	if _, err := r.s.enter(ctx, "definition", id, definitionScope(tenantID, id)); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	def, ok := r.s.data.definitions[key(tenantID, id)]
	if !ok {
		return nil, apperr.NotFound("definition", id)
	}
	return def.Clone(), nil
}

// List returns a tenant's definitions ordered by creation time
func (r *DefinitionRepository) List(ctx context.Context, tenantID string) ([]*entity.ProcessDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	defs := make([]*entity.ProcessDefinition, 0)
	for _, def := range r.s.data.definitions {
		if def.TenantID == tenantID {
			defs = append(defs, def.Clone())
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		if !defs[i].CreatedAt.Equal(defs[j].CreatedAt) {
			return defs[i].CreatedAt.Before(defs[j].CreatedAt)
		}
		return defs[i].ID < defs[j].ID
	})
	return defs, nil
}

// SavePublished stores the snapshot of a published version
func (r *DefinitionRepository) SavePublished(ctx context.Context, def *entity.ProcessDefinition) error {
	stored := def.Clone()
	k := key(def.TenantID, def.ID, strconv.Itoa(def.Version))
	return r.s.write(ctx, "definition", def.ID, definitionScope(def.TenantID, def.ID), func() (func(), error) {
		return put(r.s.data.published, k, stored), nil
	})
}

// GetPublished retrieves a published snapshot, the latest one when version is 0.
// Snapshots are read without locking the definition's scope.
func (r *DefinitionRepository) GetPublished(ctx context.Context, tenantID, id string, version int) (*entity.ProcessDefinition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if version > 0 {
		def, ok := r.s.data.published[key(tenantID, id, strconv.Itoa(version))]
		if !ok {
			return nil, apperr.NotFound("published definition", id)
		}
		return def.Clone(), nil
	}

	var latest *entity.ProcessDefinition
	for _, def := range r.s.data.published {
		if def.TenantID == tenantID && def.ID == id && (latest == nil || def.Version > latest.Version) {
			latest = def
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("published definition", id)
	}
	return latest.Clone(), nil
}

// Save inserts or replaces a subject's state
func (r *SubjectStateRepository) Save(ctx context.Context, state *entity.SubjectWorkflowState) error {
	stored := state.Clone()
	scope := subjectScope(state.TenantID, state.DefinitionID, state.SubjectID)
	return r.s.write(ctx, "subject", state.SubjectID, scope, func() (func(), error) {
		return put(r.s.data.subjects, key(state.TenantID, state.DefinitionID, state.SubjectID), stored), nil
	})
}

// Get retrieves a subject's state
func (r *SubjectStateRepository) Get(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error) {
	if _, err := r.s.enter(ctx, "subject", subjectID, subjectScope(tenantID, definitionID, subjectID)); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	state, ok := r.s.data.subjects[key(tenantID, definitionID, subjectID)]
	if !ok {
		return nil, apperr.NotFound("subject", subjectID)
	}
	return state.Clone(), nil
}

// ListByDefinition returns every subject in a definition ordered by subject id
func (r *SubjectStateRepository) ListByDefinition(ctx context.Context, tenantID, definitionID string) ([]*entity.SubjectWorkflowState, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	states := make([]*entity.SubjectWorkflowState, 0)
	for _, state := range r.s.data.subjects {
		if state.TenantID == tenantID && state.DefinitionID == definitionID {
			states = append(states, state.Clone())
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SubjectID < states[j].SubjectID })
	return states, nil
}

func storedCase(c *entity.Case) *entity.Case {
	out := c.Clone()
	out.AuditHistory = nil
	return out
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	stored := storedCase(c)
	return r.s.write(ctx, "case", c.ID, caseScope(c.TenantID, c.ID), func() (func(), error) {
		k := key(c.TenantID, c.ID)
		if _, exists := r.s.data.cases[k]; exists {
			return nil, apperr.Conflict("case", c.ID)
		}
		return put(r.s.data.cases, k, stored), nil
	})
}

// Get retrieves a case without its audit trail
func (r *CaseRepository) Get(ctx context.Context, tenantID, id string) (*entity.Case, error) {
	if _, err := r.s.enter(ctx, "case", id, caseScope(tenantID, id)); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.data.cases[key(tenantID, id)]
	if !ok {
		return nil, apperr.NotFound("case", id)
	}
	return c.Clone(), nil
}

// Update stores c if the stored version equals expectedVersion
func (r *CaseRepository) Update(ctx context.Context, c *entity.Case, expectedVersion int) error {
	next := storedCase(c)
	return r.s.write(ctx, "case", c.ID, caseScope(c.TenantID, c.ID), func() (func(), error) {
		k := key(c.TenantID, c.ID)
		stored, ok := r.s.data.cases[k]
		if !ok {
			return nil, apperr.NotFound("case", c.ID)
		}
		if stored.Version != expectedVersion {
			return nil, apperr.Conflict("case", c.ID)
		}
		return put(r.s.data.cases, k, next), nil
	})
}

// List returns a page of a tenant's cases, newest first
func (r *CaseRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Case, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := make([]*entity.Case, 0)
	for _, c := range r.s.data.cases {
		if c.TenantID == tenantID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []*entity.Case{}, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := make([]*entity.Case, 0, end-offset)
	for _, c := range all[offset:end] {
		page = append(page, c.Clone())
	}
	return page, nil
}

// Append records one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	stored := entry.Clone()
	return r.s.write(ctx, "case", entry.CaseID, caseScope(entry.TenantID, entry.CaseID), func() (func(), error) {
		k := key(entry.TenantID, entry.CaseID)
		prev := r.s.data.audits[k]
		for _, e := range prev {
			if e.Sequence == entry.Sequence {
				return nil, apperr.Conflict("audit entry", entry.ID)
			}
		}
		next := make([]entity.AuditEntry, len(prev), len(prev)+1)
		copy(next, prev)
		return put(r.s.data.audits, k, append(next, stored)), nil
	})
}

// ListByCase returns a case's audit trail ordered by sequence
func (r *AuditRepository) ListByCase(ctx context.Context, tenantID, caseID string) ([]entity.AuditEntry, error) {
	if _, err := r.s.enter(ctx, "case", caseID, caseScope(tenantID, caseID)); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stored := r.s.data.audits[key(tenantID, caseID)]
	entries := make([]entity.AuditEntry, len(stored))
	for i, e := range stored {
		entries[i] = e.Clone()
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
	return entries, nil
}

var (
	_ port.TransactionManager     = (*Store)(nil)
	_ port.DefinitionRepository   = (*DefinitionRepository)(nil)
	_ port.SubjectStateRepository = (*SubjectStateRepository)(nil)
	_ port.CaseRepository         = (*CaseRepository)(nil)
	_ port.AuditRepository        = (*AuditRepository)(nil)
)
