// Package memory provides an in-memory DataStore used by tests and the demo
// server when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardboard/go-ward/internal/store"
)

var _ store.DataStore = (*Store)(nil)

// Op names a store operation for interception
type Op string

const (
	OpSelect Op = "select"
	OpSingle Op = "single"
	OpUpdate Op = "update"
	OpInsert Op = "insert"
)

// Call describes an intercepted store call
type Call struct {
	Op    Op
	Table string
	Query store.Query
	ID    string
	Row   store.Row
}

// Interceptor runs before every call; a non-nil error fails the call
type Interceptor func(ctx context.Context, call Call) error

// Store keeps tables as slices of rows in insertion order. Rows are copied on
// the way in and out.
type Store struct {
	mu        sync.RWMutex
	tables    map[string][]store.Row
	intercept Interceptor
	writes    int
	now       func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		tables: make(map[string][]store.Row),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Seed appends rows to table without interception
func (s *Store) Seed(table string, rows ...store.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], r.Clone())
	}
}

// SeedValues encodes domain structs and seeds them
func (s *Store) SeedValues(table string, values ...any) error {
	for _, v := range values {
		row, err := store.Encode(v)
		if err != nil {
			return err
		}
		s.Seed(table, row)
	}
	return nil
}

// Intercept installs fn; nil removes the interceptor
func (s *Store) Intercept(fn Interceptor) {
	s.mu.Lock()
	s.intercept = fn
	s.mu.Unlock()
}

// Writes returns the number of successful Update and Insert calls
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Rows returns a copy of every row in table
func (s *Store) Rows(table string) []store.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, r.Clone())
	}
	return out
}

func (s *Store) before(ctx context.Context, call Call) error {
	s.mu.RLock()
	fn := s.intercept
	s.mu.RUnlock()
	if fn != nil {
		if err := fn(ctx, call); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	if err := s.before(ctx, Call{Op: OpSelect, Table: q.Table, Query: q}); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectLocked(q), nil
}

func (s *Store) Single(ctx context.Context, q store.Query) (store.Row, error) {
	if err := s.before(ctx, Call{Op: OpSingle, Table: q.Table, Query: q}); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.selectLocked(q)
	switch len(rows) {
	case 0:
		return nil, store.ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, store.ErrMultipleRows
	}
}

func (s *Store) Update(ctx context.Context, table, id string, fields store.Row) error {
	if err := s.before(ctx, Call{Op: OpUpdate, Table: table, ID: id, Row: fields}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.tables[table] {
		if fmt.Sprint(r["id"]) != id {
			continue
		}
		updated := r.Clone()
		for k, v := range fields {
			updated[k] = v
		}
		if _, ok := fields["updated_at"]; !ok {
			if _, has := r["updated_at"]; has {
				updated["updated_at"] = s.now().Format(time.RFC3339Nano)
			}
		}
		s.tables[table][i] = updated
		s.writes++
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	if err := s.before(ctx, Call{Op: OpInsert, Table: table, Row: row}); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := row.Clone()
	if id, _ := stored["id"].(string); id == "" {
		stored["id"] = uuid.New().String()
	}
	s.tables[table] = append(s.tables[table], stored)
	s.writes++
	return stored.Clone(), nil
}

func (s *Store) selectLocked(q store.Query) []store.Row {
	var out []store.Row
	for _, r := range s.tables[q.Table] {
		if !matches(r, q.Filters) {
			continue
		}
		out = append(out, s.project(r, q))
	}

	store.SortRows(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *Store) project(r store.Row, q store.Query) store.Row {
	var out store.Row
	if q.AllColumns() {
		out = r.Clone()
	} else {
		out = make(store.Row, len(q.Columns)+1)
		for _, c := range q.Columns {
			out[c] = r[c]
		}
	}

	if e := q.Embed; e != nil {
		out[e.As] = nil
		fk := fmt.Sprint(r[e.ForeignKey])
		for _, related := range s.tables[e.Table] {
			if fmt.Sprint(related["id"]) != fk {
				continue
			}
			embedded := make(map[string]any, len(e.Columns))
			for _, c := range e.Columns {
				embedded[c] = related[c]
			}
			out[e.As] = embedded
			break
		}
	}
	return out
}

func matches(r store.Row, filters []store.Eq) bool {
	for _, f := range filters {
		if fmt.Sprint(r[f.Column]) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}
