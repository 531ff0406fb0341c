package circuitbreaker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/store"
)

// Store guards a DataStore with one breaker per table. A missing row is an
// answer, not a failure, so store.ErrNotFound never trips a circuit.
type Store struct {
	next    store.DataStore
	manager *Manager
}

// GuardStore decorates ds. cfg.IsSuccessful is replaced.
func GuardStore(ds store.DataStore, cfg Config, logger *zap.Logger) *Store {
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, store.ErrNotFound)
	}
	return &Store{next: ds, manager: NewManager(cfg, logger)}
}

// Manager exposes the per-table breakers for health reporting
func (s *Store) Manager() *Manager { return s.manager }

func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	var rows []store.Row
	err := s.guard(ctx, q.Table, func(ctx context.Context) error {
		var err error
		rows, err = s.next.Select(ctx, q)
		return err
	})
	return rows, err
}

func (s *Store) Single(ctx context.Context, q store.Query) (store.Row, error) {
	var row store.Row
	err := s.guard(ctx, q.Table, func(ctx context.Context) error {
		var err error
		row, err = s.next.Single(ctx, q)
		return err
	})
	return row, err
}

func (s *Store) Update(ctx context.Context, table, id string, fields store.Row) error {
	return s.guard(ctx, table, func(ctx context.Context) error {
		return s.next.Update(ctx, table, id, fields)
	})
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	var out store.Row
	err := s.guard(ctx, table, func(ctx context.Context) error {
		var err error
		out, err = s.next.Insert(ctx, table, row)
		return err
	})
	return out, err
}

func (s *Store) guard(ctx context.Context, table string, fn func(ctx context.Context) error) error {
	cb, err := s.manager.GetOrCreate(table)
	if err != nil {
		// no breaker available; call through unguarded
		return fn(ctx)
	}
	return cb.Execute(ctx, fn)
}
