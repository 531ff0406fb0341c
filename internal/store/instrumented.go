package store

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QueryObserver receives one observation per store call
type QueryObserver interface {
	ObserveQuery(table, op, outcome string, d time.Duration)
}

// Instrumented wraps a DataStore with tracing, logging and query metrics
type Instrumented struct {
	next     DataStore
	observer QueryObserver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Instrument decorates ds. observer may be nil.
func Instrument(ds DataStore, observer QueryObserver, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		next:     ds,
		observer: observer,
		logger:   logger,
		tracer:   otel.Tracer("data-store"),
	}
}

func (s *Instrumented) Select(ctx context.Context, q Query) ([]Row, error) {
	ctx, done := s.start(ctx, "select", q.Table)
	rows, err := s.next.Select(ctx, q)
	done(err, attribute.Int("rows", len(rows)))
	return rows, err
}

func (s *Instrumented) Single(ctx context.Context, q Query) (Row, error) {
	ctx, done := s.start(ctx, "single", q.Table)
	row, err := s.next.Single(ctx, q)
	done(err)
	return row, err
}

func (s *Instrumented) Update(ctx context.Context, table, id string, fields Row) error {
	ctx, done := s.start(ctx, "update", table)
	err := s.next.Update(ctx, table, id, fields)
	done(err, attribute.String("row_id", id))
	return err
}

func (s *Instrumented) Insert(ctx context.Context, table string, row Row) (Row, error) {
	ctx, done := s.start(ctx, "insert", table)
	out, err := s.next.Insert(ctx, table, row)
	done(err)
	return out, err
}

func (s *Instrumented) start(ctx context.Context, op, table string) (context.Context, func(error, ...attribute.KeyValue)) {
	begin := time.Now()
	ctx, span := s.tracer.Start(ctx, "store."+op,
		trace.WithAttributes(
			attribute.String("db.table", table),
			attribute.String("db.operation", op),
		))

	return ctx, func(err error, attrs ...attribute.KeyValue) {
		defer span.End()
		elapsed := time.Since(begin)
		span.SetAttributes(attrs...)

		outcome := "ok"
		switch {
		case errors.Is(err, ErrNotFound):
			outcome = "not_found"
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Warn("store call failed",
				zap.String("op", op),
				zap.String("table", table),
				zap.Duration("duration", elapsed),
				zap.Error(err))
		}

		if s.observer != nil {
			s.observer.ObserveQuery(table, op, outcome, elapsed)
		}
	}
}
