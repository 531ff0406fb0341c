// Package postgres provides the PostgreSQL DataStore used by the dashboard.
// Queries are built from the store.Query model against a fixed set of tables;
// embeds become a LEFT JOIN projected as a JSON object.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/store"
)

var _ store.DataStore = (*Store)(nil)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// invalid_text_representation, raised when an id is not a valid uuid
const codeInvalidText = "22P02"

// tables the dashboard may touch, and whether rows carry updated_at
var tables = map[string]bool{
	store.TablePatients:    true,
	store.TableEpisodes:    true,
	store.TableMedications: false,
	store.TableVitals:      false,
	store.TableLabResults:  false,
	store.TableProcedures:  false,
	store.TableDailyNotes:  true,
	store.TableUsers:       false,
}

// Store implements store.DataStore over a pgx pool
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// Connect opens a pool and verifies the connection
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// NewStore creates a store over pool
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger, tracer: otel.Tracer("postgres")}
}

// Ping checks the database for readiness probes
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	ctx, span := s.tracer.Start(ctx, "postgres_select", trace.WithAttributes(attribute.String("table", q.Table)))
	defer span.End()

	if MatchesNothing(q) {
		return nil, nil
	}
	sql, args, err := BuildSelect(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, sql, args)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	// ORDER BY is in the SQL; sort again so text and timestamptz columns agree
	store.SortRows(rows, q.Order)
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

func (s *Store) Single(ctx context.Context, q store.Query) (store.Row, error) {
	ctx, span := s.tracer.Start(ctx, "postgres_single", trace.WithAttributes(attribute.String("table", q.Table)))
	defer span.End()

	if MatchesNothing(q) {
		return nil, store.ErrNotFound
	}
	sql, args, err := BuildSelect(q.Take(2))
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, sql, args)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
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
	ctx, span := s.tracer.Start(ctx, "postgres_update", trace.WithAttributes(
		attribute.String("table", table),
		attribute.String("id", id),
	))
	defer span.End()

	if !validID(id) {
		return store.ErrNotFound
	}
	sql, args, err := BuildUpdate(table, id, fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update %s: %w", table, classifyErr(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	ctx, span := s.tracer.Start(ctx, "postgres_insert", trace.WithAttributes(attribute.String("table", table)))
	defer span.End()

	sql, args, err := BuildInsert(table, row)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, sql, args)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("insert %s: returned %d rows", table, len(rows))
	}
	return rows[0], nil
}

func (s *Store) query(ctx context.Context, sql string, args []any) ([]store.Row, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", classifyErr(err))
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []store.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		r := make(store.Row, len(values))
		for i, v := range values {
			r[fields[i].Name] = normalize(v)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query failed: %w", classifyErr(err))
	}
	return out, nil
}

// classifyErr maps an id the database could not parse to store.ErrNotFound,
// since no row can carry it.
func classifyErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeInvalidText {
		return fmt.Errorf("%w: %s", store.ErrNotFound, pgErr.Message)
	}
	return err
}

// MatchesNothing reports whether q filters an id column by a value that is
// not a uuid. Such a query cannot match any row, so it is answered without a
// round trip.
func MatchesNothing(q store.Query) bool {
	for _, f := range q.Filters {
		if !isIDColumn(f.Column) {
			continue
		}
		if v, ok := f.Value.(string); ok && !validID(v) {
			return true
		}
	}
	return false
}

func isIDColumn(col string) bool {
	return col == "id" || strings.HasSuffix(col, "_id")
}

func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// normalize converts driver values into the JSON-friendly shapes the domain
// decoders expect.
func normalize(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}

func ident(parts ...string) (string, error) {
	for _, p := range parts {
		if !identifier.MatchString(p) {
			return "", fmt.Errorf("invalid identifier %q", p)
		}
	}
	return pgx.Identifier(parts).Sanitize(), nil
}

func checkTable(table string) error {
	if _, ok := tables[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

// BuildSelect renders q as parameterized SQL
func BuildSelect(q store.Query) (string, []any, error) {
	if err := checkTable(q.Table); err != nil {
		return "", nil, err
	}
	from, err := ident(q.Table)
	if err != nil {
		return "", nil, err
	}

	var cols []string
	if q.AllColumns() {
		cols = append(cols, `"t".*`)
	} else {
		for _, c := range q.Columns {
			col, err := ident("t", c)
			if err != nil {
				return "", nil, err
			}
			cols = append(cols, col)
		}
	}

	var join string
	if e := q.Embed; e != nil {
		if err := checkTable(e.Table); err != nil {
			return "", nil, err
		}
		related, err := ident(e.Table)
		if err != nil {
			return "", nil, err
		}
		fk, err := ident("t", e.ForeignKey)
		if err != nil {
			return "", nil, err
		}
		as, err := ident(e.As)
		if err != nil {
			return "", nil, err
		}
		pairs := make([]string, 0, len(e.Columns))
		for _, c := range e.Columns {
			col, err := ident("e", c)
			if err != nil {
				return "", nil, err
			}
			pairs = append(pairs, fmt.Sprintf("'%s', %s", c, col))
		}
		cols = append(cols, fmt.Sprintf(`CASE WHEN "e"."id" IS NULL THEN NULL ELSE json_build_object(%s) END AS %s`,
			strings.Join(pairs, ", "), as))
		join = fmt.Sprintf(` LEFT JOIN %s AS "e" ON "e"."id" = %s`, related, fk)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s AS \"t\"%s", strings.Join(cols, ", "), from, join)

	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		col, err := ident("t", f.Column)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "%s = $%d", col, len(args))
	}

	if o := q.Order; o != nil {
		col, err := ident("t", o.Column)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", col, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

// BuildUpdate renders an update by id. Tables with updated_at get it set.
func BuildUpdate(table, id string, fields store.Row) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("update %s: no fields", table)
	}
	name, err := ident(table)
	if err != nil {
		return "", nil, err
	}

	keys := sortedKeys(fields)
	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		if k == "id" {
			return "", nil, fmt.Errorf("update %s: id is immutable", table)
		}
		col, err := ident(k)
		if err != nil {
			return "", nil, err
		}
		args = append(args, fields[k])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if _, explicit := fields["updated_at"]; tables[table] && !explicit {
		sets = append(sets, `"updated_at" = NOW()`)
	}
	args = append(args, id)
	return fmt.Sprintf(`UPDATE %s SET %s WHERE "id" = $%d`, name, strings.Join(sets, ", "), len(args)), args, nil
}

// BuildInsert renders an insert returning the stored row
func BuildInsert(table string, row store.Row) (string, []any, error) {
	if err := checkTable(table); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return "", nil, fmt.Errorf("insert %s: empty row", table)
	}
	name, err := ident(table)
	if err != nil {
		return "", nil, err
	}

	keys := sortedKeys(row)
	cols := make([]string, 0, len(keys))
	params := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		col, err := ident(k)
		if err != nil {
			return "", nil, err
		}
		cols = append(cols, col)
		args = append(args, row[k])
		params = append(params, fmt.Sprintf("$%d", len(args)))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		name, strings.Join(cols, ", "), strings.Join(params, ", ")), args, nil
}

func sortedKeys(r store.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
