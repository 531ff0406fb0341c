// Package store defines the query surface the dashboard consumes from the
// remote data store: filtered select, single-row fetch, ordered select,
// update-by-id, insert and a select that embeds one related record by
// foreign key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Table names of the remote schema
const (
	TablePatients    = "patients"
	TableEpisodes    = "admission_episodes"
	TableMedications = "medications"
	TableVitals      = "vitals"
	TableLabResults  = "lab_results"
	TableProcedures  = "procedures"
	TableDailyNotes  = "daily_notes"
	TableUsers       = "users"
)

// ErrNotFound is returned by Single and Update when no row matches
var ErrNotFound = errors.New("store: no matching row")

// ErrMultipleRows is returned by Single when the filter matches more than one row
var ErrMultipleRows = errors.New("store: multiple rows for single-row fetch")

// Row is one record keyed by column name
type Row map[string]any

// Eq is an equality filter
type Eq struct {
	Column string
	Value  any
}

// Order sorts results by one column
type Order struct {
	Column string
	Desc   bool
}

// Embed projects one related record into each result row under As,
// joined on Table.id = row[ForeignKey].
type Embed struct {
	As         string
	Table      string
	ForeignKey string
	Columns    []string
}

// Query describes a select against one table
type Query struct {
	Table   string
	Columns []string
	Filters []Eq
	Order   *Order
	Embed   *Embed
	Limit   int
}

// From starts a query on table
func From(table string) Query {
	return Query{Table: table}
}

// Select restricts the projected columns; "*" or none selects all
func (q Query) Select(columns ...string) Query {
	q.Columns = append([]string(nil), columns...)
	return q
}

// Eq adds an equality filter
func (q Query) Eq(column string, value any) Query {
	q.Filters = append(append([]Eq(nil), q.Filters...), Eq{Column: column, Value: value})
	return q
}

// OrderBy sorts by column
func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = &Order{Column: column, Desc: desc}
	return q
}

// With embeds a related record
func (q Query) With(e Embed) Query {
	q.Embed = &e
	return q
}

// Take limits the number of rows
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// AllColumns reports whether the query projects every column
func (q Query) AllColumns() bool {
	return len(q.Columns) == 0 || (len(q.Columns) == 1 && q.Columns[0] == "*")
}

// DataStore is the remote store capability injected into every hook
type DataStore interface {
	// Select returns matching rows; when q.Order is set the result is sorted by it
	Select(ctx context.Context, q Query) ([]Row, error)
	// Single returns exactly one row or ErrNotFound
	Single(ctx context.Context, q Query) (Row, error)
	// Update sets fields on the row with the given id, or returns ErrNotFound
	Update(ctx context.Context, table, id string, fields Row) error
	// Insert stores a new row and returns it as persisted
	Insert(ctx context.Context, table string, row Row) (Row, error)
}

// Encode converts a domain struct into a Row using its json tags
func Encode(v any) (Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("encode row: %w", err)
	}
	return row, nil
}

// Decode converts a Row into a domain struct
func Decode[T any](row Row) (T, error) {
	var out T
	data, err := json.Marshal(row)
	if err != nil {
		return out, fmt.Errorf("decode row: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode row: %w", err)
	}
	return out, nil
}

// DecodeAll decodes every row, preserving order
func DecodeAll[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := Decode[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
