package hooks

import (
	"context"
	"errors"
	"time"

	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// Series is an append-only list of records for one patient, newest first
type Series[T ward.Record] struct {
	*resource.Resource[[]T]
	deps     Deps
	name     string
	table    string
	order    store.Order
	stamps   []string
	category ward.NotificationType
}

type seriesSpec struct {
	name     string
	table    string
	orderBy  string
	stamps   []string
	category ward.NotificationType
	failure  string
}

func newSeries[T ward.Record](d Deps, s seriesSpec) *Series[T] {
	d = d.withDefaults()
	order := store.Order{Column: s.orderBy, Desc: true}
	return &Series[T]{
		Resource: resource.New(s.name, fetchSeries[T](d.Store, s.table, order), d.options(s.failure)...),
		deps:     d,
		name:     s.name,
		table:    s.table,
		order:    order,
		stamps:   s.stamps,
		category: s.category,
	}
}

func fetchSeries[T ward.Record](ds store.DataStore, table string, order store.Order) resource.Fetcher[[]T] {
	return func(ctx context.Context, patientID string) ([]T, error) {
		op := table + ".load"
		q := store.From(table).Select("*").Eq("patient_id", patientID).OrderBy(order.Column, order.Desc)
		rows, err := ds.Select(ctx, q)
		if err != nil {
			return nil, Classify(op, err)
		}
		// adapters promise order; sort anyway so Latest never depends on it
		if !store.Sorted(rows, &order) {
			rows = append([]store.Row(nil), rows...)
			store.SortRows(rows, &order)
		}
		out, err := store.DecodeAll[T](rows)
		if err != nil {
			return nil, ward.StoreFailure(op, err)
		}
		return out, nil
	}
}

// Latest returns the most recent record
func (s *Series[T]) Latest() (T, bool) {
	var zero T
	snap := s.Snapshot()
	if snap.State != resource.Ready || len(snap.Value) == 0 {
		return zero, false
	}
	return snap.Value[0], true
}

// Add validates rec, inserts it and refreshes the list so the new record is
// visible. The record must belong to the bound patient.
func (s *Series[T]) Add(ctx context.Context, rec T) (T, error) {
	var zero T
	op := s.name + ".add"
	patientID := s.ID()

	if err := rec.Validate(); err != nil {
		s.deps.notifyFailure(ctx, "Invalid "+s.name+": "+validationMessage(err), patientID, s.category, err)
		return zero, err
	}
	if patientID == "" || rec.OwnerID() != patientID {
		err := ward.Invalid(op, "record belongs to patient %q, not %q", rec.OwnerID(), patientID)
		s.deps.notifyFailure(ctx, "Invalid "+s.name+": "+validationMessage(err), patientID, s.category, err)
		return zero, err
	}

	row, err := store.Encode(rec)
	if err != nil {
		return zero, ward.StoreFailure(op, err)
	}
	if id, _ := row["id"].(string); id == "" {
		delete(row, "id")
	}
	now := s.deps.Now()
	for _, col := range s.stamps {
		if zeroTime(row[col]) {
			row[col] = now.Format(time.RFC3339Nano)
		}
	}

	saved, err := s.deps.Store.Insert(ctx, s.table, row)
	if err != nil {
		err = Classify(op, err)
		s.deps.notifyFailure(ctx, "Failed to add "+s.name, patientID, s.category, err)
		return zero, err
	}
	out, err := store.Decode[T](saved)
	if err != nil {
		return zero, ward.StoreFailure(op, err)
	}
	s.Refresh(ctx)
	return out, nil
}

func zeroTime(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		if t == "" {
			return true
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return err == nil && parsed.IsZero()
	case time.Time:
		return t.IsZero()
	}
	return false
}

func validationMessage(err error) string {
	var we *ward.Error
	if errors.As(err, &we) && we.Msg != "" {
		return we.Msg
	}
	return err.Error()
}

// Vitals lists vitals readings, newest recorded_at first
type Vitals = Series[ward.VitalsReading]

// LabResults lists lab results, newest result_date first
type LabResults = Series[ward.LabResult]

// Procedures lists procedures, newest procedure_date first
type Procedures = Series[ward.Procedure]

// DailyNotes lists SOAP notes, newest note_date first
type DailyNotes = Series[ward.DailyNote]

func NewVitals(d Deps) *Vitals {
	return newSeries[ward.VitalsReading](d, seriesSpec{
		name:    "vitals",
		table:   store.TableVitals,
		orderBy: "recorded_at",
		stamps:  []string{"recorded_at"},
		failure: "Failed to load vitals",
	})
}

func NewLabResults(d Deps) *LabResults {
	return newSeries[ward.LabResult](d, seriesSpec{
		name:     "lab result",
		table:    store.TableLabResults,
		orderBy:  "result_date",
		stamps:   []string{"result_date"},
		category: ward.NotificationLab,
		failure:  "Failed to load lab results",
	})
}

func NewProcedures(d Deps) *Procedures {
	return newSeries[ward.Procedure](d, seriesSpec{
		name:    "procedure",
		table:   store.TableProcedures,
		orderBy: "procedure_date",
		stamps:  []string{"procedure_date"},
		failure: "Failed to load procedures",
	})
}

func NewDailyNotes(d Deps) *DailyNotes {
	return newSeries[ward.DailyNote](d, seriesSpec{
		name:    "daily note",
		table:   store.TableDailyNotes,
		orderBy: "note_date",
		stamps:  []string{"note_date", "created_at", "updated_at"},
		failure: "Failed to load daily notes",
	})
}
