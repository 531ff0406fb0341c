package hooks

import (
	"context"

	"github.com/samber/lo"

	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// PatientList is the ward listing. It has no identifier and always loads.
type PatientList struct {
	*resource.Resource[[]ward.Patient]
	deps Deps
}

func NewPatientList(d Deps) *PatientList {
	d = d.withDefaults()
	return &PatientList{
		Resource: resource.New("patients", fetchPatients(d.Store), d.options("Failed to load patients", resource.AllowEmptyID())...),
		deps:     d,
	}
}

func fetchPatients(ds store.DataStore) resource.Fetcher[[]ward.Patient] {
	return func(ctx context.Context, _ string) ([]ward.Patient, error) {
		const op = "patients.load"
		order := store.Order{Column: "admission_date", Desc: true}
		rows, err := ds.Select(ctx, store.From(store.TablePatients).Select("*").OrderBy(order.Column, order.Desc))
		if err != nil {
			return nil, Classify(op, err)
		}
		store.SortRows(rows, &order)
		out, err := store.DecodeAll[ward.Patient](rows)
		if err != nil {
			return nil, ward.StoreFailure(op, err)
		}
		return out, nil
	}
}

// Statistics computes the header counters from the loaded listing
func (l *PatientList) Statistics() ward.Statistics {
	return ward.ComputeStatistics(l.Snapshot().Value, l.deps.Now())
}

// ByStatus returns the loaded patients with the given status
func (l *PatientList) ByStatus(status ward.PatientStatus) []ward.Patient {
	return lo.Filter(l.Snapshot().Value, func(p ward.Patient, _ int) bool { return p.Status == status })
}

// Admitted returns every patient that is not discharged
func (l *PatientList) Admitted() []ward.Patient {
	return lo.Reject(l.Snapshot().Value, func(p ward.Patient, _ int) bool { return p.Status == ward.PatientDischarged })
}
