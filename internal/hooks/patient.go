package hooks

import (
	"context"
	"errors"

	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

var physicianEmbed = store.Embed{
	As:         "attending_physician",
	Table:      store.TableUsers,
	ForeignKey: "attending_physician_id",
	Columns:    []string{"name", "employee_code"},
}

// Patient is the single patient record with its attending physician
type Patient struct {
	*resource.Resource[ward.Patient]
	deps Deps
}

// NewPatient creates the patient hook
func NewPatient(d Deps) *Patient {
	d = d.withDefaults()
	return &Patient{
		Resource: resource.New("patient", fetchPatient(d.Store), d.options("Failed to load patient")...),
		deps:     d,
	}
}

func fetchPatient(ds store.DataStore) resource.Fetcher[ward.Patient] {
	return func(ctx context.Context, id string) (ward.Patient, error) {
		const op = "patient.load"
		q := store.From(store.TablePatients).Select("*").Eq("id", id).With(physicianEmbed)
		row, err := ds.Single(ctx, q)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ward.Patient{}, ward.NotFound(op, "patient "+id+" not found")
			}
			return ward.Patient{}, Classify(op, err)
		}
		p, err := store.Decode[ward.Patient](row)
		if err != nil {
			return ward.Patient{}, ward.StoreFailure(op, err)
		}
		return p, nil
	}
}

// UpdateStatus changes the badge status. The transition is checked before any
// store write and the visible status is rolled back if the write fails.
func (p *Patient) UpdateStatus(ctx context.Context, to ward.PatientStatus) error {
	const op = "patient.status"
	id := p.ID()
	err := p.Mutate(ctx,
		func(cur ward.Patient) (ward.Patient, error) {
			if err := ward.ValidatePatientStatusChange(cur.Status, to); err != nil {
				return cur, err
			}
			cur.Status = to
			return cur, nil
		},
		func(ctx context.Context) error {
			return Classify(op, p.deps.Store.Update(ctx, store.TablePatients, id, store.Row{"status": string(to)}))
		})
	if err == nil {
		return nil
	}
	err = notLoaded(op, "patient is not loaded", err)
	p.deps.notifyFailure(ctx, statusFailureMessage(err, "Failed to update patient status"), id, ward.NotificationStatus, err)
	return err
}

// SetDischarged writes the Discharged status as the final step of the
// discharge workflow. It bypasses the badge rules.
func (p *Patient) SetDischarged(ctx context.Context) error {
	const op = "patient.discharge"
	id := p.ID()
	if err := p.deps.Store.Update(ctx, store.TablePatients, id, store.Row{"status": string(ward.PatientDischarged)}); err != nil {
		return Classify(op, err)
	}
	p.Replace(func(cur ward.Patient) ward.Patient {
		cur.Status = ward.PatientDischarged
		return cur
	})
	return nil
}

func statusFailureMessage(err error, fallback string) string {
	if ward.IsValidation(err) {
		return "Invalid status change: " + validationMessage(err)
	}
	return fallback
}
