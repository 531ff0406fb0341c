package hooks

import (
	"context"

	"github.com/samber/lo"

	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// Medications lists a patient's medications, newest start_date first
type Medications struct {
	*Series[ward.Medication]
}

// MedicationView is a medication with the status actions the UI offers for it
type MedicationView struct {
	ward.Medication
	Actions []ward.MedicationStatus `json:"actions"`
}

func NewMedications(d Deps) *Medications {
	return &Medications{Series: newSeries[ward.Medication](d, seriesSpec{
		name:     "medication",
		table:    store.TableMedications,
		orderBy:  "start_date",
		category: ward.NotificationMedication,
		failure:  "Failed to load medications",
	})}
}

// Add prescribes a new medication; status defaults to Active
func (m *Medications) Add(ctx context.Context, med ward.Medication) (ward.Medication, error) {
	if med.Status == "" {
		med.Status = ward.MedicationActive
	}
	return m.Series.Add(ctx, med)
}

// Views pairs each medication with its actionable transitions
func (m *Medications) Views() []MedicationView {
	snap := m.Snapshot()
	if snap.State != resource.Ready {
		return nil
	}
	return lo.Map(snap.Value, func(med ward.Medication, _ int) MedicationView {
		return MedicationView{Medication: med, Actions: ward.ActionableTransitions(med)}
	})
}

// Active returns the medications still being administered
func (m *Medications) Active() []ward.Medication {
	snap := m.Snapshot()
	return lo.Filter(snap.Value, func(med ward.Medication, _ int) bool {
		return med.Status == ward.MedicationActive
	})
}

// UpdateStatus moves one medication to a new status. Disallowed transitions
// are rejected without a store write; a failed write restores the previous
// status.
func (m *Medications) UpdateStatus(ctx context.Context, medicationID string, to ward.MedicationStatus) error {
	const op = "medication.status"
	patientID := m.ID()

	err := m.Mutate(ctx,
		func(list []ward.Medication) ([]ward.Medication, error) {
			_, idx, found := lo.FindIndexOf(list, func(med ward.Medication) bool { return med.ID == medicationID })
			if !found {
				return nil, ward.NotFound(op, "medication "+medicationID+" not found")
			}
			if err := ward.ValidateMedicationTransition(list[idx].Status, to); err != nil {
				return nil, err
			}
			next := append([]ward.Medication(nil), list...)
			next[idx].Status = to
			return next, nil
		},
		func(ctx context.Context) error {
			return Classify(op, m.deps.Store.Update(ctx, store.TableMedications, medicationID, store.Row{"status": string(to)}))
		})
	if err == nil {
		return nil
	}
	err = notLoaded(op, "medications are not loaded", err)
	m.deps.notifyFailure(ctx, statusFailureMessage(err, "Failed to update medication status"), patientID, ward.NotificationMedication, err)
	return err
}
