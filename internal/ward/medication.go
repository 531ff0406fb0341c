package ward

import (
	"strings"
	"time"
)

// MedicationStatus is the lifecycle state of a prescribed medication
type MedicationStatus string

const (
	MedicationActive       MedicationStatus = "Active"
	MedicationDiscontinued MedicationStatus = "Discontinued"
	MedicationCompleted    MedicationStatus = "Completed"
)

// Terminal reports whether no further transition is permitted from s
func (s MedicationStatus) Terminal() bool {
	return s == MedicationDiscontinued || s == MedicationCompleted
}

// Medication is a medications table row
type Medication struct {
	ID        string           `json:"id"`
	PatientID string           `json:"patient_id"`
	Name      string           `json:"name"`
	Dosage    string           `json:"dosage"`
	Route     string           `json:"route"`
	Frequency string           `json:"frequency"`
	StartDate time.Time        `json:"start_date"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Status    MedicationStatus `json:"status"`
}

var medicationTransitions = map[MedicationStatus][]MedicationStatus{
	MedicationActive: {MedicationCompleted, MedicationDiscontinued},
}

// ValidateMedicationTransition rejects anything except Active -> Completed
// and Active -> Discontinued.
func ValidateMedicationTransition(from, to MedicationStatus) error {
	const op = "medication.status"
	for _, allowed := range medicationTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	if from.Terminal() {
		return Invalid(op, "medication is %s and cannot change status", from)
	}
	return Invalid(op, "transition %s -> %s is not allowed", from, to)
}

// ActionableTransitions returns the status actions offered for m
func ActionableTransitions(m Medication) []MedicationStatus {
	next := medicationTransitions[m.Status]
	out := make([]MedicationStatus, len(next))
	copy(out, next)
	return out
}

// Validate checks an Add Medication form submission
func (m Medication) Validate() error {
	const op = "medication.add"
	switch {
	case m.PatientID == "":
		return Invalid(op, "patient_id is required")
	case strings.TrimSpace(m.Name) == "":
		return Invalid(op, "name is required")
	case strings.TrimSpace(m.Dosage) == "":
		return Invalid(op, "dosage is required")
	case strings.TrimSpace(m.Route) == "":
		return Invalid(op, "route is required")
	case strings.TrimSpace(m.Frequency) == "":
		return Invalid(op, "frequency is required")
	case m.StartDate.IsZero():
		return Invalid(op, "start_date is required")
	}
	if m.Status != "" && m.Status != MedicationActive {
		return Invalid(op, "new medications must be Active")
	}
	return nil
}

// OwnerID returns the owning patient id
func (m Medication) OwnerID() string { return m.PatientID }
