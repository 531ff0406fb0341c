package ward

import "time"

// PatientStatus is the clinical status shown on the patient badge
type PatientStatus string

const (
	PatientStable     PatientStatus = "Stable"
	PatientCritical   PatientStatus = "Critical"
	PatientDischarged PatientStatus = "Discharged"
)

// Valid reports whether s is a known patient status
func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStable, PatientCritical, PatientDischarged:
		return true
	}
	return false
}

// Physician is the attending physician embedded into a patient read
type Physician struct {
	Name         string `json:"name"`
	EmployeeCode string `json:"employee_code"`
}

// Patient is a patients table row
type Patient struct {
	ID                   string        `json:"id"`
	MRN                  string        `json:"mrn"`
	Name                 string        `json:"name"`
	Age                  int           `json:"age"`
	Gender               string        `json:"gender"`
	Diagnosis            string        `json:"diagnosis"`
	BedNumber            string        `json:"bed_number"`
	Status               PatientStatus `json:"status"`
	AdmissionDate        time.Time     `json:"admission_date"`
	AttendingPhysicianID string        `json:"attending_physician_id,omitempty"`
	History              string        `json:"history,omitempty"`
	Examination          string        `json:"examination,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	UpdatedAt            time.Time     `json:"updated_at"`

	AttendingPhysician *Physician `json:"attending_physician,omitempty"`
}

// BadgeStatuses are the values selectable from the status badge dropdown
var BadgeStatuses = []PatientStatus{PatientStable, PatientCritical}

// ValidatePatientStatusChange checks a badge status change. Discharged is
// reachable only through the discharge workflow and is terminal.
func ValidatePatientStatusChange(from, to PatientStatus) error {
	const op = "patient.status"
	if from == PatientDischarged {
		return Invalid(op, "patient is discharged")
	}
	if to != PatientStable && to != PatientCritical {
		return Invalid(op, "status %q is not selectable", to)
	}
	return nil
}
