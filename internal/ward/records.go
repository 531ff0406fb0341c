package ward

import (
	"regexp"
	"strings"
	"time"
)

// Record is an append-only clinical record created through an Add form
type Record interface {
	Validate() error
	OwnerID() string
}

// VitalsReading is a vitals table row
type VitalsReading struct {
	ID               string    `json:"id"`
	PatientID        string    `json:"patient_id"`
	HeartRate        int       `json:"heart_rate"`
	BloodPressure    string    `json:"blood_pressure"`
	Temperature      float64   `json:"temperature"`
	OxygenSaturation int       `json:"oxygen_saturation"`
	RespiratoryRate  int       `json:"respiratory_rate,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

// Validate checks a Record Vitals form submission
func (v VitalsReading) Validate() error {
	const op = "vitals.add"
	switch {
	case v.PatientID == "":
		return Invalid(op, "patient_id is required")
	case v.HeartRate < 20 || v.HeartRate > 300:
		return Invalid(op, "heart_rate %d out of range", v.HeartRate)
	case !bloodPressurePattern.MatchString(v.BloodPressure):
		return Invalid(op, "blood_pressure %q must look like 120/80", v.BloodPressure)
	case v.Temperature < 25 || v.Temperature > 45:
		return Invalid(op, "temperature %.1f out of range", v.Temperature)
	case v.OxygenSaturation < 50 || v.OxygenSaturation > 100:
		return Invalid(op, "oxygen_saturation %d out of range", v.OxygenSaturation)
	case v.RespiratoryRate < 0 || v.RespiratoryRate > 80:
		return Invalid(op, "respiratory_rate %d out of range", v.RespiratoryRate)
	}
	return nil
}

func (v VitalsReading) OwnerID() string { return v.PatientID }

// LabResult is a lab_results table row
type LabResult struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	TestName       string    `json:"test_name"`
	Result         string    `json:"result"`
	Unit           string    `json:"unit,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Status         string    `json:"status,omitempty"`
	ResultDate     time.Time `json:"result_date"`
}

func (l LabResult) Validate() error {
	const op = "lab.add"
	switch {
	case l.PatientID == "":
		return Invalid(op, "patient_id is required")
	case strings.TrimSpace(l.TestName) == "":
		return Invalid(op, "test_name is required")
	case strings.TrimSpace(l.Result) == "":
		return Invalid(op, "result is required")
	}
	return nil
}

func (l LabResult) OwnerID() string { return l.PatientID }

// Procedure is a procedures table row
type Procedure struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patient_id"`
	ProcedureName string    `json:"procedure_name"`
	PerformedBy   string    `json:"performed_by"`
	Notes         string    `json:"notes,omitempty"`
	ProcedureDate time.Time `json:"procedure_date"`
}

func (p Procedure) Validate() error {
	const op = "procedure.add"
	switch {
	case p.PatientID == "":
		return Invalid(op, "patient_id is required")
	case strings.TrimSpace(p.ProcedureName) == "":
		return Invalid(op, "procedure_name is required")
	case strings.TrimSpace(p.PerformedBy) == "":
		return Invalid(op, "performed_by is required")
	}
	return nil
}

func (p Procedure) OwnerID() string { return p.PatientID }

// DailyNote is a SOAP progress note
type DailyNote struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	NoteDate   time.Time `json:"note_date"`
	Subjective string    `json:"subjective"`
	Objective  string    `json:"objective"`
	Assessment string    `json:"assessment"`
	Plan       string    `json:"plan"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (n DailyNote) Validate() error {
	const op = "note.add"
	if n.PatientID == "" {
		return Invalid(op, "patient_id is required")
	}
	if n.CreatedBy == "" {
		return Invalid(op, "created_by is required")
	}
	for _, section := range []string{n.Subjective, n.Objective, n.Assessment, n.Plan} {
		if strings.TrimSpace(section) != "" {
			return nil
		}
	}
	return Invalid(op, "note has no content")
}

func (n DailyNote) OwnerID() string { return n.PatientID }
