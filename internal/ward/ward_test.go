package ward

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestValidateMedicationTransition(t *testing.T) {
	tests := []struct {
		from, to MedicationStatus
		ok       bool
	}{
		{MedicationActive, MedicationCompleted, true},
		{MedicationActive, MedicationDiscontinued, true},
		{MedicationActive, MedicationActive, false},
		{MedicationCompleted, MedicationActive, false},
		{MedicationCompleted, MedicationDiscontinued, false},
		{MedicationDiscontinued, MedicationActive, false},
		{MedicationDiscontinued, MedicationCompleted, false},
		{MedicationActive, "Paused", false},
	}

	for _, tt := range tests {
		err := ValidateMedicationTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("%s -> %s: expected rejection", tt.from, tt.to)
			} else if !IsValidation(err) {
				t.Errorf("%s -> %s: expected validation error, got %v", tt.from, tt.to, err)
			}
		}
	}
}

func TestActionableTransitions(t *testing.T) {
	active := ActionableTransitions(Medication{Status: MedicationActive})
	if len(active) != 2 || active[0] != MedicationCompleted || active[1] != MedicationDiscontinued {
		t.Fatalf("active medication actions = %v", active)
	}

	for _, s := range []MedicationStatus{MedicationCompleted, MedicationDiscontinued} {
		if got := ActionableTransitions(Medication{Status: s}); len(got) != 0 {
			t.Errorf("%s medication should expose no actions, got %v", s, got)
		}
	}

	// returned slice must not alias the transition table
	active[0] = MedicationActive
	if again := ActionableTransitions(Medication{Status: MedicationActive}); again[0] != MedicationCompleted {
		t.Fatal("transition table was mutated through returned slice")
	}
}

func TestValidatePatientStatusChange(t *testing.T) {
	if err := ValidatePatientStatusChange(PatientStable, PatientCritical); err != nil {
		t.Errorf("stable -> critical: %v", err)
	}
	if err := ValidatePatientStatusChange(PatientCritical, PatientStable); err != nil {
		t.Errorf("critical -> stable: %v", err)
	}
	if err := ValidatePatientStatusChange(PatientStable, PatientDischarged); !IsValidation(err) {
		t.Errorf("stable -> discharged should be rejected, got %v", err)
	}
	if err := ValidatePatientStatusChange(PatientDischarged, PatientStable); !IsValidation(err) {
		t.Errorf("discharged patient should be terminal, got %v", err)
	}
}

func TestVitalsValidate(t *testing.T) {
	good := VitalsReading{PatientID: "P1", HeartRate: 72, BloodPressure: "120/80", Temperature: 36.8, OxygenSaturation: 98}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid reading rejected: %v", err)
	}

	bad := []VitalsReading{
		{HeartRate: 72, BloodPressure: "120/80", Temperature: 36.8, OxygenSaturation: 98},
		{PatientID: "P1", HeartRate: 0, BloodPressure: "120/80", Temperature: 36.8, OxygenSaturation: 98},
		{PatientID: "P1", HeartRate: 72, BloodPressure: "high", Temperature: 36.8, OxygenSaturation: 98},
		{PatientID: "P1", HeartRate: 72, BloodPressure: "120/80", Temperature: 50, OxygenSaturation: 98},
		{PatientID: "P1", HeartRate: 72, BloodPressure: "120/80", Temperature: 36.8, OxygenSaturation: 101},
	}
	for i, v := range bad {
		if err := v.Validate(); !IsValidation(err) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestDailyNoteValidate(t *testing.T) {
	n := DailyNote{PatientID: "P1", CreatedBy: "dr-1"}
	if err := n.Validate(); !IsValidation(err) {
		t.Fatalf("empty note should be rejected, got %v", err)
	}
	n.Plan = "continue antibiotics"
	if err := n.Validate(); err != nil {
		t.Fatalf("note with plan rejected: %v", err)
	}
}

func TestComputeStatistics(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	patients := []Patient{
		{ID: "1", Status: PatientStable, AdmissionDate: now.Add(-2 * time.Hour)},
		{ID: "2", Status: PatientCritical, AdmissionDate: now.Add(-72 * time.Hour)},
		{ID: "3", Status: PatientCritical, AdmissionDate: now.Add(-23 * time.Hour)},
		{ID: "4", Status: PatientDischarged, AdmissionDate: now.Add(-1 * time.Hour)},
	}

	got := ComputeStatistics(patients, now)
	want := Statistics{TotalPatients: 3, CriticalPatients: 2, StablePatients: 1, NewAdmissions: 2}
	if got != want {
		t.Fatalf("ComputeStatistics = %+v, want %+v", got, want)
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("load vitals: %w", StoreFailure("vitals.load", base))

	if KindOf(err) != KindStore {
		t.Fatalf("KindOf = %v, want store", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Fatal("store error should unwrap to the cause")
	}
	if KindOf(base) != KindUnknown {
		t.Fatal("plain errors are unclassified")
	}
	if !IsNotFound(NotFound("patient.load", "patient not found")) {
		t.Fatal("NotFound not classified")
	}
}
