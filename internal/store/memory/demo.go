package memory

import (
	"time"

	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// SeedDemo loads a small ward relative to now: P1 is a first admission in
// critical condition, P2 a readmission, P3 already discharged.
func SeedDemo(s *Store, now time.Time) error {
	h := func(n int) time.Time { return now.Add(-time.Duration(n) * time.Hour) }
	at := func(t time.Time) *time.Time { return &t }

	s.Seed(store.TableUsers,
		store.Row{"id": "U1", "name": "Dr. Priya Nair", "employee_code": "EMP-1042", "role": "doctor"},
		store.Row{"id": "U2", "name": "Dr. Tomas Berg", "employee_code": "EMP-2210", "role": "doctor"},
	)

	seeds := []struct {
		table  string
		values []any
	}{
		{store.TablePatients, []any{
			ward.Patient{ID: "P1", MRN: "MRN-0001", Name: "Arjun Mehta", Age: 64, Gender: "Male",
				Diagnosis: "Community acquired pneumonia", BedNumber: "ICU-03", Status: ward.PatientCritical,
				AdmissionDate: h(6), AttendingPhysicianID: "U1", UpdatedAt: h(6)},
			ward.Patient{ID: "P2", MRN: "MRN-0002", Name: "Lena Fischer", Age: 47, Gender: "Female",
				Diagnosis: "Heart failure exacerbation", BedNumber: "W2-11", Status: ward.PatientStable,
				AdmissionDate: h(72), AttendingPhysicianID: "U2", UpdatedAt: h(72)},
			ward.Patient{ID: "P3", MRN: "MRN-0003", Name: "Samuel Okafor", Age: 35, Gender: "Male",
				Diagnosis: "Appendicitis", BedNumber: "W1-04", Status: ward.PatientDischarged,
				AdmissionDate: h(240), AttendingPhysicianID: "U1", UpdatedAt: h(200)},
		}},
		{store.TableEpisodes, []any{
			ward.AdmissionEpisode{ID: "E1", PatientID: "P1", AdmissionDate: h(6), PrimaryDiagnosis: "Community acquired pneumonia",
				History: "Three days of fever and productive cough", Examination: "Crackles right base, SpO2 88% on air",
				Status: ward.EpisodeActive, UpdatedAt: h(6)},
			ward.AdmissionEpisode{ID: "E2a", PatientID: "P2", AdmissionDate: h(90 * 24), DischargeDate: at(h(84 * 24)),
				PrimaryDiagnosis: "Heart failure", History: "Progressive dyspnoea", Examination: "Bilateral pitting oedema",
				DischargeSummary: "Diuresed, discharged on furosemide", Status: ward.EpisodeDischarged, UpdatedAt: h(84 * 24)},
			ward.AdmissionEpisode{ID: "E2b", PatientID: "P2", AdmissionDate: h(72), PrimaryDiagnosis: "Heart failure exacerbation",
				History: "Weight gain of 4kg in a week", Examination: "Raised JVP", Status: ward.EpisodeActive, UpdatedAt: h(72)},
			ward.AdmissionEpisode{ID: "E3", PatientID: "P3", AdmissionDate: h(240), DischargeDate: at(h(200)),
				PrimaryDiagnosis: "Appendicitis", History: "Right iliac fossa pain", Examination: "Guarding",
				DischargeSummary: "Laparoscopic appendicectomy, uneventful", Status: ward.EpisodeDischarged, UpdatedAt: h(200)},
		}},
		{store.TableVitals, []any{
			ward.VitalsReading{ID: "V1", PatientID: "P1", HeartRate: 80, BloodPressure: "100/60", Temperature: 38.9,
				OxygenSaturation: 88, RespiratoryRate: 26, RecordedAt: h(3)},
			ward.VitalsReading{ID: "V2", PatientID: "P1", HeartRate: 72, BloodPressure: "110/70", Temperature: 38.1,
				OxygenSaturation: 93, RespiratoryRate: 22, RecordedAt: h(1)},
		}},
		{store.TableMedications, []any{
			ward.Medication{ID: "M1", PatientID: "P1", Name: "Amoxicillin-clavulanate", Dosage: "1.2 g", Route: "IV",
				Frequency: "8 hourly", StartDate: h(6), Status: ward.MedicationActive},
			ward.Medication{ID: "M2", PatientID: "P1", Name: "Paracetamol", Dosage: "1 g", Route: "PO",
				Frequency: "6 hourly", StartDate: h(5), EndDate: at(h(2)), Status: ward.MedicationCompleted},
		}},
		{store.TableLabResults, []any{
			ward.LabResult{ID: "L1", PatientID: "P1", TestName: "CRP", Result: "182", Unit: "mg/L",
				ReferenceRange: "<5", Status: "abnormal", ResultDate: h(4)},
		}},
		{store.TableProcedures, []any{
			ward.Procedure{ID: "PR1", PatientID: "P1", ProcedureName: "Chest X-ray", PerformedBy: "Radiology",
				ProcedureDate: h(5)},
		}},
		{store.TableDailyNotes, []any{
			ward.DailyNote{ID: "N1", PatientID: "P1", NoteDate: h(2), Subjective: "Breathless",
				Objective: "RR 24, SpO2 92% on 2L", Assessment: "Improving pneumonia", Plan: "Continue IV antibiotics",
				CreatedBy: "U1", CreatedAt: h(2), UpdatedAt: h(2)},
		}},
	}
	for _, seed := range seeds {
		if err := s.SeedValues(seed.table, seed.values...); err != nil {
			return err
		}
	}
	return nil
}
