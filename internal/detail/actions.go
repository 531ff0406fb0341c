package detail

import (
	"context"

	"github.com/wardboard/go-ward/internal/ward"
)

// ChangePatientStatus applies a status badge selection
func (s *Screen) ChangePatientStatus(ctx context.Context, status ward.PatientStatus) error {
	if err := s.requireOpen("patient.status"); err != nil {
		return err
	}
	return s.patient.UpdateStatus(ctx, status)
}

// UpdateMedicationStatus moves a medication to a new status
func (s *Screen) UpdateMedicationStatus(ctx context.Context, medicationID string, status ward.MedicationStatus) error {
	if err := s.requireOpen("medication.status"); err != nil {
		return err
	}
	return s.medications.UpdateStatus(ctx, medicationID, status)
}

// SubmitVitals records a vitals reading from the vitals form
func (s *Screen) SubmitVitals(ctx context.Context, v ward.VitalsReading) (ward.VitalsReading, error) {
	v.PatientID = s.ID()
	return submit(ctx, s, ModalVitals, s.vitals.Add, v)
}

// SubmitMedication prescribes a medication from the medication form
func (s *Screen) SubmitMedication(ctx context.Context, m ward.Medication) (ward.Medication, error) {
	m.PatientID = s.ID()
	return submit(ctx, s, ModalMedication, s.medications.Add, m)
}

// SubmitLabResult records a lab result
func (s *Screen) SubmitLabResult(ctx context.Context, l ward.LabResult) (ward.LabResult, error) {
	l.PatientID = s.ID()
	return submit(ctx, s, ModalLab, s.labs.Add, l)
}

// SubmitProcedure records a procedure
func (s *Screen) SubmitProcedure(ctx context.Context, p ward.Procedure) (ward.Procedure, error) {
	p.PatientID = s.ID()
	return submit(ctx, s, ModalProcedure, s.procedures.Add, p)
}

// SubmitNote adds a daily SOAP note
func (s *Screen) SubmitNote(ctx context.Context, n ward.DailyNote) (ward.DailyNote, error) {
	n.PatientID = s.ID()
	return submit(ctx, s, ModalNote, s.notes.Add, n)
}

// submit runs an add form. On success the modal closes; the hook has already
// refreshed its list.
func submit[T ward.Record](ctx context.Context, s *Screen, modal Modal, add func(context.Context, T) (T, error), rec T) (T, error) {
	var zero T
	if !s.ActionsAvailable() {
		err := ward.Invalid("detail.submit", "patient has no active admission")
		s.notifier.Notify(ctx, s.errorNotice("Cannot add record", s.ID(), err))
		return zero, err
	}
	saved, err := add(ctx, rec)
	if err != nil {
		return zero, err
	}
	s.CloseModal(modal)
	return saved, nil
}

func (s *Screen) requireOpen(op string) error {
	if !s.Opened() {
		return ward.Invalid(op, "screen is not open")
	}
	return nil
}
