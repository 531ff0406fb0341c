package detail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/ward"
)

// Discharge outcomes reported to the Observer
const (
	DischargeCompleted = "completed"
	DischargeResumed   = "resumed"
	DischargePartial   = "partial"
	DischargeFailed    = "failed"
	DischargeRejected  = "rejected"
)

// DischargeRequest is the discharge form
type DischargeRequest struct {
	DischargeDate    time.Time `json:"discharge_date"`
	DischargeSummary string    `json:"discharge_summary"`
	DischargedBy     string    `json:"discharged_by,omitempty"`
}

// PartialDischargeError means the episode was closed but the patient status
// write failed. Calling CompleteDischarge again finishes the discharge.
type PartialDischargeError struct {
	PatientID string
	EpisodeID string
	Err       error
}

func (e *PartialDischargeError) Error() string {
	return fmt.Sprintf("discharge of patient %s incomplete: episode %s closed, patient status not updated: %v",
		e.PatientID, e.EpisodeID, e.Err)
}

func (e *PartialDischargeError) Unwrap() error { return e.Err }

// BeginDischarge switches to the discharge tab and hides the action buttons
func (s *Screen) BeginDischarge() error {
	const op = "detail.discharge"
	if !s.Opened() {
		return ward.Invalid(op, "screen is not open")
	}
	if !s.Admitted() && !s.dischargePending() {
		return ward.Invalid(op, "patient has no active admission")
	}
	s.mu.Lock()
	s.tab = TabDischarge
	s.discharging = true
	s.modals[ModalDischarge] = true
	s.mu.Unlock()
	return nil
}

// CancelDischarge returns to the overview without writing anything
func (s *Screen) CancelDischarge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discharging = false
	s.tab = TabOverview
	delete(s.modals, ModalDischarge)
}

// Discharging reports whether the discharge workflow is in progress
func (s *Screen) Discharging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discharging
}

// dischargePending reports an earlier discharge that closed the episode but
// never updated the patient.
func (s *Screen) dischargePending() bool {
	ep := s.episode.Snapshot()
	pt := s.patient.Snapshot()
	if ep.State != resource.Ready || pt.State != resource.Ready {
		return false
	}
	latest := ep.Value.Latest
	return ep.Value.Current == nil && latest != nil &&
		latest.Status == ward.EpisodeDischarged && pt.Value.Status != ward.PatientDischarged
}

// CompleteDischarge closes the active episode, then marks the patient
// Discharged. The writes are not atomic: if the second fails a
// *PartialDischargeError is returned, a warning is raised and the screen stays
// on the discharge tab. Calling it again skips the episode write when the
// episode is already closed.
func (s *Screen) CompleteDischarge(ctx context.Context, req DischargeRequest) error {
	const op = "detail.discharge"
	id := s.ID()

	if !s.Opened() {
		return s.rejectDischarge(ctx, id, ward.Invalid(op, "screen is not open"))
	}
	patient := s.patient.Snapshot().Value
	if patient.Status == ward.PatientDischarged {
		return s.rejectDischarge(ctx, id, ward.Invalid(op, "patient is already discharged"))
	}

	resolution := s.episode.Snapshot().Value
	var episodeID string
	resumed := false
	switch {
	case resolution.Current != nil:
		episodeID = resolution.Current.ID
		if strings.TrimSpace(req.DischargeSummary) == "" {
			return s.rejectDischarge(ctx, id, ward.Invalid(op, "discharge summary is required"))
		}
		if req.DischargeDate.IsZero() {
			req.DischargeDate = s.now()
		}
		if req.DischargeDate.Before(resolution.Current.AdmissionDate) {
			return s.rejectDischarge(ctx, id, ward.Invalid(op, "discharge date is before admission"))
		}
	case s.dischargePending():
		episodeID = resolution.Latest.ID
		resumed = true
		if resolution.Latest.DischargeDate != nil {
			req.DischargeDate = *resolution.Latest.DischargeDate
		}
		if resolution.Latest.DischargeSummary != "" {
			req.DischargeSummary = resolution.Latest.DischargeSummary
		}
	default:
		return s.rejectDischarge(ctx, id, ward.Invalid(op, "patient has no active admission"))
	}

	log := s.logger.With(zap.String("patient_id", id), zap.String("episode_id", episodeID))

	if !resumed {
		if err := s.episode.Discharge(ctx, episodeID, req.DischargeDate, req.DischargeSummary); err != nil {
			log.Warn("discharge step failed", zap.String("step", "episode"), zap.Error(err))
			s.notifier.Notify(ctx, s.errorNotice("Failed to discharge patient", id, err))
			s.observe(DischargeFailed)
			return err
		}
		log.Info("discharge step completed", zap.String("step", "episode"))
		s.episode.Refresh(ctx)
	} else {
		log.Info("resuming discharge, episode already closed")
	}

	if err := s.patient.SetDischarged(ctx); err != nil {
		partial := &PartialDischargeError{PatientID: id, EpisodeID: episodeID, Err: err}
		log.Error("discharge incomplete", zap.String("step", "patient"), zap.Error(err))
		s.notifier.Notify(ctx, notify.Notice{
			Level:     notify.LevelWarning,
			Message:   "Admission closed but patient status was not updated. Retry discharge to finish.",
			Category:  ward.NotificationStatus,
			PatientID: id,
			Kind:      ward.KindOf(err).String(),
		})
		s.mu.Lock()
		s.tab = TabDischarge
		s.discharging = true
		s.modals[ModalDischarge] = true
		s.mu.Unlock()
		s.observe(DischargePartial)
		return partial
	}
	log.Info("discharge step completed", zap.String("step", "patient"))

	outcome := DischargeCompleted
	if resumed {
		outcome = DischargeResumed
	}
	s.observe(outcome)
	s.notifier.Notify(ctx, notify.Notice{
		Level:     notify.LevelSuccess,
		Message:   "Patient discharged successfully",
		Category:  ward.NotificationStatus,
		PatientID: id,
	})

	if s.deps.Events != nil {
		ev := ward.DischargeEvent{
			PatientID:        id,
			EpisodeID:        episodeID,
			DischargeDate:    req.DischargeDate,
			DischargeSummary: req.DischargeSummary,
			DischargedBy:     req.DischargedBy,
			Resumed:          resumed,
		}
		if err := s.deps.Events.PublishDischarge(ctx, ev); err != nil {
			log.Warn("failed to publish discharge event", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.discharging = false
	s.tab = TabOverview
	s.modals = make(map[Modal]bool)
	s.redirect = s.cfg.ParentRoute
	s.mu.Unlock()
	return nil
}

func (s *Screen) rejectDischarge(ctx context.Context, id string, err error) error {
	s.notifier.Notify(ctx, s.errorNotice("Cannot discharge patient", id, err))
	s.observe(DischargeRejected)
	return err
}

func (s *Screen) errorNotice(message, id string, err error) notify.Notice {
	n := notify.Error(message, err)
	n.PatientID = id
	n.Category = ward.NotificationStatus
	return n
}

func (s *Screen) observe(outcome string) {
	if s.deps.Observer != nil {
		s.deps.Observer.ObserveDischarge(outcome)
	}
}

func (s *Screen) now() time.Time {
	if s.deps.Hooks.Now != nil {
		return s.deps.Hooks.Now()
	}
	return time.Now().UTC()
}
