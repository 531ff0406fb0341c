package ward

import "time"

// EpisodeStatus is the state of one admission
type EpisodeStatus string

const (
	EpisodeActive     EpisodeStatus = "Active"
	EpisodeDischarged EpisodeStatus = "Discharged"
)

// AdmissionEpisode is a single hospital admission, from admission to discharge
type AdmissionEpisode struct {
	ID               string        `json:"id"`
	PatientID        string        `json:"patient_id"`
	AdmissionDate    time.Time     `json:"admission_date"`
	DischargeDate    *time.Time    `json:"discharge_date,omitempty"`
	PrimaryDiagnosis string        `json:"primary_diagnosis"`
	History          string        `json:"history"`
	Examination      string        `json:"examination"`
	Notes            string        `json:"notes,omitempty"`
	DischargeSummary string        `json:"discharge_summary,omitempty"`
	Status           EpisodeStatus `json:"status"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Active reports whether the episode is the patient's open admission
func (e AdmissionEpisode) Active() bool { return e.Status == EpisodeActive }

// DischargeEvent is published once a patient has been fully discharged
type DischargeEvent struct {
	PatientID        string    `json:"patient_id"`
	EpisodeID        string    `json:"episode_id"`
	DischargeDate    time.Time `json:"discharge_date"`
	DischargeSummary string    `json:"discharge_summary,omitempty"`
	DischargedBy     string    `json:"discharged_by,omitempty"`
	Resumed          bool      `json:"resumed"`
}
