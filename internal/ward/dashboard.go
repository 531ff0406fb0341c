package ward

import "time"

// Statistics are the counters shown above the patient listing
type Statistics struct {
	TotalPatients    int `json:"totalPatients"`
	CriticalPatients int `json:"criticalPatients"`
	StablePatients   int `json:"stablePatients"`
	NewAdmissions    int `json:"newAdmissions"`
}

// NewAdmissionWindow is how recent an admission must be to count as new
const NewAdmissionWindow = 24 * time.Hour

// ComputeStatistics counts the non-discharged patients in the listing
func ComputeStatistics(patients []Patient, now time.Time) Statistics {
	var s Statistics
	for _, p := range patients {
		if p.Status == PatientDischarged {
			continue
		}
		s.TotalPatients++
		switch p.Status {
		case PatientCritical:
			s.CriticalPatients++
		case PatientStable:
			s.StablePatients++
		}
		if !p.AdmissionDate.IsZero() && now.Sub(p.AdmissionDate) <= NewAdmissionWindow {
			s.NewAdmissions++
		}
	}
	return s
}

// NotificationType groups notifications by the record they concern
type NotificationType string

const (
	NotificationStatus     NotificationType = "status"
	NotificationLab        NotificationType = "lab"
	NotificationMedication NotificationType = "medication"
)

// Severity of a published notification
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Notification is the event published to the dashboard notification feed
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Severity  Severity         `json:"severity"`
	PatientID string           `json:"patient_id,omitempty"`
}
