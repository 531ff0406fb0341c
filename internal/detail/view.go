package detail

import (
	"github.com/wardboard/go-ward/internal/hooks"
	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/ward"
)

// Action names offered as buttons during an active admission
const (
	ActionRecordVitals    = "record_vitals"
	ActionAddMedication   = "add_medication"
	ActionAddLabResult    = "add_lab_result"
	ActionRecordProcedure = "record_procedure"
	ActionAddNote         = "add_note"
	ActionDischarge       = "discharge"
)

// TabView is the state of one tab's data
type TabView[T any] struct {
	State resource.State `json:"state"`
	Data  T              `json:"data,omitempty"`
	Error string         `json:"error,omitempty"`
	Kind  string         `json:"error_kind,omitempty"`
}

func tabView[T any](snap resource.Snapshot[T]) TabView[T] {
	v := TabView[T]{State: snap.State, Data: snap.Value}
	if snap.Err != nil {
		v.Error = snap.Err.Error()
		v.Kind = ward.KindOf(snap.Err).String()
	}
	return v
}

// TabViews holds every data tab
type TabViews struct {
	Vitals      TabView[[]ward.VitalsReading]   `json:"vitals"`
	Medications TabView[[]hooks.MedicationView] `json:"medications"`
	Labs        TabView[[]ward.LabResult]       `json:"labs"`
	Procedures  TabView[[]ward.Procedure]       `json:"procedures"`
	Notes       TabView[[]ward.DailyNote]       `json:"notes"`
}

// View is the rendered screen. Header fields are empty unless the gating
// fetches succeeded.
type View struct {
	PatientID       string                 `json:"patient_id"`
	Patient         *ward.Patient          `json:"patient,omitempty"`
	Episode         *ward.AdmissionEpisode `json:"episode,omitempty"`
	PreviousEpisode *ward.AdmissionEpisode `json:"previous_episode,omitempty"`
	Admitted        bool                   `json:"admitted"`
	Readmission     bool                   `json:"readmission"`
	LatestVitals    *ward.VitalsReading    `json:"latest_vitals,omitempty"`
	ActiveTab       Tab                    `json:"active_tab"`
	OpenModals      []Modal                `json:"open_modals"`
	Actions         []string               `json:"actions"`
	Discharging     bool                   `json:"discharging"`
	Tabs            *TabViews              `json:"tabs,omitempty"`
	Notifications   []notify.Notice        `json:"notifications"`
	Redirect        string                 `json:"redirect,omitempty"`
}

// View renders the current screen state
func (s *Screen) View() View {
	s.mu.Lock()
	v := View{
		PatientID:   s.id,
		ActiveTab:   s.tab,
		Discharging: s.discharging,
		Redirect:    s.redirect,
		OpenModals:  []Modal{},
		Actions:     []string{},
	}
	opened := s.opened
	for _, m := range Modals {
		if s.modals[m] {
			v.OpenModals = append(v.OpenModals, m)
		}
	}
	s.mu.Unlock()

	v.Notifications = s.Notices()
	if v.Notifications == nil {
		v.Notifications = []notify.Notice{}
	}
	if !opened {
		return v
	}

	patient := s.patient.Snapshot().Value
	v.Patient = &patient
	res := s.episode.Snapshot().Value
	v.Episode = res.Current
	v.PreviousEpisode = res.Previous
	v.Admitted = res.Admitted()
	v.Readmission = res.Readmission()

	if latest, ok := s.vitals.Latest(); ok {
		v.LatestVitals = &latest
	}
	if s.ActionsAvailable() {
		v.Actions = []string{
			ActionRecordVitals, ActionAddMedication, ActionAddLabResult,
			ActionRecordProcedure, ActionAddNote, ActionDischarge,
		}
	} else if !v.Discharging && s.dischargePending() {
		v.Actions = []string{ActionDischarge}
	}

	meds := s.medications.Snapshot()
	medsView := TabView[[]hooks.MedicationView]{State: meds.State, Data: s.medications.Views()}
	if meds.Err != nil {
		medsView.Error = meds.Err.Error()
		medsView.Kind = ward.KindOf(meds.Err).String()
	}
	v.Tabs = &TabViews{
		Vitals:      tabView(s.vitals.Snapshot()),
		Medications: medsView,
		Labs:        tabView(s.labs.Snapshot()),
		Procedures:  tabView(s.procedures.Snapshot()),
		Notes:       tabView(s.notes.Snapshot()),
	}
	return v
}
