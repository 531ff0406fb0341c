// Package detail orchestrates the patient detail screen: it composes the
// entity hooks for one patient, owns tab and modal state, and routes user
// intents to the hook mutators and the discharge workflow.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wardboard/go-ward/internal/hooks"
	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/ward"
	"github.com/wardboard/go-ward/pkg/workerpool"
)

// Tab is one of the fixed detail tabs
type Tab string

const (
	TabOverview    Tab = "overview"
	TabVitals      Tab = "vitals"
	TabMedications Tab = "medications"
	TabLabs        Tab = "labs"
	TabProcedures  Tab = "procedures"
	TabNotes       Tab = "notes"
	TabDischarge   Tab = "discharge"
)

// ErrSuperseded is returned by an Open overtaken by a later Open
var ErrSuperseded = errors.New("detail: open superseded")

// Tabs in display order
var Tabs = []Tab{TabOverview, TabVitals, TabMedications, TabLabs, TabProcedures, TabNotes, TabDischarge}

// Valid reports whether t is a known tab
func (t Tab) Valid() bool {
	for _, x := range Tabs {
		if x == t {
			return true
		}
	}
	return false
}

// Modal is an add-form dialog. Modals are independent of each other.
type Modal string

const (
	ModalVitals     Modal = "vitals"
	ModalMedication Modal = "medication"
	ModalLab        Modal = "lab"
	ModalProcedure  Modal = "procedure"
	ModalNote       Modal = "note"
	ModalDischarge  Modal = "discharge"
)

// Modals in display order
var Modals = []Modal{ModalVitals, ModalMedication, ModalLab, ModalProcedure, ModalNote, ModalDischarge}

// DefaultParentRoute is where the screen sends the user when it gives up
const DefaultParentRoute = "/dashboard"

// Observer records discharge outcomes
type Observer interface {
	ObserveDischarge(outcome string)
}

// EventSink receives completed discharges
type EventSink interface {
	PublishDischarge(ctx context.Context, ev ward.DischargeEvent) error
}

// Config holds screen configuration
type Config struct {
	ParentRoute string
}

// Deps are the collaborators shared by every screen
type Deps struct {
	Hooks hooks.Deps
	// Pool runs the per-tab fetches; nil runs each on its own goroutine
	Pool     *workerpool.Pool
	Observer Observer
	Events   EventSink
}

// Screen is the state of one open patient detail screen
type Screen struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	notices  *notify.Recorder
	notifier notify.Notifier

	patient     *hooks.Patient
	episode     *hooks.Episode
	vitals      *hooks.Vitals
	medications *hooks.Medications
	labs        *hooks.LabResults
	procedures  *hooks.Procedures
	notes       *hooks.DailyNotes

	mu          sync.Mutex
	id          string
	opened      bool
	tab         Tab
	modals      map[Modal]bool
	discharging bool
	redirect    string
}

// NewScreen builds a screen and its hooks. Notices go to the screen's own
// recorder and to any notifier set in deps.Hooks.
func NewScreen(deps Deps, cfg Config) *Screen {
	if cfg.ParentRoute == "" {
		cfg.ParentRoute = DefaultParentRoute
	}
	logger := deps.Hooks.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rec := notify.NewRecorder()
	notifier := notify.Multi(rec, deps.Hooks.Notifier)

	tabDeps := deps.Hooks
	tabDeps.Notifier = notifier
	tabDeps.Logger = logger
	// the screen reports gating failures itself, exactly once
	gateDeps := tabDeps.Silent()

	return &Screen{
		cfg:         cfg,
		deps:        deps,
		logger:      logger,
		notices:     rec,
		notifier:    notifier,
		patient:     hooks.NewPatient(gateDeps),
		episode:     hooks.NewEpisode(gateDeps),
		vitals:      hooks.NewVitals(tabDeps),
		medications: hooks.NewMedications(tabDeps),
		labs:        hooks.NewLabResults(tabDeps),
		procedures:  hooks.NewProcedures(tabDeps),
		notes:       hooks.NewDailyNotes(tabDeps),
		tab:         TabOverview,
		modals:      make(map[Modal]bool),
	}
}

// Open binds the screen to a patient and runs the gating fetches for the
// patient record and admission episode. On failure the user gets one error
// notification and the screen redirects to the parent listing.
func (s *Screen) Open(ctx context.Context, id string) error {
	const op = "detail.open"

	s.mu.Lock()
	s.id = id
	s.opened = false
	s.redirect = ""
	s.tab = TabOverview
	s.modals = make(map[Modal]bool)
	s.discharging = false
	s.mu.Unlock()

	if id == "" {
		err := ward.Invalid(op, "no patient id")
		s.fail(ctx, "No patient ID provided", "", err)
		return err
	}

	var g errgroup.Group
	var patient resource.Snapshot[ward.Patient]
	g.Go(func() error {
		patient = s.patient.Load(ctx, id)
		return nil
	})
	g.Go(func() error {
		s.episode.Load(ctx, id)
		return nil
	})
	_ = g.Wait()

	// a newer open rebound the screen or is still loading the same id
	if s.ID() != id || patient.State == resource.Loading {
		s.logger.Debug("open superseded", zap.String("patient_id", id))
		return ErrSuperseded
	}
	if patient.State != resource.Ready {
		err := patient.Err
		if err == nil {
			err = ward.StoreFailure(op, fmt.Errorf("patient %s did not load", id))
		}
		msg := "Failed to load patient data"
		if ward.IsNotFound(err) {
			msg = "Patient not found"
		}
		s.fail(ctx, msg, id, err)
		return err
	}
	if ep := s.episode.Snapshot(); ep.State != resource.Ready {
		err := ep.Err
		if err == nil {
			err = ward.StoreFailure(op, fmt.Errorf("episode for %s did not load", id))
		}
		s.fail(ctx, "Failed to load admission episode", id, err)
		return err
	}

	s.mu.Lock()
	s.opened = s.id == id
	s.mu.Unlock()
	return nil
}

// fail reports a gating failure and sends the user back to the listing
func (s *Screen) fail(ctx context.Context, message, id string, err error) {
	s.logger.Warn("patient screen failed to open",
		zap.String("patient_id", id),
		zap.Error(err))
	n := notify.Error(message, err)
	n.PatientID = id
	s.notifier.Notify(ctx, n)

	s.mu.Lock()
	s.opened = false
	s.redirect = s.cfg.ParentRoute
	s.mu.Unlock()
}

// LoadTabs fetches every tab concurrently and returns a channel closed when
// all of them settled. A failing tab stays local to that tab.
func (s *Screen) LoadTabs(ctx context.Context) <-chan struct{} {
	id := s.ID()
	loads := []struct {
		name string
		load func(context.Context, string)
	}{
		{"vitals", func(ctx context.Context, id string) { s.vitals.Load(ctx, id) }},
		{"medications", func(ctx context.Context, id string) { s.medications.Load(ctx, id) }},
		{"labs", func(ctx context.Context, id string) { s.labs.Load(ctx, id) }},
		{"procedures", func(ctx context.Context, id string) { s.procedures.Load(ctx, id) }},
		{"notes", func(ctx context.Context, id string) { s.notes.Load(ctx, id) }},
	}

	if s.deps.Pool != nil {
		tasks := make([]*workerpool.Task, 0, len(loads))
		for _, l := range loads {
			l := l
			tasks = append(tasks, &workerpool.Task{
				ID:      id + "/" + l.name,
				Context: ctx,
				Run: func(ctx context.Context) error {
					l.load(ctx, id)
					return nil
				},
			})
		}
		return s.deps.Pool.RunAll(ctx, tasks...)
	}

	var wg sync.WaitGroup
	for _, l := range loads {
		wg.Add(1)
		go func(load func(context.Context, string)) {
			defer wg.Done()
			load(ctx, id)
		}(l.load)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

// Load opens the screen and waits for every tab
func (s *Screen) Load(ctx context.Context, id string) error {
	if err := s.Open(ctx, id); err != nil {
		return err
	}
	select {
	case <-s.LoadTabs(ctx):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the bound patient id
func (s *Screen) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Opened reports whether the gating fetches succeeded
func (s *Screen) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Redirect returns the route the user is sent to, or "" to stay
func (s *Screen) Redirect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirect
}

// Notices returns the notifications raised by this screen
func (s *Screen) Notices() []notify.Notice { return s.notices.Notices() }

// Admitted reports whether the patient has an active admission
func (s *Screen) Admitted() bool {
	_, ok := s.episode.Current()
	return ok
}

// ActionsAvailable reports whether the add and discharge buttons are shown
func (s *Screen) ActionsAvailable() bool {
	s.mu.Lock()
	opened, discharging := s.opened, s.discharging
	s.mu.Unlock()
	return opened && !discharging && s.Admitted()
}

// ActiveTab returns the selected tab
func (s *Screen) ActiveTab() Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// SelectTab switches tabs. The discharge tab is entered only through
// BeginDischarge, and leaving it cancels the discharge.
func (s *Screen) SelectTab(t Tab) error {
	const op = "detail.tab"
	if !t.Valid() {
		return ward.Invalid(op, "unknown tab %q", t)
	}
	if t == TabDischarge {
		return s.BeginDischarge()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tab = t
	if s.discharging {
		s.discharging = false
		delete(s.modals, ModalDischarge)
	}
	return nil
}

// OpenModal shows an add form. Forms are only offered during an active
// admission outside the discharge workflow.
func (s *Screen) OpenModal(m Modal) error {
	const op = "detail.modal"
	if m == ModalDischarge {
		return s.BeginDischarge()
	}
	if !validModal(m) {
		return ward.Invalid(op, "unknown modal %q", m)
	}
	if !s.ActionsAvailable() {
		return ward.Invalid(op, "patient has no active admission")
	}
	s.mu.Lock()
	s.modals[m] = true
	s.mu.Unlock()
	return nil
}

// CloseModal hides a form
func (s *Screen) CloseModal(m Modal) {
	s.mu.Lock()
	delete(s.modals, m)
	s.mu.Unlock()
}

// ModalOpen reports whether m is visible
func (s *Screen) ModalOpen(m Modal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modals[m]
}

func validModal(m Modal) bool {
	for _, x := range Modals {
		if x == m {
			return true
		}
	}
	return false
}
