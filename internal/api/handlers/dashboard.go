package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/hooks"
	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/ward"
)

// DashboardHandler serves the ward listing and its header counters
type DashboardHandler struct {
	deps   hooks.Deps
	logger *zap.Logger
}

// NewDashboardHandler creates a new handler
func NewDashboardHandler(deps hooks.Deps, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{deps: deps, logger: logger}
}

// PatientListResponse is the ward listing
type PatientListResponse struct {
	Patients   []ward.Patient  `json:"patients"`
	Statistics ward.Statistics `json:"statistics"`
}

func (h *DashboardHandler) load(w http.ResponseWriter, r *http.Request) *hooks.PatientList {
	list := hooks.NewPatientList(h.deps)
	snap := list.Load(r.Context(), "")
	if snap.State != resource.Ready {
		err := snap.Err
		if err == nil {
			err = ward.StoreFailure("patients.load", errors.New("listing did not load"))
		}
		writeError(w, h.logger, err, nil)
		return nil
	}
	return list
}

// ListPatients handles GET /patients; ?status= filters by badge status
func (h *DashboardHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	list := h.load(w, r)
	if list == nil {
		return
	}

	patients := list.Snapshot().Value
	if status := r.URL.Query().Get("status"); status != "" {
		patients = list.ByStatus(ward.PatientStatus(status))
	}
	if patients == nil {
		patients = []ward.Patient{}
	}
	writeJSON(w, http.StatusOK, PatientListResponse{Patients: patients, Statistics: list.Statistics()})
}

// Stats handles GET /dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	list := h.load(w, r)
	if list == nil {
		return
	}
	writeJSON(w, http.StatusOK, list.Statistics())
}
