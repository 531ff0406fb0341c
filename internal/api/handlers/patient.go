package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/detail"
	"github.com/wardboard/go-ward/internal/ward"
)

// PatientHandler serves the patient detail screen. Every request opens a
// fresh screen, loads it, applies the action and renders the result.
type PatientHandler struct {
	deps   detail.Deps
	cfg    detail.Config
	logger *zap.Logger
	tracer trace.Tracer
}

// NewPatientHandler creates a new handler
func NewPatientHandler(deps detail.Deps, cfg detail.Config, logger *zap.Logger) *PatientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientHandler{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("patient-handler"),
	}
}

// Register adds the per-patient routes to r, which is mounted at /patients
func (h *PatientHandler) Register(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Get("/{id}/{tab}", h.GetTab)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/vitals", h.AddVitals)
	r.Post("/{id}/medications", h.AddMedication)
	r.Patch("/{id}/medications/{medID}", h.UpdateMedication)
	r.Post("/{id}/labs", h.AddLabResult)
	r.Post("/{id}/procedures", h.AddProcedure)
	r.Post("/{id}/notes", h.AddNote)
	r.Post("/{id}/discharge", h.Discharge)
}

// open loads the screen for the request's patient. On failure the error
// response is already written and nil is returned.
func (h *PatientHandler) open(w http.ResponseWriter, r *http.Request, action string) (context.Context, *detail.Screen) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "patient."+action,
		trace.WithAttributes(attribute.String("patient_id", id)))
	defer span.End()

	screen := detail.NewScreen(h.deps, h.cfg)
	if err := screen.Load(ctx, id); err != nil {
		span.RecordError(err)
		writeError(w, h.logger, err, screen)
		return nil, nil
	}
	return r.Context(), screen
}

// Get handles GET /patients/{id}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, screen := h.open(w, r, "view")
	if screen == nil {
		return
	}
	writeJSON(w, http.StatusOK, screen.View())
}

// GetTab handles GET /patients/{id}/{tab}
func (h *PatientHandler) GetTab(w http.ResponseWriter, r *http.Request) {
	tabs := map[string]func(*detail.TabViews) any{
		"vitals":      func(t *detail.TabViews) any { return t.Vitals },
		"medications": func(t *detail.TabViews) any { return t.Medications },
		"labs":        func(t *detail.TabViews) any { return t.Labs },
		"procedures":  func(t *detail.TabViews) any { return t.Procedures },
		"notes":       func(t *detail.TabViews) any { return t.Notes },
	}
	pick, ok := tabs[chi.URLParam(r, "tab")]
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown tab", Code: ward.KindNotFound.String()})
		return
	}

	_, screen := h.open(w, r, "tab")
	if screen == nil {
		return
	}
	writeJSON(w, http.StatusOK, pick(screen.View().Tabs))
}

// StatusRequest changes a patient or medication status
type StatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /patients/{id}/status
func (h *PatientHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx, screen := h.open(w, r, "status")
	if screen == nil {
		return
	}
	if err := screen.ChangePatientStatus(ctx, ward.PatientStatus(req.Status)); err != nil {
		writeError(w, h.logger, err, screen)
		return
	}
	writeJSON(w, http.StatusOK, screen.View())
}

// UpdateMedication handles PATCH /patients/{id}/medications/{medID}
func (h *PatientHandler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx, screen := h.open(w, r, "medication_status")
	if screen == nil {
		return
	}
	medID := chi.URLParam(r, "medID")
	if err := screen.UpdateMedicationStatus(ctx, medID, ward.MedicationStatus(req.Status)); err != nil {
		writeError(w, h.logger, err, screen)
		return
	}
	writeJSON(w, http.StatusOK, screen.View().Tabs.Medications)
}

// AddVitals handles POST /patients/{id}/vitals
func (h *PatientHandler) AddVitals(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "add_vitals", (*detail.Screen).SubmitVitals)
}

// AddMedication handles POST /patients/{id}/medications
func (h *PatientHandler) AddMedication(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "add_medication", (*detail.Screen).SubmitMedication)
}

// AddLabResult handles POST /patients/{id}/labs
func (h *PatientHandler) AddLabResult(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "add_lab_result", (*detail.Screen).SubmitLabResult)
}

// AddProcedure handles POST /patients/{id}/procedures
func (h *PatientHandler) AddProcedure(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "add_procedure", (*detail.Screen).SubmitProcedure)
}

// AddNote handles POST /patients/{id}/notes
func (h *PatientHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	create(h, w, r, "add_note", (*detail.Screen).SubmitNote)
}

func create[T ward.Record](h *PatientHandler, w http.ResponseWriter, r *http.Request, action string, submit func(*detail.Screen, context.Context, T) (T, error)) {
	var rec T
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx, screen := h.open(w, r, action)
	if screen == nil {
		return
	}
	saved, err := submit(screen, ctx, rec)
	if err != nil {
		writeError(w, h.logger, err, screen)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// Discharge handles POST /patients/{id}/discharge
func (h *PatientHandler) Discharge(w http.ResponseWriter, r *http.Request) {
	var req detail.DischargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx, screen := h.open(w, r, "discharge")
	if screen == nil {
		return
	}
	if err := screen.BeginDischarge(); err != nil {
		writeError(w, h.logger, err, screen)
		return
	}
	if err := screen.CompleteDischarge(ctx, req); err != nil {
		writeError(w, h.logger, err, screen)
		return
	}

	h.logger.Info("patient discharged",
		zap.String("patient_id", screen.ID()),
		zap.String("requested_by", req.DischargedBy))
	writeJSON(w, http.StatusOK, screen.View())
}
