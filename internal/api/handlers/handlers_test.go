package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wardboard/go-ward/internal/detail"
	"github.com/wardboard/go-ward/internal/hooks"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/store/memory"
	"github.com/wardboard/go-ward/internal/ward"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func setupServer(t *testing.T) (*memory.Store, http.Handler) {
	t.Helper()
	ms := memory.New()
	if err := memory.SeedDemo(ms, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	hd := hooks.Deps{Store: ms, Now: func() time.Time { return now }}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		Mount(r,
			NewPatientHandler(detail.Deps{Hooks: hd}, detail.Config{}, nil),
			NewDashboardHandler(hd, nil))
	})
	return ms, r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func rowByID(ms *memory.Store, table, id string) store.Row {
	for _, r := range ms.Rows(table) {
		if r["id"] == id {
			return r
		}
	}
	return nil
}

func TestListPatients(t *testing.T) {
	_, h := setupServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if n := len(body["patients"].([]any)); n != 3 {
		t.Fatalf("patients = %d", n)
	}
	stats := body["statistics"].(map[string]any)
	if stats["totalPatients"] != float64(2) || stats["criticalPatients"] != float64(1) {
		t.Fatalf("statistics = %v", stats)
	}

	_, body = do(t, h, http.MethodGet, "/api/v1/patients?status=Critical", "")
	if n := len(body["patients"].([]any)); n != 1 {
		t.Fatalf("critical patients = %d", n)
	}

	rec, body = do(t, h, http.MethodGet, "/api/v1/dashboard/stats", "")
	if rec.Code != http.StatusOK || body["newAdmissions"] != float64(1) {
		t.Fatalf("stats = %d %v", rec.Code, body)
	}
}

func TestGetPatient(t *testing.T) {
	_, h := setupServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/v1/patients/P1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["admitted"] != true {
		t.Fatal("P1 should be admitted")
	}
	latest := body["latest_vitals"].(map[string]any)
	if latest["heart_rate"] != float64(72) {
		t.Fatalf("latest vitals = %v", latest)
	}
	if n := len(body["actions"].([]any)); n != 6 {
		t.Fatalf("actions = %v", body["actions"])
	}
}

func TestGetUnknownPatient(t *testing.T) {
	_, h := setupServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/v1/patients/P404", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["code"] != "not_found" || body["redirect"] != detail.DefaultParentRoute {
		t.Fatalf("body = %v", body)
	}
	if n := len(body["notifications"].([]any)); n != 1 {
		t.Fatalf("notifications = %v", body["notifications"])
	}
}

func TestStoreFailureIsBadGateway(t *testing.T) {
	ms, h := setupServer(t)
	ms.Intercept(func(_ context.Context, c memory.Call) error {
		if c.Table == store.TablePatients {
			return errors.New("permission denied for table patients")
		}
		return nil
	})

	rec, body := do(t, h, http.MethodGet, "/api/v1/patients/P1", "")
	if rec.Code != http.StatusBadGateway || body["code"] != "store_error" {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/patients", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("listing status = %d", rec.Code)
	}
}

func TestGetTab(t *testing.T) {
	_, h := setupServer(t)

	rec, body := do(t, h, http.MethodGet, "/api/v1/patients/P1/vitals", "")
	if rec.Code != http.StatusOK || body["state"] != "ready" {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	data := body["data"].([]any)
	if len(data) != 2 || data[0].(map[string]any)["id"] != "V2" {
		t.Fatalf("vitals = %v", data)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/patients/P1/imaging", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tab status = %d", rec.Code)
	}
}

func TestAddVitals(t *testing.T) {
	ms, h := setupServer(t)
	before := ms.Writes()

	rec, body := do(t, h, http.MethodPost, "/api/v1/patients/P1/vitals",
		`{"heart_rate":90,"blood_pressure":"120/80","temperature":37.2,"oxygen_saturation":97}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["patient_id"] != "P1" || body["id"] == "" {
		t.Fatalf("saved = %v", body)
	}
	if ms.Writes() != before+1 {
		t.Fatalf("writes = %d", ms.Writes()-before)
	}

	rec, body = do(t, h, http.MethodPost, "/api/v1/patients/P1/vitals",
		`{"heart_rate":900,"blood_pressure":"120/80","temperature":37.2,"oxygen_saturation":97}`)
	if rec.Code != http.StatusUnprocessableEntity || body["code"] != "validation_error" {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	if ms.Writes() != before+1 {
		t.Fatal("invalid vitals written")
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/patients/P1/vitals", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
}

func TestAddRecordForDischargedPatient(t *testing.T) {
	ms, h := setupServer(t)
	before := ms.Writes()

	rec, _ := do(t, h, http.MethodPost, "/api/v1/patients/P3/notes", `{"subjective":"Follow-up call","created_by":"dr.okafor"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ms.Writes() != before {
		t.Fatal("note written for a discharged patient")
	}
}

func TestUpdateMedicationStatus(t *testing.T) {
	ms, h := setupServer(t)

	rec, body := do(t, h, http.MethodPatch, "/api/v1/patients/P1/medications/M2", `{"status":"Active"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("reactivation status = %d, body = %v", rec.Code, body)
	}

	rec, _ = do(t, h, http.MethodPatch, "/api/v1/patients/P1/medications/M1", `{"status":"Discontinued"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rowByID(ms, store.TableMedications, "M1")["status"]; got != string(ward.MedicationDiscontinued) {
		t.Fatalf("M1 status = %v", got)
	}
}

func TestUpdatePatientStatus(t *testing.T) {
	ms, h := setupServer(t)

	rec, _ := do(t, h, http.MethodPatch, "/api/v1/patients/P2/status", `{"status":"Critical"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rowByID(ms, store.TablePatients, "P2")["status"]; got != "Critical" {
		t.Fatalf("P2 status = %v", got)
	}

	rec, _ = do(t, h, http.MethodPatch, "/api/v1/patients/P2/status", `{"status":"Discharged"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("discharge via badge status = %d", rec.Code)
	}
}

func TestDischarge(t *testing.T) {
	ms, h := setupServer(t)

	rec, body := do(t, h, http.MethodPost, "/api/v1/patients/P1/discharge",
		`{"discharge_summary":"Completed antibiotics, afebrile 48h"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["redirect"] != detail.DefaultParentRoute {
		t.Fatalf("redirect = %v", body["redirect"])
	}
	if got := rowByID(ms, store.TablePatients, "P1")["status"]; got != "Discharged" {
		t.Fatalf("P1 status = %v", got)
	}
	if got := rowByID(ms, store.TableEpisodes, "E1")["status"]; got != "Discharged" {
		t.Fatalf("E1 status = %v", got)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/v1/patients/P1/discharge", `{"discharge_summary":"again"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second discharge status = %d", rec.Code)
	}
}

func TestPartialDischarge(t *testing.T) {
	ms, h := setupServer(t)
	ms.Intercept(func(_ context.Context, c memory.Call) error {
		if c.Op == memory.OpUpdate && c.Table == store.TablePatients {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	rec, body := do(t, h, http.MethodPost, "/api/v1/patients/P1/discharge", `{"discharge_summary":"Recovered"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body["code"] != "discharge_incomplete" || body["partial"] != true {
		t.Fatalf("body = %v", body)
	}
	if got := rowByID(ms, store.TableEpisodes, "E1")["status"]; got != "Discharged" {
		t.Fatalf("E1 status = %v", got)
	}

	// the retry finishes the discharge without a summary
	ms.Intercept(nil)
	rec, _ = do(t, h, http.MethodPost, "/api/v1/patients/P1/discharge", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rowByID(ms, store.TablePatients, "P1")["status"]; got != "Discharged" {
		t.Fatalf("P1 status = %v", got)
	}
}
