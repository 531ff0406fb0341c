package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the dashboard API under r, normally the /api/v1 route
func Mount(r chi.Router, patients *PatientHandler, dashboard *DashboardHandler) {
	r.Get("/dashboard/stats", dashboard.Stats)
	r.Route("/patients", func(r chi.Router) {
		r.Get("/", dashboard.ListPatients)
		patients.Register(r)
	})
}
