// Package handlers provides HTTP handlers for the dashboard API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/detail"
	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/ward"
)

// ErrorResponse is the body of every failed request. Notifications carry the
// toasts the screen raised while handling it.
type ErrorResponse struct {
	Error         string          `json:"error"`
	Code          string          `json:"code"`
	Partial       bool            `json:"partial,omitempty"`
	Redirect      string          `json:"redirect,omitempty"`
	Notifications []notify.Notice `json:"notifications,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP
func statusFor(err error) (int, string) {
	var partial *detail.PartialDischargeError
	if errors.As(err, &partial) {
		return http.StatusInternalServerError, "discharge_incomplete"
	}
	switch ward.KindOf(err) {
	case ward.KindNotFound:
		return http.StatusNotFound, ward.KindNotFound.String()
	case ward.KindValidation:
		return http.StatusUnprocessableEntity, ward.KindValidation.String()
	case ward.KindStore:
		return http.StatusBadGateway, ward.KindStore.String()
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err; screen may be nil
func writeError(w http.ResponseWriter, logger *zap.Logger, err error, screen *detail.Screen) {
	status, code := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var partial *detail.PartialDischargeError
	resp.Partial = errors.As(err, &partial)
	if screen != nil {
		resp.Redirect = screen.Redirect()
		resp.Notifications = screen.Notices()
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "bad_request"})
}
