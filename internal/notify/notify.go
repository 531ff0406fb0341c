// Package notify carries transient user notifications (toasts). Failures are
// reported through it; success is reflected by state, except for workflows
// such as discharge that end with a confirmation.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/ward"
)

// Level of a notice
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelSuccess Level = "success"
)

// Notice is one toast
type Notice struct {
	ID        string                `json:"id"`
	Level     Level                 `json:"level"`
	Message   string                `json:"message"`
	Category  ward.NotificationType `json:"category,omitempty"`
	PatientID string                `json:"patient_id,omitempty"`
	Kind      string                `json:"kind,omitempty"`
	Time      time.Time             `json:"time"`
}

// Notifier receives notices
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a function to Notifier
type Func func(ctx context.Context, n Notice)

func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Nop discards notices
var Nop Notifier = Func(func(context.Context, Notice) {})

// Error builds an error notice classified from err
func Error(message string, err error) Notice {
	n := Notice{Level: LevelError, Message: message}
	if err != nil {
		n.Kind = ward.KindOf(err).String()
	}
	return n
}

// Stamp fills ID and Time when missing
func Stamp(n Notice) Notice {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Time.IsZero() {
		n.Time = time.Now().UTC()
	}
	return n
}

// Recorder keeps notices in memory in arrival order
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, Stamp(n))
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many notices of level were recorded
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == level {
			n++
		}
	}
	return n
}

type multi []Notifier

// Multi fans a notice out to every non-nil notifier
func Multi(ns ...Notifier) Notifier {
	var out multi
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, n Notice) {
	n = Stamp(n)
	for _, x := range m {
		x.Notify(ctx, n)
	}
}

// Logging writes notices to logger
func Logging(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Func(func(_ context.Context, n Notice) {
		fields := []zap.Field{
			zap.String("level", string(n.Level)),
			zap.String("message", n.Message),
			zap.String("patient_id", n.PatientID),
			zap.String("kind", n.Kind),
		}
		if n.Level == LevelSuccess {
			logger.Info("user notification", fields...)
			return
		}
		logger.Warn("user notification", fields...)
	})
}

// ToNotification converts a notice into the published feed event
func ToNotification(n Notice) ward.Notification {
	n = Stamp(n)
	sev := ward.SeverityInfo
	switch n.Level {
	case LevelError:
		sev = ward.SeverityCritical
	case LevelWarning:
		sev = ward.SeverityWarning
	}
	category := n.Category
	if category == "" {
		category = ward.NotificationStatus
	}
	return ward.Notification{
		ID:        n.ID,
		Type:      category,
		Message:   n.Message,
		Timestamp: n.Time,
		Severity:  sev,
		PatientID: n.PatientID,
	}
}
