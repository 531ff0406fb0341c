// Package hooks binds the dashboard entities to keyed resources: one hook per
// entity, each reading through the injected DataStore and reporting failures
// to a notifier.
package hooks

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/notify"
	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// Deps are shared by every hook
type Deps struct {
	Store    store.DataStore
	Notifier notify.Notifier
	Logger   *zap.Logger
	// OnStale is called with the resource name when a stale response is discarded
	OnStale func(name string)
	// Now stamps inserted records; defaults to time.Now in UTC
	Now func() time.Time
	// QuietLoads stops fetch failures from reaching Notifier; mutation
	// failures are still reported
	QuietLoads bool
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// Silent returns a copy of d whose fetch failures are not reported. The
// detail screen uses it for fetches it reports on itself.
func (d Deps) Silent() Deps {
	d.QuietLoads = true
	return d
}

func (d Deps) options(failure string, extra ...resource.Option) []resource.Option {
	loads := d.Notifier
	if d.QuietLoads {
		loads = notify.Nop
	}
	opts := []resource.Option{
		resource.WithLogger(d.Logger),
		resource.WithNotifier(loads, failure),
	}
	if d.OnStale != nil {
		opts = append(opts, resource.OnStale(d.OnStale))
	}
	return append(opts, extra...)
}

// Classify maps a store error onto the dashboard error taxonomy. Errors that
// are already classified pass through unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var we *ward.Error
	if errors.As(err, &we) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return &ward.Error{Kind: ward.KindNotFound, Op: op, Err: err}
	}
	return ward.StoreFailure(op, err)
}

// notLoaded classifies a mutation refused by an unloaded resource. A failed
// load keeps its own kind; a resource that never loaded is a validation error.
func notLoaded(op, msg string, err error) error {
	if !errors.Is(err, resource.ErrNotReady) {
		return err
	}
	if err == resource.ErrNotReady {
		return ward.Invalid(op, "%s", msg)
	}
	var we *ward.Error
	if errors.As(err, &we) {
		return we
	}
	return ward.StoreFailure(op, err)
}

// notifyFailure reports a failed user action
func (d Deps) notifyFailure(ctx context.Context, message, patientID string, category ward.NotificationType, err error) {
	n := notify.Error(message, err)
	n.PatientID = patientID
	n.Category = category
	d.Notifier.Notify(ctx, n)
}
