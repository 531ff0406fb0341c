// Package resource implements the keyed remote resource every entity hook is
// built on: an identifier bound to a re-fetchable view of a store-backed value
// with an idle -> loading -> (ready | errored) state machine.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/notify"
)

// State of a resource
type State int

const (
	Idle State = iota
	Loading
	Ready
	Errored
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	default:
		return "idle"
	}
}

// MarshalText renders the state name in JSON views
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ErrNotReady is returned by mutations attempted before a successful load.
// When the last load failed the returned error also wraps that failure.
var ErrNotReady = errors.New("resource: value not loaded")

// Fetcher reads the value for id from the store
type Fetcher[T any] func(ctx context.Context, id string) (T, error)

// Snapshot is a consistent copy of a resource's state. Value is the zero
// value unless State is Ready (or Loading during a same-id refresh).
type Snapshot[T any] struct {
	ID         string
	State      State
	Value      T
	Err        error
	Generation uint64
}

type options struct {
	logger         *zap.Logger
	notifier       notify.Notifier
	failureMessage string
	allowEmptyID   bool
	onStale        func(name string)
}

// Option configures a Resource
type Option func(*options)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotifier reports load failures to n using message
func WithNotifier(n notify.Notifier, message string) Option {
	return func(o *options) {
		o.notifier = n
		o.failureMessage = message
	}
}

// AllowEmptyID makes the resource fetch for an empty id (global lists)
func AllowEmptyID() Option {
	return func(o *options) { o.allowEmptyID = true }
}

// OnStale is called whenever a superseded response is discarded
func OnStale(fn func(name string)) Option {
	return func(o *options) { o.onStale = fn }
}

// Resource binds one identifier at a time to a fetched value. Responses that
// belong to a superseded identifier (or superseded load of the same one) are
// ignored, not cancelled.
type Resource[T any] struct {
	name  string
	fetch Fetcher[T]
	opts  options

	mu    sync.Mutex
	id    string
	gen   uint64
	state State
	value T
	err   error

	// serializes mutations so a rollback never undoes a later patch
	writeMu sync.Mutex
}

// New creates an idle resource
func New[T any](name string, fetch Fetcher[T], opts ...Option) *Resource[T] {
	o := options{logger: zap.NewNop(), notifier: notify.Nop}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notify.Nop
	}
	return &Resource[T]{name: name, fetch: fetch, opts: o}
}

// Name returns the resource name used in logs and metrics
func (r *Resource[T]) Name() string { return r.name }

// Load binds id and fetches its value, blocking until the fetch returns. The
// returned snapshot is the resource state after the response was applied or
// discarded. An empty id issues no request and leaves the resource idle.
func (r *Resource[T]) Load(ctx context.Context, id string) Snapshot[T] {
	var zero T

	r.mu.Lock()
	r.gen++
	gen := r.gen
	if id != r.id {
		r.value = zero
	}
	r.id = id
	r.err = nil
	if id == "" && !r.opts.allowEmptyID {
		r.state = Idle
		r.value = zero
		snap := r.snapshotLocked()
		r.mu.Unlock()
		return snap
	}
	r.state = Loading
	r.mu.Unlock()

	value, err := r.fetch(ctx, id)

	r.mu.Lock()
	if gen != r.gen {
		snap := r.snapshotLocked()
		r.mu.Unlock()
		r.opts.logger.Debug("discarding stale response",
			zap.String("resource", r.name),
			zap.String("id", id),
			zap.Uint64("generation", gen),
			zap.Uint64("current_generation", snap.Generation))
		if r.opts.onStale != nil {
			r.opts.onStale(r.name)
		}
		return snap
	}
	if err != nil {
		r.state = Errored
		r.err = err
		r.value = zero
	} else {
		r.state = Ready
		r.value = value
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if err != nil {
		r.opts.logger.Warn("resource load failed",
			zap.String("resource", r.name),
			zap.String("id", id),
			zap.Error(err))
		n := notify.Error(r.opts.failureMessage, err)
		n.PatientID = id
		if n.Message == "" {
			n.Message = "Failed to load " + r.name
		}
		r.opts.notifier.Notify(ctx, n)
	}
	return snap
}

// Refresh re-fetches the currently bound id, keeping the old value visible
// while loading.
func (r *Resource[T]) Refresh(ctx context.Context) Snapshot[T] {
	r.mu.Lock()
	id := r.id
	r.mu.Unlock()
	return r.Load(ctx, id)
}

// Snapshot returns the current state
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// ID returns the bound identifier
func (r *Resource[T]) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

func (r *Resource[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		ID:         r.id,
		State:      r.state,
		Value:      r.value,
		Err:        r.err,
		Generation: r.gen,
	}
}

// Mutate applies patch to the ready value, then runs write. patch must return
// a new value rather than modify its argument in place. When write fails the
// pre-mutation value is restored unless a newer load replaced it meanwhile,
// and the write error is returned. When a load of the same id replaced the
// patched value while write was in flight, a successful write re-fetches so
// the visible value never predates it.
func (r *Resource[T]) Mutate(ctx context.Context, patch func(T) (T, error), write func(ctx context.Context) error) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if r.state != Ready {
		loadErr := r.err
		r.mu.Unlock()
		if loadErr != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, loadErr)
		}
		return ErrNotReady
	}
	prev := r.value
	next, err := patch(prev)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.value = next
	gen := r.gen
	id := r.id
	r.mu.Unlock()

	if err := write(ctx); err != nil {
		r.mu.Lock()
		if r.gen == gen {
			r.value = prev
		}
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	superseded := r.gen != gen && r.id == id
	r.mu.Unlock()
	if superseded {
		r.opts.logger.Debug("reloading after write overtaken by load",
			zap.String("resource", r.name),
			zap.String("id", id))
		r.Load(ctx, id)
	}
	return nil
}

// Replace patches the ready value locally after a write the caller already
// confirmed. It reports whether the patch was applied.
func (r *Resource[T]) Replace(patch func(T) T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Ready {
		return false
	}
	r.value = patch(r.value)
	return true
}
