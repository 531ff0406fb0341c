package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardboard/go-ward/internal/notify"
)

// gatedFetcher blocks each fetch until the test releases that id
type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	calls   atomic.Int32
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: make(map[string]chan struct{}), started: make(chan string, 16)}
}

func (g *gatedFetcher) gate(id string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan struct{})
		g.gates[id] = ch
	}
	return ch
}

func (g *gatedFetcher) fetch(ctx context.Context, id string) (string, error) {
	g.calls.Add(1)
	g.started <- id
	<-g.gate(id)
	if id == "broken" {
		return "", errors.New("store unavailable")
	}
	return "value-" + id, nil
}

func (g *gatedFetcher) release(id string) { close(g.gate(id)) }

func waitStarted(t *testing.T, g *gatedFetcher, want string) {
	t.Helper()
	select {
	case id := <-g.started:
		if id != want {
			t.Fatalf("fetch started for %q, want %q", id, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fetch for %q never started", want)
	}
}

func TestLoadReady(t *testing.T) {
	r := New("patient", func(ctx context.Context, id string) (string, error) { return "v:" + id, nil })

	if s := r.Snapshot(); s.State != Idle {
		t.Fatalf("initial state = %s", s.State)
	}
	snap := r.Load(context.Background(), "P1")
	if snap.State != Ready || snap.Value != "v:P1" || snap.Err != nil {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestEmptyIDFailsClosed(t *testing.T) {
	var calls int
	r := New("vitals", func(ctx context.Context, id string) (string, error) {
		calls++
		return "x", nil
	})

	snap := r.Load(context.Background(), "")
	if calls != 0 {
		t.Fatal("empty id must not issue a request")
	}
	if snap.State != Idle || snap.Value != "" {
		t.Fatalf("empty id should leave resource idle and empty, got %+v", snap)
	}
}

func TestAllowEmptyIDFetchesGlobalList(t *testing.T) {
	r := New("patients", func(ctx context.Context, id string) (int, error) { return 3, nil }, AllowEmptyID())
	if snap := r.Load(context.Background(), ""); snap.State != Ready || snap.Value != 3 {
		t.Fatalf("global list snapshot = %+v", snap)
	}
}

func TestErroredCarriesNoValueAndNotifies(t *testing.T) {
	rec := notify.NewRecorder()
	fail := errors.New("boom")
	ok := true
	r := New("labs", func(ctx context.Context, id string) (string, error) {
		if ok {
			return "labs-" + id, nil
		}
		return "", fail
	}, WithNotifier(rec, "Failed to load lab results"))

	r.Load(context.Background(), "P1")
	if rec.Count(notify.LevelError) != 0 {
		t.Fatal("success must not notify")
	}

	ok = false
	snap := r.Refresh(context.Background())
	if snap.State != Errored || !errors.Is(snap.Err, fail) {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Value != "" {
		t.Fatalf("errored state must not carry a value, got %q", snap.Value)
	}
	notices := rec.Notices()
	if len(notices) != 1 || notices[0].Message != "Failed to load lab results" || notices[0].PatientID != "P1" {
		t.Fatalf("notices = %+v", notices)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	g := newGatedFetcher()
	var stale atomic.Int32
	r := New("vitals", g.fetch, OnStale(func(string) { stale.Add(1) }))
	ctx := context.Background()

	first := make(chan Snapshot[string], 1)
	go func() { first <- r.Load(ctx, "P1") }()
	waitStarted(t, g, "P1")

	second := make(chan Snapshot[string], 1)
	go func() { second <- r.Load(ctx, "P2") }()
	waitStarted(t, g, "P2")

	// latest id resolves first, then the stale one
	g.release("P2")
	if s := <-second; s.State != Ready || s.Value != "value-P2" {
		t.Fatalf("latest load = %+v", s)
	}
	g.release("P1")
	<-first

	snap := r.Snapshot()
	if snap.ID != "P2" || snap.Value != "value-P2" {
		t.Fatalf("stale response overwrote state: %+v", snap)
	}
	if stale.Load() != 1 {
		t.Fatalf("stale discards = %d, want 1", stale.Load())
	}
}

func TestRapidIdentifierChanges(t *testing.T) {
	g := newGatedFetcher()
	r := New("medications", g.fetch)
	ctx := context.Background()
	ids := []string{"A", "B", "C", "D"}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Load(ctx, id)
		}(id)
		waitStarted(t, g, id)
	}

	// release in reverse so every older response lands after the newest
	for i := len(ids) - 1; i >= 0; i-- {
		g.release(ids[i])
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.ID != "D" || snap.Value != "value-D" || snap.State != Ready {
		t.Fatalf("final state = %+v, want latest id D", snap)
	}
}

func TestStaleErrorDoesNotNotify(t *testing.T) {
	g := newGatedFetcher()
	rec := notify.NewRecorder()
	r := New("notes", g.fetch, WithNotifier(rec, "Failed to load notes"))
	ctx := context.Background()

	done := make(chan struct{})
	go func() { r.Load(ctx, "broken"); close(done) }()
	waitStarted(t, g, "broken")

	go r.Load(ctx, "P9")
	waitStarted(t, g, "P9")
	g.release("P9")
	g.release("broken")
	<-done

	if rec.Count(notify.LevelError) != 0 {
		t.Fatal("a superseded failure must not reach the user")
	}
}

func TestMutateOptimisticAndRollback(t *testing.T) {
	r := New("meds", func(ctx context.Context, id string) ([]string, error) {
		return []string{"Active"}, nil
	})
	ctx := context.Background()
	r.Load(ctx, "P1")

	patch := func(v []string) ([]string, error) { return []string{"Completed"}, nil }

	var during []string
	err := r.Mutate(ctx, patch, func(ctx context.Context) error {
		during = r.Snapshot().Value
		return errors.New("write failed")
	})
	if err == nil {
		t.Fatal("expected write error")
	}
	if during[0] != "Completed" {
		t.Fatalf("patch not visible during write: %v", during)
	}
	if got := r.Snapshot().Value; got[0] != "Active" {
		t.Fatalf("rollback failed, value = %v", got)
	}

	if err := r.Mutate(ctx, patch, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got := r.Snapshot().Value; got[0] != "Completed" {
		t.Fatalf("confirmed write not reflected: %v", got)
	}
}

func TestMutateRequiresReady(t *testing.T) {
	r := New("meds", func(ctx context.Context, id string) (int, error) { return 0, nil })
	wrote := false
	err := r.Mutate(context.Background(),
		func(v int) (int, error) { return v + 1, nil },
		func(context.Context) error { wrote = true; return nil })
	if !errors.Is(err, ErrNotReady) || wrote {
		t.Fatalf("mutate on idle resource: err=%v wrote=%v", err, wrote)
	}
}

func TestRollbackDoesNotClobberNewerLoad(t *testing.T) {
	version := "server-1"
	r := New("meds", func(ctx context.Context, id string) (string, error) { return version, nil })
	ctx := context.Background()
	r.Load(ctx, "P1")

	err := r.Mutate(ctx,
		func(string) (string, error) { return "optimistic", nil },
		func(ctx context.Context) error {
			version = "server-2"
			r.Refresh(ctx)
			return errors.New("write failed")
		})
	if err == nil {
		t.Fatal("expected write error")
	}
	if got := r.Snapshot().Value; got != "server-2" {
		t.Fatalf("rollback replaced newer load: %q", got)
	}
}

func TestRefreshDuringWriteDoesNotHideConfirmedWrite(t *testing.T) {
	var mu sync.Mutex
	server := "Active"
	r := New("meds", func(ctx context.Context, id string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		return server, nil
	})
	ctx := context.Background()
	r.Load(ctx, "P1")

	writing := make(chan struct{})
	proceed := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- r.Mutate(ctx,
			func(string) (string, error) { return "Completed", nil },
			func(context.Context) error {
				close(writing)
				<-proceed
				mu.Lock()
				server = "Completed"
				mu.Unlock()
				return nil
			})
	}()

	<-writing
	if got := r.Refresh(ctx).Value; got != "Active" {
		t.Fatalf("refresh during write read %q, want the pre-write value", got)
	}
	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("mutate: %v", err)
	}

	snap := r.Snapshot()
	if snap.State != Ready || snap.Value != "Completed" {
		t.Fatalf("visible %q state=%s after confirmed write", snap.Value, snap.State)
	}
}

func TestMutateAfterFailedLoadWrapsLoadError(t *testing.T) {
	loadErr := errors.New("store unavailable")
	r := New("meds", func(ctx context.Context, id string) (string, error) { return "", loadErr })
	ctx := context.Background()
	r.Load(ctx, "P1")

	err := r.Mutate(ctx,
		func(v string) (string, error) { return v, nil },
		func(context.Context) error { return nil })
	if !errors.Is(err, ErrNotReady) || !errors.Is(err, loadErr) {
		t.Fatalf("err = %v, want ErrNotReady wrapping the load failure", err)
	}
}
