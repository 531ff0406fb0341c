package circuitbreaker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wardboard/go-ward/internal/hooks"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/store/memory"
	"github.com/wardboard/go-ward/internal/ward"
)

func testConfig() Config {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	return cfg
}

func TestStoreOpensPerTable(t *testing.T) {
	mem := memory.New()
	mem.Seed(store.TablePatients, store.Row{"id": "P1", "name": "Ada"})

	var vitalsCalls atomic.Int32
	down := errors.New("connection refused")
	mem.Intercept(func(_ context.Context, c memory.Call) error {
		if c.Table == store.TableVitals {
			vitalsCalls.Add(1)
			return down
		}
		return nil
	})

	var transitions []State
	cfg := testConfig()
	cfg.OnStateChange = func(name string, _, to State) {
		if name == store.TableVitals {
			transitions = append(transitions, to)
		}
	}
	s := GuardStore(mem, cfg, nil)
	ctx := context.Background()
	q := store.From(store.TableVitals).Eq("patient_id", "P1")

	for i := 0; i < 2; i++ {
		if _, err := s.Select(ctx, q); !errors.Is(err, down) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}

	_, err := s.Select(ctx, q)
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if vitalsCalls.Load() != 2 {
		t.Fatalf("open circuit called through: %d calls", vitalsCalls.Load())
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Fatalf("transitions = %v", transitions)
	}
	if !ward.IsStore(hooks.Classify("load vitals", err)) {
		t.Fatal("open circuit must classify as a store failure")
	}

	// other tables keep their own circuit
	if _, err := s.Single(ctx, store.From(store.TablePatients).Eq("id", "P1")); err != nil {
		t.Fatalf("patients: %v", err)
	}
	if s.Manager().Healthy() {
		t.Fatal("manager reports healthy with an open breaker")
	}
}

func TestStoreNotFoundDoesNotTrip(t *testing.T) {
	s := GuardStore(memory.New(), testConfig(), nil)
	ctx := context.Background()
	q := store.From(store.TablePatients).Eq("id", "missing")

	for i := 0; i < 5; i++ {
		if _, err := s.Single(ctx, q); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if err := s.Update(ctx, store.TablePatients, "missing", store.Row{"status": "Stable"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update: %v", err)
	}
	for _, h := range s.Manager().GetHealthStatus() {
		if h.State != StateClosed {
			t.Fatalf("%s is %s", h.Name, h.State)
		}
	}
}

func TestStorePassesWritesThrough(t *testing.T) {
	mem := memory.New()
	s := GuardStore(mem, testConfig(), nil)
	ctx := context.Background()

	row, err := s.Insert(ctx, store.TableDailyNotes, store.Row{"patient_id": "P1", "content": "stable overnight"})
	if err != nil {
		t.Fatal(err)
	}
	if row["id"] == nil || row["id"] == "" {
		t.Fatalf("inserted row has no id: %v", row)
	}
	if mem.Writes() != 1 {
		t.Fatalf("writes = %d", mem.Writes())
	}
}
