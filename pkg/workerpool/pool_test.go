package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunAllWaitsForEveryTask(t *testing.T) {
	p := New(Config{Workers: 2, QueueSize: 8}, nil)
	p.Start()
	defer p.Stop()

	var ran, failed atomic.Int32
	tasks := make([]*Task, 0, 5)
	for i := 0; i < 5; i++ {
		i := i
		tasks = append(tasks, &Task{
			ID: "tab",
			Run: func(ctx context.Context) error {
				ran.Add(1)
				if i == 3 {
					return errors.New("labs unavailable")
				}
				return nil
			},
			Done: func(err error) {
				if err != nil {
					failed.Add(1)
				}
			},
		})
	}

	select {
	case <-p.RunAll(context.Background(), tasks...):
	case <-time.After(2 * time.Second):
		t.Fatal("RunAll never finished")
	}
	if ran.Load() != 5 || failed.Load() != 1 {
		t.Fatalf("ran=%d failed=%d", ran.Load(), failed.Load())
	}

	stats := p.Stats()
	if stats.TasksCompleted+stats.TasksFailed != 5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRunAllFallsBackWhenStopped(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 1}, nil)
	p.Start()
	p.Stop()

	var ran atomic.Int32
	done := p.RunAll(context.Background(), &Task{ID: "late", Run: func(context.Context) error {
		ran.Add(1)
		return nil
	}})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	if ran.Load() != 1 {
		t.Fatal("task was dropped")
	}
	if err := p.Submit(&Task{Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrStopped) {
		t.Fatalf("submit after stop: %v", err)
	}
}

func TestPanicBecomesError(t *testing.T) {
	p := New(Config{Workers: 1}, nil)
	p.Start()
	defer p.Stop()

	var got error
	<-p.RunAll(context.Background(), &Task{
		ID:   "boom",
		Run:  func(context.Context) error { panic("nil map") },
		Done: func(err error) { got = err },
	})
	if got == nil {
		t.Fatal("panic was not reported")
	}
}
