package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardboard/go-ward/internal/store"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := New()
	s.Seed(store.TableUsers, store.Row{"id": "u1", "name": "Dr. Grey", "employee_code": "E-100", "password": "x"})
	s.Seed(store.TablePatients,
		store.Row{"id": "P1", "name": "Ada", "status": "Stable", "attending_physician_id": "u1"},
		store.Row{"id": "P2", "name": "Bob", "status": "Critical", "attending_physician_id": "missing"},
	)

	t1 := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	// seeded out of order on purpose
	s.Seed(store.TableVitals,
		store.Row{"id": "v1", "patient_id": "P1", "heart_rate": 80, "recorded_at": t1.Format(time.RFC3339Nano)},
		store.Row{"id": "v3", "patient_id": "P2", "heart_rate": 60, "recorded_at": t1.Add(3 * time.Hour).Format(time.RFC3339Nano)},
		store.Row{"id": "v2", "patient_id": "P1", "heart_rate": 72, "recorded_at": t1.Add(time.Hour).Format(time.RFC3339Nano)},
	)
	return s
}

func TestSelectFiltersAndOrders(t *testing.T) {
	s := seeded(t)
	q := store.From(store.TableVitals).Eq("patient_id", "P1").OrderBy("recorded_at", true)

	rows, err := s.Select(context.Background(), q)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0]["id"] != "v2" || rows[1]["id"] != "v1" {
		t.Fatalf("rows not in descending recency: %v, %v", rows[0]["id"], rows[1]["id"])
	}
	if !store.Sorted(rows, q.Order) {
		t.Fatal("result violates ordering contract")
	}
}

func TestSingleWithEmbed(t *testing.T) {
	s := seeded(t)
	embed := store.Embed{As: "attending_physician", Table: store.TableUsers, ForeignKey: "attending_physician_id", Columns: []string{"name", "employee_code"}}

	row, err := s.Single(context.Background(), store.From(store.TablePatients).Eq("id", "P1").With(embed))
	if err != nil {
		t.Fatalf("single: %v", err)
	}
	doc, ok := row["attending_physician"].(map[string]any)
	if !ok {
		t.Fatalf("embedded physician missing: %v", row)
	}
	if doc["name"] != "Dr. Grey" || doc["employee_code"] != "E-100" {
		t.Fatalf("embedded physician = %v", doc)
	}
	if _, leaked := doc["password"]; leaked {
		t.Fatal("embed projected an unrequested column")
	}

	row, err = s.Single(context.Background(), store.From(store.TablePatients).Eq("id", "P2").With(embed))
	if err != nil {
		t.Fatalf("single P2: %v", err)
	}
	if row["attending_physician"] != nil {
		t.Fatalf("dangling foreign key should embed nil, got %v", row["attending_physician"])
	}
}

func TestSingleNotFound(t *testing.T) {
	s := seeded(t)
	_, err := s.Single(context.Background(), store.From(store.TablePatients).Eq("id", "nope"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndInsert(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	if err := s.Update(ctx, store.TablePatients, "P1", store.Row{"status": "Critical"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Update(ctx, store.TablePatients, "ghost", store.Row{"status": "Critical"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update of missing row: %v", err)
	}

	row, err := s.Insert(ctx, store.TableVitals, store.Row{"patient_id": "P1", "heart_rate": 90})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id, _ := row["id"].(string); id == "" {
		t.Fatal("insert should assign an id")
	}
	if s.Writes() != 2 {
		t.Fatalf("Writes = %d, want 2", s.Writes())
	}

	p, _ := s.Single(ctx, store.From(store.TablePatients).Eq("id", "P1"))
	if p["status"] != "Critical" {
		t.Fatalf("status not updated: %v", p["status"])
	}
}

func TestInterceptorFailsCall(t *testing.T) {
	s := seeded(t)
	boom := errors.New("permission denied")
	s.Intercept(func(ctx context.Context, c Call) error {
		if c.Op == OpUpdate {
			return boom
		}
		return nil
	})

	if err := s.Update(context.Background(), store.TablePatients, "P1", store.Row{"status": "Critical"}); !errors.Is(err, boom) {
		t.Fatalf("expected interceptor error, got %v", err)
	}
	if s.Writes() != 0 {
		t.Fatal("failed write must not count")
	}
}

func TestReturnedRowsAreCopies(t *testing.T) {
	s := seeded(t)
	rows, _ := s.Select(context.Background(), store.From(store.TablePatients))
	rows[0]["name"] = "mutated"

	again, _ := s.Select(context.Background(), store.From(store.TablePatients).Eq("id", rows[0]["id"]))
	if again[0]["name"] == "mutated" {
		t.Fatal("caller mutation leaked into the store")
	}
}
