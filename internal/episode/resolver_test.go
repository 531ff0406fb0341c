package episode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/store/memory"
	"github.com/wardboard/go-ward/internal/ward"
)

var day0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func ep(id string, daysAgo int, status ward.EpisodeStatus) ward.AdmissionEpisode {
	return ward.AdmissionEpisode{
		ID:            id,
		PatientID:     "P1",
		AdmissionDate: day0.AddDate(0, 0, -daysAgo),
		Status:        status,
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		episodes     []ward.AdmissionEpisode
		wantCurrent  string
		wantPrevious string
	}{
		{"no episodes", nil, "", ""},
		{"first admission", []ward.AdmissionEpisode{ep("e1", 0, ward.EpisodeActive)}, "e1", ""},
		{
			"readmission",
			[]ward.AdmissionEpisode{
				ep("old", 90, ward.EpisodeDischarged),
				ep("now", 1, ward.EpisodeActive),
				ep("mid", 30, ward.EpisodeDischarged),
			},
			"now", "mid",
		},
		{
			"not admitted",
			[]ward.AdmissionEpisode{ep("a", 10, ward.EpisodeDischarged), ep("b", 5, ward.EpisodeDischarged)},
			"", "",
		},
		{
			"discharged episode after current is not previous",
			[]ward.AdmissionEpisode{ep("cur", 20, ward.EpisodeActive), ep("later", 2, ward.EpisodeDischarged)},
			"cur", "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.episodes)
			if id := idOf(res.Current); id != tt.wantCurrent {
				t.Errorf("current = %q, want %q", id, tt.wantCurrent)
			}
			if id := idOf(res.Previous); id != tt.wantPrevious {
				t.Errorf("previous = %q, want %q", id, tt.wantPrevious)
			}
			if res.Current != nil && res.Current.Status != ward.EpisodeActive {
				t.Errorf("current episode is %s", res.Current.Status)
			}
		})
	}
}

func TestResolveLatestWhenNotAdmitted(t *testing.T) {
	res := Resolve([]ward.AdmissionEpisode{ep("a", 10, ward.EpisodeDischarged), ep("b", 5, ward.EpisodeDischarged)})
	if res.Admitted() || res.Readmission() {
		t.Fatal("patient without active episode reported as admitted")
	}
	if idOf(res.Latest) != "b" {
		t.Fatalf("latest = %q, want b", idOf(res.Latest))
	}
}

func TestResolverQueriesStore(t *testing.T) {
	ms := memory.New()
	if err := ms.SeedValues(store.TableEpisodes,
		ep("first", 60, ward.EpisodeDischarged),
		ep("current", 0, ward.EpisodeActive),
		ward.AdmissionEpisode{ID: "other", PatientID: "P2", AdmissionDate: day0, Status: ward.EpisodeActive},
	); err != nil {
		t.Fatal(err)
	}

	res, err := NewResolver(ms, nil).Resolve(context.Background(), "P1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if idOf(res.Current) != "current" || idOf(res.Previous) != "first" || !res.Readmission() {
		t.Fatalf("resolution = current %q previous %q", idOf(res.Current), idOf(res.Previous))
	}
}

func TestResolverStoreError(t *testing.T) {
	ms := memory.New()
	ms.Intercept(func(context.Context, memory.Call) error { return errors.New("timeout") })

	_, err := NewResolver(ms, nil).Resolve(context.Background(), "P1")
	if !ward.IsStore(err) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func idOf(e *ward.AdmissionEpisode) string {
	if e == nil {
		return ""
	}
	return e.ID
}
