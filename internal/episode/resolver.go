// Package episode resolves a patient's current admission and the most recent
// prior discharged admission used for readmission comparison.
package episode

import (
	"context"
	"errors"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// Resolution is the read-only result of resolving a patient's episodes
type Resolution struct {
	// Current is the Active episode, nil when the patient is not admitted
	Current *ward.AdmissionEpisode `json:"current"`
	// Previous is the most recent Discharged episode strictly before Current
	Previous *ward.AdmissionEpisode `json:"previous,omitempty"`
	// Latest is the most recent episode of any status
	Latest *ward.AdmissionEpisode `json:"latest,omitempty"`
}

// Admitted reports whether the patient has an active admission
func (r Resolution) Admitted() bool { return r.Current != nil }

// Readmission reports whether the current admission follows a prior one
func (r Resolution) Readmission() bool { return r.Current != nil && r.Previous != nil }

// Resolver reads admission episodes from the store
type Resolver struct {
	store  store.DataStore
	logger *zap.Logger
}

// NewResolver creates a resolver
func NewResolver(ds store.DataStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: ds, logger: logger}
}

// Resolve queries the patient's episodes newest first and resolves them
func (r *Resolver) Resolve(ctx context.Context, patientID string) (Resolution, error) {
	const op = "episode.resolve"
	if patientID == "" {
		return Resolution{}, ward.Invalid(op, "patient id is required")
	}

	q := store.From(store.TableEpisodes).
		Select("*").
		Eq("patient_id", patientID).
		OrderBy("admission_date", true)

	rows, err := r.store.Select(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Resolution{}, nil
		}
		return Resolution{}, ward.StoreFailure(op, err)
	}
	episodes, err := store.DecodeAll[ward.AdmissionEpisode](rows)
	if err != nil {
		return Resolution{}, ward.StoreFailure(op, err)
	}

	active := lo.CountBy(episodes, func(e ward.AdmissionEpisode) bool { return e.Active() })
	if active > 1 {
		r.logger.Warn("patient has more than one active episode",
			zap.String("patient_id", patientID),
			zap.Int("active", active))
	}
	return Resolve(episodes), nil
}

// Resolve picks the current and previous episodes. The input is sorted by
// admission date descending first, so callers need not pre-sort.
func Resolve(episodes []ward.AdmissionEpisode) Resolution {
	sorted := append([]ward.AdmissionEpisode(nil), episodes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AdmissionDate.After(sorted[j].AdmissionDate)
	})

	var res Resolution
	if len(sorted) == 0 {
		return res
	}
	latest := sorted[0]
	res.Latest = &latest

	idx := -1
	for i, e := range sorted {
		if e.Active() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return res
	}
	current := sorted[idx]
	res.Current = &current

	for _, e := range sorted[idx+1:] {
		if e.Status == ward.EpisodeDischarged && e.AdmissionDate.Before(current.AdmissionDate) {
			prev := e
			res.Previous = &prev
			break
		}
	}
	return res
}
