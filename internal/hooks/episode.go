package hooks

import (
	"context"
	"time"

	"github.com/wardboard/go-ward/internal/episode"
	"github.com/wardboard/go-ward/internal/resource"
	"github.com/wardboard/go-ward/internal/store"
	"github.com/wardboard/go-ward/internal/ward"
)

// Episode is the resolved admission for one patient
type Episode struct {
	*resource.Resource[episode.Resolution]
	deps Deps
}

func NewEpisode(d Deps) *Episode {
	d = d.withDefaults()
	resolver := episode.NewResolver(d.Store, d.Logger)
	return &Episode{
		Resource: resource.New("admission_episode", resolver.Resolve, d.options("Failed to load admission episode")...),
		deps:     d,
	}
}

// Current returns the active episode, if any
func (e *Episode) Current() (*ward.AdmissionEpisode, bool) {
	snap := e.Snapshot()
	if snap.State != resource.Ready || snap.Value.Current == nil {
		return nil, false
	}
	return snap.Value.Current, true
}

// Discharge closes the episode with the given id. It does not touch the
// patient record.
func (e *Episode) Discharge(ctx context.Context, episodeID string, at time.Time, summary string) error {
	const op = "episode.discharge"
	fields := store.Row{
		"status":            string(ward.EpisodeDischarged),
		"discharge_date":    at.UTC().Format(time.RFC3339Nano),
		"discharge_summary": summary,
	}
	if err := e.deps.Store.Update(ctx, store.TableEpisodes, episodeID, fields); err != nil {
		return Classify(op, err)
	}
	return nil
}
