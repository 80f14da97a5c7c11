package games

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically deletes expired rooms. Permanent rooms and rooms with
// connected members are kept regardless of their expiry.
type Sweeper struct {
	store    Store
	registry *Registry
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSweeper(store Store, registry *Registry, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		registry: registry,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("SWEEP: failed to delete expired rooms")
			}
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	keep := func(string) bool { return false }
	if s.registry != nil {
		keep = s.registry.Connected
	}

	deleted, err := s.store.DeleteExpired(ctx, s.now(), keep)
	if err != nil {
		return nil, err
	}

	if len(deleted) > 0 {
		s.log.Info().Int("count", len(deleted)).Strs("rooms", deleted).Msg("SWEEP: deleted expired rooms")
	}
	return deleted, nil
}
