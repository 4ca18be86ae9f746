package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/domain"
)

// roomTTL is the fixed maximum age of a room, deliberately not
// configurable.
const roomTTL = time.Hour

// Reaper periodically evicts rooms that are empty or past the TTL. It
// is an owned task: Run blocks until the context is canceled.
type Reaper struct {
	lifecycle *Lifecycle
	interval  time.Duration
	now       func() time.Time
}

func NewReaper(lifecycle *Lifecycle, interval time.Duration) *Reaper {
	return &Reaper{lifecycle: lifecycle, interval: interval, now: time.Now}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	log.Info().Str("module", "app.reaper").Dur("interval", r.interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep runs one eviction pass and returns the number of rooms deleted.
// Idempotent; safe to call at any time.
func (r *Reaper) Sweep() int {
	n := r.lifecycle.ReapExpired(r.now().Add(-roomTTL))
	if n > 0 {
		log.Info().Str("module", "app.reaper").Int("deleted", n).
			Int("remaining", r.lifecycle.store.Count()).Msg("swept rooms")
	}
	return n
}

// ReapExpired deletes every room that is empty or was created before
// the cutoff. Runs under the lifecycle lock like any other mutating
// handler.
func (l *Lifecycle) ReapExpired(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var dead []domain.RoomCode
	l.store.Range(func(r domain.Room) bool {
		if r.Empty() || r.CreatedAt.Before(cutoff) {
			dead = append(dead, r.Code)
		}
		return true
	})
	for _, code := range dead {
		l.store.Delete(code)
	}
	return len(dead)
}
