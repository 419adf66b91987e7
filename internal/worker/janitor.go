package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SweepFunc removes stale entries and reports how many went.
type SweepFunc func(now time.Time) int

// Janitor runs sweeps on a fixed interval: idle session eviction and rate
// limiter pruning.
type Janitor struct {
	interval time.Duration
	sweeps   map[string]SweepFunc
	log      zerolog.Logger
}

// NewJanitor creates a Janitor. Sweeps are keyed by a name used in logs.
func NewJanitor(interval time.Duration, sweeps map[string]SweepFunc, log zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{
		interval: interval,
		sweeps:   sweeps,
		log:      log.With().Str("component", "janitor").Logger(),
	}
}

// Start sweeps until ctx is cancelled. Call in a goroutine.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			j.RunOnce(now)
		}
	}
}

// RunOnce runs every sweep once.
func (j *Janitor) RunOnce(now time.Time) {
	for name, sweep := range j.sweeps {
		if n := sweep(now); n > 0 {
			j.log.Info().Str("sweep", name).Int("removed", n).Msg("Sweep finished")
		}
	}
}
