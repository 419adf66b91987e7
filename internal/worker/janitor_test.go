package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestJanitorRunsEverySweep(t *testing.T) {
	var sessions, buckets atomic.Int32
	j := NewJanitor(5*time.Millisecond, map[string]SweepFunc{
		"sessions": func(time.Time) int { sessions.Add(1); return 1 },
		"limiters": func(time.Time) int { buckets.Add(1); return 0 },
	}, zerolog.Nop())

	stop := runWorker(j.Start)
	eventually(t, 2*time.Second, func() bool { return sessions.Load() >= 2 && buckets.Load() >= 2 })
	stop()
}

func TestJanitorRunOncePassesTime(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var got time.Time
	j := NewJanitor(time.Hour, map[string]SweepFunc{
		"clock": func(now time.Time) int { got = now; return 0 },
	}, zerolog.Nop())

	j.RunOnce(at)
	if !got.Equal(at) {
		t.Errorf("sweep saw %v, want %v", got, at)
	}
}
