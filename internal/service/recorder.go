package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	recordTimeout = 2 * time.Second
	counterTTL    = 48 * time.Hour
)

// QueueClient is the subset of the Redis client the recorder uses.
type QueueClient interface {
	Pipeline() redis.Pipeliner
}

// Recorder forwards session activity to Redis: the persistence queues, the
// daily counters and the live proctor channel. Failures are logged and never
// reach the candidate.
type Recorder struct {
	rdb QueueClient
	loc *time.Location
	log zerolog.Logger
}

// NewRecorder creates a Recorder. Day boundaries use loc.
func NewRecorder(rdb QueueClient, loc *time.Location, log zerolog.Logger) *Recorder {
	if loc == nil {
		loc = time.Local
	}
	return &Recorder{
		rdb: rdb,
		loc: loc,
		log: log.With().Str("component", "recorder").Logger(),
	}
}

// ViolationObserved queues rec for archiving and announces it to proctors.
func (r *Recorder) ViolationObserved(rec model.ViolationRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	counter := config.CacheKey.DailyViolationCounterKey(r.day(rec.ObservedAt), string(rec.Kind))
	r.record(ctx, config.WorkerKey.PersistViolationsQueue, rec, counter, model.MonitorEvent{
		Type:      model.MonitorViolation,
		SessionID: rec.SessionID,
		Candidate: rec.Candidate,
		Kind:      rec.Kind,
		Key:       rec.Key,
		At:        rec.ObservedAt,
	})
}

// SubmissionAttempted queues rec for archiving and announces it to proctors.
func (r *Recorder) SubmissionAttempted(rec model.SubmissionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	counter := config.CacheKey.DailySubmissionCounterKey(r.day(rec.AttemptedAt), string(rec.Outcome))
	r.record(ctx, config.WorkerKey.PersistSubmissionsQueue, rec, counter, model.MonitorEvent{
		Type:        model.MonitorSubmission,
		SessionID:   rec.SessionID,
		Candidate:   rec.Candidate.Email,
		Outcome:     rec.Outcome,
		Trigger:     rec.Trigger,
		TabSwitched: rec.TabSwitched,
		At:          rec.AttemptedAt,
	})
}

func (r *Recorder) day(t time.Time) string {
	return t.In(r.loc).Format("2006-01-02")
}

// record sends the queue push, the counter bump and the monitor event in a
// single round trip. Each command runs even when an earlier one fails.
func (r *Recorder) record(ctx context.Context, queue string, v interface{}, counter string, ev model.MonitorEvent) {
	pipe := r.rdb.Pipeline()

	data, err := json.Marshal(v)
	if err != nil {
		r.log.Error().Err(err).Str("queue", queue).Msg("Failed to encode record")
	} else {
		pipe.RPush(ctx, queue, data)
	}
	pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, counterTTL)
	event, _ := json.Marshal(ev)
	pipe.Publish(ctx, config.CacheKey.MonitorChannel(), event)

	cmds, err := pipe.Exec(ctx)
	if err == nil {
		return
	}
	logged := false
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			continue
		}
		logged = true
		r.log.Warn().Err(cmd.Err()).Str("command", cmd.Name()).Str("queue", queue).Str("counter", counter).Msg("Redis command failed")
	}
	if !logged {
		r.log.Error().Err(err).Str("queue", queue).Msg("Failed to record activity")
	}
}
