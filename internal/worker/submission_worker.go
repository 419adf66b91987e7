package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// SubmissionStore archives submission attempts.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, rec model.SubmissionRecord) error
}

// SubmissionWorker consumes persist_submissions_queue one record at a time.
// Submissions are rare next to violations, so there is no batching.
type SubmissionWorker struct {
	queue Queue
	store SubmissionStore
	log   zerolog.Logger

	pollTimeout time.Duration
	retryDelay  time.Duration
}

// NewSubmissionWorker creates a new SubmissionWorker.
func NewSubmissionWorker(queue Queue, store SubmissionStore, log zerolog.Logger) *SubmissionWorker {
	return &SubmissionWorker{
		queue:       queue,
		store:       store,
		log:         log.With().Str("component", "submission_worker").Logger(),
		pollTimeout: PollTimeout,
		retryDelay:  RetryDelay,
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *SubmissionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *SubmissionWorker) processNext(ctx context.Context) {
	result, err := w.queue.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			sleep(ctx, ErrorDelay)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.persist(ctx, result[1]); err != nil {
		w.log.Error().Err(err).Msg("Persist error, requeueing")
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		w.queue.RPush(pushCtx, config.WorkerKey.PersistSubmissionsQueue, result[1])
		cancel()
		sleep(ctx, w.retryDelay)
	}
}

// persist stores one queued record. Records that can never be stored are
// logged and dropped; only transient failures come back as errors.
func (w *SubmissionWorker) persist(ctx context.Context, raw string) error {
	var rec model.SubmissionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		w.log.Error().Err(err).Str("data", raw).Msg("Discarding malformed submission")
		return nil
	}

	err := w.store.InsertSubmission(ctx, rec)
	if errors.Is(err, repository.ErrInvalidRecord) {
		w.log.Error().Err(err).Str("session_id", rec.SessionID).Msg("Dropping invalid submission")
		return nil
	}
	if err != nil {
		return err
	}

	w.log.Debug().
		Str("session_id", rec.SessionID).
		Str("outcome", string(rec.Outcome)).
		Msg("Submission archived")
	return nil
}

// drain processes what is left in the queue before shutdown.
func (w *SubmissionWorker) drain(ctx context.Context) {
	drained := 0
	for ctx.Err() == nil {
		raw, err := w.queue.LPop(ctx, config.WorkerKey.PersistSubmissionsQueue).Result()
		if err != nil {
			break
		}
		if err := w.persist(ctx, raw); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.queue.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistSubmissionsQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
