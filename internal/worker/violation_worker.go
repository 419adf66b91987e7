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

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
)

// ViolationStore archives integrity violations.
type ViolationStore interface {
	CopyViolations(ctx context.Context, batch []model.ViolationRecord) error
	InsertViolation(ctx context.Context, rec model.ViolationRecord) error
}

// ViolationWorker drains persist_violations_queue into PostgreSQL in batches.
type ViolationWorker struct {
	queue Queue
	store ViolationStore
	log   zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
	retryDelay   time.Duration
}

func NewViolationWorker(queue Queue, store ViolationStore, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		queue:        queue,
		store:        store,
		log:          log.With().Str("component", "violation_worker").Logger(),
		batchSize:    BatchSize,
		batchTimeout: BatchTimeout,
		pollTimeout:  PollTimeout,
		retryDelay:   RetryDelay,
	}
}

// Start runs until ctx is cancelled, then flushes what it holds. Call in a
// goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]model.ViolationRecord, 0, w.batchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age
		if len(buffer) > 0 && (len(buffer) >= w.batchSize || time.Since(lastFlushTime) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlushTime = time.Now()
		}

		// 2. Graceful shutdown
		if ctx.Err() != nil {
			w.shutdown(buffer)
			return
		}

		// 3. Fetch. BLPop returns immediately if data exists.
		result, err := w.queue.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, backing off")
			sleep(ctx, ErrorDelay)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var rec model.ViolationRecord
		if err := json.Unmarshal([]byte(result[1]), &rec); err != nil {
			// Malformed JSON can never be retried.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed violation")
			continue
		}
		buffer = append(buffer, rec)
	}
}

// flushSafe tries COPY, then row-by-row inserts, then requeues what is left.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []model.ViolationRecord) {
	err := w.store.CopyViolations(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Violations archived")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk copy failed, attempting row-by-row recovery")

	var requeue []model.ViolationRecord
	for _, rec := range batch {
		err := w.store.InsertViolation(ctx, rec)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrInvalidRecord):
			w.log.Error().Err(err).Str("session_id", rec.SessionID).Msg("Dropping invalid violation")
		default:
			w.log.Error().Err(err).Str("session_id", rec.SessionID).Msg("Insert failed, requeueing")
			requeue = append(requeue, rec)
		}
	}

	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []model.ViolationRecord) {
	values := make([]interface{}, 0, len(items))
	for _, rec := range items {
		data, _ := json.Marshal(rec)
		values = append(values, data)
	}

	// Shutdown may have cancelled ctx; the push must still happen.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.queue.RPush(pushCtx, config.WorkerKey.PersistViolationsQueue, values...).Err(); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue violations. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed violations")
	// Avoid thrashing while the DB is down.
	sleep(ctx, w.retryDelay)
}

func (w *ViolationWorker) shutdown(buffer []model.ViolationRecord) {
	w.log.Info().Int("pending", len(buffer)).Msg("ViolationWorker stopping, flushing buffer")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
