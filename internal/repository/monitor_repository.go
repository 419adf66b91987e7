package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ViolationKinds lists every kind counted on the proctor dashboard.
var ViolationKinds = []model.ViolationKind{
	model.ViolationVisibilityLost,
	model.ViolationVisibilityRestored,
	model.ViolationPaste,
	model.ViolationModifierChord,
	model.ViolationContextMenu,
	model.ViolationUnload,
}

// SubmitOutcomes lists every outcome counted on the proctor dashboard.
var SubmitOutcomes = []model.SubmitOutcome{
	model.SubmitOutcomeSubmitted,
	model.SubmitOutcomeFailed,
}

// MonitorRepository provides data access for the proctor dashboard.
// It combines Redis (today's live counters) and PostgreSQL (the archive).
type MonitorRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool, rdb *redis.Client) *MonitorRepository {
	return &MonitorRepository{pool: pool, rdb: rdb}
}

// DailyCounts reads the per-kind and per-outcome counters for day (YYYY-MM-DD).
func (r *MonitorRepository) DailyCounts(ctx context.Context, day string) (*model.DailyStats, error) {
	keys := make([]string, 0, len(ViolationKinds)+len(SubmitOutcomes))
	for _, k := range ViolationKinds {
		keys = append(keys, config.CacheKey.DailyViolationCounterKey(day, string(k)))
	}
	for _, o := range SubmitOutcomes {
		keys = append(keys, config.CacheKey.DailySubmissionCounterKey(day, string(o)))
	}

	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read daily counters: %w", err)
	}

	stats := &model.DailyStats{
		Day:              day,
		ViolationCounts:  make(map[string]int64, len(ViolationKinds)),
		SubmissionCounts: make(map[string]int64, len(SubmitOutcomes)),
	}
	for i, k := range ViolationKinds {
		stats.ViolationCounts[string(k)] = parseCounter(vals[i])
	}
	for i, o := range SubmitOutcomes {
		stats.SubmissionCounts[string(o)] = parseCounter(vals[len(ViolationKinds)+i])
	}
	return stats, nil
}

func parseCounter(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// ListViolations returns archived violations, newest first.
func (r *MonitorRepository) ListViolations(ctx context.Context, limit, offset int) ([]model.ViolationLogEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM integrity_violations`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id::text, kind, key_name, candidate, observed_at
		 FROM integrity_violations
		 ORDER BY observed_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.ViolationLogEntry
	for rows.Next() {
		var e model.ViolationLogEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &e.Key, &e.Candidate, &e.ObservedAt); err != nil {
			return nil, 0, err
		}
		e.Kind = model.ViolationKind(kind)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// ListSubmissions returns archived submission attempts, newest first.
func (r *MonitorRepository) ListSubmissions(ctx context.Context, limit, offset int) ([]model.SubmissionLogEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM submission_log`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id::text, candidate_name, candidate_email, github_handle,
		        trigger_source, outcome, tab_switched, subject, message, COALESCE(error, ''), attempted_at
		 FROM submission_log
		 ORDER BY attempted_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.SubmissionLogEntry
	for rows.Next() {
		var e model.SubmissionLogEntry
		var trigger, outcome string
		if err := rows.Scan(
			&e.ID, &e.SessionID, &e.Candidate.Name, &e.Candidate.Email, &e.Candidate.GitHubHandle,
			&trigger, &outcome, &e.TabSwitched, &e.Subject, &e.Message, &e.Error, &e.AttemptedAt,
		); err != nil {
			return nil, 0, err
		}
		e.Trigger = model.SubmitTrigger(trigger)
		e.Outcome = model.SubmitOutcome(outcome)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// QueueLengths reads the depth of each archive queue in one pipeline.
func (r *MonitorRepository) QueueLengths(ctx context.Context, queues ...string) (map[string]int64, error) {
	pipe := r.rdb.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(queues))
	for _, q := range queues {
		cmds[q] = pipe.LLen(ctx, q)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read queue lengths: %w", err)
	}

	out := make(map[string]int64, len(queues))
	for q, cmd := range cmds {
		out[q] = cmd.Val()
	}
	return out, nil
}
