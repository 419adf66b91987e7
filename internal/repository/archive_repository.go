package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ArchiveRepository writes violation and submission records drained from
// the Redis queues.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository creates a new ArchiveRepository.
func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

var violationColumns = []string{"session_id", "kind", "key_name", "candidate", "observed_at"}

func violationRow(rec model.ViolationRecord) ([]interface{}, error) {
	sessionID, err := uuid.Parse(rec.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session id %q: %w", rec.SessionID, err)
	}
	return []interface{}{sessionID, string(rec.Kind), rec.Key, rec.Candidate, rec.ObservedAt}, nil
}

// CopyViolations bulk-loads a batch with COPY. Any bad row fails the whole
// batch so the caller can fall back to row-by-row inserts.
func (r *ArchiveRepository) CopyViolations(ctx context.Context, batch []model.ViolationRecord) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, rec := range batch {
		row, err := violationRow(rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"integrity_violations"},
		violationColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

// InsertViolation stores one record. A malformed session id is reported as
// ErrInvalidRecord: retrying it can never succeed.
func (r *ArchiveRepository) InsertViolation(ctx context.Context, rec model.ViolationRecord) error {
	row, err := violationRow(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO integrity_violations (session_id, kind, key_name, candidate, observed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		row...,
	)
	return err
}

// InsertSubmission stores one submission attempt.
func (r *ArchiveRepository) InsertSubmission(ctx context.Context, rec model.SubmissionRecord) error {
	sessionID, err := uuid.Parse(rec.SessionID)
	if err != nil {
		return fmt.Errorf("%w: session id %q", ErrInvalidRecord, rec.SessionID)
	}

	var errText *string
	if rec.Error != "" {
		errText = &rec.Error
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO submission_log
		   (session_id, candidate_name, candidate_email, github_handle, trigger_source,
		    outcome, tab_switched, subject, message, error, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sessionID, rec.Candidate.Name, rec.Candidate.Email, rec.Candidate.GitHubHandle, string(rec.Trigger),
		string(rec.Outcome), rec.TabSwitched, rec.Subject, rec.Message, errText, rec.AttemptedAt,
	)
	return err
}
