package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// MonitorStore is the archive and counter access the dashboard needs.
type MonitorStore interface {
	DailyCounts(ctx context.Context, day string) (*model.DailyStats, error)
	ListViolations(ctx context.Context, limit, offset int) ([]model.ViolationLogEntry, int, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]model.SubmissionLogEntry, int, error)
}

// LiveStatsSource reports the sessions currently held in memory.
type LiveStatsSource interface {
	Stats() model.LiveSessionStats
}

// MonitorService orchestrates the proctor dashboard.
type MonitorService struct {
	repo MonitorStore
	live LiveStatsSource
	loc  *time.Location
	log  zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(repo MonitorStore, live LiveStatsSource, loc *time.Location, log zerolog.Logger) *MonitorService {
	if loc == nil {
		loc = time.Local
	}
	return &MonitorService{
		repo: repo,
		live: live,
		loc:  loc,
		log:  log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot combines today's counters with the live session count. Live
// stats are always available; counters are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context) *model.MonitorSnapshot {
	day := time.Now().In(s.loc).Format("2006-01-02")
	snap := &model.MonitorSnapshot{
		Today: model.DailyStats{
			Day:              day,
			ViolationCounts:  map[string]int64{},
			SubmissionCounts: map[string]int64{},
		},
		Live: s.live.Stats(),
	}

	stats, err := s.repo.DailyCounts(ctx, day)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read daily counters")
		return snap
	}
	snap.Today = *stats
	return snap
}

// ListViolations pages through the violation archive.
func (s *MonitorService) ListViolations(ctx context.Context, page, perPage int) ([]model.ViolationLogEntry, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	items, total, err := s.repo.ListViolations(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []model.ViolationLogEntry{}
	}
	return items, response.NewPagination(page, perPage, total), nil
}

// ListSubmissions pages through the submission archive.
func (s *MonitorService) ListSubmissions(ctx context.Context, page, perPage int) ([]model.SubmissionLogEntry, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	items, total, err := s.repo.ListSubmissions(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if items == nil {
		items = []model.SubmissionLogEntry{}
	}
	return items, response.NewPagination(page, perPage, total), nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
