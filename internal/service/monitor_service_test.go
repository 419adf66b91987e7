package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
)

type fakeMonitorStore struct {
	counts     *model.DailyStats
	countsErr  error
	violations []model.ViolationLogEntry
	lastLimit  int
	lastOffset int
}

func (f *fakeMonitorStore) DailyCounts(ctx context.Context, day string) (*model.DailyStats, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	c := *f.counts
	c.Day = day
	return &c, nil
}

func (f *fakeMonitorStore) ListViolations(ctx context.Context, limit, offset int) ([]model.ViolationLogEntry, int, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return f.violations, 45, nil
}

func (f *fakeMonitorStore) ListSubmissions(ctx context.Context, limit, offset int) ([]model.SubmissionLogEntry, int, error) {
	f.lastLimit, f.lastOffset = limit, offset
	return nil, 0, nil
}

type fixedLive struct{ stats model.LiveSessionStats }

func (f fixedLive) Stats() model.LiveSessionStats { return f.stats }

func TestMonitorSnapshot(t *testing.T) {
	store := &fakeMonitorStore{counts: &model.DailyStats{
		ViolationCounts:  map[string]int64{"paste_attempted": 4},
		SubmissionCounts: map[string]int64{"submitted": 2},
	}}
	live := fixedLive{model.LiveSessionStats{Total: 3, ByStage: map[model.Stage]int{model.StageExam: 3}}}
	svc := NewMonitorService(store, live, nil, zerolog.Nop())

	snap := svc.Snapshot(context.Background())
	if snap.Today.ViolationCounts["paste_attempted"] != 4 || snap.Today.SubmissionCounts["submitted"] != 2 {
		t.Errorf("today = %+v", snap.Today)
	}
	if snap.Live.Total != 3 {
		t.Errorf("live = %+v", snap.Live)
	}
	if snap.Today.Day == "" {
		t.Error("day should be set")
	}
}

func TestMonitorSnapshotCountersBestEffort(t *testing.T) {
	store := &fakeMonitorStore{countsErr: errors.New("redis down")}
	live := fixedLive{model.LiveSessionStats{Total: 1}}
	svc := NewMonitorService(store, live, nil, zerolog.Nop())

	snap := svc.Snapshot(context.Background())
	if snap.Live.Total != 1 {
		t.Errorf("live stats must survive counter failures: %+v", snap.Live)
	}
	if snap.Today.ViolationCounts == nil {
		t.Error("counts map should be empty, not nil")
	}
}

func TestMonitorListPagination(t *testing.T) {
	store := &fakeMonitorStore{}
	svc := NewMonitorService(store, fixedLive{}, nil, zerolog.Nop())

	items, p, err := svc.ListViolations(context.Background(), 3, 20)
	mustNotFail(t, err)
	if items == nil {
		t.Error("items should be an empty slice, not nil")
	}
	if store.lastLimit != 20 || store.lastOffset != 40 {
		t.Errorf("limit/offset = %d/%d", store.lastLimit, store.lastOffset)
	}
	if p.Page != 3 || p.PerPage != 20 || p.TotalItems != 45 || p.TotalPages != 3 {
		t.Errorf("pagination = %+v", p)
	}

	_, p, err = svc.ListSubmissions(context.Background(), 0, 1000)
	mustNotFail(t, err)
	if p.Page != 1 || p.PerPage != 100 {
		t.Errorf("normalized pagination = %+v", p)
	}
}
