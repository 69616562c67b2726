package reaper

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/jobstore"
	"github.com/avatarplatform/mediator/internal/models"
)

type fakeStore struct {
	orphaned []models.GenerationJob
	updated  []string
}

func (f *fakeStore) ListOrphanedProcessing(_ context.Context, _ time.Time) ([]models.GenerationJob, error) {
	return f.orphaned, nil
}

func (f *fakeStore) Update(_ context.Context, jobID string, patch jobstore.Patch) (models.GenerationJob, error) {
	f.updated = append(f.updated, jobID)
	return models.GenerationJob{}, nil
}

func TestSweep_ReapsJobsPastTimeout(t *testing.T) {
	old := time.Now().Add(-10 * time.Minute)
	store := &fakeStore{orphaned: []models.GenerationJob{
		{ID: "stale", Quality: models.QualityFast, CreatedAt: old},
		{ID: "fresh", Quality: models.QualityFast, CreatedAt: time.Now()},
	}}
	r := New(store, zap.NewNop(), nil, 1*time.Minute, 5*time.Minute)
	r.sweep(context.Background())

	if len(store.updated) != 1 || store.updated[0] != "stale" {
		t.Errorf("expected only 'stale' to be reaped, got %v", store.updated)
	}
}

func TestSweep_HighQualityGetsLongerGrace(t *testing.T) {
	createdAt := time.Now().Add(-2 * time.Minute)
	store := &fakeStore{orphaned: []models.GenerationJob{
		{ID: "high", Quality: models.QualityHigh, CreatedAt: createdAt},
	}}
	r := New(store, zap.NewNop(), nil, 1*time.Minute, 5*time.Minute)
	r.sweep(context.Background())

	if len(store.updated) != 0 {
		t.Errorf("expected high-quality job within its 5m window to survive, got reaped: %v", store.updated)
	}
}
