package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"trail-progress-service/internal/domain"
)

func TestPhaseRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		PhaseLoader: NewStaticPhaseLoader(map[string]domain.Phase{
			"phase-1": samplePhase(),
		}),
	}
	repo := NewPhaseRepository(loader, time.Minute)

	if _, err := repo.GetPhase(context.Background(), "phase-1"); err != nil {
		t.Fatalf("get phase: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetPhase(context.Background(), "phase-1"); err != nil {
		t.Fatalf("get phase 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPhaseRepositoryNotFound(t *testing.T) {
	repo := NewPhaseRepository(NewStaticPhaseLoader(nil), time.Minute)
	if _, err := repo.GetPhase(context.Background(), "missing"); !errors.Is(err, domain.ErrPhaseNotFound) {
		t.Fatalf("expected phase not found, got %v", err)
	}
}

type countingLoader struct {
	PhaseLoader
	calls int
}

func (l *countingLoader) LoadPhase(ctx context.Context, phaseID string) (domain.Phase, error) {
	l.calls++
	return l.PhaseLoader.LoadPhase(ctx, phaseID)
}

func samplePhase() domain.Phase {
	return domain.Phase{
		ID:      "phase-1",
		TrailID: "trail-1",
		Questions: []domain.Question{
			{
				Statement:    "What is 2 + 2?",
				Alternatives: []string{"3", "4", "5"},
				Correct:      1,
			},
		},
	}
}
