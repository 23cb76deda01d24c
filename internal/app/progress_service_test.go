package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/infra/memory"
	"trail-progress-service/internal/leveling"
)

func TestSubmitAnswerFirstAnswerWins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	rec, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 0, 1, "Alice")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if rec.Score != 1 || rec.AccuracyPercent != 50 {
		t.Fatalf("expected score 1 accuracy 50, got %+v", rec)
	}

	// Repeat submissions for the same index keep the first answer.
	for _, chosen := range []int{0, 2, 1} {
		rec, err = env.progress.SubmitAnswer(ctx, "u1", "phase-1", 0, chosen, "Alice")
		if err != nil {
			t.Fatalf("resubmit failed: %v", err)
		}
		if rec.AnswerAt(0) != 1 || rec.Score != 1 {
			t.Fatalf("first answer was not retained: %+v", rec)
		}
	}

	rec, err = env.progress.SubmitAnswer(ctx, "u1", "phase-1", 1, 0, "Alice")
	if err != nil {
		t.Fatalf("submit second question: %v", err)
	}
	if rec.Score != 1 || rec.AccuracyPercent != 50 {
		t.Fatalf("wrong answer must not raise the score: %+v", rec)
	}
	if len(rec.AnsweredIndices) != 2 {
		t.Fatalf("expected 2 answered indices, got %v", rec.AnsweredIndices)
	}
}

func TestSubmitAnswerScoreIsPureFunctionOfAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	phase, _ := env.phases.GetPhase(ctx, "phase-1")
	rec, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 1, 1, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	want := 0
	for _, idx := range rec.AnsweredIndices {
		if correct, ok := phase.CorrectAnswerOf(idx); ok && rec.AnswerAt(idx) == correct {
			want++
		}
	}
	if rec.Score != want {
		t.Fatalf("score %d diverged from stored answers (want %d)", rec.Score, want)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.progress.SubmitAnswer(ctx, "u1", "phase-unknown", 0, 0, ""); !errors.Is(err, domain.ErrPhaseNotFound) {
		t.Fatalf("expected phase not found, got %v", err)
	}
	if _, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", -1, 0, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative index, got %v", err)
	}
	if _, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 5, 0, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for out-of-range question, got %v", err)
	}
	if _, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 0, 9, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for out-of-range alternative, got %v", err)
	}
	if _, err := env.progress.SubmitAnswer(ctx, "", "phase-1", 0, 0, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty user, got %v", err)
	}
}

func TestFinalizeRecomputesFromStoredAnswers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 0, 1, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The reported score is advisory; stored answers win.
	result, err := env.progress.Finalize(ctx, "u1", "phase-1", 0, 2, "")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !result.Record.Completed || result.Record.Score != 1 || result.Record.AccuracyPercent != 50 {
		t.Fatalf("unexpected finalized record: %+v", result.Record)
	}
	if result.ExperienceAwarded != 250 {
		t.Fatalf("expected 250 xp for 50%% accuracy, got %d", result.ExperienceAwarded)
	}
	if env.gateway.creditedTo("u1") != 250 {
		t.Fatalf("expected gateway credit of 250, got %d", env.gateway.creditedTo("u1"))
	}
}

func TestFinalizeWithoutRecordTrustsReportedScore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	result, err := env.progress.Finalize(ctx, "u2", "phase-1", 8, 10, "Bob")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	rec := result.Record
	if !rec.Completed || rec.Score != 8 || rec.AccuracyPercent != 80 || rec.ExperienceAwarded != 400 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if result.Leveling.ExperienceTotal != 400 || result.Leveling.Level != 3 {
		t.Fatalf("unexpected leveling snapshot: %+v", result.Leveling)
	}
}

func TestFinalizeIsSingleShot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	first, err := env.progress.Finalize(ctx, "u1", "phase-1", 2, 2, "")
	if err != nil {
		t.Fatalf("first finalize: %v", err)
	}

	second, err := env.progress.Finalize(ctx, "u1", "phase-1", 0, 2, "")
	if !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected already completed, got %v", err)
	}
	if second.Record.Score != first.Record.Score ||
		second.Record.ExperienceAwarded != first.Record.ExperienceAwarded ||
		!second.Record.Completed {
		t.Fatalf("record mutated by rejected finalize: %+v", second.Record)
	}
	if env.gateway.creditedTo("u1") != first.ExperienceAwarded {
		t.Fatalf("expected a single credit, got %d", env.gateway.creditedTo("u1"))
	}
}

func TestFinalizeDegradesWhenLevelingDown(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	env.gateway.failCredit = true

	result, err := env.progress.Finalize(ctx, "u1", "phase-1", 8, 10, "")
	if err != nil {
		t.Fatalf("finalize must not fail on leveling outage: %v", err)
	}
	if !result.Record.Completed || result.Record.AccuracyPercent != 80 || result.ExperienceAwarded != 400 {
		t.Fatalf("unexpected record in degraded mode: %+v", result.Record)
	}
	if !result.LevelingDegraded {
		t.Fatalf("expected degraded flag")
	}
	want := leveling.Default("u1")
	if result.Leveling != want {
		t.Fatalf("expected default snapshot %+v, got %+v", want, result.Leveling)
	}
}

func TestSubmitAnswerAfterCompletionIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.progress.Finalize(ctx, "u1", "phase-1", 1, 2, ""); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	rec, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 0, 1, "")
	if err != nil {
		t.Fatalf("submit after completion: %v", err)
	}
	if len(rec.AnsweredIndices) != 0 || !rec.Completed {
		t.Fatalf("completed record must not grow: %+v", rec)
	}
}

func TestGetTrailProgress(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	if _, err := env.progress.SubmitAnswer(ctx, "u1", "phase-1", 0, 1, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.progress.Finalize(ctx, "u1", "phase-2", 1, 1, ""); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	phases, err := env.progress.GetTrailProgress(ctx, "u1", "trail-1")
	if err != nil {
		t.Fatalf("trail progress: %v", err)
	}
	if len(phases) != 2 || phases["phase-1"] || !phases["phase-2"] {
		t.Fatalf("unexpected trail progress: %+v", phases)
	}
}

func TestGetProgressNotFound(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	if _, err := env.progress.GetProgress(ctx, "nobody", "phase-1"); !errors.Is(err, domain.ErrProgressNotFound) {
		t.Fatalf("expected progress not found, got %v", err)
	}
}

// --- test fixtures shared across the app tests ---

type testEnv struct {
	phases   app.PhaseRepository
	store    *memory.ProgressStore
	gateway  *stubGateway
	progress *app.ProgressService
	rankings *app.RankingService
}

func newTestEnv() *testEnv {
	phases := memory.NewPhaseRepository(memory.NewStaticPhaseLoader(testPhases()), 5*time.Minute)
	store := memory.NewProgressStore()
	gw := &stubGateway{}
	env := &testEnv{
		phases:   phases,
		store:    store,
		gateway:  gw,
		progress: app.NewProgressService(phases, store, gw, nil),
		rankings: app.NewRankingService(store, gw),
	}
	return env
}

func testPhases() map[string]domain.Phase {
	return map[string]domain.Phase{
		"phase-1": {
			ID:      "phase-1",
			TrailID: "trail-1",
			Questions: []domain.Question{
				{Statement: "Pick the right one", Alternatives: []string{"wrong", "right", "also wrong"}, Correct: 1},
				{Statement: "And again", Alternatives: []string{"no", "no", "yes"}, Correct: 2},
			},
		},
		"phase-2": {
			ID:      "phase-2",
			TrailID: "trail-1",
			Questions: []domain.Question{
				{Statement: "Single question", Alternatives: []string{"yes", "no"}, Correct: 0},
			},
		},
	}
}

// stubGateway implements app.LevelingGateway with togglable outages.
type stubGateway struct {
	mu         sync.Mutex
	failCredit bool
	failBatch  bool
	credits    map[string]int
	// batch seeds BatchRead responses keyed by user id.
	batch map[string]domain.ExperienceRecord
}

func (g *stubGateway) Credit(_ context.Context, userID string, amount int) (domain.ExperienceRecord, error) {
	if g.failCredit {
		return domain.ExperienceRecord{}, domain.ErrLevelingUnavailable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.credits == nil {
		g.credits = make(map[string]int)
	}
	g.credits[userID] += amount
	rec := domain.ExperienceRecord{UserID: userID, ExperienceTotal: g.credits[userID]}
	leveling.Apply(&rec)
	return rec, nil
}

func (g *stubGateway) Read(_ context.Context, userID string) (domain.ExperienceRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rec, ok := g.batch[userID]; ok {
		return rec, nil
	}
	return leveling.Default(userID), nil
}

func (g *stubGateway) BatchRead(_ context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error) {
	if g.failBatch {
		return nil, domain.ErrLevelingUnavailable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]domain.ExperienceRecord)
	for _, id := range userIDs {
		if rec, ok := g.batch[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (g *stubGateway) creditedTo(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.credits[userID]
}
