package app_test

import (
	"context"
	"errors"
	"testing"

	"trail-progress-service/internal/app"
	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/infra/memory"
)

func TestCreditExperienceAccumulates(t *testing.T) {
	ctx := context.Background()
	svc := app.NewLevelingService(memory.NewExperienceStore())

	rec, err := svc.CreditExperience(ctx, "u1", 250)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if rec.ExperienceTotal != 250 || rec.Level != 2 || rec.ExperienceInLevel != 150 {
		t.Fatalf("unexpected record after first credit: %+v", rec)
	}

	rec, err = svc.CreditExperience(ctx, "u1", 100)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if rec.ExperienceTotal != 350 || rec.Level != 3 || rec.ExperienceInLevel != 40 {
		t.Fatalf("unexpected record after second credit: %+v", rec)
	}
}

func TestCreditExperienceRejectsNegative(t *testing.T) {
	svc := app.NewLevelingService(memory.NewExperienceStore())
	if _, err := svc.CreditExperience(context.Background(), "u1", -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReadExperienceCreatesLazily(t *testing.T) {
	ctx := context.Background()
	store := memory.NewExperienceStore()
	svc := app.NewLevelingService(store)

	rec, err := svc.ReadExperience(ctx, "newcomer")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.ExperienceTotal != 0 || rec.Level != 1 || rec.ExperienceToNextLevel != 100 {
		t.Fatalf("unexpected default record: %+v", rec)
	}

	// The first read persists the ledger.
	if _, ok, _ := store.Get(ctx, "newcomer"); !ok {
		t.Fatalf("expected ledger to be persisted by read")
	}
}

func TestReadExperienceHealsStaleCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewExperienceStore()
	svc := app.NewLevelingService(store)

	// Derived fields deliberately inconsistent with the total.
	stale := domain.ExperienceRecord{
		UserID:                "u1",
		ExperienceTotal:       250,
		Level:                 1,
		ExperienceInLevel:     250,
		ExperienceToNextLevel: 100,
	}
	if err := store.Put(ctx, stale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec, err := svc.ReadExperience(ctx, "u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Level != 2 || rec.ExperienceInLevel != 150 || rec.ExperienceAtLevelStart != 100 {
		t.Fatalf("expected healed record, got %+v", rec)
	}
	healed, ok, _ := store.Get(ctx, "u1")
	if !ok || healed.Level != 2 {
		t.Fatalf("healed record was not persisted: %+v", healed)
	}
}

func TestBatchReadSynthesizesWithoutPersisting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewExperienceStore()
	svc := app.NewLevelingService(store)

	if _, err := svc.CreditExperience(ctx, "stored", 500); err != nil {
		t.Fatalf("credit: %v", err)
	}

	records, err := svc.BatchReadExperience(ctx, []string{"stored", "ghost"})
	if err != nil {
		t.Fatalf("batch read: %v", err)
	}
	if records["stored"].ExperienceTotal != 500 {
		t.Fatalf("unexpected stored record: %+v", records["stored"])
	}
	if records["ghost"].Level != 1 || records["ghost"].ExperienceTotal != 0 {
		t.Fatalf("expected synthesized default, got %+v", records["ghost"])
	}
	// Unlike ReadExperience, the batch path never creates ledgers.
	if _, ok, _ := store.Get(ctx, "ghost"); ok {
		t.Fatalf("batch read must not persist defaults")
	}
}

func TestPercentToExperienceBoundaries(t *testing.T) {
	svc := app.NewLevelingService(memory.NewExperienceStore())
	for percent, want := range map[int]int{0: 0, 80: 400, 100: 500} {
		if got := svc.PercentToExperience(percent); got != want {
			t.Fatalf("PercentToExperience(%d) = %d, want %d", percent, got, want)
		}
	}
}
