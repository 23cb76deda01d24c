package memory

import (
	"context"
	"sync"
	"testing"
)

func TestExperienceStoreCreditComputesLeveling(t *testing.T) {
	ctx := context.Background()
	store := NewExperienceStore()

	rec, err := store.Credit(ctx, "u1", 120)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if rec.ExperienceTotal != 120 || rec.Level != 2 || rec.ExperienceInLevel != 20 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestExperienceStoreConcurrentCredits(t *testing.T) {
	ctx := context.Background()
	store := NewExperienceStore()

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := store.Credit(ctx, "u1", 10); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, ok, err := store.Get(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if rec.ExperienceTotal != workers*10 {
		t.Fatalf("lost credits: total=%d want %d", rec.ExperienceTotal, workers*10)
	}
	if rec.Level != 3 || rec.ExperienceInLevel != 190 {
		t.Fatalf("derived fields inconsistent with total: %+v", rec)
	}
}

func TestExperienceStoreBatchGetSkipsMissing(t *testing.T) {
	ctx := context.Background()
	store := NewExperienceStore()

	if _, err := store.Credit(ctx, "present", 50); err != nil {
		t.Fatalf("credit: %v", err)
	}

	records, err := store.BatchGet(ctx, []string{"present", "absent"})
	if err != nil {
		t.Fatalf("batch get: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected only stored users, got %+v", records)
	}
	if records["present"].ExperienceTotal != 50 {
		t.Fatalf("unexpected record: %+v", records["present"])
	}
}
