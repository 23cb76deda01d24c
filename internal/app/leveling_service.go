package app

import (
	"context"

	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/leveling"
)

// ExperienceRepository abstracts how per-user experience ledgers are stored.
type ExperienceRepository interface {
	// Get returns the stored record and whether one exists.
	Get(ctx context.Context, userID string) (domain.ExperienceRecord, bool, error)
	Put(ctx context.Context, rec domain.ExperienceRecord) error
	// Credit atomically adds amount to the user's total (creating the ledger
	// at zero when absent), recomputes the cached leveling fields from the new
	// total and persists them. Concurrent credits must both be reflected.
	Credit(ctx context.Context, userID string, amount int) (domain.ExperienceRecord, error)
	// BatchGet returns stored records keyed by user id; users with no ledger
	// are simply absent from the map.
	BatchGet(ctx context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error)
}

// LevelingService owns the per-user experience ledger and the level curve.
// It runs behind its own service boundary; the progress side only reaches it
// through a LevelingGateway.
type LevelingService struct {
	ledger ExperienceRepository
}

func NewLevelingService(ledger ExperienceRepository) *LevelingService {
	return &LevelingService{ledger: ledger}
}

// CreditExperience adds amount to the user's total and returns the updated
// record with its leveling fields recomputed.
func (s *LevelingService) CreditExperience(ctx context.Context, userID string, amount int) (domain.ExperienceRecord, error) {
	if userID == "" || amount < 0 {
		return domain.ExperienceRecord{}, domain.ErrInvalidInput
	}
	return s.ledger.Credit(ctx, userID, amount)
}

// ReadExperience returns the user's ledger, creating it lazily at zero. A
// stale derived-field cache is recomputed and persisted before returning.
func (s *LevelingService) ReadExperience(ctx context.Context, userID string) (domain.ExperienceRecord, error) {
	if userID == "" {
		return domain.ExperienceRecord{}, domain.ErrInvalidInput
	}
	rec, ok, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return domain.ExperienceRecord{}, err
	}
	if !ok {
		rec = leveling.Default(userID)
		if err := s.ledger.Put(ctx, rec); err != nil {
			return domain.ExperienceRecord{}, err
		}
		return rec, nil
	}
	if !leveling.Consistent(rec) {
		leveling.Apply(&rec)
		if err := s.ledger.Put(ctx, rec); err != nil {
			return domain.ExperienceRecord{}, err
		}
	}
	return rec, nil
}

// BatchReadExperience returns a record per requested user. Users with no
// stored ledger get a synthesized default that is not persisted; unlike
// ReadExperience, a batch read never creates ledgers.
func (s *LevelingService) BatchReadExperience(ctx context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error) {
	stored, err := s.ledger.BatchGet(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.ExperienceRecord, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		rec, ok := stored[id]
		if !ok {
			out[id] = leveling.Default(id)
			continue
		}
		if !leveling.Consistent(rec) {
			leveling.Apply(&rec)
		}
		out[id] = rec
	}
	return out, nil
}

// PercentToExperience mirrors the finalize award formula for pre-flight
// display, with no side effects.
func (s *LevelingService) PercentToExperience(percent int) int {
	return leveling.PercentToExperience(percent)
}
