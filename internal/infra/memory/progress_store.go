package memory

import (
	"context"
	"sort"
	"sync"

	"trail-progress-service/internal/domain"
)

type progressKey struct {
	userID  string
	phaseID string
}

// ProgressStore is an in-memory implementation of app.ProgressRepository.
// A single mutex serializes every mutation, which is what makes Mutate's
// check-then-write conditional updates safe.
type ProgressStore struct {
	mu      sync.RWMutex
	records map[progressKey]domain.ProgressRecord
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{records: make(map[progressKey]domain.ProgressRecord)}
}

func (s *ProgressStore) Get(_ context.Context, userID, phaseID string) (domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[progressKey{userID, phaseID}]
	if !ok {
		return domain.ProgressRecord{}, domain.ErrProgressNotFound
	}
	return cloneRecord(rec), nil
}

func (s *ProgressStore) ListByUserTrail(_ context.Context, userID, trailID string) ([]domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProgressRecord, 0)
	for _, rec := range s.records {
		if rec.UserID == userID && rec.TrailID == trailID {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *ProgressStore) ListAll(_ context.Context) ([]domain.ProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProgressRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return out, nil
}

func (s *ProgressStore) Mutate(_ context.Context, seed domain.ProgressRecord, fn func(*domain.ProgressRecord) error) (domain.ProgressRecord, error) {
	key := progressKey{seed.UserID, seed.PhaseID}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, existed := s.records[key]
	if !existed {
		rec = seed
	}
	working := cloneRecord(rec)
	if err := fn(&working); err != nil {
		if existed {
			return cloneRecord(rec), err
		}
		return working, err
	}
	s.records[key] = working
	return cloneRecord(working), nil
}

func cloneRecord(rec domain.ProgressRecord) domain.ProgressRecord {
	out := rec
	out.Answers = append([]int(nil), rec.Answers...)
	out.AnsweredIndices = append([]int(nil), rec.AnsweredIndices...)
	return out
}

func sortRecords(records []domain.ProgressRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].UserID != records[j].UserID {
			return records[i].UserID < records[j].UserID
		}
		return records[i].PhaseID < records[j].PhaseID
	})
}
