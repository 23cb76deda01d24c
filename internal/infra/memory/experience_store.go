package memory

import (
	"context"
	"sync"

	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/leveling"
)

// ExperienceStore is an in-memory implementation of app.ExperienceRepository.
// Credits run under the store mutex, so concurrent credits for the same user
// are both reflected.
type ExperienceStore struct {
	mu      sync.Mutex
	records map[string]domain.ExperienceRecord
}

func NewExperienceStore() *ExperienceStore {
	return &ExperienceStore{records: make(map[string]domain.ExperienceRecord)}
}

func (s *ExperienceStore) Get(_ context.Context, userID string) (domain.ExperienceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	return rec, ok, nil
}

func (s *ExperienceStore) Put(_ context.Context, rec domain.ExperienceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec
	return nil
}

func (s *ExperienceStore) Credit(_ context.Context, userID string, amount int) (domain.ExperienceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		rec = leveling.Default(userID)
	}
	rec.ExperienceTotal += amount
	leveling.Apply(&rec)
	s.records[userID] = rec
	return rec, nil
}

func (s *ExperienceStore) BatchGet(_ context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.ExperienceRecord, len(userIDs))
	for _, id := range userIDs {
		if rec, ok := s.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}
