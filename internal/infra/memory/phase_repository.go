package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trail-progress-service/internal/domain"
)

// PhaseLoader fetches phase content from a backing store (e.g., document DB).
type PhaseLoader interface {
	LoadPhase(ctx context.Context, phaseID string) (domain.Phase, error)
}

// PhaseRepository caches phases with TTL to avoid repeated DB hits.
type PhaseRepository struct {
	loader PhaseLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPhase
}

type cachedPhase struct {
	phase     domain.Phase
	expiresAt time.Time
}

func NewPhaseRepository(loader PhaseLoader, ttl time.Duration) *PhaseRepository {
	return &PhaseRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPhase),
	}
}

func (r *PhaseRepository) GetPhase(ctx context.Context, phaseID string) (domain.Phase, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[phaseID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.phase, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(phaseID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[phaseID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.phase, nil
		}
		r.mu.RUnlock()

		phase, err := r.loader.LoadPhase(ctx, phaseID)
		if err != nil {
			return domain.Phase{}, err
		}

		r.mu.Lock()
		r.cache[phaseID] = cachedPhase{
			phase:     phase,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return phase, nil
	})
	if err != nil {
		return domain.Phase{}, err
	}
	return result.(domain.Phase), nil
}

func (r *PhaseRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPhaseLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticPhaseLoader struct {
	phases map[string]domain.Phase
}

func NewStaticPhaseLoader(phases map[string]domain.Phase) *StaticPhaseLoader {
	return &StaticPhaseLoader{phases: phases}
}

func (l *StaticPhaseLoader) LoadPhase(_ context.Context, phaseID string) (domain.Phase, error) {
	if phase, ok := l.phases[phaseID]; ok {
		return phase, nil
	}
	return domain.Phase{}, domain.ErrPhaseNotFound
}
