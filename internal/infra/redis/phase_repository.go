package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trail-progress-service/internal/domain"
)

// PhaseLoader fetches phase content from a backing store (e.g., document DB).
type PhaseLoader interface {
	LoadPhase(ctx context.Context, phaseID string) (domain.Phase, error)
}

// PhaseRepository caches whole phase documents in Redis (JSON string per
// phase) and falls back to a loader on cache miss. Correct answers are
// normalized at decode time, so cached documents already carry canonical
// indices.
type PhaseRepository struct {
	client *redis.Client
	loader PhaseLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPhaseRepository(client *redis.Client, loader PhaseLoader, ttl time.Duration) *PhaseRepository {
	return &PhaseRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PhaseRepository) GetPhase(ctx context.Context, phaseID string) (domain.Phase, error) {
	key := r.phaseKey(phaseID)

	if phase, ok := r.cached(ctx, key); ok {
		return phase, nil
	}

	result, err, _ := r.sf.Do(phaseID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if phase, ok := r.cached(ctx, key); ok {
			return phase, nil
		}

		phase, err := r.loader.LoadPhase(ctx, phaseID)
		if err != nil {
			return domain.Phase{}, err
		}

		if data, err := json.Marshal(phase); err == nil {
			// best-effort cache fill
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return phase, nil
	})
	if err != nil {
		return domain.Phase{}, err
	}
	return result.(domain.Phase), nil
}

func (r *PhaseRepository) cached(ctx context.Context, key string) (domain.Phase, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return domain.Phase{}, false
	}
	var phase domain.Phase
	if err := json.Unmarshal([]byte(val), &phase); err != nil {
		return domain.Phase{}, false
	}
	return phase, true
}

func (r *PhaseRepository) phaseKey(phaseID string) string {
	return fmt.Sprintf("phase:%s:content", phaseID)
}

func (r *PhaseRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
