package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"trail-progress-service/internal/domain"
)

const (
	progressKeyPrefix = "progress:record:"
	progressIndexKey  = "progress:records"
	// txAttempts bounds the optimistic retry loop on WATCH conflicts.
	txAttempts = 10
)

// ProgressStore keeps each progress record as a JSON document under its own
// key, with a set indexing every record key for the aggregation scans.
// Mutations run as WATCH/MULTI optimistic transactions, so a concurrent write
// to the same record forces a reload instead of a lost update.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) key(userID, phaseID string) string {
	return progressKeyPrefix + userID + ":" + phaseID
}

func (s *ProgressStore) Get(ctx context.Context, userID, phaseID string) (domain.ProgressRecord, error) {
	val, err := s.client.Get(ctx, s.key(userID, phaseID)).Result()
	if err == redis.Nil {
		return domain.ProgressRecord{}, domain.ErrProgressNotFound
	}
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("get progress: %w", err)
	}
	var rec domain.ProgressRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("decode progress: %w", err)
	}
	return rec, nil
}

func (s *ProgressStore) ListByUserTrail(ctx context.Context, userID, trailID string) ([]domain.ProgressRecord, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProgressRecord, 0)
	for _, rec := range all {
		if rec.UserID == userID && rec.TrailID == trailID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *ProgressStore) ListAll(ctx context.Context) ([]domain.ProgressRecord, error) {
	keys, err := s.client.SMembers(ctx, progressIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list progress keys: %w", err)
	}
	if len(keys) == 0 {
		return []domain.ProgressRecord{}, nil
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	out := make([]domain.ProgressRecord, 0, len(vals))
	for _, val := range vals {
		raw, ok := val.(string)
		if !ok {
			// Index member without a document; skip rather than fail the scan.
			continue
		}
		var rec domain.ProgressRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].PhaseID < out[j].PhaseID
	})
	return out, nil
}

func (s *ProgressStore) Mutate(ctx context.Context, seed domain.ProgressRecord, fn func(*domain.ProgressRecord) error) (domain.ProgressRecord, error) {
	key := s.key(seed.UserID, seed.PhaseID)

	var out domain.ProgressRecord
	txf := func(tx *redis.Tx) error {
		rec := seed
		val, err := tx.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			// first touch, keep the seed
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(val), &rec); err != nil {
				return fmt.Errorf("decode progress: %w", err)
			}
		}

		if ferr := fn(&rec); ferr != nil {
			out = rec
			return ferr
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, progressIndexKey, key)
			return nil
		})
		if err == nil {
			out = rec
		}
		return err
	}

	for i := 0; i < txAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return out, err
	}
	return domain.ProgressRecord{}, fmt.Errorf("mutate progress %s: too many concurrent writes", key)
}
