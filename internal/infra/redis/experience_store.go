package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"trail-progress-service/internal/domain"
	"trail-progress-service/internal/leveling"
)

const experienceKeyPrefix = "xp:user:"

// ExperienceStore keeps one hash per user. The total lives in its own field
// and is only ever moved with HINCRBY, so concurrent credits are both
// reflected; the derived leveling fields are a cache rewritten from the
// post-increment total.
type ExperienceStore struct {
	client *redis.Client
}

func NewExperienceStore(client *redis.Client) *ExperienceStore {
	return &ExperienceStore{client: client}
}

func (s *ExperienceStore) key(userID string) string {
	return experienceKeyPrefix + userID
}

func (s *ExperienceStore) Get(ctx context.Context, userID string) (domain.ExperienceRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.ExperienceRecord{}, false, fmt.Errorf("get experience: %w", err)
	}
	if len(fields) == 0 {
		return domain.ExperienceRecord{}, false, nil
	}
	return recordFromFields(userID, fields), true, nil
}

func (s *ExperienceStore) Put(ctx context.Context, rec domain.ExperienceRecord) error {
	if err := s.client.HSet(ctx, s.key(rec.UserID), fieldsFromRecord(rec)).Err(); err != nil {
		return fmt.Errorf("put experience: %w", err)
	}
	return nil
}

func (s *ExperienceStore) Credit(ctx context.Context, userID string, amount int) (domain.ExperienceRecord, error) {
	key := s.key(userID)
	total, err := s.client.HIncrBy(ctx, key, "total", int64(amount)).Result()
	if err != nil {
		return domain.ExperienceRecord{}, fmt.Errorf("credit experience: %w", err)
	}

	rec := domain.ExperienceRecord{UserID: userID, ExperienceTotal: int(total)}
	leveling.Apply(&rec)
	derived := fieldsFromRecord(rec)
	delete(derived, "total") // HINCRBY already owns it
	if err := s.client.HSet(ctx, key, derived).Err(); err != nil {
		return domain.ExperienceRecord{}, fmt.Errorf("cache leveling fields: %w", err)
	}
	return rec, nil
}

func (s *ExperienceStore) BatchGet(ctx context.Context, userIDs []string) (map[string]domain.ExperienceRecord, error) {
	if len(userIDs) == 0 {
		return map[string]domain.ExperienceRecord{}, nil
	}
	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("batch get experience: %w", err)
	}
	out := make(map[string]domain.ExperienceRecord, len(userIDs))
	for id, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		out[id] = recordFromFields(id, fields)
	}
	return out, nil
}

func fieldsFromRecord(rec domain.ExperienceRecord) map[string]interface{} {
	return map[string]interface{}{
		"total":        rec.ExperienceTotal,
		"level":        rec.Level,
		"inLevel":      rec.ExperienceInLevel,
		"toNextLevel":  rec.ExperienceToNextLevel,
		"atLevelStart": rec.ExperienceAtLevelStart,
	}
}

func recordFromFields(userID string, fields map[string]string) domain.ExperienceRecord {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(fields[key])
		return n
	}
	return domain.ExperienceRecord{
		UserID:                 userID,
		ExperienceTotal:        atoi("total"),
		Level:                  atoi("level"),
		ExperienceInLevel:      atoi("inLevel"),
		ExperienceToNextLevel:  atoi("toNextLevel"),
		ExperienceAtLevelStart: atoi("atLevelStart"),
	}
}
