package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisConvPrefix = "presence:conv:"
	redisIndexKey   = "presence:conversations"
)

// RedisStore keeps one hash per conversation (operator id -> JSON record)
// plus a set indexing conversations with presence, so every node sees the
// same collaborators.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a store whose hashes expire after ttl without writes.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func convKey(conversationID uint) string {
	return redisConvPrefix + strconv.FormatUint(uint64(conversationID), 10)
}

func opField(operatorID uint) string {
	return strconv.FormatUint(uint64(operatorID), 10)
}

func (s *RedisStore) Get(ctx context.Context, conversationID, operatorID uint) (*Record, error) {
	raw, err := s.rdb.HGet(ctx, convKey(conversationID), opField(operatorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode presence record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Upsert(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := convKey(rec.ConversationID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, opField(rec.OperatorID), raw)
	pipe.Expire(ctx, key, s.ttl)
	pipe.SAdd(ctx, redisIndexKey, rec.ConversationID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Remove(ctx context.Context, conversationID, operatorID uint) (bool, error) {
	n, err := s.rdb.HDel(ctx, convKey(conversationID), opField(operatorID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) List(ctx context.Context, conversationID uint) ([]Record, error) {
	fields, err := s.rdb.HGetAll(ctx, convKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(fields))
	for _, raw := range fields {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) Conversations(ctx context.Context) ([]uint, error) {
	members, err := s.rdb.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (s *RedisStore) RemoveStale(ctx context.Context, conversationID uint, cutoff time.Time) ([]Record, error) {
	recs, err := s.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	var removed []Record
	var fields []string
	for _, rec := range recs {
		if rec.LastSeen.Before(cutoff) {
			removed = append(removed, rec)
			fields = append(fields, opField(rec.OperatorID))
		}
	}
	if len(fields) > 0 {
		if err := s.rdb.HDel(ctx, convKey(conversationID), fields...).Err(); err != nil {
			return nil, err
		}
	}
	if len(recs) == len(removed) {
		// hash is gone (or expired on its own): drop it from the index
		if err := s.rdb.SRem(ctx, redisIndexKey, conversationID).Err(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
