package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a meta hash and a turn list per owner.
//
//	repose:conversation:{owner}:meta   created_at, updated_at (unix nanos)
//	repose:conversation:{owner}:turns  JSON-encoded turns, oldest first
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// Insert and append run as scripts so the existence check and the write are atomic.
var (
	redisInsertScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], 'created_at', ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
redis.call('DEL', KEYS[2])
for i = 3, #ARGV do
	redis.call('RPUSH', KEYS[2], ARGV[i])
end
return 1
`)
	redisAppendScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return 1
`)
)

func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, ""), nil
}

func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	if strings.TrimSpace(prefix) == "" {
		prefix = "repose:conversation:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) keys(ownerID string) (meta, turns string) {
	// Hash tag keeps both keys in one cluster slot.
	base := s.prefix + "{" + ownerID + "}"
	return base + ":meta", base + ":turns"
}

func (s *RedisStore) FindByOwner(ctx context.Context, ownerID string) (Conversation, error) {
	metaKey, turnsKey := s.keys(ownerID)

	var (
		metaCmd  *redis.MapStringStringCmd
		turnsCmd *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		metaCmd = p.HGetAll(ctx, metaKey)
		turnsCmd = p.LRange(ctx, turnsKey, 0, -1)
		return nil
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("read conversation: %w", err)
	}
	meta := metaCmd.Val()
	if len(meta) == 0 {
		return Conversation{}, ErrNotFound
	}

	conv := Conversation{OwnerID: ownerID, Turns: []Turn{}}
	if conv.CreatedAt, err = parseNanos(meta["created_at"]); err != nil {
		return Conversation{}, err
	}
	if conv.UpdatedAt, err = parseNanos(meta["updated_at"]); err != nil {
		return Conversation{}, err
	}
	for _, raw := range turnsCmd.Val() {
		var t Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return Conversation{}, fmt.Errorf("decode turn: %w", err)
		}
		t.Timestamp = t.Timestamp.UTC()
		conv.Turns = append(conv.Turns, t)
	}
	return conv, nil
}

func (s *RedisStore) Insert(ctx context.Context, conv Conversation) error {
	metaKey, turnsKey := s.keys(conv.OwnerID)
	args := []any{
		strconv.FormatInt(conv.CreatedAt.UnixNano(), 10),
		strconv.FormatInt(conv.UpdatedAt.UnixNano(), 10),
	}
	for _, t := range conv.Turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		args = append(args, string(raw))
	}
	created, err := redisInsertScript.Run(ctx, s.client, []string{metaKey, turnsKey}, args...).Int()
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	if created == 0 {
		return ErrConversationExists
	}
	return nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, ownerID string, turn Turn) error {
	metaKey, turnsKey := s.keys(ownerID)
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	ok, err := redisAppendScript.Run(ctx, s.client, []string{metaKey, turnsKey},
		string(raw), strconv.FormatInt(turn.Timestamp.UnixNano(), 10),
	).Int()
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if ok == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) DeleteByOwner(ctx context.Context, ownerID string) (bool, error) {
	metaKey, turnsKey := s.keys(ownerID)
	n, err := s.client.Del(ctx, metaKey, turnsKey).Result()
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseNanos(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("redis store: missing timestamp")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redis store: parse timestamp: %w", err)
	}
	return fromUnixNano(n), nil
}
