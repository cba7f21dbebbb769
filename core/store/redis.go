package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by the Redis backend.
const DefaultRedisPrefix = "flowbot"

// RedisOptions tunes the Redis backend.
type RedisOptions struct {
	Prefix     string
	ContextTTL time.Duration
}

// Redis is a Backend over a Redis server.
//
// Layout:
//
//	<prefix>:ctx:<telegram_id>   context document (string)
//	<prefix>:users               hash telegram_id -> internal id
//	<prefix>:users:seq           internal id counter
//	<prefix>:usernames           hash telegram_id -> username
//	<prefix>:topics              hash telegram_id -> topic id
//	<prefix>:topics:rev          hash topic id -> telegram_id
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Backend = (*Redis)(nil)

// NewRedis wraps a connected client.
func NewRedis(client redis.UniversalClient, opts RedisOptions) *Redis {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: opts.ContextTTL}
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

// LoadContext returns the stored context document of an actor.
func (r *Redis) LoadContext(ctx context.Context, externalID int64) ([]byte, bool, error) {
	blob, err := r.client.Get(ctx, r.key("ctx", itoa(externalID))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis load context: %w", err)
	}
	return blob, true, nil
}

// SaveContext stores the context document of a registered actor.
func (r *Redis) SaveContext(ctx context.Context, externalID int64, blob []byte) error {
	_, ok, err := r.ResolveInternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownActor
	}
	if err := r.client.Set(ctx, r.key("ctx", itoa(externalID)), blob, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis save context: %w", err)
	}
	return nil
}

// ResolveInternalID reads the identity assigned by EnsureUser.
func (r *Redis) ResolveInternalID(ctx context.Context, externalID int64) (int64, bool, error) {
	return r.hgetInt(ctx, r.key("users"), itoa(externalID))
}

// EnsureUser assigns the next counter value on first sight of an actor.
func (r *Redis) EnsureUser(ctx context.Context, externalID int64, username string) (int64, error) {
	field := itoa(externalID)
	if username != "" {
		if err := r.client.HSet(ctx, r.key("usernames"), field, username).Err(); err != nil {
			return 0, fmt.Errorf("redis store username: %w", err)
		}
	}
	if id, ok, err := r.ResolveInternalID(ctx, externalID); err != nil || ok {
		return id, err
	}
	next, err := r.client.Incr(ctx, r.key("users", "seq")).Result()
	if err != nil {
		return 0, fmt.Errorf("redis next user id: %w", err)
	}
	set, err := r.client.HSetNX(ctx, r.key("users"), field, next).Result()
	if err != nil {
		return 0, fmt.Errorf("redis register user: %w", err)
	}
	if !set {
		id, _, err := r.ResolveInternalID(ctx, externalID)
		return id, err
	}
	return next, nil
}

// TopicFor returns the forum topic bound to an actor.
func (r *Redis) TopicFor(ctx context.Context, externalID int64) (int64, bool, error) {
	return r.hgetInt(ctx, r.key("topics"), itoa(externalID))
}

// UserForTopic returns the actor bound to a forum topic.
func (r *Redis) UserForTopic(ctx context.Context, topicID int64) (int64, bool, error) {
	return r.hgetInt(ctx, r.key("topics", "rev"), itoa(topicID))
}

// BindTopic records the actor <-> topic mapping in one transaction.
func (r *Redis) BindTopic(ctx context.Context, externalID, topicID int64) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.key("topics"), itoa(externalID), topicID)
		p.HSet(ctx, r.key("topics", "rev"), itoa(topicID), externalID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis bind topic: %w", err)
	}
	return nil
}

func (r *Redis) hgetInt(ctx context.Context, key, field string) (int64, bool, error) {
	v, err := r.client.HGet(ctx, key, field).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return v, true, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
