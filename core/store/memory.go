package store

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	memUserPrefix  = "user:"
	memTopicPrefix = "topic:"
	memTopicRev    = "topic_rev:"
	memSeqKey      = "user_seq"
)

// MemoryOptions tunes the in-memory backend.
type MemoryOptions struct {
	// ContextTTL expires idle contexts; zero keeps them forever.
	ContextTTL time.Duration
}

// Memory is an in-process Backend for development and tests.
type Memory struct {
	contexts *cache.Cache
	index    *cache.Cache
	ttl      time.Duration
}

var _ Backend = (*Memory)(nil)

// NewMemory constructs an empty in-memory backend.
func NewMemory(opts MemoryOptions) *Memory {
	ttl := opts.ContextTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	m := &Memory{
		contexts: cache.New(ttl, 10*time.Minute),
		index:    cache.New(cache.NoExpiration, 0),
		ttl:      ttl,
	}
	m.index.Set(memSeqKey, int64(0), cache.NoExpiration)
	return m
}

func idKey(prefix string, id int64) string {
	return prefix + strconv.FormatInt(id, 10)
}

// LoadContext returns a copy of the stored blob.
func (m *Memory) LoadContext(_ context.Context, externalID int64) ([]byte, bool, error) {
	v, ok := m.contexts.Get(strconv.FormatInt(externalID, 10))
	if !ok {
		return nil, false, nil
	}
	blob, _ := v.([]byte)
	return append([]byte(nil), blob...), true, nil
}

// SaveContext stores a copy of blob for a registered actor.
func (m *Memory) SaveContext(ctx context.Context, externalID int64, blob []byte) error {
	if _, ok, _ := m.ResolveInternalID(ctx, externalID); !ok {
		return ErrUnknownActor
	}
	m.contexts.Set(strconv.FormatInt(externalID, 10), append([]byte(nil), blob...), m.ttl)
	return nil
}

// ResolveInternalID looks up the identity assigned by EnsureUser.
func (m *Memory) ResolveInternalID(_ context.Context, externalID int64) (int64, bool, error) {
	v, ok := m.index.Get(idKey(memUserPrefix, externalID))
	if !ok {
		return 0, false, nil
	}
	id, ok := v.(int64)
	return id, ok, nil
}

// EnsureUser assigns a sequential internal id on first sight of an actor.
func (m *Memory) EnsureUser(ctx context.Context, externalID int64, _ string) (int64, error) {
	if id, ok, _ := m.ResolveInternalID(ctx, externalID); ok {
		return id, nil
	}
	next, err := m.index.IncrementInt64(memSeqKey, 1)
	if err != nil {
		return 0, err
	}
	if err := m.index.Add(idKey(memUserPrefix, externalID), next, cache.NoExpiration); err != nil {
		// registered concurrently
		id, _, _ := m.ResolveInternalID(ctx, externalID)
		return id, nil
	}
	return next, nil
}

// TopicFor returns the forum topic bound to an actor.
func (m *Memory) TopicFor(_ context.Context, externalID int64) (int64, bool, error) {
	v, ok := m.index.Get(idKey(memTopicPrefix, externalID))
	if !ok {
		return 0, false, nil
	}
	id, ok := v.(int64)
	return id, ok, nil
}

// UserForTopic returns the actor bound to a forum topic.
func (m *Memory) UserForTopic(_ context.Context, topicID int64) (int64, bool, error) {
	v, ok := m.index.Get(idKey(memTopicRev, topicID))
	if !ok {
		return 0, false, nil
	}
	id, ok := v.(int64)
	return id, ok, nil
}

// BindTopic records the actor <-> topic mapping in both directions.
func (m *Memory) BindTopic(_ context.Context, externalID, topicID int64) error {
	m.index.Set(idKey(memTopicPrefix, externalID), topicID, cache.NoExpiration)
	m.index.Set(idKey(memTopicRev, topicID), externalID, cache.NoExpiration)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
