package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	queryResolveUser = `SELECT id FROM users WHERE telegram_id = ?`
	queryEnsureUser  = `INSERT INTO users (telegram_id, username) VALUES (?, ?)
ON CONFLICT (telegram_id) DO UPDATE SET username = excluded.username
RETURNING id`
	queryLoadContext = `SELECT c.context FROM user_contexts c
JOIN users u ON u.id = c.user_id
WHERE u.telegram_id = ?`
	querySaveContext = `INSERT INTO user_contexts (user_id, context, updated_at) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET context = excluded.context, updated_at = excluded.updated_at`
	queryTopicFor     = `SELECT topic_id FROM user_topics WHERE telegram_id = ?`
	queryUserForTopic = `SELECT telegram_id FROM user_topics WHERE topic_id = ?`
	queryBindTopic    = `INSERT INTO user_topics (telegram_id, topic_id) VALUES (?, ?)
ON CONFLICT (telegram_id) DO UPDATE SET topic_id = excluded.topic_id`
)

// SQL is a Backend over PostgreSQL or SQLite through sqlx.
type SQL struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Backend = (*SQL)(nil)

// NewSQL wraps an open database whose schema has been migrated.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db, now: time.Now}
}

// ResolveInternalID returns users.id for a Telegram id.
func (s *SQL) ResolveInternalID(ctx context.Context, externalID int64) (int64, bool, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(queryResolveUser), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve user: %w", err)
	}
	return id, true, nil
}

// EnsureUser inserts the user when missing and refreshes the username otherwise.
func (s *SQL) EnsureUser(ctx context.Context, externalID int64, username string) (int64, error) {
	var id int64
	if err := s.db.GetContext(ctx, &id, s.db.Rebind(queryEnsureUser), externalID, username); err != nil {
		return 0, fmt.Errorf("ensure user: %w", err)
	}
	return id, nil
}

// LoadContext returns the stored context document of an actor.
func (s *SQL) LoadContext(ctx context.Context, externalID int64) ([]byte, bool, error) {
	var blob []byte
	err := s.db.GetContext(ctx, &blob, s.db.Rebind(queryLoadContext), externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load context: %w", err)
	}
	return blob, true, nil
}

// SaveContext upserts the context document of a registered actor.
func (s *SQL) SaveContext(ctx context.Context, externalID int64, blob []byte) error {
	id, ok, err := s.ResolveInternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownActor
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(querySaveContext), id, string(blob), s.now().UTC()); err != nil {
		return fmt.Errorf("save context: %w", err)
	}
	return nil
}

// TopicFor returns the forum topic bound to an actor.
func (s *SQL) TopicFor(ctx context.Context, externalID int64) (int64, bool, error) {
	return s.lookup(ctx, queryTopicFor, externalID)
}

// UserForTopic returns the actor bound to a forum topic.
func (s *SQL) UserForTopic(ctx context.Context, topicID int64) (int64, bool, error) {
	return s.lookup(ctx, queryUserForTopic, topicID)
}

// BindTopic records the actor <-> topic mapping.
func (s *SQL) BindTopic(ctx context.Context, externalID, topicID int64) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(queryBindTopic), externalID, topicID); err != nil {
		return fmt.Errorf("bind topic: %w", err)
	}
	return nil
}

func (s *SQL) lookup(ctx context.Context, query string, arg int64) (int64, bool, error) {
	var out int64
	err := s.db.GetContext(ctx, &out, s.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("topic lookup: %w", err)
	}
	return out, true, nil
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.db.Close()
}
