package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/models"
)

// SessionRepository persists conversation sessions in PostgreSQL for
// deployments without Redis, and serializes turns with advisory locks.
type SessionRepository struct {
	db       *sqlx.DB
	lockWait time.Duration
}

// NewSessionRepository creates a new SessionRepository. lockWait bounds how
// long Lock waits for another instance's turn (0 means until ctx is done).
func NewSessionRepository(db *sqlx.DB, lockWait time.Duration) *SessionRepository {
	return &SessionRepository{db: db, lockWait: lockWait}
}

// Lock takes a transaction-scoped advisory lock on key. The transaction, and
// with it one pooled connection, is held until the returned func is called.
func (r *SessionRepository) Lock(ctx context.Context, key string) (func(), error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin lock transaction: %w", err)
	}

	lockCtx := ctx
	if r.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, r.lockWait)
		defer cancel()
	}
	if _, err := tx.ExecContext(lockCtx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}

	return func() {
		if err := tx.Commit(); err != nil && err != sql.ErrTxDone {
			log.Warn().Err(err).Str("key", key).Msg("Failed to release session lock")
		}
	}, nil
}

// Get returns conversation.ErrSessionNotFound for unknown sessions.
func (r *SessionRepository) Get(ctx context.Context, phone, surveyID string) (*models.Session, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE survey_id = $1 AND phone = $2`, surveyID, phone,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, conversation.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// Put upserts the session.
func (r *SessionRepository) Put(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	const q = `
		INSERT INTO sessions (survey_id, phone, state, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (survey_id, phone) DO UPDATE SET
			state = EXCLUDED.state,
			data = EXCLUDED.data,
			updated_at = NOW()`
	_, err = r.db.ExecContext(ctx, q, s.SurveyID, s.Phone, string(s.State), data)
	return err
}
