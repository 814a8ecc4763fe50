package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/e-projects/platform-api/internal/models"
)

// SessionRepository manages the active_sessions table. At most one row per
// user is authoritative: Create removes the user's prior sessions in the
// same transaction, which is what supersedes an older login.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a fresh session and deletes any previous sessions owned by
// the same user atomically.
func (r *SessionRepository) Create(ctx context.Context, session *models.ActiveSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActivity.IsZero() {
		session.LastActivity = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM active_sessions WHERE user_id = $1`, session.UserID); err != nil {
		return fmt.Errorf("supersede previous sessions: %w", err)
	}

	const insert = `INSERT INTO active_sessions (id, user_id, user_agent, ip_address, last_activity, created_at) VALUES (:id, :user_id, :user_agent, :ip_address, :last_activity, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session tx: %w", err)
	}
	return nil
}

// FindByID returns a session by identifier.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ActiveSession, error) {
	const query = `SELECT id, user_id, user_agent, ip_address, last_activity, created_at FROM active_sessions WHERE id = $1 LIMIT 1`
	var session models.ActiveSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return &session, nil
}

// FindByUserID returns the user's current session, if any.
func (r *SessionRepository) FindByUserID(ctx context.Context, userID string) (*models.ActiveSession, error) {
	const query = `SELECT id, user_id, user_agent, ip_address, last_activity, created_at FROM active_sessions WHERE user_id = $1 LIMIT 1`
	var session models.ActiveSession
	if err := r.db.GetContext(ctx, &session, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find session by user id: %w", err)
	}
	return &session, nil
}

// Touch refreshes the last_activity timestamp.
func (r *SessionRepository) Touch(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE active_sessions SET last_activity = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Delete removes a session (logout).
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM active_sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteIdleBefore purges sessions with no activity since the cutoff and
// returns how many were removed.
func (r *SessionRepository) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM active_sessions WHERE last_activity < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	return affected, nil
}
