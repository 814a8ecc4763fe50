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

const threadColumns = `id, user_id, status, is_user_unread, is_admin_unread, last_message_at, created_at, updated_at`

// ChatRepository provides database access for support threads and messages.
type ChatRepository struct {
	db *sqlx.DB
}

// NewChatRepository creates a new instance of ChatRepository.
func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// FindThreadByUserID returns the user's thread.
func (r *ChatRepository) FindThreadByUserID(ctx context.Context, userID string) (*models.ChatThread, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_threads WHERE user_id = $1 LIMIT 1`, threadColumns)
	var thread models.ChatThread
	if err := r.db.GetContext(ctx, &thread, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find thread by user: %w", err)
	}
	return &thread, nil
}

// FindThreadByID returns a thread by identifier.
func (r *ChatRepository) FindThreadByID(ctx context.Context, id string) (*models.ChatThread, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_threads WHERE id = $1 LIMIT 1`, threadColumns)
	var thread models.ChatThread
	if err := r.db.GetContext(ctx, &thread, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find thread by id: %w", err)
	}
	return &thread, nil
}

// CreateThread inserts a new open thread for a user.
func (r *ChatRepository) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if thread.CreatedAt.IsZero() {
		thread.CreatedAt = now
	}
	thread.UpdatedAt = now
	if thread.Status == "" {
		thread.Status = models.ChatThreadOpen
	}

	const query = `INSERT INTO chat_threads (id, user_id, status, is_user_unread, is_admin_unread, last_message_at, created_at, updated_at) VALUES (:id, :user_id, :status, :is_user_unread, :is_admin_unread, :last_message_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, thread); err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

// ListThreads returns threads for the admin inbox, optionally filtered by
// status, most recently active first.
func (r *ChatRepository) ListThreads(ctx context.Context, status models.ChatThreadStatus) ([]models.ChatThread, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_threads`, threadColumns)
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY last_message_at DESC NULLS LAST`

	var threads []models.ChatThread
	if err := r.db.SelectContext(ctx, &threads, query, args...); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

// InsertMessage stores a message and flips the counterpart's unread flag in
// the same transaction.
func (r *ChatRepository) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO chat_messages (id, thread_id, sender_id, from_admin, body, created_at) VALUES (:id, :thread_id, :sender_id, :from_admin, :body, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	// A user message marks the thread unread for admins and vice versa.
	flip := `UPDATE chat_threads SET is_admin_unread = TRUE, last_message_at = $2, updated_at = $2 WHERE id = $1`
	if msg.FromAdmin {
		flip = `UPDATE chat_threads SET is_user_unread = TRUE, last_message_at = $2, updated_at = $2 WHERE id = $1`
	}
	if _, err := tx.ExecContext(ctx, flip, msg.ThreadID, msg.CreatedAt); err != nil {
		return fmt.Errorf("flip unread flag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message tx: %w", err)
	}
	return nil
}

// ListMessages returns a thread's messages in chronological order.
func (r *ChatRepository) ListMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error) {
	const query = `SELECT id, thread_id, sender_id, from_admin, body, created_at FROM chat_messages WHERE thread_id = $1 ORDER BY created_at ASC`
	var messages []models.ChatMessage
	if err := r.db.SelectContext(ctx, &messages, query, threadID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// MarkThreadRead clears the unread flag for the reading side.
func (r *ChatRepository) MarkThreadRead(ctx context.Context, threadID string, forAdmin bool) error {
	query := `UPDATE chat_threads SET is_user_unread = FALSE, updated_at = $2 WHERE id = $1`
	if forAdmin {
		query = `UPDATE chat_threads SET is_admin_unread = FALSE, updated_at = $2 WHERE id = $1`
	}
	if _, err := r.db.ExecContext(ctx, query, threadID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

// UpdateThreadStatus opens or closes a thread.
func (r *ChatRepository) UpdateThreadStatus(ctx context.Context, threadID string, status models.ChatThreadStatus) error {
	const query = `UPDATE chat_threads SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, threadID, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update thread status: %w", err)
	}
	return nil
}
