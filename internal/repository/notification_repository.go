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

// NotificationRepository provides database access for notifications and
// per-recipient read markers.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO notifications (id, target_type, target_role, target_user_id, title, body, created_at) VALUES (:id, :target_type, :target_role, :target_user_id, :title, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// FindByID returns a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT id, target_type, target_role, target_user_id, title, body, created_at FROM notifications WHERE id = $1 LIMIT 1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification by id: %w", err)
	}
	return &n, nil
}

// Delete removes a notification and its read markers.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notifications WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

// ListForUser returns the notifications visible to a user (all-targeted,
// their role, or them directly) with the computed read flag, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, role models.UserRole) ([]models.NotificationView, error) {
	const query = `SELECT n.id, n.target_type, n.target_role, n.target_user_id, n.title, n.body, n.created_at,
			(nr.user_id IS NOT NULL) AS is_read
		FROM notifications n
		LEFT JOIN notification_reads nr ON nr.notification_id = n.id AND nr.user_id = $1
		WHERE n.target_type = 'all'
			OR (n.target_type = 'role' AND n.target_role = $2)
			OR (n.target_type = 'user' AND n.target_user_id = $1)
		ORDER BY n.created_at DESC`
	var views []models.NotificationView
	if err := r.db.SelectContext(ctx, &views, query, userID, role); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return views, nil
}

// MarkRead records that the user read the notification. Idempotent.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	const query = `INSERT INTO notification_reads (notification_id, user_id, read_at) VALUES ($1, $2, $3) ON CONFLICT (notification_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, notificationID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
