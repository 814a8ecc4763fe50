package models

import "time"

// NotificationTarget selects the audience of a notification.
type NotificationTarget string

const (
	NotificationTargetAll  NotificationTarget = "all"
	NotificationTargetRole NotificationTarget = "role"
	NotificationTargetUser NotificationTarget = "user"
)

// Notification is an announcement directed at all users, one role, or one
// user. Read state lives in notification_reads, one row per recipient.
type Notification struct {
	ID           string             `db:"id" json:"id"`
	TargetType   NotificationTarget `db:"target_type" json:"target_type"`
	TargetRole   *UserRole          `db:"target_role" json:"target_role,omitempty"`
	TargetUserID *string            `db:"target_user_id" json:"target_user_id,omitempty"`
	Title        string             `db:"title" json:"title"`
	Body         string             `db:"body" json:"body"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// NotificationCreateRequest is the admin payload for publishing a
// notification.
type NotificationCreateRequest struct {
	TargetType   NotificationTarget `json:"target_type" validate:"required,oneof=all role user"`
	TargetRole   *UserRole          `json:"target_role,omitempty" validate:"omitempty,oneof=E-BASIC E-TOOL E-MASTER admin"`
	TargetUserID *string            `json:"target_user_id,omitempty"`
	Title        string             `json:"title" validate:"required,min=2,max=160"`
	Body         string             `json:"body" validate:"required,max=4000"`
}

// NotificationView adds the per-recipient read flag.
type NotificationView struct {
	Notification
	IsRead bool `db:"is_read" json:"is_read"`
}
