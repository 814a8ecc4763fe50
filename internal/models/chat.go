package models

import "time"

// ChatThreadStatus enumerates the lifecycle of a support thread.
type ChatThreadStatus string

const (
	ChatThreadOpen   ChatThreadStatus = "open"
	ChatThreadClosed ChatThreadStatus = "closed"
)

// ChatThread is a support conversation between one user and the admin team.
// The unread flags flip when the counterpart posts a message.
type ChatThread struct {
	ID            string           `db:"id" json:"id"`
	UserID        string           `db:"user_id" json:"user_id"`
	Status        ChatThreadStatus `db:"status" json:"status"`
	IsUserUnread  bool             `db:"is_user_unread" json:"is_user_unread"`
	IsAdminUnread bool             `db:"is_admin_unread" json:"is_admin_unread"`
	LastMessageAt *time.Time       `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// ChatMessageRequest carries a new message body.
type ChatMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}

// ChatMessage is one message within a thread.
type ChatMessage struct {
	ID        string    `db:"id" json:"id"`
	ThreadID  string    `db:"thread_id" json:"thread_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	FromAdmin bool      `db:"from_admin" json:"from_admin"`
	Body      string    `db:"body" json:"body"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
