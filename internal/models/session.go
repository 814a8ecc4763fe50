package models

import "time"

// ActiveSession is the single authoritative session record for a user
// account. Creating a new session for the same user supersedes the previous
// one; the superseded client detects this via the liveness probe.
type ActiveSession struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	UserAgent    string    `db:"user_agent" json:"user_agent"`
	IPAddress    string    `db:"ip_address" json:"ip_address"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
