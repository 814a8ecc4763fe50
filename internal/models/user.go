package models

import "time"

// UserRole represents the ordered access tiers of the platform.
type UserRole string

const (
	RoleEBasic  UserRole = "E-BASIC"
	RoleETool   UserRole = "E-TOOL"
	RoleEMaster UserRole = "E-MASTER"
	RoleAdmin   UserRole = "admin"
)

// User represents an application user stored in the users table.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email"`
	CPF                 string     `db:"cpf" json:"cpf"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	Role                UserRole   `db:"role" json:"role"`
	RoleExpiryDate      *time.Time `db:"role_expiry_date" json:"role_expiry_date,omitempty"`
	ResetToken          *string    `db:"reset_token" json:"-"`
	ResetTokenExpiresAt *time.Time `db:"reset_token_expires_at" json:"-"`
	LastLogin           *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// AdminUpdateUserRequest is the admin payload for editing an account. Days,
// when set, computes a fresh role expiry from now; RoleExpiryDate sets it
// explicitly. E-BASIC and admin never carry an expiry.
type AdminUpdateUserRequest struct {
	Username       *string    `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Role           *UserRole  `json:"role,omitempty" validate:"omitempty,oneof=E-BASIC E-TOOL E-MASTER admin"`
	Days           *int       `json:"days,omitempty" validate:"omitempty,min=1"`
	RoleExpiryDate *time.Time `json:"role_expiry_date,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
