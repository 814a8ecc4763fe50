package models

import "time"

// PromoType discriminates the effect of a redeemed code.
type PromoType string

const (
	PromoTypeRole   PromoType = "role"
	PromoTypeCourse PromoType = "course"
)

// PromoCode is a redeemable token granting a time-limited role upgrade or a
// course unlock. Invariant: used_count never exceeds max_uses; the increment
// is guarded by a conditional update inside the redemption transaction.
type PromoCode struct {
	ID         string     `db:"id" json:"id"`
	Code       string     `db:"code" json:"code"`
	PromoType  PromoType  `db:"promo_type" json:"promo_type"`
	TargetRole *UserRole  `db:"target_role" json:"target_role,omitempty"`
	CourseID   *string    `db:"course_id" json:"course_id,omitempty"`
	Days       int        `db:"days" json:"days"`
	MaxUses    int        `db:"max_uses" json:"max_uses"`
	UsedCount  int        `db:"used_count" json:"used_count"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// PromoUsage records one redemption event. promoId+userId is unique so a
// user cannot redeem the same code twice.
type PromoUsage struct {
	ID        string    `db:"id" json:"id"`
	PromoID   string    `db:"promo_id" json:"promo_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RedeemRequest carries the code a user wants to redeem.
type RedeemRequest struct {
	Code string `json:"code" validate:"required,min=3,max=64"`
}

// PromoCreateRequest is the admin payload for minting a code.
type PromoCreateRequest struct {
	Code       string     `json:"code" validate:"required,min=3,max=64"`
	PromoType  PromoType  `json:"promo_type" validate:"required,oneof=role course"`
	TargetRole *UserRole  `json:"target_role,omitempty" validate:"omitempty,oneof=E-TOOL E-MASTER"`
	CourseID   *string    `json:"course_id,omitempty"`
	Days       int        `json:"days" validate:"required,min=1"`
	MaxUses    int        `json:"max_uses" validate:"required,min=1"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// PromoUpdateRequest is the admin payload for adjusting a code.
type PromoUpdateRequest struct {
	Days       *int       `json:"days,omitempty" validate:"omitempty,min=1"`
	MaxUses    *int       `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	IsActive   *bool      `json:"is_active,omitempty"`
}

// RedemptionResult describes the applied effect for the caller.
type RedemptionResult struct {
	PromoType      PromoType  `json:"promo_type"`
	Role           *UserRole  `json:"role,omitempty"`
	RoleExpiryDate *time.Time `json:"role_expiry_date,omitempty"`
	CourseID       *string    `json:"course_id,omitempty"`
	AccessUntil    *time.Time `json:"access_until,omitempty"`
}
