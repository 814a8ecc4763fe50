package models

import "time"

// PlanUpsertRequest is the admin payload for setting a price entry.
type PlanUpsertRequest struct {
	Role       UserRole `json:"role" validate:"required,oneof=E-TOOL E-MASTER"`
	Days       int      `json:"days" validate:"required,min=1"`
	PriceCents int      `json:"price_cents" validate:"min=0"`
	Active     bool     `json:"active"`
}

// PlanPrice is an admin-editable price list entry for role upgrades.
type PlanPrice struct {
	ID         string    `db:"id" json:"id"`
	Role       UserRole  `db:"role" json:"role"`
	Days       int       `db:"days" json:"days"`
	PriceCents int       `db:"price_cents" json:"price_cents"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
