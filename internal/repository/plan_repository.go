package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/e-projects/platform-api/internal/models"
)

// PlanRepository provides database access for the upgrade price list.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new instance of PlanRepository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// ListActive returns the publicly visible price list.
func (r *PlanRepository) ListActive(ctx context.Context) ([]models.PlanPrice, error) {
	const query = `SELECT id, role, days, price_cents, active, created_at, updated_at FROM plan_prices WHERE active = TRUE ORDER BY price_cents ASC`
	var plans []models.PlanPrice
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// ListAll returns every price entry for the admin screen.
func (r *PlanRepository) ListAll(ctx context.Context) ([]models.PlanPrice, error) {
	const query = `SELECT id, role, days, price_cents, active, created_at, updated_at FROM plan_prices ORDER BY role ASC, days ASC`
	var plans []models.PlanPrice
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("list all plans: %w", err)
	}
	return plans, nil
}

// Upsert creates or updates a price entry keyed by role+days.
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.PlanPrice) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `INSERT INTO plan_prices (id, role, days, price_cents, active, created_at, updated_at)
		VALUES (:id, :role, :days, :price_cents, :active, :created_at, :updated_at)
		ON CONFLICT (role, days) DO UPDATE SET price_cents = EXCLUDED.price_cents, active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}
