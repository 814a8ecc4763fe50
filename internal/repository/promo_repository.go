package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/e-projects/platform-api/internal/models"
)

// Sentinel errors surfaced by the redemption transaction; the service layer
// maps them onto the public error taxonomy.
var (
	// ErrNoRemainingUses means the conditional increment matched zero rows:
	// used_count had already reached max_uses.
	ErrNoRemainingUses = errors.New("promo code has no remaining uses")
	// ErrUsageExists means the unique (promo_id, user_id) constraint fired.
	ErrUsageExists = errors.New("promo usage already recorded for user")
)

const promoColumns = `id, code, promo_type, target_role, course_id, days, max_uses, used_count, valid_until, is_active, created_at, updated_at`

// PromoRepository provides database access for promo codes, usages, and the
// atomic redemption flow.
type PromoRepository struct {
	db *sqlx.DB
}

// NewPromoRepository creates a new instance of PromoRepository.
func NewPromoRepository(db *sqlx.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

// FindByCode returns a promo code by its exact code string.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE code = $1 LIMIT 1`, promoColumns)
	var promo models.PromoCode
	if err := r.db.GetContext(ctx, &promo, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find promo by code: %w", err)
	}
	return &promo, nil
}

// FindByID returns a promo code by identifier.
func (r *PromoRepository) FindByID(ctx context.Context, id string) (*models.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE id = $1 LIMIT 1`, promoColumns)
	var promo models.PromoCode
	if err := r.db.GetContext(ctx, &promo, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find promo by id: %w", err)
	}
	return &promo, nil
}

// HasUsage reports whether the user already redeemed the given code.
func (r *PromoRepository) HasUsage(ctx context.Context, promoID, userID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM promo_usages WHERE promo_id = $1 AND user_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, promoID, userID); err != nil {
		return false, fmt.Errorf("check promo usage: %w", err)
	}
	return count > 0, nil
}

// RedeemRole atomically consumes one use of a role promo and applies the
// role grant. The increment is conditional on used_count < max_uses so two
// concurrent redemptions of the last use cannot both succeed.
func (r *PromoRepository) RedeemRole(ctx context.Context, promoID, userID string, role models.UserRole, roleExpiry time.Time) error {
	return r.redeem(ctx, promoID, userID, func(tx *sqlx.Tx) error {
		const grant = `UPDATE users SET role = $2, role_expiry_date = $3, updated_at = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, grant, userID, role, roleExpiry, time.Now().UTC()); err != nil {
			return fmt.Errorf("apply role grant: %w", err)
		}
		return nil
	})
}

// RedeemCourse atomically consumes one use of a course promo and grants the
// course access window.
func (r *PromoRepository) RedeemCourse(ctx context.Context, promoID, userID, courseID string, expiresAt time.Time) error {
	return r.redeem(ctx, promoID, userID, func(tx *sqlx.Tx) error {
		now := time.Now().UTC()
		const grant = `INSERT INTO course_purchases (id, user_id, course_id, expires_at, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $5)
			ON CONFLICT (user_id, course_id) DO UPDATE SET expires_at = EXCLUDED.expires_at, active = TRUE, updated_at = EXCLUDED.updated_at`
		if _, err := tx.ExecContext(ctx, grant, uuid.NewString(), userID, courseID, expiresAt, now); err != nil {
			return fmt.Errorf("apply course grant: %w", err)
		}
		return nil
	})
}

func (r *PromoRepository) redeem(ctx context.Context, promoID, userID string, apply func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redemption tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const consume = `UPDATE promo_codes SET used_count = used_count + 1, updated_at = $2 WHERE id = $1 AND used_count < max_uses`
	res, err := tx.ExecContext(ctx, consume, promoID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("consume promo use: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume promo use: %w", err)
	}
	if affected == 0 {
		return ErrNoRemainingUses
	}

	const usage = `INSERT INTO promo_usages (id, promo_id, user_id, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, usage, uuid.NewString(), promoID, userID, time.Now().UTC()); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrUsageExists
		}
		return fmt.Errorf("record promo usage: %w", err)
	}

	if err := apply(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redemption tx: %w", err)
	}
	return nil
}

// Create inserts a new promo code.
func (r *PromoRepository) Create(ctx context.Context, promo *models.PromoCode) error {
	if promo.ID == "" {
		promo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if promo.CreatedAt.IsZero() {
		promo.CreatedAt = now
	}
	promo.UpdatedAt = now

	const query = `INSERT INTO promo_codes (id, code, promo_type, target_role, course_id, days, max_uses, used_count, valid_until, is_active, created_at, updated_at) VALUES (:id, :code, :promo_type, :target_role, :course_id, :days, :max_uses, :used_count, :valid_until, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, promo); err != nil {
		return fmt.Errorf("create promo: %w", err)
	}
	return nil
}

// Update updates the mutable fields of a promo code. used_count is only ever
// changed by the redemption transaction.
func (r *PromoRepository) Update(ctx context.Context, promo *models.PromoCode) error {
	promo.UpdatedAt = time.Now().UTC()
	const query = `UPDATE promo_codes SET days = :days, max_uses = :max_uses, valid_until = :valid_until, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, promo); err != nil {
		return fmt.Errorf("update promo: %w", err)
	}
	return nil
}

// Delete removes a promo code.
func (r *PromoRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM promo_codes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	return nil
}

// List returns all promo codes, newest first.
func (r *PromoRepository) List(ctx context.Context) ([]models.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes ORDER BY created_at DESC`, promoColumns)
	var promos []models.PromoCode
	if err := r.db.SelectContext(ctx, &promos, query); err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	return promos, nil
}

// ListUsages returns redemption events for one code, newest first.
func (r *PromoRepository) ListUsages(ctx context.Context, promoID string) ([]models.PromoUsage, error) {
	const query = `SELECT id, promo_id, user_id, created_at FROM promo_usages WHERE promo_id = $1 ORDER BY created_at DESC`
	var usages []models.PromoUsage
	if err := r.db.SelectContext(ctx, &usages, query, promoID); err != nil {
		return nil, fmt.Errorf("list promo usages: %w", err)
	}
	return usages, nil
}

// UsageReportRow is one line of the promo-usage export.
type UsageReportRow struct {
	Code       string    `db:"code"`
	PromoType  string    `db:"promo_type"`
	Username   string    `db:"username"`
	Email      string    `db:"email"`
	RedeemedAt time.Time `db:"redeemed_at"`
}

// UsageReport joins usages with codes and users for export.
func (r *PromoRepository) UsageReport(ctx context.Context) ([]UsageReportRow, error) {
	const query = `SELECT p.code, p.promo_type, u.username, u.email, pu.created_at AS redeemed_at
		FROM promo_usages pu
		JOIN promo_codes p ON p.id = pu.promo_id
		JOIN users u ON u.id = pu.user_id
		ORDER BY pu.created_at DESC`
	var rows []UsageReportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("promo usage report: %w", err)
	}
	return rows, nil
}

// DeactivateExpired flips is_active off for codes past their validity window
// and returns how many were touched.
func (r *PromoRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE promo_codes SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND valid_until IS NOT NULL AND valid_until < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired promos: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired promos: %w", err)
	}
	return affected, nil
}
