package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e-projects/platform-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "promo_type", "target_role", "course_id", "days", "max_uses", "used_count", "valid_until", "is_active", "created_at", "updated_at"}).
		AddRow("p1", "WELCOME30", "role", "E-TOOL", nil, 30, 100, 5, nil, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, promo_type, target_role, course_id, days, max_uses, used_count, valid_until, is_active, created_at, updated_at FROM promo_codes WHERE code = $1 LIMIT 1")).
		WithArgs("WELCOME30").
		WillReturnRows(rows)

	promo, err := repo.FindByCode(context.Background(), "WELCOME30")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME30", promo.Code)
	assert.Equal(t, 5, promo.UsedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemRoleConsumesUseInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE promo_codes SET used_count = used_count + 1, updated_at = $2 WHERE id = $1 AND used_count < max_uses")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO promo_usages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role = $2, role_expiry_date = $3, updated_at = $4 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RedeemRole(context.Background(), "p1", "u1", models.RoleETool, time.Now().Add(30*24*time.Hour))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The conditional increment matching zero rows means the last use was taken
// by a concurrent redemption; nothing after it may run.
func TestRedeemRoleExhausted(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promo_codes SET used_count").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RedeemRole(context.Background(), "p1", "u1", models.RoleETool, time.Now())
	assert.ErrorIs(t, err, ErrNoRemainingUses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemRoleDuplicateUsage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promo_codes SET used_count").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO promo_usages").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.RedeemRole(context.Background(), "p1", "u1", models.RoleETool, time.Now())
	assert.ErrorIs(t, err, ErrUsageExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemCourseUpsertsPurchase(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE promo_codes SET used_count").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO promo_usages").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO course_purchases").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RedeemCourse(context.Background(), "p1", "u1", "c1", time.Now().Add(90*24*time.Hour))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateExpiredSurfacesRowsAffectedError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	mock.ExpectExec("UPDATE promo_codes SET is_active = FALSE").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unsupported")))

	_, err := repo.DeactivateExpired(context.Background(), time.Now())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPromoRepository(db)

	mock.ExpectExec("UPDATE promo_codes SET is_active = FALSE").WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.DeactivateExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
