package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	"github.com/e-projects/platform-api/internal/repository"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type mockPromoRepo struct {
	byCode       map[string]*models.PromoCode
	byID         map[string]*models.PromoCode
	usages       map[string]bool
	redeemErr    error
	roleRedeemed *models.UserRole
	roleExpiry   time.Time
	courseID     string
	courseUntil  time.Time
}

func (m *mockPromoRepo) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	if p, ok := m.byCode[code]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPromoRepo) FindByID(ctx context.Context, id string) (*models.PromoCode, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPromoRepo) HasUsage(ctx context.Context, promoID, userID string) (bool, error) {
	return m.usages[promoID+"/"+userID], nil
}

func (m *mockPromoRepo) RedeemRole(ctx context.Context, promoID, userID string, role models.UserRole, roleExpiry time.Time) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	m.roleRedeemed = &role
	m.roleExpiry = roleExpiry
	return nil
}

func (m *mockPromoRepo) RedeemCourse(ctx context.Context, promoID, userID, courseID string, expiresAt time.Time) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	m.courseID = courseID
	m.courseUntil = expiresAt
	return nil
}

func (m *mockPromoRepo) Create(ctx context.Context, promo *models.PromoCode) error {
	promo.ID = "new-promo"
	return nil
}

func (m *mockPromoRepo) Update(ctx context.Context, promo *models.PromoCode) error { return nil }
func (m *mockPromoRepo) Delete(ctx context.Context, id string) error               { return nil }
func (m *mockPromoRepo) List(ctx context.Context) ([]models.PromoCode, error)      { return nil, nil }
func (m *mockPromoRepo) ListUsages(ctx context.Context, promoID string) ([]models.PromoUsage, error) {
	return nil, nil
}

type mockPromoUserRepo struct {
	user *models.User
}

func (m *mockPromoUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.user == nil {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func rolePtr(r models.UserRole) *models.UserRole { return &r }

func activeRolePromo(code string) *models.PromoCode {
	return &models.PromoCode{
		ID:         "p1",
		Code:       code,
		PromoType:  models.PromoTypeRole,
		TargetRole: rolePtr(models.RoleETool),
		Days:       30,
		MaxUses:    10,
		IsActive:   true,
	}
}

func newPromoService(promos *mockPromoRepo, users *mockPromoUserRepo) *PromoService {
	return NewPromoService(promos, users, nil, nil, zap.NewNop())
}

func TestRedeemUnknownCode(t *testing.T) {
	svc := newPromoService(&mockPromoRepo{}, &mockPromoUserRepo{})

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "NOPE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoNotFound.Code, appErrors.FromError(err).Code)
}

func TestRedeemInactiveCode(t *testing.T) {
	promo := activeRolePromo("CODE")
	promo.IsActive = false
	svc := newPromoService(&mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}, &mockPromoUserRepo{})

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoInactive.Code, appErrors.FromError(err).Code)
}

func TestRedeemExpiredCode(t *testing.T) {
	promo := activeRolePromo("CODE")
	past := time.Now().UTC().Add(-time.Hour)
	promo.ValidUntil = &past
	svc := newPromoService(&mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}, &mockPromoUserRepo{})

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoExpired.Code, appErrors.FromError(err).Code)
}

func TestRedeemAlreadyRedeemed(t *testing.T) {
	promo := activeRolePromo("CODE")
	repo := &mockPromoRepo{
		byCode: map[string]*models.PromoCode{"CODE": promo},
		usages: map[string]bool{"p1/u1": true},
	}
	svc := newPromoService(repo, &mockPromoUserRepo{})

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoAlreadyRedeemed.Code, appErrors.FromError(err).Code)
}

func TestRedeemExhaustedCode(t *testing.T) {
	promo := activeRolePromo("CODE")
	promo.UsedCount = promo.MaxUses
	svc := newPromoService(&mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}, &mockPromoUserRepo{})

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoExhausted.Code, appErrors.FromError(err).Code)
}

// A code out of uses always reports exhausted, even when its validity window
// has also passed.
func TestRedeemExhaustedCodeWinsOverExpired(t *testing.T) {
	promo := activeRolePromo("CODE")
	promo.MaxUses = 1
	promo.UsedCount = 1
	past := time.Now().UTC().Add(-time.Hour)
	promo.ValidUntil = &past
	svc := newPromoService(&mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}, &mockPromoUserRepo{})

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoExhausted.Code, appErrors.FromError(err).Code)
}

// Losing the race over the last remaining use inside the transaction must
// surface as the exhausted error, not an internal one.
func TestRedeemExhaustedInTransaction(t *testing.T) {
	promo := activeRolePromo("CODE")
	repo := &mockPromoRepo{
		byCode:    map[string]*models.PromoCode{"CODE": promo},
		redeemErr: repository.ErrNoRemainingUses,
	}
	users := &mockPromoUserRepo{user: &models.User{ID: "u1", Role: models.RoleEBasic}}
	svc := newPromoService(repo, users)

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoExhausted.Code, appErrors.FromError(err).Code)
}

func TestRedeemDuplicateUsageInTransaction(t *testing.T) {
	promo := activeRolePromo("CODE")
	repo := &mockPromoRepo{
		byCode:    map[string]*models.PromoCode{"CODE": promo},
		redeemErr: repository.ErrUsageExists,
	}
	users := &mockPromoUserRepo{user: &models.User{ID: "u1", Role: models.RoleEBasic}}
	svc := newPromoService(repo, users)

	_, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPromoAlreadyRedeemed.Code, appErrors.FromError(err).Code)
}

func TestRedeemRolePromoGrantsFromNow(t *testing.T) {
	promo := activeRolePromo("CODE")
	repo := &mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}
	users := &mockPromoUserRepo{user: &models.User{ID: "u1", Role: models.RoleEBasic}}
	svc := newPromoService(repo, users)

	before := time.Now().UTC()
	result, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.NoError(t, err)

	require.NotNil(t, result.Role)
	assert.Equal(t, models.RoleETool, *result.Role)
	require.NotNil(t, result.RoleExpiryDate)

	wantMin := before.Add(30 * 24 * time.Hour)
	assert.False(t, result.RoleExpiryDate.Before(wantMin))
	assert.Equal(t, models.RoleETool, *repo.roleRedeemed)
}

// Redeeming the same role again extends the current window instead of
// restarting it from now.
func TestRedeemRolePromoStacksRemainingTime(t *testing.T) {
	promo := activeRolePromo("CODE")
	currentExpiry := time.Now().UTC().Add(10 * 24 * time.Hour)
	repo := &mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}
	users := &mockPromoUserRepo{user: &models.User{ID: "u1", Role: models.RoleETool, RoleExpiryDate: &currentExpiry}}
	svc := newPromoService(repo, users)

	result, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.NoError(t, err)

	want := currentExpiry.Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, want, *result.RoleExpiryDate, time.Second)
}

// A different current role does not stack; the grant starts from now.
func TestRedeemRolePromoDifferentRoleDoesNotStack(t *testing.T) {
	promo := activeRolePromo("CODE")
	currentExpiry := time.Now().UTC().Add(100 * 24 * time.Hour)
	repo := &mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": promo}}
	users := &mockPromoUserRepo{user: &models.User{ID: "u1", Role: models.RoleEMaster, RoleExpiryDate: &currentExpiry}}
	svc := newPromoService(repo, users)

	result, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "CODE"})
	require.NoError(t, err)

	want := time.Now().UTC().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, want, *result.RoleExpiryDate, time.Minute)
}

func TestRedeemCoursePromo(t *testing.T) {
	courseID := "c1"
	promo := &models.PromoCode{
		ID:        "p2",
		Code:      "COURSE",
		PromoType: models.PromoTypeCourse,
		CourseID:  &courseID,
		Days:      90,
		MaxUses:   5,
		IsActive:  true,
	}
	repo := &mockPromoRepo{byCode: map[string]*models.PromoCode{"COURSE": promo}}
	svc := newPromoService(repo, &mockPromoUserRepo{})

	result, err := svc.Redeem(context.Background(), "u1", models.RedeemRequest{Code: "COURSE"})
	require.NoError(t, err)

	require.NotNil(t, result.CourseID)
	assert.Equal(t, "c1", *result.CourseID)
	require.NotNil(t, result.AccessUntil)
	assert.Equal(t, "c1", repo.courseID)
}

func TestCreatePromoRequiresTargetForRoleType(t *testing.T) {
	svc := newPromoService(&mockPromoRepo{}, &mockPromoUserRepo{})

	_, err := svc.CreatePromo(context.Background(), models.PromoCreateRequest{
		Code:      "CODE",
		PromoType: models.PromoTypeRole,
		Days:      30,
		MaxUses:   10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreatePromoRejectsDuplicateCode(t *testing.T) {
	repo := &mockPromoRepo{byCode: map[string]*models.PromoCode{"CODE": activeRolePromo("CODE")}}
	svc := newPromoService(repo, &mockPromoUserRepo{})

	_, err := svc.CreatePromo(context.Background(), models.PromoCreateRequest{
		Code:       "CODE",
		PromoType:  models.PromoTypeRole,
		TargetRole: rolePtr(models.RoleETool),
		Days:       30,
		MaxUses:    10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdatePromoRejectsMaxUsesBelowUsage(t *testing.T) {
	promo := activeRolePromo("CODE")
	promo.UsedCount = 5
	repo := &mockPromoRepo{byID: map[string]*models.PromoCode{"p1": promo}}
	svc := newPromoService(repo, &mockPromoUserRepo{})

	lower := 3
	_, err := svc.UpdatePromo(context.Background(), "p1", models.PromoUpdateRequest{MaxUses: &lower})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
