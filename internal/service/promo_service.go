package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	"github.com/e-projects/platform-api/internal/repository"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type promoRepository interface {
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	FindByID(ctx context.Context, id string) (*models.PromoCode, error)
	HasUsage(ctx context.Context, promoID, userID string) (bool, error)
	RedeemRole(ctx context.Context, promoID, userID string, role models.UserRole, roleExpiry time.Time) error
	RedeemCourse(ctx context.Context, promoID, userID, courseID string, expiresAt time.Time) error
	Create(ctx context.Context, promo *models.PromoCode) error
	Update(ctx context.Context, promo *models.PromoCode) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.PromoCode, error)
	ListUsages(ctx context.Context, promoID string) ([]models.PromoUsage, error)
}

type promoUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// PromoService implements promo code redemption and administration.
type PromoService struct {
	promos    promoRepository
	users     promoUserRepository
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPromoService constructs a PromoService instance.
func NewPromoService(promos promoRepository, users promoUserRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PromoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PromoService{promos: promos, users: users, metrics: metrics, validator: validate, logger: logger}
}

// Redeem consumes one use of a code for the given user and applies its
// effect. Rejections are checked in a fixed order: unknown code, inactive,
// exhausted, expired, already redeemed. The exhausted check is enforced
// again inside the database transaction, so losing a race over the last use
// surfaces as the exhausted error rather than an oversell.
func (s *PromoService) Redeem(ctx context.Context, userID string, req models.RedeemRequest) (*models.RedemptionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redeem payload")
	}

	promo, err := s.promos.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.reject(appErrors.ErrPromoNotFound)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch promo")
	}

	now := time.Now().UTC()
	if !promo.IsActive {
		return nil, s.reject(appErrors.ErrPromoInactive)
	}
	if promo.UsedCount >= promo.MaxUses {
		return nil, s.reject(appErrors.ErrPromoExhausted)
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return nil, s.reject(appErrors.ErrPromoExpired)
	}

	used, err := s.promos.HasUsage(ctx, promo.ID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check promo usage")
	}
	if used {
		return nil, s.reject(appErrors.ErrPromoAlreadyRedeemed)
	}

	result, err := s.apply(ctx, promo, userID, now)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoRemainingUses):
			return nil, s.reject(appErrors.ErrPromoExhausted)
		case errors.Is(err, repository.ErrUsageExists):
			return nil, s.reject(appErrors.ErrPromoAlreadyRedeemed)
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem promo")
		}
	}

	if s.metrics != nil {
		s.metrics.RecordPromoRedemption("success")
	}
	s.logger.Info("promo redeemed",
		zap.String("user_id", userID),
		zap.String("code", promo.Code),
		zap.String("promo_type", string(promo.PromoType)))

	return result, nil
}

func (s *PromoService) apply(ctx context.Context, promo *models.PromoCode, userID string, now time.Time) (*models.RedemptionResult, error) {
	duration := time.Duration(promo.Days) * 24 * time.Hour

	switch promo.PromoType {
	case models.PromoTypeRole:
		if promo.TargetRole == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "role promo has no target role")
		}

		user, err := s.users.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		// Redeeming the same role again stacks on the remaining time.
		base := now
		if user.Role == *promo.TargetRole && user.RoleExpiryDate != nil && user.RoleExpiryDate.After(now) {
			base = *user.RoleExpiryDate
		}
		expiry := base.Add(duration)

		if err := s.promos.RedeemRole(ctx, promo.ID, userID, *promo.TargetRole, expiry); err != nil {
			return nil, err
		}
		return &models.RedemptionResult{
			PromoType:      models.PromoTypeRole,
			Role:           promo.TargetRole,
			RoleExpiryDate: &expiry,
		}, nil

	case models.PromoTypeCourse:
		if promo.CourseID == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "course promo has no course id")
		}

		expiresAt := now.Add(duration)
		if err := s.promos.RedeemCourse(ctx, promo.ID, userID, *promo.CourseID, expiresAt); err != nil {
			return nil, err
		}
		return &models.RedemptionResult{
			PromoType:   models.PromoTypeCourse,
			CourseID:    promo.CourseID,
			AccessUntil: &expiresAt,
		}, nil

	default:
		return nil, appErrors.Clone(appErrors.ErrInternal, "unknown promo type")
	}
}

func (s *PromoService) reject(err *appErrors.Error) *appErrors.Error {
	if s.metrics != nil {
		s.metrics.RecordPromoRedemption(err.Code)
	}
	return err
}

// CreatePromo mints a new code (admin only).
func (s *PromoService) CreatePromo(ctx context.Context, req models.PromoCreateRequest) (*models.PromoCode, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promo payload")
	}

	switch req.PromoType {
	case models.PromoTypeRole:
		if req.TargetRole == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "role promo requires target_role")
		}
	case models.PromoTypeCourse:
		if req.CourseID == nil || *req.CourseID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course promo requires course_id")
		}
	}

	if _, err := s.promos.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "promo code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check code")
	}

	promo := &models.PromoCode{
		Code:       req.Code,
		PromoType:  req.PromoType,
		TargetRole: req.TargetRole,
		CourseID:   req.CourseID,
		Days:       req.Days,
		MaxUses:    req.MaxUses,
		ValidUntil: req.ValidUntil,
		IsActive:   true,
	}
	if err := s.promos.Create(ctx, promo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create promo")
	}
	return promo, nil
}

// UpdatePromo adjusts limits, validity and active flag of a code.
func (s *PromoService) UpdatePromo(ctx context.Context, id string, req models.PromoUpdateRequest) (*models.PromoCode, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promo payload")
	}

	promo, err := s.promos.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch promo")
	}

	if req.Days != nil {
		promo.Days = *req.Days
	}
	if req.MaxUses != nil {
		if *req.MaxUses < promo.UsedCount {
			return nil, appErrors.Clone(appErrors.ErrValidation, "max_uses cannot be below the current usage count")
		}
		promo.MaxUses = *req.MaxUses
	}
	if req.ValidUntil != nil {
		promo.ValidUntil = req.ValidUntil
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}

	if err := s.promos.Update(ctx, promo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update promo")
	}
	return promo, nil
}

// DeletePromo removes a code.
func (s *PromoService) DeletePromo(ctx context.Context, id string) error {
	if _, err := s.promos.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "promo not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch promo")
	}
	if err := s.promos.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete promo")
	}
	return nil
}

// ListPromos returns every code for the admin screen.
func (s *PromoService) ListPromos(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.promos.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promos")
	}
	return promos, nil
}

// ListUsages returns the redemption history of one code.
func (s *PromoService) ListUsages(ctx context.Context, promoID string) ([]models.PromoUsage, error) {
	if _, err := s.promos.FindByID(ctx, promoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promo not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch promo")
	}
	usages, err := s.promos.ListUsages(ctx, promoID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promo usages")
	}
	return usages, nil
}
