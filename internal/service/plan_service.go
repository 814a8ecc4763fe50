package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type planRepository interface {
	ListActive(ctx context.Context) ([]models.PlanPrice, error)
	ListAll(ctx context.Context) ([]models.PlanPrice, error)
	Upsert(ctx context.Context, plan *models.PlanPrice) error
}

// PlanService serves the upgrade price list. Payment itself happens off
// platform; the list only tells users what an upgrade costs.
type PlanService struct {
	plans     planRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPlanService constructs a PlanService instance.
func NewPlanService(plans planRepository, validate *validator.Validate, logger *zap.Logger) *PlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PlanService{plans: plans, validator: validate, logger: logger}
}

// ListActive returns the visible price list.
func (s *PlanService) ListActive(ctx context.Context) ([]models.PlanPrice, error) {
	plans, err := s.plans.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	return plans, nil
}

// ListAll returns every price entry (admin only).
func (s *PlanService) ListAll(ctx context.Context) ([]models.PlanPrice, error) {
	plans, err := s.plans.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list plans")
	}
	return plans, nil
}

// Upsert creates or replaces the price entry for a role+days combination
// (admin only).
func (s *PlanService) Upsert(ctx context.Context, req models.PlanUpsertRequest) (*models.PlanPrice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}

	plan := &models.PlanPrice{
		Role:       req.Role,
		Days:       req.Days,
		PriceCents: req.PriceCents,
		Active:     req.Active,
	}
	if err := s.plans.Upsert(ctx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert plan")
	}
	return plan, nil
}
