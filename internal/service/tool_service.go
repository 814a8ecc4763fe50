package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

const toolCacheKeyPrefix = "tools:catalog"

type toolRepository interface {
	List(ctx context.Context, category string) ([]models.Tool, error)
	FindByID(ctx context.Context, id string) (*models.Tool, error)
	Create(ctx context.Context, tool *models.Tool) error
	Update(ctx context.Context, tool *models.Tool) error
	Delete(ctx context.Context, id string) error
	UpsertRating(ctx context.Context, rating *models.ToolRating) error
	ListRatings(ctx context.Context, toolID string) ([]models.ToolRating, error)
}

// ToolService serves the gated tool catalog. The raw catalog is cached; lock
// state is recomputed per caller on every request so an expired role or a
// fresh promo takes effect immediately.
type ToolService struct {
	tools     toolRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewToolService constructs a ToolService instance.
func NewToolService(tools toolRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ToolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ToolService{tools: tools, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// ListForUser returns the catalog projected for the caller. Every tool is
// listed; locked ones carry metadata only.
func (s *ToolService) ListForUser(ctx context.Context, user *models.UserInfo, category string) ([]models.ToolView, error) {
	tools, err := s.catalog(ctx, category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tools")
	}

	views := make([]models.ToolView, 0, len(tools))
	for i := range tools {
		views = append(views, tools[i].View(user.Access, user.Role, user.CPF))
	}
	return views, nil
}

// GetForUser returns a single tool projected for the caller.
func (s *ToolService) GetForUser(ctx context.Context, user *models.UserInfo, id string) (*models.ToolView, error) {
	tool, err := s.tools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tool not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch tool")
	}
	view := tool.View(user.Access, user.Role, user.CPF)
	return &view, nil
}

// Rate records the caller's rating. Only users who can reach the tool may
// rate it; re-rating replaces the previous score.
func (s *ToolService) Rate(ctx context.Context, user *models.UserInfo, toolID string, req models.RateToolRequest) (*models.ToolRating, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}

	tool, err := s.tools.FindByID(ctx, toolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tool not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch tool")
	}

	if !tool.Reachable(user.Access, user.Role, user.CPF) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "tool is locked for this account")
	}

	rating := &models.ToolRating{
		ToolID:  toolID,
		UserID:  user.ID,
		Rating:  req.Rating,
		Comment: req.Comment,
	}
	if err := s.tools.UpsertRating(ctx, rating); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save rating")
	}

	s.invalidateCatalog(ctx)
	return rating, nil
}

// ListRatings returns every rating for a tool.
func (s *ToolService) ListRatings(ctx context.Context, toolID string) ([]models.ToolRating, error) {
	if _, err := s.tools.FindByID(ctx, toolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tool not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch tool")
	}
	ratings, err := s.tools.ListRatings(ctx, toolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ratings")
	}
	return ratings, nil
}

// CreateTool adds a tool to the catalog (admin only).
func (s *ToolService) CreateTool(ctx context.Context, req models.ToolCreateRequest) (*models.Tool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tool payload")
	}
	if err := validateToolContent(req.LinkType, req.Link, req.CustomHTML); err != nil {
		return nil, err
	}

	tool := &models.Tool{
		Name:           req.Name,
		Category:       req.Category,
		AccessLevel:    req.AccessLevel,
		LinkType:       req.LinkType,
		Link:           req.Link,
		CustomHTML:     req.CustomHTML,
		RestrictedCPFs: pq.StringArray(normalizeCPFList(req.RestrictedCPFs)),
	}
	if err := s.tools.Create(ctx, tool); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create tool")
	}

	s.invalidateCatalog(ctx)
	return tool, nil
}

// UpdateTool edits a tool (admin only).
func (s *ToolService) UpdateTool(ctx context.Context, id string, req models.ToolUpdateRequest) (*models.Tool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tool payload")
	}

	tool, err := s.tools.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tool not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch tool")
	}

	if req.Name != nil {
		tool.Name = *req.Name
	}
	if req.Category != nil {
		tool.Category = *req.Category
	}
	if req.AccessLevel != nil {
		tool.AccessLevel = *req.AccessLevel
	}
	if req.LinkType != nil {
		tool.LinkType = *req.LinkType
	}
	if req.Link != nil {
		tool.Link = req.Link
	}
	if req.CustomHTML != nil {
		tool.CustomHTML = req.CustomHTML
	}
	if req.RestrictedCPFs != nil {
		tool.RestrictedCPFs = pq.StringArray(normalizeCPFList(*req.RestrictedCPFs))
	}
	if err := validateToolContent(tool.LinkType, tool.Link, tool.CustomHTML); err != nil {
		return nil, err
	}

	if err := s.tools.Update(ctx, tool); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update tool")
	}

	s.invalidateCatalog(ctx)
	return tool, nil
}

// DeleteTool removes a tool (admin only).
func (s *ToolService) DeleteTool(ctx context.Context, id string) error {
	if _, err := s.tools.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "tool not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch tool")
	}
	if err := s.tools.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete tool")
	}

	s.invalidateCatalog(ctx)
	return nil
}

func (s *ToolService) catalog(ctx context.Context, category string) ([]models.Tool, error) {
	key := toolCacheKeyPrefix
	if category != "" {
		key = fmt.Sprintf("%s:%s", toolCacheKeyPrefix, category)
	}

	if s.cache.Enabled() {
		var cached []models.Tool
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	tools, err := s.tools.List(ctx, category)
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, tools, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache tool catalog", zap.Error(err))
		}
	}
	return tools, nil
}

func (s *ToolService) invalidateCatalog(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, toolCacheKeyPrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate tool catalog cache", zap.Error(err))
	}
}

func validateToolContent(linkType models.ToolLinkType, link, customHTML *string) error {
	switch linkType {
	case models.ToolLinkCustom:
		if customHTML == nil || *customHTML == "" {
			return appErrors.Clone(appErrors.ErrValidation, "custom tools require custom_html")
		}
	default:
		if link == nil || *link == "" {
			return appErrors.Clone(appErrors.ErrValidation, "linked tools require a link")
		}
	}
	return nil
}

func normalizeCPFList(cpfs []string) []string {
	if len(cpfs) == 0 {
		return nil
	}
	out := make([]string, 0, len(cpfs))
	for _, cpf := range cpfs {
		out = append(out, models.NormalizeCPF(cpf))
	}
	return out
}
