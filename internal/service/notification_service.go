package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string, role models.UserRole) ([]models.NotificationView, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
}

// NotificationService manages announcements and per-recipient read state.
type NotificationService struct {
	notifications notificationRepository
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(notifications notificationRepository, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{notifications: notifications, validator: validate, logger: logger}
}

// ListForUser returns the notifications visible to the caller. Role-targeted
// notifications follow the effective role, so an expired premium stops seeing
// premium announcements.
func (s *NotificationService) ListForUser(ctx context.Context, user *models.UserInfo) ([]models.NotificationView, error) {
	views, err := s.notifications.ListForUser(ctx, user.ID, user.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return views, nil
}

// MarkRead records the caller's read marker. Marking an already-read
// notification is a no-op.
func (s *NotificationService) MarkRead(ctx context.Context, user *models.UserInfo, notificationID string) error {
	n, err := s.notifications.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notification")
	}

	if !visibleTo(n, user) {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}

	if err := s.notifications.MarkRead(ctx, notificationID, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// Create publishes a notification (admin only).
func (s *NotificationService) Create(ctx context.Context, req models.NotificationCreateRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	switch req.TargetType {
	case models.NotificationTargetRole:
		if req.TargetRole == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "role notifications require target_role")
		}
	case models.NotificationTargetUser:
		if req.TargetUserID == nil || *req.TargetUserID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "user notifications require target_user_id")
		}
	}

	n := &models.Notification{
		TargetType:   req.TargetType,
		TargetRole:   req.TargetRole,
		TargetUserID: req.TargetUserID,
		Title:        req.Title,
		Body:         req.Body,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}

	s.logger.Info("notification published",
		zap.String("notification_id", n.ID),
		zap.String("target_type", string(n.TargetType)))
	return n, nil
}

// Delete removes a notification and its read markers (admin only).
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if _, err := s.notifications.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch notification")
	}
	if err := s.notifications.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

func visibleTo(n *models.Notification, user *models.UserInfo) bool {
	switch n.TargetType {
	case models.NotificationTargetAll:
		return true
	case models.NotificationTargetRole:
		return n.TargetRole != nil && *n.TargetRole == user.Role
	case models.NotificationTargetUser:
		return n.TargetUserID != nil && *n.TargetUserID == user.ID
	}
	return false
}
