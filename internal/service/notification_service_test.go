package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
)

type mockNotificationRepo struct {
	byID    map[string]*models.Notification
	reads   []string
	created *models.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	n.ID = "new-notification"
	m.created = n
	return nil
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := m.byID[id]; ok {
		return n, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockNotificationRepo) ListForUser(ctx context.Context, userID string, role models.UserRole) ([]models.NotificationView, error) {
	return nil, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	m.reads = append(m.reads, notificationID)
	return nil
}

func TestMarkReadBroadcastNotification(t *testing.T) {
	repo := &mockNotificationRepo{byID: map[string]*models.Notification{
		"n1": {ID: "n1", TargetType: models.NotificationTargetAll},
	}}
	svc := NewNotificationService(repo, nil, zap.NewNop())

	err := svc.MarkRead(context.Background(), basicUser(), "n1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, repo.reads)
}

// A notification aimed at someone else must look like it does not exist.
func TestMarkReadInvisibleNotification(t *testing.T) {
	other := "someone-else"
	repo := &mockNotificationRepo{byID: map[string]*models.Notification{
		"n1": {ID: "n1", TargetType: models.NotificationTargetUser, TargetUserID: &other},
	}}
	svc := NewNotificationService(repo, nil, zap.NewNop())

	err := svc.MarkRead(context.Background(), basicUser(), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.reads)
}

func TestMarkReadRoleNotificationRequiresMatchingRole(t *testing.T) {
	master := models.RoleEMaster
	repo := &mockNotificationRepo{byID: map[string]*models.Notification{
		"n1": {ID: "n1", TargetType: models.NotificationTargetRole, TargetRole: &master},
	}}
	svc := NewNotificationService(repo, nil, zap.NewNop())

	err := svc.MarkRead(context.Background(), basicUser(), "n1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = svc.MarkRead(context.Background(), userWithRole(models.RoleEMaster, ""), "n1")
	assert.NoError(t, err)
}

func TestCreateRoleNotificationRequiresTargetRole(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), models.NotificationCreateRequest{
		TargetType: models.NotificationTargetRole,
		Title:      "Maintenance window",
		Body:       "Saturday 02:00 UTC",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateUserNotificationRequiresTargetUser(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), models.NotificationCreateRequest{
		TargetType: models.NotificationTargetUser,
		Title:      "Account update",
		Body:       "Your plan changed",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateBroadcastNotification(t *testing.T) {
	repo := &mockNotificationRepo{}
	svc := NewNotificationService(repo, nil, zap.NewNop())

	n, err := svc.Create(context.Background(), models.NotificationCreateRequest{
		TargetType: models.NotificationTargetAll,
		Title:      "Welcome",
		Body:       "New tools this week",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-notification", n.ID)
	assert.Equal(t, models.NotificationTargetAll, repo.created.TargetType)
}

func TestDeleteMissingNotification(t *testing.T) {
	svc := NewNotificationService(&mockNotificationRepo{}, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
