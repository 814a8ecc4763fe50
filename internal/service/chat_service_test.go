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

type mockChatRepo struct {
	threadsByUser map[string]*models.ChatThread
	threadsByID   map[string]*models.ChatThread
	messages      []models.ChatMessage
	inserted      *models.ChatMessage
	statusSet     models.ChatThreadStatus
	readCleared   []bool
}

func (m *mockChatRepo) FindThreadByUserID(ctx context.Context, userID string) (*models.ChatThread, error) {
	if th, ok := m.threadsByUser[userID]; ok {
		return th, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) FindThreadByID(ctx context.Context, id string) (*models.ChatThread, error) {
	if th, ok := m.threadsByID[id]; ok {
		return th, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockChatRepo) CreateThread(ctx context.Context, thread *models.ChatThread) error {
	thread.ID = "new-thread"
	thread.Status = models.ChatThreadOpen
	if m.threadsByUser == nil {
		m.threadsByUser = make(map[string]*models.ChatThread)
	}
	m.threadsByUser[thread.UserID] = thread
	return nil
}

func (m *mockChatRepo) ListThreads(ctx context.Context, status models.ChatThreadStatus) ([]models.ChatThread, error) {
	return nil, nil
}

func (m *mockChatRepo) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = "new-message"
	m.inserted = msg
	return nil
}

func (m *mockChatRepo) ListMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error) {
	return m.messages, nil
}

func (m *mockChatRepo) MarkThreadRead(ctx context.Context, threadID string, forAdmin bool) error {
	m.readCleared = append(m.readCleared, forAdmin)
	return nil
}

func (m *mockChatRepo) UpdateThreadStatus(ctx context.Context, threadID string, status models.ChatThreadStatus) error {
	m.statusSet = status
	return nil
}

type mockChatNotifier struct {
	userRecipients []string
	adminPings     int
}

func (m *mockChatNotifier) NotifyChatMessage(recipientUserID string, msg *models.ChatMessage) {
	m.userRecipients = append(m.userRecipients, recipientUserID)
}

func (m *mockChatNotifier) NotifyAdminsChatMessage(msg *models.ChatMessage) { m.adminPings++ }

func TestMyThreadCreatedOnFirstAccess(t *testing.T) {
	repo := &mockChatRepo{}
	svc := NewChatService(repo, nil, nil, zap.NewNop())

	thread, messages, err := svc.MyThread(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-thread", thread.ID)
	assert.Empty(t, messages)
}

func TestMyThreadClearsUserUnread(t *testing.T) {
	repo := &mockChatRepo{
		threadsByUser: map[string]*models.ChatThread{
			"u1": {ID: "t1", UserID: "u1", Status: models.ChatThreadOpen, IsUserUnread: true},
		},
		messages: []models.ChatMessage{{ID: "m1", ThreadID: "t1", Body: "hello"}},
	}
	svc := NewChatService(repo, nil, nil, zap.NewNop())

	thread, messages, err := svc.MyThread(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, thread.IsUserUnread)
	assert.Len(t, messages, 1)
	assert.Equal(t, []bool{false}, repo.readCleared)
}

func TestSendAsUserReopensClosedThread(t *testing.T) {
	repo := &mockChatRepo{
		threadsByUser: map[string]*models.ChatThread{
			"u1": {ID: "t1", UserID: "u1", Status: models.ChatThreadClosed},
		},
	}
	notifier := &mockChatNotifier{}
	svc := NewChatService(repo, notifier, nil, zap.NewNop())

	msg, err := svc.SendAsUser(context.Background(), "u1", models.ChatMessageRequest{Body: "still broken"})
	require.NoError(t, err)
	assert.Equal(t, models.ChatThreadOpen, repo.statusSet)
	assert.False(t, msg.FromAdmin)
	assert.Equal(t, 1, notifier.adminPings)
}

func TestSendAsUserEmptyBody(t *testing.T) {
	svc := NewChatService(&mockChatRepo{}, nil, nil, zap.NewNop())

	_, err := svc.SendAsUser(context.Background(), "u1", models.ChatMessageRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSendAsAdminNotifiesThreadOwner(t *testing.T) {
	repo := &mockChatRepo{
		threadsByID: map[string]*models.ChatThread{
			"t1": {ID: "t1", UserID: "u1", Status: models.ChatThreadOpen},
		},
	}
	notifier := &mockChatNotifier{}
	svc := NewChatService(repo, notifier, nil, zap.NewNop())

	msg, err := svc.SendAsAdmin(context.Background(), "a1", "t1", models.ChatMessageRequest{Body: "looking into it"})
	require.NoError(t, err)
	assert.True(t, msg.FromAdmin)
	assert.Equal(t, "a1", msg.SenderID)
	assert.Equal(t, []string{"u1"}, notifier.userRecipients)
}

func TestSendAsAdminMissingThread(t *testing.T) {
	svc := NewChatService(&mockChatRepo{}, nil, nil, zap.NewNop())

	_, err := svc.SendAsAdmin(context.Background(), "a1", "missing", models.ChatMessageRequest{Body: "hi"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSetThreadStatusRejectsUnknownValue(t *testing.T) {
	svc := NewChatService(&mockChatRepo{}, nil, nil, zap.NewNop())

	err := svc.SetThreadStatus(context.Background(), "t1", models.ChatThreadStatus("archived"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestThreadMessagesClearsAdminUnread(t *testing.T) {
	repo := &mockChatRepo{
		threadsByID: map[string]*models.ChatThread{
			"t1": {ID: "t1", UserID: "u1", Status: models.ChatThreadOpen, IsAdminUnread: true},
		},
	}
	svc := NewChatService(repo, nil, nil, zap.NewNop())

	thread, _, err := svc.ThreadMessages(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, thread.IsAdminUnread)
	assert.Equal(t, []bool{true}, repo.readCleared)
}
