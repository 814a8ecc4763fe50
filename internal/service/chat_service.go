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

type chatRepository interface {
	FindThreadByUserID(ctx context.Context, userID string) (*models.ChatThread, error)
	FindThreadByID(ctx context.Context, id string) (*models.ChatThread, error)
	CreateThread(ctx context.Context, thread *models.ChatThread) error
	ListThreads(ctx context.Context, status models.ChatThreadStatus) ([]models.ChatThread, error)
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error)
	MarkThreadRead(ctx context.Context, threadID string, forAdmin bool) error
	UpdateThreadStatus(ctx context.Context, threadID string, status models.ChatThreadStatus) error
}

// ChatNotifier pushes chat events to connected websocket clients. Messages
// still land over HTTP polling when the recipient is offline.
type ChatNotifier interface {
	NotifyChatMessage(recipientUserID string, msg *models.ChatMessage)
	NotifyAdminsChatMessage(msg *models.ChatMessage)
}

// ChatService implements the user/admin support conversation. Each user owns
// at most one thread, created lazily on first contact.
type ChatService struct {
	chats     chatRepository
	notifier  ChatNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService instance.
func NewChatService(chats chatRepository, notifier ChatNotifier, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChatService{chats: chats, notifier: notifier, validator: validate, logger: logger}
}

// MyThread returns the caller's thread with its messages, creating the thread
// on first access. Opening the thread clears the user-side unread flag.
func (s *ChatService) MyThread(ctx context.Context, userID string) (*models.ChatThread, []models.ChatMessage, error) {
	thread, err := s.chats.FindThreadByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch thread")
		}
		thread = &models.ChatThread{UserID: userID}
		if err := s.chats.CreateThread(ctx, thread); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create thread")
		}
		return thread, nil, nil
	}

	messages, err := s.chats.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}

	if thread.IsUserUnread {
		if err := s.chats.MarkThreadRead(ctx, thread.ID, false); err != nil {
			s.logger.Warn("failed to clear user unread flag", zap.String("thread_id", thread.ID), zap.Error(err))
		} else {
			thread.IsUserUnread = false
		}
	}
	return thread, messages, nil
}

// SendAsUser appends a message from the thread owner. A closed thread reopens
// when the user writes again.
func (s *ChatService) SendAsUser(ctx context.Context, userID string, req models.ChatMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	thread, err := s.chats.FindThreadByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch thread")
		}
		thread = &models.ChatThread{UserID: userID}
		if err := s.chats.CreateThread(ctx, thread); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create thread")
		}
	}

	if thread.Status == models.ChatThreadClosed {
		if err := s.chats.UpdateThreadStatus(ctx, thread.ID, models.ChatThreadOpen); err != nil {
			s.logger.Warn("failed to reopen thread", zap.String("thread_id", thread.ID), zap.Error(err))
		}
	}

	msg := &models.ChatMessage{
		ThreadID: thread.ID,
		SenderID: userID,
		Body:     req.Body,
	}
	if err := s.chats.InsertMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	if s.notifier != nil {
		s.notifier.NotifyAdminsChatMessage(msg)
	}
	return msg, nil
}

// ListThreads returns the admin inbox, optionally filtered by status.
func (s *ChatService) ListThreads(ctx context.Context, status models.ChatThreadStatus) ([]models.ChatThread, error) {
	if status != "" && status != models.ChatThreadOpen && status != models.ChatThreadClosed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown thread status")
	}
	threads, err := s.chats.ListThreads(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list threads")
	}
	return threads, nil
}

// ThreadMessages returns a thread with its messages for the admin view and
// clears the admin-side unread flag.
func (s *ChatService) ThreadMessages(ctx context.Context, threadID string) (*models.ChatThread, []models.ChatMessage, error) {
	thread, err := s.findThread(ctx, threadID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.chats.ListMessages(ctx, threadID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}

	if thread.IsAdminUnread {
		if err := s.chats.MarkThreadRead(ctx, threadID, true); err != nil {
			s.logger.Warn("failed to clear admin unread flag", zap.String("thread_id", threadID), zap.Error(err))
		} else {
			thread.IsAdminUnread = false
		}
	}
	return thread, messages, nil
}

// SendAsAdmin appends an admin reply to a thread.
func (s *ChatService) SendAsAdmin(ctx context.Context, adminID, threadID string, req models.ChatMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	thread, err := s.findThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ThreadID:  thread.ID,
		SenderID:  adminID,
		FromAdmin: true,
		Body:      req.Body,
	}
	if err := s.chats.InsertMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	if s.notifier != nil {
		s.notifier.NotifyChatMessage(thread.UserID, msg)
	}
	return msg, nil
}

// SetThreadStatus opens or closes a thread (admin only).
func (s *ChatService) SetThreadStatus(ctx context.Context, threadID string, status models.ChatThreadStatus) error {
	if status != models.ChatThreadOpen && status != models.ChatThreadClosed {
		return appErrors.Clone(appErrors.ErrValidation, "unknown thread status")
	}
	if _, err := s.findThread(ctx, threadID); err != nil {
		return err
	}
	if err := s.chats.UpdateThreadStatus(ctx, threadID, status); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update thread status")
	}
	return nil
}

func (s *ChatService) findThread(ctx context.Context, threadID string) (*models.ChatThread, error) {
	thread, err := s.chats.FindThreadByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "thread not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch thread")
	}
	return thread, nil
}
