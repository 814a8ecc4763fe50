package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/e-projects/platform-api/internal/middleware"
	"github.com/e-projects/platform-api/internal/models"
	"github.com/e-projects/platform-api/internal/service"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/response"
)

// ChatHandler wires HTTP endpoints to the support chat service.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler creates a new handler.
func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// MyThread godoc
// @Summary Get own support thread
// @Description Returns the caller's thread and messages, creating the thread on first access
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat [get]
func (h *ChatHandler) MyThread(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	thread, messages, err := h.service.MyThread(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"thread": thread, "messages": messages}, nil)
}

// Send godoc
// @Summary Send message
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body models.ChatMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /chat/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	msg, err := h.service.SendAsUser(c.Request.Context(), user.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// ListThreads godoc
// @Summary List support threads
// @Tags Chat
// @Produce json
// @Param status query string false "Filter by status (open or closed)"
// @Success 200 {object} response.Envelope
// @Router /admin/chat/threads [get]
func (h *ChatHandler) ListThreads(c *gin.Context) {
	threads, err := h.service.ListThreads(c.Request.Context(), models.ChatThreadStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, threads, nil)
}

// ThreadMessages godoc
// @Summary Get thread messages
// @Tags Chat
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/chat/threads/{id} [get]
func (h *ChatHandler) ThreadMessages(c *gin.Context) {
	thread, messages, err := h.service.ThreadMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"thread": thread, "messages": messages}, nil)
}

// Reply godoc
// @Summary Reply to thread
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "Thread ID"
// @Param payload body models.ChatMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/chat/threads/{id}/messages [post]
func (h *ChatHandler) Reply(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	msg, err := h.service.SendAsAdmin(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// SetStatus godoc
// @Summary Open or close thread
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "Thread ID"
// @Param payload body object true "Status payload"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/chat/threads/{id}/status [put]
func (h *ChatHandler) SetStatus(c *gin.Context) {
	var payload struct {
		Status models.ChatThreadStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}

	if err := h.service.SetThreadStatus(c.Request.Context(), c.Param("id"), payload.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
