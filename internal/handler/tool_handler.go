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

// ToolHandler wires HTTP endpoints to the tool service.
type ToolHandler struct {
	service *service.ToolService
}

// NewToolHandler creates a new handler.
func NewToolHandler(svc *service.ToolService) *ToolHandler {
	return &ToolHandler{service: svc}
}

// List godoc
// @Summary List tools
// @Description Returns the tool catalog with per-caller lock state; locked tools carry metadata only
// @Tags Tools
// @Produce json
// @Param category query string false "Filter by category"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /tools [get]
func (h *ToolHandler) List(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	views, err := h.service.ListForUser(c.Request.Context(), user, c.Query("category"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// Get godoc
// @Summary Get tool
// @Description Returns one tool projected for the caller
// @Tags Tools
// @Produce json
// @Param id path string true "Tool ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tools/{id} [get]
func (h *ToolHandler) Get(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	view, err := h.service.GetForUser(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Rate godoc
// @Summary Rate tool
// @Description Submit or replace the caller's rating for a reachable tool
// @Tags Tools
// @Accept json
// @Produce json
// @Param id path string true "Tool ID"
// @Param payload body models.RateToolRequest true "Rating payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tools/{id}/ratings [post]
func (h *ToolHandler) Rate(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RateToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rating payload"))
		return
	}

	rating, err := h.service.Rate(c.Request.Context(), user, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rating, nil)
}

// ListRatings godoc
// @Summary List tool ratings
// @Tags Tools
// @Produce json
// @Param id path string true "Tool ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tools/{id}/ratings [get]
func (h *ToolHandler) ListRatings(c *gin.Context) {
	ratings, err := h.service.ListRatings(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ratings, nil)
}

// Create godoc
// @Summary Create tool
// @Description Add a tool to the catalog (admin)
// @Tags Tools
// @Accept json
// @Produce json
// @Param payload body models.ToolCreateRequest true "Tool payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/tools [post]
func (h *ToolHandler) Create(c *gin.Context) {
	var req models.ToolCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tool payload"))
		return
	}

	tool, err := h.service.CreateTool(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tool)
}

// Update godoc
// @Summary Update tool
// @Tags Tools
// @Accept json
// @Produce json
// @Param id path string true "Tool ID"
// @Param payload body models.ToolUpdateRequest true "Tool payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/tools/{id} [put]
func (h *ToolHandler) Update(c *gin.Context) {
	var req models.ToolUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tool payload"))
		return
	}

	tool, err := h.service.UpdateTool(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tool, nil)
}

// Delete godoc
// @Summary Delete tool
// @Tags Tools
// @Produce json
// @Param id path string true "Tool ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/tools/{id} [delete]
func (h *ToolHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteTool(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
