package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/e-projects/platform-api/internal/models"
	"github.com/e-projects/platform-api/internal/service"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/response"
)

// PlanHandler wires HTTP endpoints to the plan price service.
type PlanHandler struct {
	service *service.PlanService
}

// NewPlanHandler creates a new handler.
func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{service: svc}
}

// List godoc
// @Summary List upgrade prices
// @Description Active price entries for premium tiers; payment happens off platform
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// ListAll godoc
// @Summary List all price entries
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/plans [get]
func (h *PlanHandler) ListAll(c *gin.Context) {
	plans, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// Upsert godoc
// @Summary Create or replace price entry
// @Tags Plans
// @Accept json
// @Produce json
// @Param payload body models.PlanUpsertRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/plans [put]
func (h *PlanHandler) Upsert(c *gin.Context) {
	var req models.PlanUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}

	plan, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}
