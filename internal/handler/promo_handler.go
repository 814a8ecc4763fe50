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

// PromoHandler wires HTTP endpoints to the promo service.
type PromoHandler struct {
	service *service.PromoService
}

// NewPromoHandler creates a new handler.
func NewPromoHandler(svc *service.PromoService) *PromoHandler {
	return &PromoHandler{service: svc}
}

// Redeem godoc
// @Summary Redeem promo code
// @Description Consume one use of a code and apply its role or course effect
// @Tags Promos
// @Accept json
// @Produce json
// @Param payload body models.RedeemRequest true "Code payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /promos/redeem [post]
func (h *PromoHandler) Redeem(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid redeem payload"))
		return
	}

	result, err := h.service.Redeem(c.Request.Context(), user.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List promo codes
// @Tags Promos
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/promos [get]
func (h *PromoHandler) List(c *gin.Context) {
	promos, err := h.service.ListPromos(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, promos, nil)
}

// Create godoc
// @Summary Create promo code
// @Tags Promos
// @Accept json
// @Produce json
// @Param payload body models.PromoCreateRequest true "Promo payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/promos [post]
func (h *PromoHandler) Create(c *gin.Context) {
	var req models.PromoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid promo payload"))
		return
	}

	promo, err := h.service.CreatePromo(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, promo)
}

// Update godoc
// @Summary Update promo code
// @Tags Promos
// @Accept json
// @Produce json
// @Param id path string true "Promo ID"
// @Param payload body models.PromoUpdateRequest true "Promo payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/promos/{id} [put]
func (h *PromoHandler) Update(c *gin.Context) {
	var req models.PromoUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid promo payload"))
		return
	}

	promo, err := h.service.UpdatePromo(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, promo, nil)
}

// Delete godoc
// @Summary Delete promo code
// @Tags Promos
// @Produce json
// @Param id path string true "Promo ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/promos/{id} [delete]
func (h *PromoHandler) Delete(c *gin.Context) {
	if err := h.service.DeletePromo(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Usages godoc
// @Summary List promo redemptions
// @Tags Promos
// @Produce json
// @Param id path string true "Promo ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/promos/{id}/usages [get]
func (h *PromoHandler) Usages(c *gin.Context) {
	usages, err := h.service.ListUsages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, usages, nil)
}
