package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"budgetbook/internal/services"
)

// OverviewHandler serves the dashboard overview.
type OverviewHandler struct {
	overviewService services.OverviewServicer
}

// NewOverviewHandler creates a new OverviewHandler.
func NewOverviewHandler(overviewService services.OverviewServicer) *OverviewHandler {
	return &OverviewHandler{overviewService: overviewService}
}

// GetOverview returns the user's totals, balance and recent activity.
// @Summary     Get overview
// @Description Total budget, expenses and income, balance (income minus expenses) and the five most recent records
// @Tags        overview
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.Overview "Overview"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /overview [get]
func (h *OverviewHandler) GetOverview(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ov, err := h.overviewService.GetOverview(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"overview": ov})
}
