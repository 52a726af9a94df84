package v1

import (
	"context"
	"net/http"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"

	"github.com/gin-gonic/gin"
)

// createMicroloan handles POST /api/v1/microloans
func (h *SettlementHandler) createMicroloan(c *gin.Context) {
	var req settlement.CreateMicroloanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	loan, err := h.orch.CreateMicroloan(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// listMicroloans handles GET /api/v1/microloans
func (h *SettlementHandler) listMicroloans(c *gin.Context) {
	loans, err := h.orch.ListMicroloans(c.Request.Context(), financing.MicroloanStatus(c.Query("status")))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"microloans": loans, "count": len(loans)})
}

// getMicroloan handles GET /api/v1/microloans/:id
func (h *SettlementHandler) getMicroloan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := h.orch.GetMicroloan(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// finishMicroloan handles POST /api/v1/microloans/:id/finish
func (h *SettlementHandler) finishMicroloan(c *gin.Context) {
	h.endMicroloan(c, h.orch.FinishMicroloan)
}

// cancelMicroloan handles POST /api/v1/microloans/:id/cancel
func (h *SettlementHandler) cancelMicroloan(c *gin.Context) {
	h.endMicroloan(c, h.orch.CancelMicroloan)
}

func (h *SettlementHandler) endMicroloan(c *gin.Context, action func(ctx context.Context, req settlement.MicroloanActionRequest) (*financing.Microloan, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req settlement.MicroloanActionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.MicroloanID = id

	loan, err := action(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}
