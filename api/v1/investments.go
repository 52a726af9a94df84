package v1

import (
	"errors"
	"net/http"
	"strconv"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"

	"github.com/gin-gonic/gin"
)

// invest handles POST /api/v1/investments
func (h *SettlementHandler) invest(c *gin.Context) {
	var req settlement.InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.orch.Invest(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// listInvestments handles GET /api/v1/investments
func (h *SettlementHandler) listInvestments(c *gin.Context) {
	filter := settlement.InvestmentFilter{
		InvestorAddress: c.Query("investor_address"),
		Status:          financing.InvestmentStatus(c.Query("status")),
	}
	if raw := c.Query("campaign_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, errors.New("campaign_id must be a positive integer"))
			return
		}
		filter.CampaignID = id
	}

	investments, err := h.orch.ListInvestments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investments": investments, "count": len(investments)})
}

// getInvestment handles GET /api/v1/investments/:id
func (h *SettlementHandler) getInvestment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	inv, err := h.orch.GetInvestment(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// releaseEscrow handles POST /api/v1/investments/:id/release
func (h *SettlementHandler) releaseEscrow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req settlement.ReleaseEscrowRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.InvestmentID = id

	inv, err := h.orch.ReleaseEscrow(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// cancelEscrow handles POST /api/v1/investments/:id/cancel
func (h *SettlementHandler) cancelEscrow(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req settlement.CancelEscrowRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.InvestmentID = id

	inv, err := h.orch.CancelEscrow(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
