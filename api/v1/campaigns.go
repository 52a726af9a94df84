package v1

import (
	"net/http"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"

	"github.com/gin-gonic/gin"
)

// CampaignResponse is a campaign as rendered to clients; the farmer secret never leaves the server
type CampaignResponse struct {
	ID            int64                    `json:"id"`
	FarmerName    string                   `json:"farmer_name"`
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	FundingGoal   int64                    `json:"funding_goal"`
	FarmerAddress string                   `json:"farmer_address"`
	TokenSymbol   *string                  `json:"token_symbol"`
	Status        financing.CampaignStatus `json:"status"`
	CreatedAt     time.Time                `json:"created_at"`
	ApprovedAt    *time.Time               `json:"approved_at,omitempty"`
}

func newCampaignResponse(c *financing.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:            c.ID,
		FarmerName:    c.FarmerName,
		Title:         c.Title,
		Description:   c.Description,
		FundingGoal:   c.FundingGoal,
		FarmerAddress: c.FarmerAddress,
		TokenSymbol:   c.TokenSymbol,
		Status:        c.Status,
		CreatedAt:     c.CreatedAt,
		ApprovedAt:    c.ApprovedAt,
	}
}

// createCampaign handles POST /api/v1/campaigns
func (h *SettlementHandler) createCampaign(c *gin.Context) {
	var req settlement.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	campaign, err := h.orch.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, newCampaignResponse(campaign))
}

// listCampaigns handles GET /api/v1/campaigns
func (h *SettlementHandler) listCampaigns(c *gin.Context) {
	campaigns, err := h.orch.ListCampaigns(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := financing.CampaignStatus(c.Query("status"))
	out := make([]CampaignResponse, 0, len(campaigns))
	for i := range campaigns {
		if status != "" && campaigns[i].Status != status {
			continue
		}
		out = append(out, newCampaignResponse(&campaigns[i]))
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": out, "count": len(out)})
}

// getCampaign handles GET /api/v1/campaigns/:id
func (h *SettlementHandler) getCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	campaign, err := h.orch.GetCampaign(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCampaignResponse(campaign))
}

// approveCampaign handles POST /api/v1/campaigns/:id/approve
func (h *SettlementHandler) approveCampaign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	campaign, err := h.orch.ApproveCampaign(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, newCampaignResponse(campaign))
}
