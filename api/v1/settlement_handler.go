package v1

import (
	"errors"
	"io"
	"strconv"

	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettlementHandler serves campaigns, investments and microloans
type SettlementHandler struct {
	orch   *settlement.Orchestrator
	logger *zap.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(orch *settlement.Orchestrator, logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{orch: orch, logger: logger}
}

// RegisterRoutes registers settlement routes. admin guards campaign approval
// and the release or cancel of investment escrows, which may be signed with
// the farmer's stored secret.
func (h *SettlementHandler) RegisterRoutes(router *gin.RouterGroup, admin ...gin.HandlerFunc) {
	campaigns := router.Group("/campaigns")
	{
		campaigns.POST("", h.createCampaign)
		campaigns.GET("", h.listCampaigns)
		campaigns.GET("/:id", h.getCampaign)
		campaigns.POST("/:id/approve", chain(admin, h.approveCampaign)...)
	}

	investments := router.Group("/investments")
	{
		investments.POST("", h.invest)
		investments.GET("", h.listInvestments)
		investments.GET("/:id", h.getInvestment)
		investments.POST("/:id/release", chain(admin, h.releaseEscrow)...)
		investments.POST("/:id/cancel", chain(admin, h.cancelEscrow)...)
	}

	microloans := router.Group("/microloans")
	{
		microloans.POST("", h.createMicroloan)
		microloans.GET("", h.listMicroloans)
		microloans.GET("/:id", h.getMicroloan)
		microloans.POST("/:id/finish", h.finishMicroloan)
		microloans.POST("/:id/cancel", h.cancelMicroloan)
	}
}

// pathID parses the :id segment, answering 400 when it is not a positive integer
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, errors.New("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// bindOptionalJSON accepts an empty body
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return false
	}
	return true
}

// chain appends handler to a copy of middleware
func chain(middleware []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(middleware)+1)
	out = append(out, middleware...)
	return append(out, handler)
}
