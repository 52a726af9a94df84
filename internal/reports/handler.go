package reports

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"farmfund/funding-portal/funding-portal-backend/internal/financing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeCSV  = "text/csv"
	contentTypePDF  = "application/pdf"
)

// Handler handles HTTP requests for reporting operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers reporting routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/summary", h.getSummary)
		reports.GET("/investments.xlsx", h.exportWorkbook)
		reports.GET("/investments.csv", h.exportCSV)
	}
	router.GET("/investments/:id/statement.pdf", h.getStatement)
}

// getSummary handles GET /api/v1/reports/summary
func (h *Handler) getSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// exportWorkbook handles GET /api/v1/reports/investments.xlsx
func (h *Handler) exportWorkbook(c *gin.Context) {
	campaignID, ok := h.campaignFilter(c)
	if !ok {
		return
	}
	data, err := h.service.InvestmentsWorkbook(c.Request.Context(), campaignID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="investments.xlsx"`)
	c.Data(http.StatusOK, contentTypeXLSX, data)
}

// exportCSV handles GET /api/v1/reports/investments.csv
func (h *Handler) exportCSV(c *gin.Context) {
	campaignID, ok := h.campaignFilter(c)
	if !ok {
		return
	}
	data, err := h.service.InvestmentsCSV(c.Request.Context(), campaignID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="investments.csv"`)
	c.Data(http.StatusOK, contentTypeCSV, data)
}

// getStatement handles GET /api/v1/investments/:id/statement.pdf
func (h *Handler) getStatement(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid investment id"})
		return
	}
	data, err := h.service.InvestmentStatement(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="investment-%d.pdf"`, id))
	c.Data(http.StatusOK, contentTypePDF, data)
}

func (h *Handler) campaignFilter(c *gin.Context) (int64, bool) {
	raw := c.Query("campaign_id")
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid campaign_id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, financing.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("Report request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
