package v1

import (
	"farmfund/funding-portal/funding-portal-backend/internal/reports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReportsAPI holds the reports API dependencies
type ReportsAPI struct {
	Handler *reports.Handler
	Service *reports.Service
}

// SetupReportsAPI sets up the reports API around an existing service
func SetupReportsAPI(service *reports.Service, logger *zap.Logger) *ReportsAPI {
	return &ReportsAPI{
		Handler: reports.NewHandler(service, logger),
		Service: service,
	}
}

// RegisterReportsRoutes registers the reports routes on the router group
func RegisterReportsRoutes(router *gin.RouterGroup, api *ReportsAPI) {
	api.Handler.RegisterRoutes(router)
}
