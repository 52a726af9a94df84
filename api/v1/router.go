package v1

import (
	"net/http"
	"time"

	"farmfund/funding-portal/funding-portal-backend/internal/auth"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/settlement"
	"farmfund/funding-portal/funding-portal-backend/internal/financing/tokenization"
	"farmfund/funding-portal/funding-portal-backend/internal/notifications/websocket"
	"farmfund/funding-portal/funding-portal-backend/internal/reports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies are the services exposed over HTTP. Tokens and WebSocket are optional:
// without Tokens the admin routes are unauthenticated, without WebSocket /ws/events is absent.
type Dependencies struct {
	Orchestrator *settlement.Orchestrator
	Tokenization *tokenization.Service
	Reports      *reports.Service
	WebSocket    *websocket.Manager
	Tokens       *auth.TokenManager
	Logger       *zap.Logger
}

// NewRouter builds the gin engine with every portal route registered
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(deps.Logger), cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
	})

	admin := []gin.HandlerFunc{}
	if deps.Tokens != nil {
		admin = append(admin, auth.RequireAuth(deps.Tokens), auth.RequireRole(auth.RoleAdmin))
		auth.RegisterRoutes(router, auth.NewHandler(deps.Tokens))
	} else {
		deps.Logger.Warn("JWT secret not configured; admin routes are unauthenticated")
	}

	api := router.Group("/api/v1")
	{
		NewSettlementHandler(deps.Orchestrator, deps.Logger).RegisterRoutes(api, admin...)
		if deps.Tokenization != nil {
			NewAccountsHandler(deps.Tokenization, deps.Logger).RegisterRoutes(api, admin...)
		}
		if deps.Reports != nil {
			RegisterReportsRoutes(api, SetupReportsAPI(deps.Reports, deps.Logger))
		}
	}

	if deps.WebSocket != nil {
		router.GET("/ws/events", eventStream(deps.WebSocket, deps.Logger))
	}
	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// eventStream handles GET /ws/events. Clients subscribe to campaigns after connecting.
func eventStream(manager *websocket.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("client_id")
		if userID == "" {
			userID = "anonymous"
		}
		if _, err := manager.HandleConnection(c.Writer, c.Request, userID); err != nil {
			logger.Warn("WebSocket upgrade failed", zap.Error(err))
		}
	}
}
