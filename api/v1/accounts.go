package v1

import (
	"net/http"

	"farmfund/funding-portal/funding-portal-backend/internal/financing/tokenization"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccountsHandler serves ledger account views, NFTs and credentials
type AccountsHandler struct {
	service *tokenization.Service
	logger  *zap.Logger
}

// NewAccountsHandler creates a new accounts handler
func NewAccountsHandler(service *tokenization.Service, logger *zap.Logger) *AccountsHandler {
	return &AccountsHandler{service: service, logger: logger}
}

// RegisterRoutes registers account, NFT and credential routes; admin guards credential issuance
func (h *AccountsHandler) RegisterRoutes(router *gin.RouterGroup, admin ...gin.HandlerFunc) {
	accounts := router.Group("/accounts/:address")
	{
		accounts.GET("", h.getAccount)
		accounts.GET("/trustlines", h.getTrustLines)
		accounts.GET("/nfts", h.getNFTs)
		accounts.GET("/credentials", h.getCredentials)
	}

	nfts := router.Group("/nfts")
	{
		nfts.POST("", h.mintNFT)
		nfts.POST("/:id/transfer", h.transferNFT)
		nfts.POST("/:id/burn", h.burnNFT)
	}

	router.POST("/credentials", chain(admin, h.issueCredential)...)
}

// getAccount handles GET /api/v1/accounts/:address
func (h *AccountsHandler) getAccount(c *gin.Context) {
	overview, err := h.service.AccountOverview(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// getTrustLines handles GET /api/v1/accounts/:address/trustlines
func (h *AccountsHandler) getTrustLines(c *gin.Context) {
	lines, err := h.service.TrustLines(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trust_lines": lines, "count": len(lines)})
}

// getNFTs handles GET /api/v1/accounts/:address/nfts
func (h *AccountsHandler) getNFTs(c *gin.Context) {
	nfts, err := h.service.NFTs(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": nfts, "count": len(nfts)})
}

// getCredentials handles GET /api/v1/accounts/:address/credentials
func (h *AccountsHandler) getCredentials(c *gin.Context) {
	creds, err := h.service.Credentials(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds, "count": len(creds)})
}

// mintNFT handles POST /api/v1/nfts
func (h *AccountsHandler) mintNFT(c *gin.Context) {
	var req tokenization.MintNFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	minted, err := h.service.MintNFT(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, minted)
}

// transferNFT handles POST /api/v1/nfts/:id/transfer
func (h *AccountsHandler) transferNFT(c *gin.Context) {
	var req tokenization.TransferNFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.NFTokenID = c.Param("id")

	receipt, err := h.service.TransferNFT(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// burnNFT handles POST /api/v1/nfts/:id/burn
func (h *AccountsHandler) burnNFT(c *gin.Context) {
	var req tokenization.BurnNFTRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.NFTokenID = c.Param("id")

	receipt, err := h.service.BurnNFT(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

// issueCredential handles POST /api/v1/credentials
func (h *AccountsHandler) issueCredential(c *gin.Context) {
	var req tokenization.IssueCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	receipt, err := h.service.IssueCredential(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}
