package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lending-ledger/internal/auth"
	"lending-ledger/internal/models"
	"lending-ledger/internal/services"
)

// AdminHandler exposes the administrator capabilities: initialization, risk
// parameters, oracle quotes, and the logical clock.
type AdminHandler struct {
	paramsService *services.ParamsService
	oracleService *services.OracleService
	adminWallet   string
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(paramsService *services.ParamsService, oracleService *services.OracleService, adminWallet string) *AdminHandler {
	return &AdminHandler{
		paramsService: paramsService,
		oracleService: oracleService,
		adminWallet:   adminWallet,
	}
}

// AdminMiddleware checks that the authenticated wallet is the administrator
func (h *AdminHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := auth.GetWalletAddress(c)
		if !ok || wallet != h.adminWallet {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Initialize runs the one-time platform initialization
// POST /api/admin/initialize
func (h *AdminHandler) Initialize(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)

	if err := h.paramsService.Initialize(c.Request.Context(), wallet); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"initialized": true})
}

// SetMinimumRatio updates the minimum collateral ratio
// PUT /api/admin/params/minimum-ratio
func (h *AdminHandler) SetMinimumRatio(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)

	var req models.SetRatioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.paramsService.SetMinimumRatio(c.Request.Context(), wallet, req.Value); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"minimum_collateral_ratio": req.Value})
}

// SetLiquidationThreshold updates the liquidation threshold
// PUT /api/admin/params/liquidation-threshold
func (h *AdminHandler) SetLiquidationThreshold(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)

	var req models.SetRatioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.paramsService.SetLiquidationThreshold(c.Request.Context(), wallet, req.Value); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"liquidation_threshold": req.Value})
}

// SetFeeRate updates the protocol fee rate
// PUT /api/admin/params/fee-rate
func (h *AdminHandler) SetFeeRate(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)

	var req models.SetRatioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.paramsService.SetFeeRate(c.Request.Context(), wallet, req.Value); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fee_rate": req.Value})
}

// SetPrice records a new oracle quote
// POST /api/admin/oracle/price
func (h *AdminHandler) SetPrice(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)

	var req models.SetPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.oracleService.SetPrice(c.Request.Context(), wallet, req.Asset, req.Price); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": req.Asset, "price": req.Price})
}

// GetPrice returns the latest quote for an asset
// GET /api/prices/:asset
func (h *AdminHandler) GetPrice(c *gin.Context) {
	quote, err := h.oracleService.GetPrice(c.Request.Context(), c.Param("asset"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"price": quote})
}

// AdvanceClock moves the logical clock forward
// POST /api/admin/clock/advance
func (h *AdminHandler) AdvanceClock(c *gin.Context) {
	wallet, _ := auth.GetWalletAddress(c)

	var req models.AdvanceClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	height, err := h.paramsService.AdvanceChainHeight(c.Request.Context(), wallet, req.Blocks)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chain_height": height})
}
