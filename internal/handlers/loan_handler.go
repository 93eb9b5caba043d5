package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lending-ledger/internal/auth"
	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"
	"lending-ledger/internal/services"
)

// LoanHandler exposes the position ledger over HTTP
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

func parsePositionID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		respondError(c, lending.ErrInvalidLoanId)
		return 0, false
	}
	return uint(id), true
}

// DepositCollateral credits a verified on-chain transfer
// POST /api/collateral/deposit
func (h *LoanHandler) DepositCollateral(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	wallet, _ := auth.GetWalletAddress(c)

	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.loanService.DepositCollateral(c.Request.Context(), userID, wallet, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"free_balance": account.FreeBalance,
	})
}

// WithdrawCollateral releases free collateral back to the user
// POST /api/collateral/withdraw
func (h *LoanHandler) WithdrawCollateral(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.loanService.WithdrawCollateral(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"free_balance": account.FreeBalance,
	})
}

// RequestLoan opens a new position
// POST /api/loans
func (h *LoanHandler) RequestLoan(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	wallet, _ := auth.GetWalletAddress(c)

	var req models.RequestLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, err := h.loanService.RequestLoan(c.Request.Context(), userID, wallet, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"loan_id":  position.ID,
		"position": position,
	})
}

// Repay settles a position in full
// POST /api/loans/:id/repay
func (h *LoanHandler) Repay(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}

	var req models.RepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, owed, err := h.loanService.Repay(c.Request.Context(), userID, positionID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"position":    position,
		"amount_owed": owed,
		"amount_paid": req.Amount,
	})
}

// CheckLiquidation runs a health check on a position; anyone may call it
// POST /api/liquidations/:id/check
func (h *LoanHandler) CheckLiquidation(c *gin.Context) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}

	liquidated, position, err := h.loanService.CheckLiquidation(c.Request.Context(), positionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"liquidated": liquidated,
		"status":     position.Status,
	})
}

// GetPosition returns a single position projection
// GET /api/positions/:id
func (h *LoanHandler) GetPosition(c *gin.Context) {
	positionID, ok := parsePositionID(c)
	if !ok {
		return
	}

	position, err := h.loanService.GetPosition(c.Request.Context(), positionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"position": position})
}

// GetUserPositions returns the authenticated user's positions
// GET /api/positions
func (h *LoanHandler) GetUserPositions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	positions, err := h.loanService.GetUserPositions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// GetStats returns the protocol-wide aggregates
// GET /api/stats
func (h *LoanHandler) GetStats(c *gin.Context) {
	stats, err := h.loanService.GetStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
