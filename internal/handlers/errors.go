package handlers

import (
	"errors"
	"net/http"

	"lending-ledger/internal/lending"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	status int
	code   string
}

// Sentinel-to-HTTP map covering the full ledger error taxonomy.
var errorMappings = []struct {
	err     error
	mapping errorMapping
}{
	{lending.ErrUnauthorized, errorMapping{http.StatusForbidden, "UNAUTHORIZED"}},
	{lending.ErrInsufficientCollateral, errorMapping{http.StatusBadRequest, "INSUFFICIENT_COLLATERAL"}},
	{lending.ErrBelowMinimum, errorMapping{http.StatusBadRequest, "BELOW_MINIMUM"}},
	{lending.ErrInvalidAmount, errorMapping{http.StatusBadRequest, "INVALID_AMOUNT"}},
	{lending.ErrAlreadyInitialized, errorMapping{http.StatusConflict, "ALREADY_INITIALIZED"}},
	{lending.ErrNotInitialized, errorMapping{http.StatusConflict, "NOT_INITIALIZED"}},
	{lending.ErrInvalidLiquidation, errorMapping{http.StatusConflict, "INVALID_LIQUIDATION"}},
	{lending.ErrLoanNotFound, errorMapping{http.StatusNotFound, "LOAN_NOT_FOUND"}},
	{lending.ErrLoanNotActive, errorMapping{http.StatusConflict, "LOAN_NOT_ACTIVE"}},
	{lending.ErrInvalidLoanId, errorMapping{http.StatusBadRequest, "INVALID_LOAN_ID"}},
	{lending.ErrInvalidPrice, errorMapping{http.StatusBadRequest, "INVALID_PRICE"}},
	{lending.ErrInvalidAsset, errorMapping{http.StatusBadRequest, "INVALID_ASSET"}},
}

// respondError writes the HTTP response for a service error
func respondError(c *gin.Context, err error) {
	for _, entry := range errorMappings {
		if errors.Is(err, entry.err) {
			c.JSON(entry.mapping.status, gin.H{
				"error": entry.mapping.code,
			})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
