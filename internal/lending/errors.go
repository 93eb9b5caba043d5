package lending

import "errors"

// Every rejection the ledger can produce. Services return these wrapped with
// context; handlers map them onto HTTP responses. A rejected operation never
// leaves a partial write behind.
var (
	ErrUnauthorized           = errors.New("lending: caller is not authorized")
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	ErrBelowMinimum           = errors.New("lending: amount below protocol minimum")
	ErrInvalidAmount          = errors.New("lending: invalid amount")
	ErrAlreadyInitialized     = errors.New("lending: platform already initialized")
	ErrNotInitialized         = errors.New("lending: platform not initialized")
	ErrInvalidLiquidation     = errors.New("lending: position is not liquidatable")
	ErrLoanNotFound           = errors.New("lending: loan not found")
	ErrLoanNotActive          = errors.New("lending: loan is not active")
	ErrInvalidLoanId          = errors.New("lending: invalid loan id")
	ErrInvalidPrice           = errors.New("lending: invalid price")
	ErrInvalidAsset           = errors.New("lending: unrecognized asset")
)
