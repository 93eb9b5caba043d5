package lending

import (
	"math"
	"math/big"
)

const (
	// UnitsPerPeriod is the number of chain-height units in one accrual
	// period (one day of ten-minute blocks).
	UnitsPerPeriod = 144

	// MaxOraclePrice is the sanity ceiling for oracle quotes.
	MaxOraclePrice = 1_000_000_000_000

	// MaxUserPositions caps how many positions a borrower may hold open at
	// the same time.
	MaxUserPositions = 10

	// MinRatioFloor is the lowest value accepted for either the minimum
	// collateral ratio or the liquidation threshold, in percent.
	MinRatioFloor = 110
)

var hundred = big.NewInt(100)

// CollateralRatio returns floor(collateral * price / debt) * 100, the health
// ratio of a position in percent. Division truncates toward zero, so the
// protocol always rounds against the borrower. A zero debt never occurs for a
// stored position; it is reported as a zero ratio rather than a panic. Results
// beyond the uint64 range saturate, which still compares above any threshold.
func CollateralRatio(collateral, debt, price uint64) uint64 {
	if debt == 0 {
		return 0
	}
	value := new(big.Int).Mul(
		new(big.Int).SetUint64(collateral),
		new(big.Int).SetUint64(price),
	)
	value.Quo(value, new(big.Int).SetUint64(debt))
	value.Mul(value, hundred)
	if !value.IsUint64() {
		return math.MaxUint64
	}
	return value.Uint64()
}

// MeetsMinimumRatio reports whether collateral valued at the given price
// covers the debt at the minimum ratio: collateral * price * 100 >=
// debt * minRatio. The comparison is exact, with no truncation, so the
// admission boundary is non-strict.
func MeetsMinimumRatio(collateral, price, debt, minRatio uint64) bool {
	value := new(big.Int).Mul(
		new(big.Int).SetUint64(collateral),
		new(big.Int).SetUint64(price),
	)
	value.Mul(value, hundred)
	required := new(big.Int).Mul(
		new(big.Int).SetUint64(debt),
		new(big.Int).SetUint64(minRatio),
	)
	return value.Cmp(required) >= 0
}

// InterestOwed returns the simple interest accrued on a principal at the
// fixed annualized-equivalent rate over elapsed height units:
// floor(principal * rate / (100 * UnitsPerPeriod)) * elapsed. Truncation
// happens before scaling by elapsed, so rounding loss accrues to the
// protocol.
func InterestOwed(principal, rate, elapsed uint64) uint64 {
	if principal == 0 || rate == 0 || elapsed == 0 {
		return 0
	}
	perUnit := new(big.Int).Mul(
		new(big.Int).SetUint64(principal),
		new(big.Int).SetUint64(rate),
	)
	perUnit.Quo(perUnit, big.NewInt(100*UnitsPerPeriod))
	perUnit.Mul(perUnit, new(big.Int).SetUint64(elapsed))
	if !perUnit.IsUint64() {
		return math.MaxUint64
	}
	return perUnit.Uint64()
}

// IsHealthy reports whether a position survives a liquidation check. The
// comparison is strict: a ratio exactly at the threshold is liquidated.
func IsHealthy(collateral, debt, price, threshold uint64) bool {
	return CollateralRatio(collateral, debt, price) > threshold
}

// SafeAdd adds two unsigned amounts, rejecting overflow.
func SafeAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrInvalidAmount
	}
	return a + b, nil
}

// SafeSub subtracts b from a, rejecting underflow.
func SafeSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrInvalidAmount
	}
	return a - b, nil
}
