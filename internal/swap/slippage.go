package swap

import (
	"fmt"
	"math/big"
)

// DefaultTolerancePerMille is a 5% slippage allowance.
const DefaultTolerancePerMille uint32 = 50

// SlippageGuard bounds the accepted output of a swap.
type SlippageGuard struct {
	tolerance uint32
}

// NewSlippageGuard accepts tolerances strictly between 0 and 1000 per mille.
func NewSlippageGuard(tolerancePerMille uint32) (SlippageGuard, error) {
	if tolerancePerMille == 0 || tolerancePerMille >= 1000 {
		return SlippageGuard{}, fmt.Errorf("slippage tolerance %d‰ out of range (0, 1000)", tolerancePerMille)
	}
	return SlippageGuard{tolerance: tolerancePerMille}, nil
}

// TolerancePerMille returns the configured tolerance.
func (g SlippageGuard) TolerancePerMille() uint32 { return g.tolerance }

// MinAmountOut returns amountOut * (1000 - tolerance) / 1000, truncated.
func (g SlippageGuard) MinAmountOut(amountOut *big.Int) *big.Int {
	if amountOut == nil {
		return new(big.Int)
	}
	bound := new(big.Int).Mul(amountOut, big.NewInt(int64(1000-g.tolerance)))
	return bound.Quo(bound, big.NewInt(1000))
}
