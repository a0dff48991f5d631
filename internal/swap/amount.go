package swap

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"OpenMCP-Swap/internal/web3"
)

// NativeDecimals is the precision of the chain's native currency.
const NativeDecimals uint8 = 18

const (
	// maxIntegerDigits is the digit count of 2^256.
	maxIntegerDigits = 78
	// maxFractionDigits matches the widest uint8 token precision.
	maxFractionDigits = 255
	maxBaseUnitBits   = 256
)

// ParseAmount validates a human-unit amount and returns it as a decimal.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, newInvalidInput("amount_in", "amount is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, newInvalidInput("amount_in", "amount must be a number")
	}
	if !amount.IsPositive() {
		return decimal.Zero, newInvalidInput("amount_in", "amount must be positive")
	}
	exp := int64(amount.Exponent())
	if int64(len(amount.Coefficient().String()))+exp > maxIntegerDigits {
		return decimal.Zero, newInvalidInput("amount_in", "amount is too large")
	}
	if exp < -maxFractionDigits {
		return decimal.Zero, newInvalidInput("amount_in", "amount has too many decimal places")
	}
	return amount, nil
}

// ToBaseUnits scales amount by 10^decimals and truncates the remainder. The
// result must fit a uint256.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	scaled := amount.Shift(int32(decimals)).Truncate(0)
	if !scaled.IsPositive() {
		return nil, newInvalidInput("amount_in", "amount is below the token's precision")
	}
	units := scaled.BigInt()
	if units.BitLen() > maxBaseUnitBits {
		return nil, newInvalidInput("amount_in", "amount exceeds the uint256 range")
	}
	return units, nil
}

// FormatAmount renders base units in human units.
func FormatAmount(amount *big.Int, decimals uint8) string {
	return web3.FormatUnits(amount, decimals, int32(decimals))
}
