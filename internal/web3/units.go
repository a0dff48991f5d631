package web3

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// FormatUnits renders a base-unit amount with the given precision, rounded
// to places digits and without trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8, places int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).Round(places).String()
}

// FormatEther renders wei as ether with five decimal places, the precision
// used by balance lookups.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, 18, 5)
}

// IsHexAddress reports whether s is a 20-byte hex address with 0x prefix.
func IsHexAddress(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}
