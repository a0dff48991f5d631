// Package swap executes single-pool Uniswap V3 exactInputSingle swaps against
// an EVM chain. An Orchestrator takes a structured Intent through pool
// discovery, amount normalization, quoting, slippage bounding, approval (sell
// only) and submission, and always answers with a Result.
package swap

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "OpenMCP-Swap/internal/errors"
)

// Direction selects which side of the WETH pair the wallet pays with.
type Direction string

const (
	// Buy spends native currency to acquire the token.
	Buy Direction = "buy"
	// Sell spends the token to acquire native currency.
	Sell Direction = "sell"
)

// ParseDirection accepts buy/sell and the BuyToken/SellToken spellings.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "buytoken", "buy_token":
		return Buy, nil
	case "sell", "selltoken", "sell_token":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown direction %q", raw)
}

// Valid reports whether d is Buy or Sell.
func (d Direction) Valid() bool { return d == Buy || d == Sell }

// Intent is a structured request to swap.
type Intent struct {
	Token     string    `json:"token"`
	AmountIn  string    `json:"amount_in"`
	Direction Direction `json:"direction"`
}

// FeeTier is a Uniswap V3 pool fee in hundredths of a basis point.
type FeeTier uint32

const (
	Fee100   FeeTier = 100
	Fee500   FeeTier = 500
	Fee3000  FeeTier = 3000
	Fee10000 FeeTier = 10000
)

// Valid reports whether f is one of the deployed fee tiers.
func (f FeeTier) Valid() bool {
	switch f {
	case Fee100, Fee500, Fee3000, Fee10000:
		return true
	}
	return false
}

// BigInt returns f as the uint24 ABI value.
func (f FeeTier) BigInt() *big.Int { return new(big.Int).SetUint64(uint64(f)) }

// PoolInfo identifies the pool a swap routes through.
type PoolInfo struct {
	Address common.Address
	FeeTier FeeTier
}

// Quote is the simulated output of a swap. Err is set when quoting failed,
// in which case AmountOut is zero.
type Quote struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	Err       error
}

// Plan holds the exactInputSingle arguments and the value attached.
type Plan struct {
	TokenIn      common.Address
	TokenOut     common.Address
	Fee          FeeTier
	Recipient    common.Address
	Deadline     int64
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Value        *big.Int
	GasLimit     uint64
}

// State is a step of the swap lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StatePoolResolved     State = "pool_resolved"
	StateAmountNormalized State = "amount_normalized"
	StateQuoted           State = "quoted"
	StateApproved         State = "approved"
	StateSubmitted        State = "submitted"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
)

// Result is the outcome of one Execute call. TxHash is set only on success.
type Result struct {
	RequestID      string       `json:"request_id"`
	Success        bool         `json:"success"`
	TxHash         string       `json:"tx_hash,omitempty"`
	Message        string       `json:"message"`
	State          State        `json:"state"`
	Direction      Direction    `json:"direction"`
	Token          string       `json:"token"`
	ApprovalTxHash string       `json:"approval_tx_hash,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
	Code           xerrors.Code `json:"code,omitempty"`
	AmountIn       string       `json:"amount_in,omitempty"`
	QuotedOut      string       `json:"quoted_out,omitempty"`
	MinAmountOut   string       `json:"min_amount_out,omitempty"`
}

// Preview is the read-only part of a swap: what would be submitted.
type Preview struct {
	Token             common.Address `json:"token"`
	Direction         Direction      `json:"direction"`
	Pool              common.Address `json:"pool"`
	FeeTier           FeeTier        `json:"fee_tier"`
	TokenIn           common.Address `json:"token_in"`
	TokenOut          common.Address `json:"token_out"`
	Decimals          uint8          `json:"decimals"`
	AmountIn          *big.Int       `json:"amount_in"`
	QuotedOut         *big.Int       `json:"quoted_out"`
	MinAmountOut      *big.Int       `json:"min_amount_out"`
	TolerancePerMille uint32         `json:"tolerance_per_mille"`
	Warnings          []string       `json:"warnings,omitempty"`
}
