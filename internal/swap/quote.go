package swap

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/web3/contracts"
)

// QuoteEngine asks the quoter contract what a swap would return.
type QuoteEngine struct {
	quoter Quoter
}

// NewQuoteEngine wraps quoter.
func NewQuoteEngine(quoter Quoter) *QuoteEngine {
	return &QuoteEngine{quoter: quoter}
}

// Quote simulates swapping amountIn of tokenIn through the pool with the
// given fee. A failed or empty quote carries Err and a zero AmountOut.
func (q *QuoteEngine) Quote(ctx context.Context, tokenIn, tokenOut common.Address, fee FeeTier, amountIn *big.Int) Quote {
	out, err := q.quoter.QuoteExactInputSingle(ctx, contracts.QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               fee.BigInt(),
		SqrtPriceLimitX96: new(big.Int),
	})
	if err == nil && (out == nil || out.Sign() <= 0) {
		err = errors.New("quoter returned no output")
	}
	if err != nil {
		return Quote{
			AmountIn:  amountIn,
			AmountOut: new(big.Int),
			Err: xerrors.Wrap(CodeQuoteFailed, err, "",
				xerrors.WithMetadata("token_in", tokenIn.Hex()),
				xerrors.WithMetadata("token_out", tokenOut.Hex()),
				xerrors.WithMetadata("step", string(StateQuoted))),
		}
	}
	return Quote{AmountIn: amountIn, AmountOut: out}
}
