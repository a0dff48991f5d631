package swap

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/wallet"
	"OpenMCP-Swap/internal/web3/contracts"
	"OpenMCP-Swap/pkg/logger"
)

// DefaultDeadline is how long a submitted swap stays executable.
const DefaultDeadline = 20 * time.Minute

// Executor builds and submits exactInputSingle swaps.
type Executor struct {
	router   RouterTransactor
	weth     common.Address
	deadline time.Duration
}

// NewExecutor routes swaps against weth with the given deadline window.
func NewExecutor(router RouterTransactor, weth common.Address, deadline time.Duration) *Executor {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Executor{router: router, weth: weth, deadline: deadline}
}

// Route orders the pair: buys pay WETH for token, sells pay token for WETH.
func (e *Executor) Route(direction Direction, token common.Address) (tokenIn, tokenOut common.Address) {
	if direction == Sell {
		return token, e.weth
	}
	return e.weth, token
}

// Plan assembles the swap parameters at submission time now.
func (e *Executor) Plan(direction Direction, token common.Address, pool PoolInfo, recipient common.Address, amountIn, minOut *big.Int, now time.Time) Plan {
	tokenIn, tokenOut := e.Route(direction, token)
	plan := Plan{
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		Fee:          pool.FeeTier,
		Recipient:    recipient,
		Deadline:     now.Add(e.deadline).Unix(),
		AmountIn:     new(big.Int).Set(amountIn),
		MinAmountOut: new(big.Int).Set(minOut),
		Value:        new(big.Int),
	}
	if direction == Buy {
		plan.Value.Set(amountIn)
	}
	return plan
}

// Submit sends the swap through signer and returns its hash.
func (e *Executor) Submit(ctx context.Context, signer wallet.Signer, plan Plan) (common.Hash, error) {
	tx, err := signer.Transact(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		if plan.Value.Sign() > 0 {
			opts.Value = new(big.Int).Set(plan.Value)
		}
		if plan.GasLimit > 0 {
			opts.GasLimit = plan.GasLimit
		}
		return e.router.ExactInputSingle(opts, contracts.ExactInputSingleParams{
			TokenIn:           plan.TokenIn,
			TokenOut:          plan.TokenOut,
			Fee:               plan.Fee.BigInt(),
			Recipient:         plan.Recipient,
			Deadline:          big.NewInt(plan.Deadline),
			AmountIn:          plan.AmountIn,
			AmountOutMinimum:  plan.MinAmountOut,
			SqrtPriceLimitX96: new(big.Int),
		})
	})
	if err != nil {
		return common.Hash{}, xerrors.Wrap(CodeSwapExecutionFailed, err, "",
			xerrors.WithMetadata("token_in", plan.TokenIn.Hex()),
			xerrors.WithMetadata("token_out", plan.TokenOut.Hex()),
			xerrors.WithMetadata("router", e.router.RouterAddress().Hex()),
			xerrors.WithMetadata("step", string(StateSubmitted)))
	}
	hash := tx.Hash()
	logger.Audit().Info("swap submitted",
		slog.String("token_in", plan.TokenIn.Hex()),
		slog.String("token_out", plan.TokenOut.Hex()),
		slog.String("recipient", plan.Recipient.Hex()),
		slog.String("amount_in", plan.AmountIn.String()),
		slog.String("min_amount_out", plan.MinAmountOut.String()),
		slog.String("value", plan.Value.String()),
		slog.Int64("deadline", plan.Deadline),
		slog.String("tx_hash", hash.Hex()))
	return hash, nil
}
