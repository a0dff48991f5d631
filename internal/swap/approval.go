package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	xerrors "OpenMCP-Swap/internal/errors"
	"OpenMCP-Swap/internal/wallet"
	"OpenMCP-Swap/pkg/logger"
)

// ReceiptWaiter blocks until a transaction is mined.
type ReceiptWaiter interface {
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// BackendWaiter polls a deploy backend for receipts.
type BackendWaiter struct {
	Backend bind.DeployBackend
}

// WaitMined implements ReceiptWaiter.
func (w BackendWaiter) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, w.Backend, tx)
}

// ApprovalCoordinator grants the router an allowance before a sell.
type ApprovalCoordinator struct {
	approver Approver
	spender  common.Address
	waiter   ReceiptWaiter
	log      *slog.Logger
}

// NewApprovalCoordinator approves spender on behalf of the signer. When
// waiter is non-nil the approval must be mined successfully before Approve
// returns.
func NewApprovalCoordinator(approver Approver, spender common.Address, waiter ReceiptWaiter, log *slog.Logger) *ApprovalCoordinator {
	return &ApprovalCoordinator{approver: approver, spender: spender, waiter: waiter, log: log}
}

// Approve submits approve(spender, amount) on token. Existing allowances are
// not consulted.
func (a *ApprovalCoordinator) Approve(ctx context.Context, signer wallet.Signer, token common.Address, amount *big.Int) (common.Hash, error) {
	tx, err := signer.Transact(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return a.approver.Approve(opts, token, a.spender, amount)
	})
	if err != nil {
		return common.Hash{}, a.failed(token, common.Hash{}, err)
	}
	hash := tx.Hash()
	logger.Audit().Info("swap approval submitted",
		slog.String("token", token.Hex()),
		slog.String("spender", a.spender.Hex()),
		slog.String("owner", signer.Address().Hex()),
		slog.String("amount", amount.String()),
		slog.String("tx_hash", hash.Hex()))

	if a.waiter == nil {
		return hash, nil
	}
	receipt, err := a.waiter.WaitMined(ctx, tx)
	if err != nil {
		return hash, a.failed(token, hash, fmt.Errorf("wait for approval: %w", err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return hash, a.failed(token, hash, errors.New("approval transaction reverted"))
	}
	a.log.Debug("approval mined", slog.String("tx_hash", hash.Hex()), slog.Uint64("block", receipt.BlockNumber.Uint64()))
	return hash, nil
}

func (a *ApprovalCoordinator) failed(token common.Address, hash common.Hash, cause error) *xerrors.Error {
	opts := []xerrors.Option{
		xerrors.WithMetadata("token", token.Hex()),
		xerrors.WithMetadata("spender", a.spender.Hex()),
		xerrors.WithMetadata("step", string(StateApproved)),
	}
	if hash != (common.Hash{}) {
		opts = append(opts, xerrors.WithMetadata("tx_hash", hash.Hex()))
	}
	return xerrors.Wrap(CodeApprovalFailed, cause, "", opts...)
}
