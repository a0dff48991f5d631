package swap

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"OpenMCP-Swap/internal/web3/contracts"
)

// DecimalsReader reads an ERC20 token's precision.
type DecimalsReader interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// Quoter simulates a single-pool swap.
type Quoter interface {
	QuoteExactInputSingle(ctx context.Context, params contracts.QuoteExactInputSingleParams) (*big.Int, error)
}

// Approver submits ERC20 approvals.
type Approver interface {
	Approve(opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// RouterTransactor submits exactInputSingle swaps.
type RouterTransactor interface {
	RouterAddress() common.Address
	ExactInputSingle(opts *bind.TransactOpts, params contracts.ExactInputSingleParams) (*types.Transaction, error)
}

// Chain is everything the engine needs from the contracts.
type Chain interface {
	DecimalsReader
	Quoter
	Approver
	RouterTransactor
}

// BoundChain implements Chain on top of parsed ABI bindings.
type BoundChain struct {
	bindings *contracts.Bindings
	backend  bind.ContractBackend
	quoter   *contracts.Quoter
	router   *contracts.Router
}

// NewBoundChain binds the quoter and router at the configured addresses.
func NewBoundChain(bindings *contracts.Bindings, backend bind.ContractBackend, quoter, router common.Address) *BoundChain {
	return &BoundChain{
		bindings: bindings,
		backend:  backend,
		quoter:   bindings.Quoter(quoter, backend),
		router:   bindings.Router(router, backend),
	}
}

// TokenDecimals implements DecimalsReader.
func (c *BoundChain) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	return c.bindings.Token(token, c.backend).Decimals(ctx)
}

// TokenHolding reads owner's balance of token.
func (c *BoundChain) TokenHolding(ctx context.Context, token, owner common.Address) (contracts.Holding, error) {
	return c.bindings.Token(token, c.backend).Holding(ctx, owner)
}

// QuoteExactInputSingle implements Quoter.
func (c *BoundChain) QuoteExactInputSingle(ctx context.Context, params contracts.QuoteExactInputSingleParams) (*big.Int, error) {
	return c.quoter.QuoteExactInputSingle(ctx, params)
}

// Approve implements Approver.
func (c *BoundChain) Approve(opts *bind.TransactOpts, token, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return c.bindings.Token(token, c.backend).Approve(opts, spender, amount)
}

// RouterAddress implements RouterTransactor.
func (c *BoundChain) RouterAddress() common.Address { return c.router.Address() }

// ExactInputSingle implements RouterTransactor.
func (c *BoundChain) ExactInputSingle(opts *bind.TransactOpts, params contracts.ExactInputSingleParams) (*types.Transaction, error) {
	return c.router.ExactInputSingle(opts, params)
}
