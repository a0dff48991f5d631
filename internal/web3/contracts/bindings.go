// Package contracts holds the ABI descriptors for the ERC20 token, quoter and
// router contracts. Load parses and validates them once; the resulting
// Bindings hands out typed wrappers bound to an address and backend.
package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type methodShape struct {
	name    string
	inputs  int
	outputs int
	// fields is the component count of the single tuple argument, 0 if none.
	fields int
}

var (
	erc20Methods = []methodShape{
		{name: "decimals", outputs: 1},
		{name: "symbol", outputs: 1},
		{name: "balanceOf", inputs: 1, outputs: 1},
		{name: "approve", inputs: 2, outputs: 1},
	}
	quoterMethods = []methodShape{
		{name: "quoteExactInputSingle", inputs: 1, outputs: 1, fields: 5},
	}
	routerMethods = []methodShape{
		{name: "exactInputSingle", inputs: 1, outputs: 1, fields: 8},
	}
)

// Bindings carries the parsed ABIs shared by every component that talks to
// the token, quoter or router.
type Bindings struct {
	erc20  abi.ABI
	quoter abi.ABI
	router abi.ABI
}

// Load parses the embedded ABI descriptors and checks that every required
// method is present with the expected arity.
func Load() (*Bindings, error) {
	erc20, err := parse("erc20", ERC20ABI, erc20Methods)
	if err != nil {
		return nil, err
	}
	quoter, err := parse("quoter", QuoterABI, quoterMethods)
	if err != nil {
		return nil, err
	}
	router, err := parse("router", RouterABI, routerMethods)
	if err != nil {
		return nil, err
	}
	return &Bindings{erc20: erc20, quoter: quoter, router: router}, nil
}

// MustLoad is Load for package-level initialisation in tests and tools.
func MustLoad() *Bindings {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

func parse(name, raw string, shapes []methodShape) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s abi: %w", name, err)
	}
	if err := validate(parsed, shapes); err != nil {
		return abi.ABI{}, fmt.Errorf("%s abi: %w", name, err)
	}
	return parsed, nil
}

func validate(parsed abi.ABI, shapes []methodShape) error {
	for _, shape := range shapes {
		method, ok := parsed.Methods[shape.name]
		if !ok {
			return fmt.Errorf("missing method %s", shape.name)
		}
		if len(method.Inputs) != shape.inputs || len(method.Outputs) != shape.outputs {
			return fmt.Errorf("method %s has %d inputs/%d outputs, want %d/%d",
				shape.name, len(method.Inputs), len(method.Outputs), shape.inputs, shape.outputs)
		}
		if shape.fields > 0 {
			arg := method.Inputs[0].Type
			if arg.T != abi.TupleTy || len(arg.TupleElems) != shape.fields {
				return fmt.Errorf("method %s expects a %d-field tuple", shape.name, shape.fields)
			}
		}
	}
	return nil
}

// Token binds the ERC20 descriptor to a token address.
func (b *Bindings) Token(address common.Address, backend bind.ContractBackend) *Token {
	return &Token{address: address, contract: bind.NewBoundContract(address, b.erc20, backend, backend, backend)}
}

// Quoter binds the quoter descriptor to the quoter address.
func (b *Bindings) Quoter(address common.Address, backend bind.ContractBackend) *Quoter {
	return &Quoter{contract: bind.NewBoundContract(address, b.quoter, backend, backend, backend)}
}

// Router binds the router descriptor to the router address.
func (b *Bindings) Router(address common.Address, backend bind.ContractBackend) *Router {
	return &Router{address: address, contract: bind.NewBoundContract(address, b.router, backend, backend, backend)}
}

// ERC20 exposes the parsed token ABI, e.g. for packing calldata in tests.
func (b *Bindings) ERC20() abi.ABI { return b.erc20 }

// QuoterABI exposes the parsed quoter ABI.
func (b *Bindings) QuoterABI() abi.ABI { return b.quoter }

// RouterABI exposes the parsed router ABI.
func (b *Bindings) RouterABI() abi.ABI { return b.router }

// Token is a minimal ERC20 wrapper.
type Token struct {
	address  common.Address
	contract *bind.BoundContract
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// Decimals reads decimals().
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	var out []any
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("decimals: empty result")
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

// Symbol reads symbol().
func (t *Token) Symbol(ctx context.Context) (string, error) {
	var out []any
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "symbol"); err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("symbol: empty result")
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

// BalanceOf reads balanceOf(account).
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []any
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("balanceOf: empty result")
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// Holding is an account's balance of one token.
type Holding struct {
	Token    common.Address
	Symbol   string
	Decimals uint8
	Balance  *big.Int
}

// Holding reads balanceOf(account) together with the token's decimals. The
// symbol is best effort: tokens that encode it as bytes32 keep it empty.
func (t *Token) Holding(ctx context.Context, account common.Address) (Holding, error) {
	balance, err := t.BalanceOf(ctx, account)
	if err != nil {
		return Holding{}, fmt.Errorf("balanceOf: %w", err)
	}
	decimals, err := t.Decimals(ctx)
	if err != nil {
		return Holding{}, fmt.Errorf("decimals: %w", err)
	}
	symbol, _ := t.Symbol(ctx)
	return Holding{Token: t.address, Symbol: symbol, Decimals: decimals, Balance: balance}, nil
}

// Approve submits approve(spender, amount).
func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "approve", spender, amount)
}

// QuoteExactInputSingleParams mirrors the quoter's tuple argument.
type QuoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Quoter wraps the static quoter contract.
type Quoter struct {
	contract *bind.BoundContract
}

// QuoteExactInputSingle simulates a single-pool exact-input swap.
func (q *Quoter) QuoteExactInputSingle(ctx context.Context, params QuoteExactInputSingleParams) (*big.Int, error) {
	var out []any
	if err := q.contract.Call(&bind.CallOpts{Context: ctx}, &out, "quoteExactInputSingle", params); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("quoteExactInputSingle: empty result")
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// ExactInputSingleParams mirrors the router's tuple argument.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Router wraps the swap router contract.
type Router struct {
	address  common.Address
	contract *bind.BoundContract
}

// Address returns the router address, which is also the approval spender.
func (r *Router) Address() common.Address { return r.address }

// ExactInputSingle submits a single-pool exact-input swap.
func (r *Router) ExactInputSingle(opts *bind.TransactOpts, params ExactInputSingleParams) (*types.Transaction, error) {
	return r.contract.Transact(opts, "exactInputSingle", params)
}
