package web3

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ChainSnapshot represents summarized network metadata for UI/reporting.
type ChainSnapshot struct {
	Name        string `json:"name"`
	ChainID     string `json:"chain_id"`
	BlockNumber string `json:"block_number"`
	Notes       string `json:"notes,omitempty"`
}

// WalletInfo is the read-only account view served to wallet lookups.
type WalletInfo struct {
	Address common.Address
	Balance *big.Int
	TxCount uint64
	ChainID *big.Int
	Network string
}

// Backend is what contract bindings need: calls, transactions and receipt
// polling for bind.WaitMined.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client defines the common interface that any chain implementation must
// provide so higher layers can interact with different networks uniformly.
type Client interface {
	Name() string
	ChainID(ctx context.Context) (*big.Int, error)
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	WalletInfo(ctx context.Context, address common.Address) (WalletInfo, error)
	Backend() Backend
	Close()
}
