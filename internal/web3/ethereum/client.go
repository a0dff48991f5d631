package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"OpenMCP-Swap/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Config describes how to construct an EVM compatible client.
type Config struct {
	Name    string
	RPCURL  string
	ChainID int64
	Network string
	Notes   string
}

// chainBackend is satisfied by both *ethclient.Client and the simulated
// backend client.
type chainBackend interface {
	web3.Backend
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

// Client implements the web3.Client interface for EVM compatible chains.
type Client struct {
	name      string
	network   string
	notes     string
	rpcClient *gethrpc.Client
	backend   chainBackend

	mu      sync.Mutex
	chainID *big.Int
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	client := &Client{
		name:      cfg.Name,
		network:   cfg.Network,
		notes:     cfg.Notes,
		rpcClient: rpcClient,
		backend:   ethclient.NewClient(rpcClient),
	}
	if cfg.ChainID > 0 {
		client.chainID = big.NewInt(cfg.ChainID)
	}
	return client, nil
}

// NewSimulatedClient wraps a go-ethereum simulated backend client for tests.
func NewSimulatedClient(name string, backend chainBackend) *Client {
	return &Client{
		name:    name,
		network: name,
		backend: backend,
		notes:   "simulated backend",
	}
}

// Name returns the chain name from the chain definitions.
func (c *Client) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Backend exposes the contract backend used by ABI bindings and signers.
func (c *Client) Backend() web3.Backend {
	if c == nil || c.backend == nil {
		return nil
	}
	return c.backend
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
	}
}

// ChainID returns the configured chain id, asking the node once if the
// definition did not carry one.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	if c == nil || c.backend == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取链 ID 失败: %w", err)
	}
	c.chainID = id
	return new(big.Int).Set(id), nil
}

// FetchChainSnapshot gathers lightweight metadata from the chain.
func (c *Client) FetchChainSnapshot(ctx context.Context) (web3.ChainSnapshot, error) {
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, err
	}
	blockNumber, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return web3.ChainSnapshot{}, fmt.Errorf("获取最新区块高度失败: %w", err)
	}
	return web3.ChainSnapshot{
		Name:        c.name,
		ChainID:     toHexBig(chainID),
		BlockNumber: fmt.Sprintf("0x%x", blockNumber),
		Notes:       c.notes,
	}, nil
}

// WalletInfo reads balance and confirmed transaction count for an account.
func (c *Client) WalletInfo(ctx context.Context, address common.Address) (web3.WalletInfo, error) {
	if address == (common.Address{}) {
		return web3.WalletInfo{}, errors.New("钱包地址不能为空")
	}
	chainID, err := c.ChainID(ctx)
	if err != nil {
		return web3.WalletInfo{}, err
	}
	balance, err := c.backend.BalanceAt(ctx, address, nil)
	if err != nil {
		return web3.WalletInfo{}, fmt.Errorf("查询余额失败: %w", err)
	}
	nonce, err := c.backend.NonceAt(ctx, address, nil)
	if err != nil {
		return web3.WalletInfo{}, fmt.Errorf("查询交易计数失败: %w", err)
	}
	return web3.WalletInfo{
		Address: address,
		Balance: balance,
		TxCount: nonce,
		ChainID: chainID,
		Network: c.network,
	}, nil
}

func toHexBig(n *big.Int) string {
	if n == nil {
		return "0x0"
	}
	return "0x" + n.Text(16)
}
