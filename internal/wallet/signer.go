// Package wallet provides request-scoped transaction signers. A Provider hands
// out a Signer per request; signers of the same key share a nonce lock so
// concurrent swaps from one wallet never race on the pending nonce.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// SendFunc submits one transaction with the prepared options.
type SendFunc func(opts *bind.TransactOpts) (*types.Transaction, error)

// Signer is the unlocked wallet handle the swap engine signs with.
type Signer interface {
	Address() common.Address
	// Transact assigns the next nonce and calls send while holding the
	// wallet's nonce lock.
	Transact(ctx context.Context, send SendFunc) (*types.Transaction, error)
}

// NonceSource is the subset of the chain backend a signer needs.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceLocks hands out one mutex per address.
type NonceLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

// NewNonceLocks creates an empty lock table.
func NewNonceLocks() *NonceLocks {
	return &NonceLocks{locks: make(map[common.Address]*sync.Mutex)}
}

// For returns the lock guarding address.
func (n *NonceLocks) For(address common.Address) *sync.Mutex {
	n.mu.Lock()
	defer n.mu.Unlock()
	lock, ok := n.locks[address]
	if !ok {
		lock = &sync.Mutex{}
		n.locks[address] = lock
	}
	return lock
}

// KeyedSigner signs with an in-memory private key.
type KeyedSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	nonces  NonceSource
	lock    *sync.Mutex
}

// NewKeyedSigner binds key to chainID. locks may be nil for a private lock.
func NewKeyedSigner(key *ecdsa.PrivateKey, chainID *big.Int, nonces NonceSource, locks *NonceLocks) (*KeyedSigner, error) {
	if key == nil {
		return nil, errors.New("wallet: private key is required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("wallet: chain id is required")
	}
	if nonces == nil {
		return nil, errors.New("wallet: nonce source is required")
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	lock := &sync.Mutex{}
	if locks != nil {
		lock = locks.For(address)
	}
	return &KeyedSigner{
		key:     key,
		address: address,
		chainID: new(big.Int).Set(chainID),
		nonces:  nonces,
		lock:    lock,
	}, nil
}

// Address returns the signer's account.
func (s *KeyedSigner) Address() common.Address { return s.address }

// Transact implements Signer.
func (s *KeyedSigner) Transact(ctx context.Context, send SendFunc) (*types.Transaction, error) {
	if send == nil {
		return nil, errors.New("wallet: send function is required")
	}
	s.lock.Lock()
	defer s.lock.Unlock()

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("wallet: build transactor: %w", err)
	}
	nonce, err := s.nonces.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, fmt.Errorf("wallet: pending nonce: %w", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(nonce)
	return send(opts)
}

// ParsePrivateKey accepts a hex key with or without 0x prefix.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}
	return key, nil
}
