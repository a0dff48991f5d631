package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownWallet is returned for wallet ids the provider cannot unlock.
var ErrUnknownWallet = errors.New("wallet: unknown wallet")

// Provider resolves the signer for one request. An empty walletID selects
// the provider's default wallet.
type Provider interface {
	Signer(ctx context.Context, walletID string) (Signer, error)
}

// StaticProvider serves a single key loaded at startup.
type StaticProvider struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	nonces  NonceSource
	locks   *NonceLocks
}

// NewStaticProvider wraps a hex-encoded private key.
func NewStaticProvider(hexKey string, chainID *big.Int, nonces NonceSource, locks *NonceLocks) (*StaticProvider, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	if locks == nil {
		locks = NewNonceLocks()
	}
	return &StaticProvider{key: key, chainID: chainID, nonces: nonces, locks: locks}, nil
}

// Signer implements Provider. walletID, when set, must match the key's address.
func (p *StaticProvider) Signer(_ context.Context, walletID string) (Signer, error) {
	signer, err := NewKeyedSigner(p.key, p.chainID, p.nonces, p.locks)
	if err != nil {
		return nil, err
	}
	if id := strings.TrimSpace(walletID); id != "" && !strings.EqualFold(id, signer.Address().Hex()) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, id)
	}
	return signer, nil
}

// KeystoreProvider unlocks encrypted keystore files on demand. The key is
// decrypted per request and never retained by the provider.
type KeystoreProvider struct {
	store      *keystore.KeyStore
	passphrase string
	fallback   common.Address
	chainID    *big.Int
	nonces     NonceSource
	locks      *NonceLocks
}

// KeystoreConfig configures a KeystoreProvider.
type KeystoreConfig struct {
	Dir            string
	Passphrase     string
	DefaultAddress string
}

// NewKeystoreProvider opens the keystore directory.
func NewKeystoreProvider(cfg KeystoreConfig, chainID *big.Int, nonces NonceSource, locks *NonceLocks) (*KeystoreProvider, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("wallet: keystore dir is required")
	}
	if locks == nil {
		locks = NewNonceLocks()
	}
	ks := keystore.NewKeyStore(cfg.Dir, keystore.StandardScryptN, keystore.StandardScryptP)
	p := &KeystoreProvider{
		store:      ks,
		passphrase: cfg.Passphrase,
		chainID:    chainID,
		nonces:     nonces,
		locks:      locks,
	}
	switch {
	case common.IsHexAddress(cfg.DefaultAddress):
		p.fallback = common.HexToAddress(cfg.DefaultAddress)
	case len(ks.Accounts()) > 0:
		p.fallback = ks.Accounts()[0].Address
	}
	return p, nil
}

// Signer implements Provider. walletID is the account address.
func (p *KeystoreProvider) Signer(_ context.Context, walletID string) (Signer, error) {
	address := p.fallback
	if id := strings.TrimSpace(walletID); id != "" {
		if !common.IsHexAddress(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, id)
		}
		address = common.HexToAddress(id)
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: no default account", ErrUnknownWallet)
	}
	account, err := p.store.Find(accounts.Account{Address: address})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, address.Hex())
	}
	blob, err := os.ReadFile(account.URL.Path)
	if err != nil {
		return nil, fmt.Errorf("wallet: read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(blob, p.passphrase)
	if err != nil {
		return nil, fmt.Errorf("wallet: unlock %s: %w", address.Hex(), err)
	}
	return NewKeyedSigner(key.PrivateKey, p.chainID, p.nonces, p.locks)
}

// Close stops the keystore's directory watcher.
func (p *KeystoreProvider) Close() {
	if p == nil || p.store == nil {
		return
	}
	for _, w := range p.store.Wallets() {
		_ = w.Close()
	}
}
