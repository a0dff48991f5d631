package swap

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"OpenMCP-Swap/internal/dexscreener"
	xerrors "OpenMCP-Swap/internal/errors"
)

// LiquidityIndex lists trading pairs for a token.
type LiquidityIndex interface {
	Pairs(ctx context.Context, chain, token string) ([]dexscreener.Pair, error)
}

// PoolLocator picks the pool a swap routes through.
type PoolLocator struct {
	index   LiquidityIndex
	chain   string
	feeTier FeeTier
}

// NewPoolLocator queries index for pairs on chain. Every located pool is
// assigned feeTier.
func NewPoolLocator(index LiquidityIndex, chain string, feeTier FeeTier) *PoolLocator {
	return &PoolLocator{index: index, chain: chain, feeTier: feeTier}
}

// Locate returns the first pair the index lists for token.
func (l *PoolLocator) Locate(ctx context.Context, token common.Address) (PoolInfo, error) {
	pairs, err := l.index.Pairs(ctx, l.chain, strings.ToLower(token.Hex()))
	if err != nil && !errors.Is(err, dexscreener.ErrNoPairs) {
		return PoolInfo{}, poolNotFound(token, err)
	}
	if len(pairs) == 0 {
		return PoolInfo{}, poolNotFound(token, dexscreener.ErrNoPairs)
	}
	first := pairs[0]
	if !common.IsHexAddress(first.PairAddress) {
		return PoolInfo{}, poolNotFound(token, errors.New("first pair has no address"))
	}
	return PoolInfo{
		Address: common.HexToAddress(first.PairAddress),
		FeeTier: l.feeTier,
	}, nil
}

func poolNotFound(token common.Address, cause error) *xerrors.Error {
	return xerrors.Wrap(CodePoolNotFound, cause, "",
		xerrors.WithMetadata("token", token.Hex()),
		xerrors.WithMetadata("step", string(StatePoolResolved)))
}
