package swap

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	xerrors "OpenMCP-Swap/internal/errors"
)

// FallbackDecimals is assumed when a token's decimals cannot be read.
const FallbackDecimals uint8 = 18

// DecimalsCache stores decimals that were read successfully.
type DecimalsCache interface {
	Get(ctx context.Context, token common.Address) (uint8, bool, error)
	Set(ctx context.Context, token common.Address, decimals uint8) error
}

// Decimals is a resolved precision. Fallback is set when Value is the
// assumed FallbackDecimals rather than a value read from the token; Err then
// carries a DECIMALS_UNAVAILABLE error.
type Decimals struct {
	Value    uint8
	Fallback bool
	Err      error
}

// DecimalsResolver reads token precision and never fails.
type DecimalsResolver struct {
	reader DecimalsReader
	cache  DecimalsCache
	log    *slog.Logger
}

// NewDecimalsResolver creates a resolver. cache may be nil.
func NewDecimalsResolver(reader DecimalsReader, cache DecimalsCache, log *slog.Logger) *DecimalsResolver {
	return &DecimalsResolver{reader: reader, cache: cache, log: log}
}

// Resolve returns the token's decimals, or the fallback when the read fails.
func (r *DecimalsResolver) Resolve(ctx context.Context, token common.Address) Decimals {
	if r.cache != nil {
		value, ok, err := r.cache.Get(ctx, token)
		switch {
		case err != nil:
			r.log.Debug("decimals cache read failed", slog.String("token", token.Hex()), slog.String("error", err.Error()))
		case ok:
			return Decimals{Value: value}
		}
	}

	value, err := r.reader.TokenDecimals(ctx, token)
	if err != nil {
		return Decimals{
			Value:    FallbackDecimals,
			Fallback: true,
			Err: xerrors.Wrap(CodeDecimalsUnavailable, err, "",
				xerrors.WithMetadata("token", token.Hex()),
				xerrors.WithMetadata("step", string(StateAmountNormalized))),
		}
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, token, value); err != nil {
			r.log.Debug("decimals cache write failed", slog.String("token", token.Hex()), slog.String("error", err.Error()))
		}
	}
	return Decimals{Value: value}
}
