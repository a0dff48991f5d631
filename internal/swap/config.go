package swap

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Base mainnet deployments.
var (
	BaseWETH   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	BaseRouter = common.HexToAddress("0x2626664c2603336E57B271c5C0b26F421741e481")
	BaseQuoter = common.HexToAddress("0x28aF629a9F3ECE3c8D9F0b7cCf6349708CeC8cFb")
)

// DefaultSellGasLimit caps a sell submitted before its approval is mined.
// Estimation would run against the old allowance and revert.
const DefaultSellGasLimit = 300_000

// Config fixes the engine's chain and trading parameters. SellGasLimit only
// applies when approvals are not confirmed before the swap.
type Config struct {
	IndexChain        string
	WETH              common.Address
	Router            common.Address
	Quoter            common.Address
	FeeTier           FeeTier
	TolerancePerMille uint32
	Deadline          time.Duration
	SellGasLimit      uint64
}

// DefaultConfig targets Base mainnet.
func DefaultConfig() Config {
	return Config{
		IndexChain:        "base",
		WETH:              BaseWETH,
		Router:            BaseRouter,
		Quoter:            BaseQuoter,
		FeeTier:           Fee3000,
		TolerancePerMille: DefaultTolerancePerMille,
		Deadline:          DefaultDeadline,
		SellGasLimit:      DefaultSellGasLimit,
	}
}

// Validate checks that every address is set and the fee tier exists.
func (c Config) Validate() error {
	if c.IndexChain == "" {
		return fmt.Errorf("swap: index chain is required")
	}
	for name, addr := range map[string]common.Address{"weth": c.WETH, "router": c.Router, "quoter": c.Quoter} {
		if addr == (common.Address{}) {
			return fmt.Errorf("swap: %s address is required", name)
		}
	}
	if !c.FeeTier.Valid() {
		return fmt.Errorf("swap: unsupported fee tier %d", c.FeeTier)
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("swap: deadline must be positive")
	}
	return nil
}
