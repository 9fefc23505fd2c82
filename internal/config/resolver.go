package config

import (
	"errors"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
)

// ResolverConfig carries the engine's tunable policy knobs. Slippage
// tiers and escalation parameters are product policy, so they live here
// rather than as constants in the controller.
type ResolverConfig struct {
	// VerifyWorkers bounds concurrent on-chain verification calls per
	// request so candidate fan-out cannot overwhelm upstream rate limits.
	VerifyWorkers int

	// ReadTimeout applies to liquidity lookups, on-chain quotes and
	// simulations. BridgeTimeout applies to cross-chain bridge quotes,
	// which are allowed more headroom.
	ReadTimeout     time.Duration
	BridgeTimeout   time.Duration
	RequestDeadline time.Duration

	// PairCacheTTL bounds how long an Edge from the pair-data provider
	// stays usable.
	PairCacheTTL time.Duration

	// RouteTTL is how long a returned Route stays executable.
	RouteTTL time.Duration

	// MinLiquidityUSD is the floor below which an edge is not usable.
	MinLiquidityUSD float64

	// Auto-slippage policy.
	MaxSlippageBps      uint32
	SlippageMultiplier  uint32
	MaxSlippageAttempts int

	// HopPenaltyUSD is the per-hop deduction in the aggregator score.
	HopPenaltyUSD float64

	DefaultMaxHops int

	// RegistryPath points at the TOML chain registry file.
	RegistryPath string
}

func (c *ResolverConfig) Key() string {
	return RESOLVER_CONFIG_KEY
}

func (c *ResolverConfig) Load() error {
	c.VerifyWorkers = common.GetEnvOrDefaultInt("RESOLVER_VERIFY_WORKERS", 6)
	c.ReadTimeout = time.Duration(common.GetEnvOrDefaultInt("RESOLVER_READ_TIMEOUT_MS", 3000)) * time.Millisecond
	c.BridgeTimeout = time.Duration(common.GetEnvOrDefaultInt("RESOLVER_BRIDGE_TIMEOUT_MS", 10000)) * time.Millisecond
	c.RequestDeadline = time.Duration(common.GetEnvOrDefaultInt("RESOLVER_REQUEST_DEADLINE_MS", 12000)) * time.Millisecond
	c.PairCacheTTL = time.Duration(common.GetEnvOrDefaultInt("RESOLVER_PAIR_CACHE_TTL_S", 300)) * time.Second
	c.RouteTTL = time.Duration(common.GetEnvOrDefaultInt("RESOLVER_ROUTE_TTL_S", 60)) * time.Second
	c.MinLiquidityUSD = float64(common.GetEnvOrDefaultInt("RESOLVER_MIN_LIQUIDITY_USD", 1000))
	c.MaxSlippageBps = uint32(common.GetEnvOrDefaultInt("RESOLVER_MAX_SLIPPAGE_BPS", 3050))
	c.SlippageMultiplier = uint32(common.GetEnvOrDefaultInt("RESOLVER_SLIPPAGE_MULTIPLIER", 2))
	c.MaxSlippageAttempts = common.GetEnvOrDefaultInt("RESOLVER_MAX_SLIPPAGE_ATTEMPTS", 3)
	c.HopPenaltyUSD = 0.15
	c.DefaultMaxHops = common.GetEnvOrDefaultInt("RESOLVER_DEFAULT_MAX_HOPS", 3)
	c.RegistryPath = common.GetEnvOrDefault("RESOLVER_REGISTRY_PATH", "./config/registry.toml")
	return c.Validate()
}

func (c *ResolverConfig) Validate() error {
	if c.VerifyWorkers < 1 {
		return errors.New("verify workers must be >= 1")
	}
	if c.MaxSlippageAttempts < 1 {
		return errors.New("slippage attempts must be >= 1")
	}
	if c.SlippageMultiplier < 1 {
		return errors.New("slippage multiplier must be >= 1")
	}
	if c.MaxSlippageBps == 0 || c.MaxSlippageBps >= 10000 {
		return errors.New("max slippage must be in (0, 10000) bps")
	}
	return nil
}
