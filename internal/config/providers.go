package config

import (
	"errors"

	"github.com/andrew-solarstorm/go-packages/common"
)

// ProvidersConfig holds upstream data-provider endpoints that are not
// per-chain (those live in the registry file).
type ProvidersConfig struct {
	// PairDataURL is the pair-data provider REST base URL (liquidity
	// oracle backing store).
	PairDataURL    string
	PairDataAPIKey string
}

func (c *ProvidersConfig) Key() string {
	return PROVIDERS_CONFIG_KEY
}

func (c *ProvidersConfig) Load() error {
	c.PairDataURL = common.GetEnvOrDefault("PAIRDATA_URL", "")
	c.PairDataAPIKey = common.GetEnvOrDefault("PAIRDATA_API_KEY", "")
	return c.Validate()
}

func (c *ProvidersConfig) Validate() error {
	if c.PairDataURL == "" {
		return errors.New("PAIRDATA_URL is required")
	}
	return nil
}
