package config

import (
	"errors"

	"github.com/andrew-solarstorm/go-packages/common"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY   = "general-config"
	RESOLVER_CONFIG_KEY  = "resolver-config"
	REGISTRY_CONFIG_KEY  = "registry-config"
	PROVIDERS_CONFIG_KEY = "providers-config"
)

type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      string
	LogLevel string

	// Per-client HTTP throttling.
	RateLimitRPS   int
	RateLimitBurst int
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = common.GetEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = common.GetEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = common.GetEnvOrDefault("ENV", "dev")
	gc.LogLevel = common.GetEnvOrDefault("LOG_LEVEL", "INFO")
	gc.RateLimitRPS = common.GetEnvOrDefaultInt("RATE_LIMIT_RPS", 10)
	gc.RateLimitBurst = common.GetEnvOrDefaultInt("RATE_LIMIT_BURST", 20)
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" || gc.Env == "" {
		return errors.New("invalid server config")
	}
	if gc.RateLimitRPS < 1 || gc.RateLimitBurst < gc.RateLimitRPS {
		return errors.New("rate limit burst must be >= rps >= 1")
	}
	return nil
}
