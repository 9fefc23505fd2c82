package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/adapters/bridgeapi"
	"github.com/swapmesh/route-resolver/internal/adapters/chain"
	"github.com/swapmesh/route-resolver/internal/adapters/pairdata"
	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/http"
	"github.com/swapmesh/route-resolver/internal/services/aggregator"
	"github.com/swapmesh/route-resolver/internal/services/bridge"
	"github.com/swapmesh/route-resolver/internal/services/liquidity"
	"github.com/swapmesh/route-resolver/internal/services/resolver"
	"github.com/swapmesh/route-resolver/internal/services/routefinder"
	"github.com/swapmesh/route-resolver/internal/services/simulation"
	"github.com/swapmesh/route-resolver/internal/services/slippage"
)

// @title SwapMesh Route Resolver API
// @version 1.0
// @description Route resolution and execution-safety engine for token swaps across chains.
// @description
// @description ## - Features
// @description - **Verified Routing**: Direct, multi-hop and wrapped-native fallback routes, every candidate verified on-chain before it is offered
// @description - **Quote Aggregation**: Candidates from all sources scored on net value after gas, fees and price impact
// @description - **Auto Slippage**: Tolerance picked from liquidity depth and escalated only as far as needed
// @description - **Cross-Chain Plans**: All-or-nothing source swap, bridge transfer and destination swap composition
// @description - **Pre-Submission Simulation**: Balance and allowance preflight plus a full dry run before anything is signed
// @description
// @description ## - API Status
// @description - **Rate Limit**: 10 requests/second (burst: 20)
// @description - **Route Validity**: resolved plans expire after ~60 seconds
// @description
// @description ## - Usage Tips
// @description - Amounts are in the token's smallest units
// @description - The zero address 0x0000...0000 denotes the chain's native coin
// @description - Omit slippageBps for auto mode; supply it only with slippageMode=fixed
// @BasePath /api/v1
// @schemes https http
// @tag.name resolve
// @tag.description Resolve and simulate swap routes
// @tag.name chains
// @tag.description Discover supported chains, venues and bridgeable tokens

func main() {
	common.InitRuntime()

	// load env
	err := godotenv.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load env")
		return
	}

	generalConf := &config.GeneralConfig{}
	resolverConf := &config.ResolverConfig{}
	registry := &config.Registry{}
	providersConf := &config.ProvidersConfig{}

	// di container config
	conf := container.NewConf(
		generalConf,
		resolverConf,
		registry,
		providersConf,
	)

	oracle := &liquidity.Oracle{}
	finder := &routefinder.Finder{}
	aggregatorSvc := &aggregator.Service{}
	selector := &bridge.Selector{}
	controller := &slippage.Controller{}
	validator := &simulation.Validator{}

	// di container
	dic, err := container.New(
		conf,

		oracle,
		finder,
		aggregatorSvc,
		selector,
		controller,
		validator,
		&resolver.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// upstream adapters
	pairClient := pairdata.NewClient(providersConf.PairDataURL, providersConf.PairDataAPIKey, resolverConf.ReadTimeout)
	chainClient := chain.NewClient(registry, resolverConf.ReadTimeout)

	oracle.SetProvider(pairClient)
	finder.SetQuoter(chainClient)
	aggregatorSvc.SetPriceProvider(pairClient)
	validator.SetClients(chainClient, chainClient)
	for _, entry := range registry.BridgeProviders() {
		selector.RegisterProvider(bridgeapi.NewClient(entry, resolverConf.BridgeTimeout))
	}

	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
