// Package simulation performs the pre-submission dry run: balance and
// allowance preflight, call-variant selection, and an on-chain
// simulation with transient-failure retry.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
)

const VALIDATOR_SERVICE = "simulation-validator"

const (
	transientRetries = 3
	transientBackoff = 2 * time.Second
)

// BalanceReader reads signer balances and allowances from the query node.
type BalanceReader interface {
	NativeBalance(ctx context.Context, chainID domain.ChainID, owner domain.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, chainID domain.ChainID, token, owner domain.Address) (*big.Int, error)
	Allowance(ctx context.Context, chainID domain.ChainID, token, owner, spender domain.Address) (*big.Int, error)
}

// SwapCall is the structured call handed to the simulation provider.
// The adapter owns the wire encoding.
type SwapCall struct {
	Variant      domain.CallVariant
	VenueRouter  domain.Address
	Path         []domain.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Recipient    domain.Address
	From         domain.Address
}

// CallSimulator dry-runs a swap call. A revert surfaces as *RevertError;
// any other error is a transport problem.
type CallSimulator interface {
	SimulateSwap(ctx context.Context, chainID domain.ChainID, call SwapCall) error
}

// RevertError carries the revert reason from the simulation provider.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

type Validator struct {
	container.BaseDIInstance

	logger   *services.ServiceLogger
	registry *config.Registry
	balances BalanceReader
	sim      CallSimulator

	readTimeout time.Duration

	// sleep is injected so transient-retry backoff is testable without
	// real delays.
	sleep func(time.Duration)
}

func (v *Validator) ID() string {
	return VALIDATOR_SERVICE
}

func (v *Validator) Configure(c container.IContainer) error {
	v.logger = services.NewServiceLogger(v)
	conf := c.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	v.registry = c.GetConfig(config.REGISTRY_CONFIG_KEY).(*config.Registry)
	v.readTimeout = conf.ReadTimeout
	v.sleep = time.Sleep
	return nil
}

// SetClients injects the chain read/simulation clients.
func (v *Validator) SetClients(balances BalanceReader, sim CallSimulator) {
	v.balances = balances
	v.sim = sim
}

// SetSleep overrides the backoff sleeper (tests).
func (v *Validator) SetSleep(sleep func(time.Duration)) {
	v.sleep = sleep
}

// Simulate validates a route for a signer: preflight checks first, then
// an on-chain dry run of the selected call variant. A failed balance
// preflight is fatal and reported without simulating; a low allowance
// is a warning and simulation proceeds, because a just-submitted
// approval may not yet be visible to the query node.
func (v *Validator) Simulate(ctx context.Context, route *domain.Route, signer domain.Address) (*domain.SimulationResult, error) {
	if route == nil || len(route.Steps) == 0 {
		return nil, fmt.Errorf("route is empty")
	}
	chainID := route.ChainID()
	input := route.InputToken()
	amountIn := route.InputAmount()

	venue, ok := v.registry.Venue(chainID, route.Steps[0].VenueID)
	if !ok {
		return nil, fmt.Errorf("unknown venue %q on chain %d", route.Steps[0].VenueID, chainID)
	}
	spender := domain.NormalizeAddress(venue.Router)

	result := &domain.SimulationResult{}

	// Preflight: balance. Fatal, never retried.
	balance, err := v.readBalance(ctx, chainID, input, signer)
	if err != nil {
		return nil, fmt.Errorf("balance preflight: %w", err)
	}
	if balance.Cmp(amountIn) < 0 {
		result.ErrorKind = string(common.KindInsufficientBalance)
		result.ErrorMessage = fmt.Sprintf("signer holds %s of %s, needs %s", balance, input.Address, amountIn)
		metrics.SimulationRuns.WithLabelValues("insufficient_balance").Inc()
		return result, nil
	}

	// Preflight: allowance. Warning only.
	allowanceLow := false
	if !input.IsNative() {
		allowance, err := v.readAllowance(ctx, chainID, input.Address, signer, spender)
		if err != nil {
			result.Warnings = append(result.Warnings, "allowance check unavailable: "+err.Error())
		} else if allowance.Cmp(amountIn) < 0 {
			allowanceLow = true
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("allowance %s below required %s for spender %s; a pending approval may not be indexed yet", allowance, amountIn, spender))
		}
	}

	variant := classifyVariant(route)
	call := v.buildCall(route, variant, spender, signer)

	finalVariant, simErr := v.simulateWithRetries(ctx, chainID, call, venue.SupportsFeeOnTransfer)
	result.SelectedCallVariant = finalVariant
	if simErr == nil {
		result.OK = true
		metrics.SimulationRuns.WithLabelValues("ok").Inc()
		return result, nil
	}

	var revert *RevertError
	if errors.As(simErr, &revert) {
		result.ErrorMessage = revert.Reason
		switch {
		case isAllowanceRevert(revert.Reason) && allowanceLow:
			// The approval genuinely has not landed; the caller must
			// approve first. Fatal.
			result.ErrorKind = string(common.KindInsufficientAllowance)
			metrics.SimulationRuns.WithLabelValues("insufficient_allowance").Inc()
		case isAllowanceRevert(revert.Reason):
			// Preflight saw a sufficient allowance but the node still
			// reverted after retries: indexing lag. Risky, not fatal.
			result.ErrorKind = string(common.KindSimulationFailed)
			result.Warnings = append(result.Warnings, "allowance not yet visible to the query node after retries; submission may still succeed")
			metrics.SimulationRuns.WithLabelValues("transient_exhausted").Inc()
		case isBalanceRevert(revert.Reason):
			result.ErrorKind = string(common.KindInsufficientBalance)
			metrics.SimulationRuns.WithLabelValues("revert_balance").Inc()
		default:
			result.ErrorKind = string(common.KindSimulationFailed)
			metrics.SimulationRuns.WithLabelValues("revert").Inc()
		}
		return result, nil
	}

	return nil, fmt.Errorf("simulation provider: %w", simErr)
}

// simulateWithRetries runs the dry run, retrying the allowance
// propagation signature with fixed backoff, and falling back once to
// the fee-on-transfer-safe variant for other reverts.
func (v *Validator) simulateWithRetries(ctx context.Context, chainID domain.ChainID, call SwapCall, venueSupportsFeeSafe bool) (domain.CallVariant, error) {
	var lastErr error
	transientLeft := transientRetries
	feeSafeTried := false

	for {
		sctx, cancel := context.WithTimeout(ctx, v.readTimeout)
		err := v.sim.SimulateSwap(sctx, chainID, call)
		cancel()
		if err == nil {
			return call.Variant, nil
		}
		lastErr = err

		var revert *RevertError
		if !errors.As(err, &revert) {
			return call.Variant, err
		}

		if isAllowanceRevert(revert.Reason) && transientLeft > 0 {
			transientLeft--
			metrics.SimulationRetries.Inc()
			v.logger.Debug().
				Str("reason", revert.Reason).
				Int("retries_left", transientLeft).
				Msg("transient allowance revert, backing off")
			v.sleep(transientBackoff)
			continue
		}

		if !feeSafeTried && venueSupportsFeeSafe && !isAllowanceRevert(revert.Reason) && !isBalanceRevert(revert.Reason) {
			feeSafeTried = true
			call.Variant = call.Variant.FeeSafe()
			v.logger.Debug().Str("reason", revert.Reason).Msg("retrying with fee-on-transfer-safe variant")
			continue
		}

		return call.Variant, lastErr
	}
}

func (v *Validator) readBalance(ctx context.Context, chainID domain.ChainID, token domain.Token, owner domain.Address) (*big.Int, error) {
	rctx, cancel := context.WithTimeout(ctx, v.readTimeout)
	defer cancel()
	if token.IsNative() {
		return v.balances.NativeBalance(rctx, chainID, owner)
	}
	return v.balances.TokenBalance(rctx, chainID, token.Address, owner)
}

func (v *Validator) readAllowance(ctx context.Context, chainID domain.ChainID, token, owner, spender domain.Address) (*big.Int, error) {
	rctx, cancel := context.WithTimeout(ctx, v.readTimeout)
	defer cancel()
	return v.balances.Allowance(rctx, chainID, token, owner, spender)
}

func (v *Validator) buildCall(route *domain.Route, variant domain.CallVariant, spender, signer domain.Address) SwapCall {
	path := make([]domain.Address, 0, len(route.Path))
	for _, t := range route.Path {
		addr := t.Address
		if t.IsNative() {
			if wrapped, ok := v.registry.WrappedNative(t.ChainID); ok {
				addr = wrapped.Address
			}
		}
		path = append(path, addr)
	}
	return SwapCall{
		Variant:      variant,
		VenueRouter:  spender,
		Path:         path,
		AmountIn:     route.InputAmount(),
		MinAmountOut: route.MinOutputAfterSlippage(),
		Recipient:    signer,
		From:         signer,
	}
}

// classifyVariant picks the venue function family from the route's
// endpoints.
func classifyVariant(route *domain.Route) domain.CallVariant {
	switch {
	case route.InputToken().IsNative():
		return domain.VariantNativeIn
	case route.NeedsUnwrap:
		return domain.VariantNativeOut
	default:
		return domain.VariantTokenToToken
	}
}

func isAllowanceRevert(reason string) bool {
	r := strings.ToUpper(reason)
	return strings.Contains(r, "TRANSFER_FROM_FAILED") || strings.Contains(r, "INSUFFICIENT_ALLOWANCE")
}

func isBalanceRevert(reason string) bool {
	r := strings.ToUpper(reason)
	return strings.Contains(r, "INSUFFICIENT_BALANCE") || strings.Contains(r, "TRANSFER_AMOUNT_EXCEEDS_BALANCE")
}
