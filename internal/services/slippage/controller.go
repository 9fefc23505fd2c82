// Package slippage implements the auto-slippage controller: a bounded,
// strictly sequential retry loop escalating tolerance on failure.
package slippage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
)

const CONTROLLER_SERVICE = "slippage-controller"

// QuoteFn resolves the best route at one slippage tolerance. The
// controller stays agnostic of where quotes come from so the loop is
// testable without any network.
type QuoteFn func(ctx context.Context, req *domain.SwapRequest, slippageBps uint32) (*domain.Route, error)

// Outcome is the controller's result: the winning route, the tolerance
// it was quoted at, and the full attempt trail for user-facing
// diagnostics.
type Outcome struct {
	Route              *domain.Route
	AppliedSlippageBps uint32
	Attempts           []domain.SlippageAttempt
}

type Controller struct {
	container.BaseDIInstance

	logger *services.ServiceLogger
	policy Policy
}

func (c *Controller) ID() string {
	return CONTROLLER_SERVICE
}

func (c *Controller) Configure(cont container.IContainer) error {
	c.logger = services.NewServiceLogger(c)
	conf := cont.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	c.policy = DefaultPolicy(conf.MaxSlippageBps, conf.SlippageMultiplier, conf.MaxSlippageAttempts)
	return nil
}

// SetPolicy overrides the escalation policy (tests, per-chain tuning).
func (c *Controller) SetPolicy(p Policy) {
	c.policy = p
}

func (c *Controller) Policy() Policy {
	return c.policy
}

// Resolve runs the attempt loop. It is deliberately sequential:
// parallel attempts would waste quota on tolerances likely to be
// superseded and would race on "is the cap already tried".
//
// The loop records every attempt; an attempt at the cap is always the
// last one, whether it succeeds or fails. Among successes the highest
// output wins; outputs within 0.01% prefer the lower tolerance.
func (c *Controller) Resolve(ctx context.Context, req *domain.SwapRequest, liquidityUSD decimal.Decimal, quote QuoteFn) (*Outcome, error) {
	current := c.policy.InitialSlippage(liquidityUSD)
	attempts := make([]domain.SlippageAttempt, 0, c.policy.MaxAttempts)
	highestTried := current
	var ctxErr error

	for n := 1; n <= c.policy.MaxAttempts; n++ {
		// A deadline firing mid-loop forfeits the remaining attempts,
		// not the ones already recorded.
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		route, err := quote(ctx, req, current)
		attempt := domain.SlippageAttempt{AttemptNumber: n, SlippageBps: current}
		if err != nil {
			attempt.Failed = true
			attempt.FailureReason = err.Error()
			c.logger.Debug().Err(err).Uint32("slippage_bps", current).Int("attempt", n).Msg("slippage attempt failed")
		} else {
			attempt.Route = route
		}
		attempts = append(attempts, attempt)
		if current > highestTried {
			highestTried = current
		}

		atCap := current >= c.policy.MaxSlippageBps
		if atCap {
			break
		}
		current, _ = c.policy.Next(current)
	}

	metrics.SlippageAttempts.Observe(float64(len(attempts)))

	winner := SelectBest(attempts)
	if winner == nil {
		if ctxErr != nil {
			return nil, common.WrapResolveError(common.KindUpstreamTimeout, ctxErr,
				"deadline reached before any tolerance produced a route")
		}
		return nil, common.NewResolveError(common.KindSlippageExceededMax,
			"no route found at any tolerance up to %s", formatBps(highestTried))
	}
	metrics.SlippageApplied.Observe(float64(winner.SlippageBps))
	return &Outcome{
		Route:              winner.Route,
		AppliedSlippageBps: winner.SlippageBps,
		Attempts:           attempts,
	}, nil
}

// SelectBest picks the successful attempt with the highest output;
// outputs within 0.01% of each other prefer the lower applied slippage.
// Pure function over the attempt trail.
func SelectBest(attempts []domain.SlippageAttempt) *domain.SlippageAttempt {
	var best *domain.SlippageAttempt
	for i := range attempts {
		a := &attempts[i]
		if a.Failed || a.Route == nil || a.Route.OutputAmount == nil {
			continue
		}
		if best == nil {
			best = a
			continue
		}
		bo := decimal.NewFromBigInt(best.Route.OutputAmount, 0)
		ao := decimal.NewFromBigInt(a.Route.OutputAmount, 0)
		diff := ao.Sub(bo).Abs()
		tied := !bo.IsZero() && diff.LessThanOrEqual(decimal.Max(ao, bo).Mul(decimal.New(1, -4)))
		switch {
		case tied:
			if a.SlippageBps < best.SlippageBps {
				best = a
			}
		case ao.GreaterThan(bo):
			best = a
		}
	}
	return best
}

func formatBps(bps uint32) string {
	return fmt.Sprintf("%d bps (%.2f%%)", bps, float64(bps)/100)
}
