package routefinder

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
)

// candidate is one prospective path awaiting on-chain verification.
// Slice order is the stage's priority order (direct, catalog order,
// fallback), which decides ties, so it must be preserved through
// concurrent verification.
type candidate struct {
	path   []domain.Token // graph path; path[0] may be native (input side)
	venues []string       // venue per hop, len(path)-1
	edges  []*domain.Edge // oracle edge per hop, nil for catalog fallback hops
}

func (c *candidate) hopCount() int {
	return len(c.path) - 1
}

// verifiedCandidate is a candidate whose hops all produced an on-chain
// amount. The output amounts chain hop to hop.
type verifiedCandidate struct {
	cand      *candidate
	hops      []domain.Hop
	output    *big.Int
	impactBps uint16
}

// localEstimate chains the constant-product output across a candidate's
// hops from cached reserves. ok is false when any hop lacks usable
// reserve data, in which case the candidate cannot be judged locally.
func (f *Finder) localEstimate(chainID domain.ChainID, c *candidate, amountIn *big.Int) (*big.Int, bool) {
	amt := amountIn
	for i := 0; i < c.hopCount(); i++ {
		edge := c.edges[i]
		if edge == nil {
			return nil, false
		}
		rIn, rOut, ok := edge.Reserves(f.callAddress(c.path[i]))
		if !ok || rIn == nil || rOut == nil || rIn.Sign() <= 0 || rOut.Sign() <= 0 {
			return nil, false
		}
		feeBps := uint32(30)
		if v, found := f.registry.Venue(chainID, c.venues[i]); found {
			feeBps = v.FeeBps
		}
		amt = GetAmountOutCP(amt, rIn, rOut, feeBps)
		if amt.Sign() <= 0 {
			return amt, true
		}
	}
	return amt, true
}

// preselect screens a stage's candidates before any on-chain call:
// paths whose local estimate already chains to zero are dropped, and a
// stage fanning out beyond the verification budget keeps only its
// best-estimated candidates. Relative order survives both cuts, so
// stage priority still decides among verified survivors. Candidates
// without reserve data cannot be judged and are always kept.
func (f *Finder) preselect(chainID domain.ChainID, cands []*candidate, amountIn *big.Int) []*candidate {
	type scored struct {
		cand *candidate
		est  *big.Int // nil when reserves are unknown
	}
	kept := make([]scored, 0, len(cands))
	for _, c := range cands {
		est, ok := f.localEstimate(chainID, c, amountIn)
		if ok && est.Sign() <= 0 {
			f.logger.Debug().Int("hops", c.hopCount()).Msg("candidate dropped on local estimate")
			continue
		}
		if !ok {
			est = nil
		}
		kept = append(kept, scored{cand: c, est: est})
	}

	budget := f.verifyWorkers * 2
	if budget < 1 {
		budget = 1
	}
	if len(kept) > budget {
		ranked := make([]int, 0, len(kept))
		for i := range kept {
			if kept[i].est != nil {
				ranked = append(ranked, i)
			}
		}
		sort.SliceStable(ranked, func(a, b int) bool {
			return kept[ranked[a]].est.Cmp(kept[ranked[b]].est) > 0
		})
		drop := make(map[int]bool)
		for over := len(kept) - budget; over > 0 && len(ranked) > 0; over-- {
			drop[ranked[len(ranked)-1]] = true
			ranked = ranked[:len(ranked)-1]
		}
		trimmed := kept[:0]
		for i := range kept {
			if !drop[i] {
				trimmed = append(trimmed, kept[i])
			}
		}
		kept = trimmed
	}

	out := make([]*candidate, len(kept))
	for i := range kept {
		out[i] = kept[i].cand
	}
	return out
}

// verifyAll runs on-chain verification for a batch of candidates with a
// bounded worker pool, preserving candidate order in the result slice.
// Failed candidates leave a nil slot; the caller picks the first
// non-nil, keeping the fixed priority order.
func (f *Finder) verifyAll(ctx context.Context, chainID domain.ChainID, cands []*candidate, amountIn *big.Int) []*verifiedCandidate {
	results := make([]*verifiedCandidate, len(cands))
	if len(cands) == 0 {
		return results
	}

	sem := make(chan struct{}, f.verifyWorkers)
	var wg sync.WaitGroup
	for i := range cands {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			vc, err := f.verifyOne(ctx, chainID, cands[idx], amountIn)
			if err != nil {
				// Verification failure means the path is invalid for this
				// amount; the candidate is discarded and the next one tried.
				metrics.VerificationCalls.WithLabelValues("rejected").Inc()
				f.logger.Debug().
					Err(err).
					Int("hops", cands[idx].hopCount()).
					Msg("candidate failed verification")
				return
			}
			metrics.VerificationCalls.WithLabelValues("verified").Inc()
			results[idx] = vc
		}(i)
	}
	wg.Wait()
	return results
}

// verifyOne confirms a candidate hop by hop via the authoritative
// on-chain quote. Any hop failure discards the whole candidate.
func (f *Finder) verifyOne(ctx context.Context, chainID domain.ChainID, c *candidate, amountIn *big.Int) (*verifiedCandidate, error) {
	hops := make([]domain.Hop, 0, c.hopCount())
	impacts := make([]uint16, 0, c.hopCount())
	amt := amountIn

	for i := 0; i < c.hopCount(); i++ {
		from, to := c.path[i], c.path[i+1]
		callPath := []domain.Address{f.callAddress(from), f.callAddress(to)}

		hopCtx, cancel := context.WithTimeout(ctx, f.readTimeout)
		out, err := f.quoter.GetAmountsOut(hopCtx, chainID, c.venues[i], callPath, amt)
		cancel()
		if err != nil {
			return nil, err
		}
		if out == nil || out.Sign() <= 0 {
			return nil, errZeroOutput
		}

		if edge := c.edges[i]; edge != nil {
			if rIn, _, ok := edge.Reserves(f.callAddress(from)); ok {
				impacts = append(impacts, EstimatePriceImpactBps(amt, rIn))
			}
		}
		hops = append(hops, domain.Hop{
			VenueID:    c.venues[i],
			FromToken:  from,
			ToToken:    to,
			FromAmount: amt,
			ToAmount:   out,
		})
		amt = out
	}

	return &verifiedCandidate{
		cand:      c,
		hops:      hops,
		output:    amt,
		impactBps: sumImpactBps(impacts),
	}, nil
}

// firstVerified returns the lowest-index verified result, honoring the
// stage's fixed candidate priority.
func firstVerified(results []*verifiedCandidate) *verifiedCandidate {
	for _, r := range results {
		if r != nil {
			return r
		}
	}
	return nil
}
