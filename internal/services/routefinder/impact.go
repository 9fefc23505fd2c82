package routefinder

// ImpactBand buckets a route's cumulative price impact for display.
type ImpactBand string

const (
	ImpactNone     ImpactBand = "none"
	ImpactLow      ImpactBand = "low"
	ImpactModerate ImpactBand = "moderate"
	ImpactHigh     ImpactBand = "high"
	ImpactExtreme  ImpactBand = "extreme"
)

// Band edges in bps; anything at or above the last edge is extreme.
var impactEdges = []struct {
	below uint16
	band  ImpactBand
}{
	{100, ImpactNone},
	{300, ImpactLow},
	{500, ImpactModerate},
	{1000, ImpactHigh},
}

func ImpactBandFor(impactBps uint16) ImpactBand {
	for _, e := range impactEdges {
		if impactBps < e.below {
			return e.band
		}
	}
	return ImpactExtreme
}

// ImpactCaution is the display warning for an impact level, empty when
// none is warranted.
func ImpactCaution(impactBps uint16) string {
	switch ImpactBandFor(impactBps) {
	case ImpactLow:
		return "low price impact"
	case ImpactModerate:
		return "moderate price impact, consider splitting the trade"
	case ImpactHigh:
		return "high price impact, the received amount drops sharply"
	case ImpactExtreme:
		return "extreme price impact, this trade moves the pool price drastically"
	default:
		return ""
	}
}
