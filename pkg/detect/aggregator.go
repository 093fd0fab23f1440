package detect

// DefaultPriority is the tie-break order applied when two detectors
// produce the same expected value for one match.
var DefaultPriority = []Type{TypeMomentumShift, TypeH2HImbalance, TypeFatigueExploit}

// Aggregator selects at most one opportunity per match across detectors.
type Aggregator struct {
	// MinConfidence gates every opportunity regardless of EV.
	MinConfidence float64

	// Priority breaks EV ties; types missing from the slice rank last.
	Priority []Type
}

// NewAggregator creates an aggregator with the default tie-break order.
func NewAggregator(minConfidence float64) *Aggregator {
	return &Aggregator{MinConfidence: minConfidence, Priority: DefaultPriority}
}

func (a *Aggregator) rank(t Type) int {
	for i, p := range a.Priority {
		if p == t {
			return i
		}
	}
	return len(a.Priority)
}

// Select returns the highest-EV opportunity that clears the confidence
// gate, or nil when none does. Ties on EV go to the higher-priority
// detector.
func (a *Aggregator) Select(opps []*Opportunity) *Opportunity {
	var best *Opportunity
	for _, o := range opps {
		if o == nil || o.Confidence < a.MinConfidence {
			continue
		}
		switch {
		case best == nil:
			best = o
		case o.ExpectedValuePct > best.ExpectedValuePct:
			best = o
		case o.ExpectedValuePct == best.ExpectedValuePct && a.rank(o.Type) < a.rank(best.Type):
			best = o
		}
	}
	return best
}
