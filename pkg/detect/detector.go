// Package detect turns match signals into quantified ROI opportunities.
// Detectors are pure functions of the signal: no I/O, no shared state,
// safe to run in parallel across matches. A detector that is missing a
// required input returns nil rather than an error; one bad signal must
// never stop the pipeline.
package detect

import (
	"time"

	"github.com/courtedge/courtedge/pkg/signal"
)

// Type classifies the strategy family that produced an opportunity.
type Type string

const (
	TypeMomentumShift  Type = "momentum_shift"
	TypeFatigueExploit Type = "fatigue_exploit"
	TypeH2HImbalance   Type = "h2h_imbalance"
)

// Opportunity is a quantified betting edge for one match. It is
// immutable once produced; several may exist per match (one per
// detector) before the aggregator picks a winner.
type Opportunity struct {
	MatchID          string      `json:"match_id"`
	Type             Type        `json:"opportunity_type"`
	Strategy         string      `json:"strategy"`
	Side             signal.Side `json:"side"`
	Selection        string      `json:"selection"`
	Odds             float64     `json:"odds"`
	ExpectedValuePct float64     `json:"expected_value_pct"`
	Confidence       float64     `json:"confidence_score"`
	Reasoning        string      `json:"reasoning"`
	DetectedAt       time.Time   `json:"detected_at"`
}

// Detector is the contract every strategy implements.
type Detector interface {
	Name() string

	// Detect returns nil when the signal carries no edge for this
	// strategy or lacks the fields the strategy needs.
	Detect(sig *signal.MatchSignal) *Opportunity
}

// Estimator supplies the win-probability estimate a detector consumes.
// The default implementations read historical aggregates off the signal;
// a statistical or ML model can be substituted without touching detector
// logic.
type Estimator interface {
	// Estimate returns the probability that the given side wins the
	// match, and false when no estimate is available.
	Estimate(sig *signal.MatchSignal, side signal.Side) (float64, bool)
}

// RecoveryEstimator estimates the favorite's win probability after a
// lost first set from the historical recovery ("3-set") win rate.
type RecoveryEstimator struct{}

func (RecoveryEstimator) Estimate(sig *signal.MatchSignal, side signal.Side) (float64, bool) {
	rate := sig.Side(side).RecoveryWinRate
	if rate <= 0 || rate > 1 {
		return 0, false
	}
	return rate, true
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
