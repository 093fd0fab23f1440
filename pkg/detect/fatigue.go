package detect

import (
	"fmt"
	"math"

	"github.com/courtedge/courtedge/pkg/signal"
)

// FatigueConfig tunes the fatigue-exploit detector.
type FatigueConfig struct {
	// RiskThreshold is the 0-100 fatigue score at which a side is
	// considered compromised.
	RiskThreshold float64 `yaml:"risk_threshold"`

	// MaxEdge caps the synthetic probability edge added to the
	// market-implied probability of the fresher side.
	MaxEdge float64 `yaml:"max_edge"`

	// MinEVPct rejects opportunities below this expected value.
	MinEVPct float64 `yaml:"min_ev_pct"`

	// MaxConfidence caps the confidence score; fatigue models are
	// noisier than market prices.
	MaxConfidence float64 `yaml:"max_confidence"`
}

// DefaultFatigueConfig returns the production thresholds.
func DefaultFatigueConfig() FatigueConfig {
	return FatigueConfig{
		RiskThreshold: 70,
		MaxEdge:       0.15,
		MinEVPct:      5.0,
		MaxConfidence: 0.85,
	}
}

// FatigueDetector backs the fresher side when the opponent's workload
// model flags a high fatigue risk.
type FatigueDetector struct {
	cfg FatigueConfig
}

func NewFatigueDetector(cfg FatigueConfig) *FatigueDetector {
	return &FatigueDetector{cfg: cfg}
}

func (d *FatigueDetector) Name() string { return "fatigue" }

func (d *FatigueDetector) Detect(sig *signal.MatchSignal) *Opportunity {
	if sig == nil || sig.Validate() != nil {
		return nil
	}

	// Favor the side whose opponent is the more fatigued, provided
	// that opponent clears the risk threshold.
	tiredSide := signal.SideHome
	if sig.Away.FatigueRisk > sig.Home.FatigueRisk {
		tiredSide = signal.SideAway
	}
	risk := sig.Side(tiredSide).FatigueRisk
	if risk < d.cfg.RiskThreshold {
		return nil
	}

	pick := tiredSide.Opponent()
	c := sig.Side(pick)
	if c.CurrentOdds <= 1 {
		return nil
	}

	implied := 1 / c.CurrentOdds
	edge := math.Min(risk/100*d.cfg.MaxEdge, d.cfg.MaxEdge)
	adjusted := math.Min(implied+edge, 1)

	evPct := (c.CurrentOdds*adjusted - 1) * 100
	if evPct < d.cfg.MinEVPct {
		return nil
	}

	confidence := math.Min(risk/100, d.cfg.MaxConfidence)

	return &Opportunity{
		MatchID:          sig.MatchID,
		Type:             TypeFatigueExploit,
		Strategy:         d.Name(),
		Side:             pick,
		Selection:        c.Name,
		Odds:             c.CurrentOdds,
		ExpectedValuePct: evPct,
		Confidence:       confidence,
		Reasoning: fmt.Sprintf(
			"%s carries fatigue risk %.0f/100; backing %s at %.2f",
			sig.Side(tiredSide).Name, risk, c.Name, c.CurrentOdds),
		DetectedAt: detectedAt(sig),
	}
}
