package detect

import (
	"fmt"
	"math"

	"github.com/courtedge/courtedge/pkg/signal"
)

// H2HConfig tunes the head-to-head imbalance detector.
type H2HConfig struct {
	// DominanceWins is the unbeaten streak length that qualifies as
	// dominance on its own.
	DominanceWins int `yaml:"dominance_wins"`

	// DominanceRate and MinMeetings form the alternative dominance
	// rule: win rate over a minimum sample.
	DominanceRate float64 `yaml:"dominance_rate"`
	MinMeetings   int     `yaml:"min_meetings"`

	// MinEVPct rejects opportunities below this expected value.
	MinEVPct float64 `yaml:"min_ev_pct"`
}

// DefaultH2HConfig returns the production thresholds.
func DefaultH2HConfig() H2HConfig {
	return H2HConfig{
		DominanceWins: 4,
		DominanceRate: 0.75,
		MinMeetings:   3,
		MinEVPct:      5.0,
	}
}

// H2HDetector backs a side that historically dominates this exact
// opponent, preferring the surface-specific record when one exists.
type H2HDetector struct {
	cfg H2HConfig
}

func NewH2HDetector(cfg H2HConfig) *H2HDetector {
	return &H2HDetector{cfg: cfg}
}

func (d *H2HDetector) Name() string { return "h2h" }

func (d *H2HDetector) dominant(rec signal.H2HRecord) bool {
	if rec.Wins >= d.cfg.DominanceWins && rec.Losses == 0 {
		return true
	}
	return rec.Meetings() >= d.cfg.MinMeetings && rec.WinRate() >= d.cfg.DominanceRate
}

func (d *H2HDetector) Detect(sig *signal.MatchSignal) *Opportunity {
	if sig == nil || sig.Validate() != nil {
		return nil
	}

	var best *Opportunity
	for _, side := range []signal.Side{signal.SideHome, signal.SideAway} {
		rec, onSurface := sig.H2HFor(side)
		if !d.dominant(rec) {
			continue
		}

		c := sig.Side(side)
		winRate := rec.WinRate()
		evPct := (c.CurrentOdds*winRate - 1) * 100
		if evPct < d.cfg.MinEVPct {
			continue
		}

		sample := math.Min(float64(rec.Meetings())/10, 1)
		confidence := 0.5*sample + 0.5*winRate

		scope := "overall"
		if onSurface {
			scope = sig.Surface
		}
		opp := &Opportunity{
			MatchID:          sig.MatchID,
			Type:             TypeH2HImbalance,
			Strategy:         d.Name(),
			Side:             side,
			Selection:        c.Name,
			Odds:             c.CurrentOdds,
			ExpectedValuePct: evPct,
			Confidence:       confidence,
			Reasoning: fmt.Sprintf(
				"%s leads the %s H2H %d-%d (%.0f%%) and pays %.2f",
				c.Name, scope, rec.Wins, rec.Losses, winRate*100, c.CurrentOdds),
			DetectedAt: detectedAt(sig),
		}
		if best == nil || opp.ExpectedValuePct > best.ExpectedValuePct {
			best = opp
		}
	}
	return best
}
