package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/courtedge/courtedge/pkg/signal"
)

// MomentumConfig tunes the momentum-shift detector.
type MomentumConfig struct {
	// FavoriteThreshold is the initial-odds ceiling that qualifies a
	// side as a strong pre-match favorite.
	FavoriteThreshold float64 `yaml:"favorite_threshold"`

	// ValueThreshold is the live price the favorite must have drifted
	// past after dropping the first set.
	ValueThreshold float64 `yaml:"value_threshold"`

	// MinRecoveryRate gates on the favorite's historical rate of
	// winning after losing set one.
	MinRecoveryRate float64 `yaml:"min_recovery_rate"`

	// MinEVPct rejects opportunities below this expected value.
	MinEVPct float64 `yaml:"min_ev_pct"`
}

// DefaultMomentumConfig returns the production thresholds.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		FavoriteThreshold: 1.50,
		ValueThreshold:    1.80,
		MinRecoveryRate:   0.70,
		MinEVPct:          10.0,
	}
}

// MomentumDetector backs a strong favorite whose live price has blown
// out after losing the first set, provided history says they usually
// come back.
type MomentumDetector struct {
	cfg MomentumConfig
	est Estimator
}

// NewMomentumDetector creates the detector. A nil estimator falls back
// to the signal's historical recovery rate.
func NewMomentumDetector(cfg MomentumConfig, est Estimator) *MomentumDetector {
	if est == nil {
		est = RecoveryEstimator{}
	}
	return &MomentumDetector{cfg: cfg, est: est}
}

func (d *MomentumDetector) Name() string { return "momentum" }

func (d *MomentumDetector) Detect(sig *signal.MatchSignal) *Opportunity {
	if sig == nil || sig.Validate() != nil {
		return nil
	}
	live := sig.Live
	if live == nil || !live.FirstSetDone {
		return nil
	}

	fav, ok := sig.Favorite()
	if !ok {
		return nil
	}
	c := sig.Side(fav)
	if c.InitialOdds >= d.cfg.FavoriteThreshold {
		return nil
	}
	if live.FirstSetWinner == fav {
		return nil // favorite took set one, no shift to exploit
	}
	if c.CurrentOdds < d.cfg.ValueThreshold {
		return nil
	}

	winRate, ok := d.est.Estimate(sig, fav)
	if !ok || winRate < d.cfg.MinRecoveryRate {
		return nil
	}

	ev := math.Max(0, c.CurrentOdds*winRate-1)
	if ev*100 < d.cfg.MinEVPct {
		return nil
	}

	drift := (c.CurrentOdds - c.InitialOdds) / c.InitialOdds
	confidence := clamp(winRate+math.Min(0.20, drift), 0, 0.95)

	return &Opportunity{
		MatchID:          sig.MatchID,
		Type:             TypeMomentumShift,
		Strategy:         d.Name(),
		Side:             fav,
		Selection:        c.Name,
		Odds:             c.CurrentOdds,
		ExpectedValuePct: ev * 100,
		Confidence:       confidence,
		Reasoning: fmt.Sprintf(
			"favorite %s (opened %.2f) lost set 1, now %.2f; recovers %.0f%% of the time",
			c.Name, c.InitialOdds, c.CurrentOdds, winRate*100),
		DetectedAt: detectedAt(sig),
	}
}

func detectedAt(sig *signal.MatchSignal) time.Time {
	if !sig.CapturedAt.IsZero() {
		return sig.CapturedAt
	}
	return time.Now().UTC()
}
