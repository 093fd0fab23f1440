// Package stake converts an opportunity and a bankroll into a monetary
// stake. Sizing never overdrafts on its own, but the ledger re-validates
// every stake against the live balance at placement.
package stake

import (
	"github.com/shopspring/decimal"
)

// Method selects the staking scheme.
type Method string

const (
	MethodKelly      Method = "kelly"
	MethodFixed      Method = "fixed"
	MethodConfidence Method = "confidence"
)

// Valid reports whether m names a known staking method.
func (m Method) Valid() bool {
	switch m {
	case MethodKelly, MethodFixed, MethodConfidence:
		return true
	}
	return false
}

// Config holds the sizing parameters.
type Config struct {
	// KellyFraction scales the full Kelly stake (0.25 = quarter Kelly).
	KellyFraction float64 `yaml:"kelly_fraction"`

	// MaxStakePct caps any stake at this fraction of bankroll.
	MaxStakePct float64 `yaml:"max_stake_pct"`

	// FixedPct is the flat fraction used by MethodFixed.
	FixedPct float64 `yaml:"fixed_pct"`

	// MinStake is the smallest stake worth placing; positive sizes are
	// floored here (subject to the MaxStakePct cap).
	MinStake decimal.Decimal `yaml:"min_stake"`
}

// DefaultConfig returns quarter-Kelly with a 5% bankroll cap.
func DefaultConfig() *Config {
	return &Config{
		KellyFraction: 0.25,
		MaxStakePct:   0.05,
		FixedPct:      0.02,
		MinStake:      decimal.NewFromInt(10),
	}
}

// Sizer computes stakes for one bankroll currency.
type Sizer struct {
	cfg *Config
}

// NewSizer creates a sizer; a nil config takes the defaults.
func NewSizer(cfg *Config) *Sizer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Sizer{cfg: cfg}
}

// Fraction returns the bankroll fraction the method recommends, already
// clamped to [0, MaxStakePct]. A zero fraction means no bet.
func (s *Sizer) Fraction(confidence, odds float64, m Method) float64 {
	var f float64
	switch m {
	case MethodFixed:
		f = s.cfg.FixedPct

	case MethodConfidence:
		// Linear map of confidence [0.5,1.0] onto [0.01,0.03].
		c := clamp(confidence, 0.5, 1.0)
		f = 0.01 + (c-0.5)/0.5*0.02

	case MethodKelly:
		b := odds - 1
		if b <= 0 {
			return 0
		}
		p := clamp(confidence, 0, 1)
		q := 1 - p
		f = (p*b - q) / b * s.cfg.KellyFraction

	default:
		return 0
	}
	return clamp(f, 0, s.cfg.MaxStakePct)
}

// Size converts the recommended fraction into a rounded monetary stake.
// The result is always within [0, MaxStakePct*bankroll]; a positive
// stake is floored at MinStake when the cap allows it.
func (s *Sizer) Size(confidence, odds float64, bankroll decimal.Decimal, m Method) decimal.Decimal {
	if bankroll.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	frac := s.Fraction(confidence, odds, m)
	if frac <= 0 {
		return decimal.Zero
	}

	cap := bankroll.Mul(decimal.NewFromFloat(s.cfg.MaxStakePct)).Round(2)
	stake := bankroll.Mul(decimal.NewFromFloat(frac)).Round(2)

	if stake.LessThan(s.cfg.MinStake) {
		stake = s.cfg.MinStake
	}
	if stake.GreaterThan(cap) {
		stake = cap
	}
	return stake
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
