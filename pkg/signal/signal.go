// Package signal defines the immutable match snapshot consumed by the
// detection pipeline. Signals are produced by an external collector and
// validated at the boundary; everything downstream can assume a valid
// signal has odds for both sides and a match identifier.
package signal

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Side identifies one of the two competitors in a match.
type Side int

const (
	SideHome Side = iota
	SideAway
)

func (s Side) String() string {
	if s == SideAway {
		return "away"
	}
	return "home"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideHome {
		return SideAway
	}
	return SideHome
}

// H2HRecord is a head-to-head win/loss count from one competitor's
// perspective.
type H2HRecord struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Meetings returns the total number of recorded meetings.
func (r H2HRecord) Meetings() int {
	return r.Wins + r.Losses
}

// WinRate returns wins/meetings, or 0 when there are no meetings.
func (r H2HRecord) WinRate() float64 {
	m := r.Meetings()
	if m == 0 {
		return 0
	}
	return float64(r.Wins) / float64(m)
}

// Competitor holds one side's odds and the historical aggregates the
// detectors consume. A zero RecoveryWinRate or FatigueRisk means the
// collector had no data for that field.
type Competitor struct {
	Name        string  `json:"name"`
	CurrentOdds float64 `json:"current_odds"`
	InitialOdds float64 `json:"initial_odds"`

	// FatigueRisk is a 0-100 score from the external workload model.
	FatigueRisk float64 `json:"fatigue_risk"`

	// RecoveryWinRate is the historical rate of winning a match after
	// losing the first set ("3-set win rate").
	RecoveryWinRate float64 `json:"recovery_win_rate"`

	H2HOverall   H2HRecord            `json:"h2h_overall"`
	H2HBySurface map[string]H2HRecord `json:"h2h_by_surface,omitempty"`
}

// LiveState is the in-play score snapshot. FirstSetWinner is only
// meaningful when FirstSetDone is true.
type LiveState struct {
	SetsHome       int  `json:"sets_home"`
	SetsAway       int  `json:"sets_away"`
	FirstSetDone   bool `json:"first_set_done"`
	FirstSetWinner Side `json:"first_set_winner"`
}

// MatchSignal is a read-only snapshot of a match at one polling cycle.
type MatchSignal struct {
	MatchID    string     `json:"match_id"`
	Sport      string     `json:"sport"`
	Surface    string     `json:"surface,omitempty"`
	Home       Competitor `json:"home"`
	Away       Competitor `json:"away"`
	Live       *LiveState `json:"live,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
}

// Side returns the competitor on the given side.
func (m *MatchSignal) Side(s Side) *Competitor {
	if s == SideAway {
		return &m.Away
	}
	return &m.Home
}

// Favorite returns the pre-match favorite by initial odds. The second
// return is false when either side has no initial price or the match
// opened as a pick'em.
func (m *MatchSignal) Favorite() (Side, bool) {
	h, a := m.Home.InitialOdds, m.Away.InitialOdds
	if h <= 1 || a <= 1 || h == a {
		return SideHome, false
	}
	if a < h {
		return SideAway, true
	}
	return SideHome, true
}

// H2HFor returns the head-to-head record for a side, preferring the
// surface-specific record when one exists for this match's surface.
// Map keys arrive with whatever casing the collector used, so both
// sides of the comparison are normalized.
func (m *MatchSignal) H2HFor(s Side) (rec H2HRecord, onSurface bool) {
	c := m.Side(s)
	if m.Surface != "" {
		want := NormalizeName(m.Surface)
		for surface, sr := range c.H2HBySurface {
			if NormalizeName(surface) == want && sr.Meetings() > 0 {
				return sr, true
			}
		}
	}
	return c.H2HOverall, false
}

// Validate reports the first structural problem with the signal.
// Detector-specific fields (fatigue, recovery rate, H2H) are optional;
// their absence makes individual detectors pass, not the signal invalid.
func (m *MatchSignal) Validate() error {
	if m == nil {
		return fmt.Errorf("nil signal")
	}
	if m.MatchID == "" {
		return fmt.Errorf("match_id is required")
	}
	if m.Home.Name == "" || m.Away.Name == "" {
		return fmt.Errorf("match %s: both competitor names are required", m.MatchID)
	}
	if m.Home.CurrentOdds <= 1 || m.Away.CurrentOdds <= 1 {
		return fmt.Errorf("match %s: current odds must be greater than 1.0", m.MatchID)
	}
	if m.Home.FatigueRisk < 0 || m.Home.FatigueRisk > 100 ||
		m.Away.FatigueRisk < 0 || m.Away.FatigueRisk > 100 {
		return fmt.Errorf("match %s: fatigue risk must be within [0,100]", m.MatchID)
	}
	return nil
}

// Key returns a normalized cache/lookup key for the match.
func (m *MatchSignal) Key() string {
	return NormalizeName(m.MatchID)
}

// normalizer strips diacritics after canonical decomposition, the same
// treatment applied to venue team names upstream so that "Bencíc" and
// "Bencic" key identically.
var normalizer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName lowercases a competitor or surface name, removes
// diacritics and collapses interior whitespace.
func NormalizeName(name string) string {
	out, _, err := transform.String(normalizer, name)
	if err != nil {
		out = name
	}
	out = strings.ToLower(strings.TrimSpace(out))
	return strings.Join(strings.Fields(out), " ")
}
