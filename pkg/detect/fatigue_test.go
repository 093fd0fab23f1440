package detect

import (
	"math"
	"testing"
	"time"

	"github.com/courtedge/courtedge/pkg/signal"
)

func fatigueSignal() *signal.MatchSignal {
	return &signal.MatchSignal{
		MatchID: "rg-2026-r2-17",
		Sport:   "tennis",
		Surface: "Clay",
		Home: signal.Competitor{
			Name:        "Fresh Legs",
			CurrentOdds: 2.00,
			InitialOdds: 2.10,
		},
		Away: signal.Competitor{
			Name:        "Five Setter",
			CurrentOdds: 1.85,
			InitialOdds: 1.75,
			FatigueRisk: 80,
		},
		CapturedAt: time.Date(2026, 5, 28, 14, 0, 0, 0, time.UTC),
	}
}

func TestFatigueDetect(t *testing.T) {
	d := NewFatigueDetector(DefaultFatigueConfig())

	opp := d.Detect(fatigueSignal())
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.Side != signal.SideHome || opp.Selection != "Fresh Legs" {
		t.Errorf("should back the fresher side, got %s", opp.Selection)
	}

	// implied 1/2.00 = 0.50, edge min(0.80*0.15, 0.15) = 0.12,
	// EV = (2.00*0.62 - 1)*100 = 24.
	if math.Abs(opp.ExpectedValuePct-24) > 0.01 {
		t.Errorf("EV = %.2f, want 24", opp.ExpectedValuePct)
	}
	if math.Abs(opp.Confidence-0.80) > 1e-9 {
		t.Errorf("confidence = %.2f, want 0.80", opp.Confidence)
	}
}

func TestFatigueDetect_EdgeCap(t *testing.T) {
	d := NewFatigueDetector(DefaultFatigueConfig())
	sig := fatigueSignal()
	sig.Away.FatigueRisk = 100

	opp := d.Detect(sig)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	// Edge caps at 0.15 even at maximum risk: EV = (2.00*0.65 - 1)*100 = 30.
	if math.Abs(opp.ExpectedValuePct-30) > 0.01 {
		t.Errorf("EV = %.2f, want 30", opp.ExpectedValuePct)
	}
	// Confidence caps at 0.85.
	if opp.Confidence != 0.85 {
		t.Errorf("confidence = %.2f, want 0.85", opp.Confidence)
	}
}

func TestFatigueDetect_Rejections(t *testing.T) {
	d := NewFatigueDetector(DefaultFatigueConfig())

	t.Run("below risk threshold", func(t *testing.T) {
		sig := fatigueSignal()
		sig.Away.FatigueRisk = 69
		if d.Detect(sig) != nil {
			t.Error("risk below threshold must not trigger")
		}
	})

	t.Run("short odds kill the EV", func(t *testing.T) {
		sig := fatigueSignal()
		// Adjusted probability caps at 1, so EV = (1.04-1)*100 = 4 < 5.
		sig.Home.CurrentOdds = 1.04
		if d.Detect(sig) != nil {
			t.Error("EV below gate must not trigger")
		}
	})

	t.Run("invalid signal", func(t *testing.T) {
		sig := fatigueSignal()
		sig.Home.CurrentOdds = 0
		if d.Detect(sig) != nil {
			t.Error("invalid signal must not trigger")
		}
	})
}

func TestFatigueDetect_PicksMoreFatiguedOpponent(t *testing.T) {
	d := NewFatigueDetector(DefaultFatigueConfig())
	sig := fatigueSignal()
	sig.Home.FatigueRisk = 90
	sig.Away.FatigueRisk = 75

	opp := d.Detect(sig)
	if opp == nil {
		t.Fatal("expected an opportunity")
	}
	if opp.Side != signal.SideAway {
		t.Errorf("should fade the more fatigued side, picked %s", opp.Side)
	}
}
