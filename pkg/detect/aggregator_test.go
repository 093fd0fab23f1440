package detect

import "testing"

func opp(t Type, ev, conf float64) *Opportunity {
	return &Opportunity{
		MatchID:          "m1",
		Type:             t,
		ExpectedValuePct: ev,
		Confidence:       conf,
	}
}

func TestAggregatorSelect(t *testing.T) {
	a := NewAggregator(0.60)

	t.Run("highest EV wins", func(t *testing.T) {
		got := a.Select([]*Opportunity{
			opp(TypeFatigueExploit, 12, 0.80),
			opp(TypeMomentumShift, 30, 0.75),
			opp(TypeH2HImbalance, 18, 0.70),
		})
		if got == nil || got.Type != TypeMomentumShift {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("confidence gate filters the leader", func(t *testing.T) {
		got := a.Select([]*Opportunity{
			opp(TypeMomentumShift, 30, 0.55),
			opp(TypeH2HImbalance, 18, 0.70),
		})
		if got == nil || got.Type != TypeH2HImbalance {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("ties break by priority", func(t *testing.T) {
		got := a.Select([]*Opportunity{
			opp(TypeFatigueExploit, 20, 0.80),
			opp(TypeH2HImbalance, 20, 0.80),
		})
		if got == nil || got.Type != TypeH2HImbalance {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("nothing clears the gate", func(t *testing.T) {
		got := a.Select([]*Opportunity{
			opp(TypeMomentumShift, 30, 0.10),
			nil,
		})
		if got != nil {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := a.Select(nil); got != nil {
			t.Errorf("got %+v", got)
		}
	})
}
