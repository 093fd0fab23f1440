package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/courtedge/courtedge/pkg/analytics"
	"github.com/courtedge/courtedge/pkg/cache"
	"github.com/courtedge/courtedge/pkg/calibration"
	"github.com/courtedge/courtedge/pkg/detect"
	"github.com/courtedge/courtedge/pkg/ledger"
	"github.com/courtedge/courtedge/pkg/metrics"
	"github.com/courtedge/courtedge/pkg/signal"
)

// momentumSignal triggers the momentum detector: strong favorite at
// 1.40 pre-match, lost set one, live price 2.50, 75% recovery rate.
func momentumSignal(matchID string) *signal.MatchSignal {
	return &signal.MatchSignal{
		MatchID: matchID,
		Sport:   "tennis",
		Surface: "hard",
		Home: signal.Competitor{
			Name:            "Alcaraz",
			InitialOdds:     1.40,
			CurrentOdds:     2.50,
			RecoveryWinRate: 0.75,
		},
		Away: signal.Competitor{
			Name:        "Khachanov",
			InitialOdds: 3.00,
			CurrentOdds: 1.55,
		},
		Live: &signal.LiveState{
			SetsHome:       0,
			SetsAway:       1,
			FirstSetDone:   true,
			FirstSetWinner: signal.SideAway,
		},
		CapturedAt: time.Now().UTC(),
	}
}

// edgelessSignal is valid but carries nothing any detector wants.
func edgelessSignal(matchID string) *signal.MatchSignal {
	return &signal.MatchSignal{
		MatchID: matchID,
		Sport:   "tennis",
		Home:    signal.Competitor{Name: "A", CurrentOdds: 1.90, InitialOdds: 1.90},
		Away:    signal.Competitor{Name: "B", CurrentOdds: 1.90, InitialOdds: 1.90},
	}
}

func newTestEngine(t *testing.T, bankroll float64) *Engine {
	t.Helper()
	led := ledger.New(decimal.NewFromFloat(bankroll), nil, zerolog.Nop())
	eng, err := New(Config{
		Ledger:   led,
		Recorder: calibration.NewRecorder(nil, zerolog.Nop()),
		Cache:    cache.NewMemory(0),
		Metrics:  metrics.NewEngineMetrics(),
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func TestProcessSignalPlacesBet(t *testing.T) {
	eng := newTestEngine(t, 10000)
	ctx := context.Background()

	var gotOpp *detect.Opportunity
	var gotBet *ledger.Bet
	eng.OnOpportunity(func(o *detect.Opportunity) { gotOpp = o })
	eng.OnBet(func(b *ledger.Bet) { gotBet = b })

	res, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001"))
	if err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if res.Skipped || res.Bet == nil || res.Opportunity == nil {
		t.Fatalf("expected a placed bet, got %+v", res)
	}
	if res.Opportunity.Type != detect.TypeMomentumShift {
		t.Errorf("opportunity type = %s", res.Opportunity.Type)
	}
	if res.Bet.Selection != "Alcaraz" {
		t.Errorf("selection = %s, want Alcaraz", res.Bet.Selection)
	}
	if !res.Bet.Stake.IsPositive() {
		t.Error("stake should be positive")
	}
	if gotOpp == nil || gotBet == nil {
		t.Error("callbacks should have fired")
	}
	if eng.Ledger().Balance().GreaterThanOrEqual(decimal.NewFromInt(10000)) {
		t.Error("stake should be reserved from the bankroll")
	}
}

func TestProcessSignalDeduplicates(t *testing.T) {
	eng := newTestEngine(t, 10000)
	ctx := context.Background()

	if _, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001")); err != nil {
		t.Fatalf("first ProcessSignal: %v", err)
	}
	res, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001"))
	if err != nil {
		t.Fatalf("second ProcessSignal: %v", err)
	}
	if !res.Skipped || res.Reason != "duplicate signal" {
		t.Errorf("repeat signal should be skipped, got %+v", res)
	}
}

// faultyStore fails every write until cleared.
type faultyStore struct{ fail bool }

func (s *faultyStore) SaveBet(ctx context.Context, bet *ledger.Bet) error {
	if s.fail {
		return errors.New("store down")
	}
	return nil
}

func (s *faultyStore) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	if s.fail {
		return errors.New("store down")
	}
	return nil
}

func TestProcessSignalPlacementFailureNotDeduplicated(t *testing.T) {
	store := &faultyStore{fail: true}
	led := ledger.New(decimal.NewFromFloat(10000), store, zerolog.Nop())
	eng, err := New(Config{
		Ledger:  led,
		Cache:   cache.NewMemory(0),
		Metrics: metrics.NewEngineMetrics(),
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001")); err == nil {
		t.Fatal("placement should surface the store error")
	}

	store.fail = false
	res, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001"))
	if err != nil {
		t.Fatalf("retry after store recovery: %v", err)
	}
	if res.Skipped || res.Bet == nil {
		t.Fatalf("retried signal should place a bet, got %+v", res)
	}
}

func TestProcessSignalNoEdge(t *testing.T) {
	eng := newTestEngine(t, 10000)

	res, err := eng.ProcessSignal(context.Background(), edgelessSignal("m1"))
	if err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if !res.Skipped || res.Bet != nil {
		t.Errorf("edgeless signal should skip, got %+v", res)
	}
}

func TestProcessSignalInvalid(t *testing.T) {
	eng := newTestEngine(t, 10000)

	sig := momentumSignal("m1")
	sig.Home.CurrentOdds = 0.5
	if _, err := eng.ProcessSignal(context.Background(), sig); err == nil {
		t.Error("invalid signal should return an error")
	}
	if eng.Ledger().Balance().Cmp(decimal.NewFromInt(10000)) != 0 {
		t.Error("invalid signal must not touch the bankroll")
	}
}

func TestSettleMatchWin(t *testing.T) {
	eng := newTestEngine(t, 10000)
	ctx := context.Background()

	res, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001"))
	if err != nil || res.Bet == nil {
		t.Fatalf("ProcessSignal: res=%+v err=%v", res, err)
	}
	before := eng.Ledger().Balance()

	settled, err := eng.SettleMatch(ctx, "wim-2026-001", "Alcaraz")
	if err != nil {
		t.Fatalf("SettleMatch: %v", err)
	}
	if len(settled) != 1 || settled[0].Status != ledger.StatusWon {
		t.Fatalf("settled = %+v", settled)
	}
	if !eng.Ledger().Balance().GreaterThan(before) {
		t.Error("winning settlement should credit the bankroll")
	}

	recs := eng.Calibration().Data(0)
	if len(recs) != 1 || !recs[0].Correct {
		t.Errorf("calibration records = %+v", recs)
	}
}

func TestSettleMatchVoidSkipsCalibration(t *testing.T) {
	eng := newTestEngine(t, 10000)
	ctx := context.Background()

	if _, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001")); err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}

	settled, err := eng.SettleMatch(ctx, "wim-2026-001", "")
	if err != nil {
		t.Fatalf("SettleMatch: %v", err)
	}
	if len(settled) != 1 || settled[0].Status != ledger.StatusVoid {
		t.Fatalf("settled = %+v", settled)
	}
	if !eng.Ledger().Balance().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("void should restore the bankroll, got %s", eng.Ledger().Balance().StringFixed(2))
	}
	if len(eng.Calibration().Data(0)) != 0 {
		t.Error("void settlement should not record calibration")
	}
}

func TestSettleMatchNameNormalization(t *testing.T) {
	eng := newTestEngine(t, 10000)
	ctx := context.Background()

	sig := momentumSignal("wim-2026-001")
	sig.Home.Name = "Bencíc"
	if _, err := eng.ProcessSignal(ctx, sig); err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}

	settled, err := eng.SettleMatch(ctx, "wim-2026-001", "Bencic")
	if err != nil {
		t.Fatalf("SettleMatch: %v", err)
	}
	if len(settled) != 1 || settled[0].Status != ledger.StatusWon {
		t.Errorf("diacritic-free winner should match selection: %+v", settled)
	}
}

func TestStatistics(t *testing.T) {
	eng := newTestEngine(t, 10000)
	ctx := context.Background()

	if _, err := eng.ProcessSignal(ctx, momentumSignal("wim-2026-001")); err != nil {
		t.Fatalf("ProcessSignal: %v", err)
	}
	if _, err := eng.SettleMatch(ctx, "wim-2026-001", "Alcaraz"); err != nil {
		t.Fatalf("SettleMatch: %v", err)
	}

	report := eng.Statistics(analytics.Window{})
	if report.TotalBets != 1 || report.Wins != 1 {
		t.Errorf("report = %+v", report)
	}
	if !report.NetProfit.IsPositive() {
		t.Error("net profit should be positive after a win")
	}
}

func TestNewRequiresLedger(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("nil ledger should be rejected")
	}
	led := ledger.New(decimal.NewFromInt(100), nil, zerolog.Nop())
	if _, err := New(Config{Ledger: led, Method: "martingale"}); err == nil {
		t.Error("unknown staking method should be rejected")
	}
}
