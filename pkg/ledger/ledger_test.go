package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestLedger(starting float64) *Ledger {
	return New(decimal.NewFromFloat(starting), nil, zerolog.Nop())
}

func place(t *testing.T, l *Ledger, matchID string, odds, stake float64) *Bet {
	t.Helper()
	bet, err := l.PlaceBet(context.Background(), PlaceParams{
		MatchID:    matchID,
		Sport:      "tennis",
		Strategy:   "momentum_shift",
		Selection:  "Player A",
		Odds:       odds,
		Stake:      decimal.NewFromFloat(stake),
		Confidence: 0.72,
	})
	if err != nil {
		t.Fatalf("PlaceBet: %v", err)
	}
	return bet
}

func checkInvariant(t *testing.T, l *Ledger) {
	t.Helper()
	s := l.Snapshot()
	sum := s.Starting
	for _, tx := range s.Transactions {
		sum = sum.Add(tx.Amount)
	}
	if !sum.Equal(s.Balance) {
		t.Errorf("balance invariant broken: starting+sum(tx) = %s, balance = %s",
			sum.StringFixed(2), s.Balance.StringFixed(2))
	}
}

func TestPlaceAndWin(t *testing.T) {
	l := newTestLedger(10000)
	ctx := context.Background()

	bet := place(t, l, "match-1", 3.20, 250)
	if !l.Balance().Equal(decimal.NewFromFloat(9750)) {
		t.Errorf("balance after stake = %s, want 9750", l.Balance().StringFixed(2))
	}

	settled, err := l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(10550)) {
		t.Errorf("balance after win = %s, want 10550", l.Balance().StringFixed(2))
	}
	if !settled.ProfitLoss.Equal(decimal.NewFromFloat(550)) {
		t.Errorf("profit/loss = %s, want 550", settled.ProfitLoss.StringFixed(2))
	}
	if settled.SettledAt == nil || settled.Outcome != "Player A" {
		t.Error("settled bet missing settlement metadata")
	}
	if len(l.PendingBets()) != 0 {
		t.Error("won bet should no longer be pending")
	}
	checkInvariant(t, l)
}

func TestPlaceAndLose(t *testing.T) {
	l := newTestLedger(10000)

	bet := place(t, l, "match-1", 2.10, 300)
	settled, err := l.SettleBet(context.Background(), bet.ID, StatusLost, "Player B", false)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(9700)) {
		t.Errorf("balance after loss = %s, want 9700", l.Balance().StringFixed(2))
	}
	if !settled.ProfitLoss.Equal(decimal.NewFromFloat(-300)) {
		t.Errorf("profit/loss = %s, want -300", settled.ProfitLoss.StringFixed(2))
	}
	checkInvariant(t, l)
}

func TestVoidRefundsStake(t *testing.T) {
	l := newTestLedger(1000)

	bet := place(t, l, "match-1", 2.00, 100)
	settled, err := l.SettleBet(context.Background(), bet.ID, StatusVoid, "", false)
	if err != nil {
		t.Fatalf("SettleBet: %v", err)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(1000)) {
		t.Errorf("balance after void = %s, want 1000", l.Balance().StringFixed(2))
	}
	if !settled.ProfitLoss.IsZero() {
		t.Errorf("void profit/loss = %s, want 0", settled.ProfitLoss.StringFixed(2))
	}
	checkInvariant(t, l)
}

func TestOverdraftRejectedWithoutMutation(t *testing.T) {
	l := newTestLedger(100)

	_, err := l.PlaceBet(context.Background(), PlaceParams{
		MatchID:   "match-1",
		Selection: "Player A",
		Odds:      2.00,
		Stake:     decimal.NewFromFloat(150),
	})
	if !errors.Is(err, ErrInsufficientBankroll) {
		t.Fatalf("err = %v, want ErrInsufficientBankroll", err)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(100)) {
		t.Errorf("balance mutated on rejected bet: %s", l.Balance().StringFixed(2))
	}
	if len(l.PendingBets()) != 0 {
		t.Error("rejected bet should not be pending")
	}
	if len(l.Snapshot().Transactions) != 0 {
		t.Error("rejected bet should not append transactions")
	}
}

func TestDoubleSettleIdempotent(t *testing.T) {
	l := newTestLedger(1000)
	ctx := context.Background()

	bet := place(t, l, "match-1", 2.00, 100)
	if _, err := l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	after := l.Balance()

	got, err := l.SettleBet(ctx, bet.ID, StatusLost, "Player B", false)
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("err = %v, want ErrAlreadySettled", err)
	}
	if got.Status != StatusWon {
		t.Errorf("status changed to %s on rejected re-settle", got.Status)
	}
	if !l.Balance().Equal(after) {
		t.Errorf("balance changed on rejected re-settle: %s", l.Balance().StringFixed(2))
	}
	checkInvariant(t, l)
}

func TestForceResettleReversesCredit(t *testing.T) {
	l := newTestLedger(1000)
	ctx := context.Background()

	bet := place(t, l, "match-1", 2.50, 100)
	if _, err := l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	// 1000 - 100 + 250 = 1150
	if !l.Balance().Equal(decimal.NewFromFloat(1150)) {
		t.Fatalf("balance after win = %s, want 1150", l.Balance().StringFixed(2))
	}

	got, err := l.SettleBet(ctx, bet.ID, StatusLost, "Player B", true)
	if err != nil {
		t.Fatalf("forced re-settle: %v", err)
	}
	if got.Status != StatusLost {
		t.Errorf("status = %s, want LOST", got.Status)
	}
	if !got.ProfitLoss.Equal(decimal.NewFromFloat(-100)) {
		t.Errorf("profit/loss = %s, want -100", got.ProfitLoss.StringFixed(2))
	}
	if !l.Balance().Equal(decimal.NewFromFloat(900)) {
		t.Errorf("balance after re-settle = %s, want 900", l.Balance().StringFixed(2))
	}
	checkInvariant(t, l)
}

// flakyStore fails AppendTransaction a set number of times, then works.
type flakyStore struct {
	failTxAppends int
}

func (s *flakyStore) SaveBet(ctx context.Context, bet *Bet) error { return nil }

func (s *flakyStore) AppendTransaction(ctx context.Context, tx *Transaction) error {
	if s.failTxAppends > 0 {
		s.failTxAppends--
		return errors.New("store unavailable")
	}
	return nil
}

func TestSettleRetriesAfterStoreFailure(t *testing.T) {
	store := &flakyStore{}
	l := New(decimal.NewFromFloat(1000), store, zerolog.Nop())
	ctx := context.Background()

	bet := place(t, l, "match-1", 3.00, 100)

	store.failTxAppends = 1
	if _, err := l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false); err == nil {
		t.Fatal("settle should surface the store error")
	}
	got, err := l.Bet(bet.ID)
	if err != nil {
		t.Fatalf("Bet: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status after failed settle = %s, want PENDING", got.Status)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(900)) {
		t.Errorf("balance changed on failed settle: %s", l.Balance().StringFixed(2))
	}
	if len(l.PendingBets()) != 1 {
		t.Error("bet should still be pending after failed settle")
	}

	settled, err := l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false)
	if err != nil {
		t.Fatalf("retry after store recovery: %v", err)
	}
	if settled.Status != StatusWon {
		t.Errorf("status = %s, want WON", settled.Status)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(1200)) {
		t.Errorf("balance after retried win = %s, want 1200", l.Balance().StringFixed(2))
	}
	checkInvariant(t, l)
}

func TestForceResettleStoreFailureKeepsPriorResult(t *testing.T) {
	store := &flakyStore{}
	l := New(decimal.NewFromFloat(1000), store, zerolog.Nop())
	ctx := context.Background()

	bet := place(t, l, "match-1", 2.50, 100)
	if _, err := l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false); err != nil {
		t.Fatalf("first settle: %v", err)
	}

	store.failTxAppends = 1
	if _, err := l.SettleBet(ctx, bet.ID, StatusLost, "Player B", true); err == nil {
		t.Fatal("forced re-settle should surface the store error")
	}
	got, err := l.Bet(bet.ID)
	if err != nil {
		t.Fatalf("Bet: %v", err)
	}
	if got.Status != StatusWon {
		t.Errorf("status after failed re-settle = %s, want WON", got.Status)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(1150)) {
		t.Errorf("balance after failed re-settle = %s, want 1150", l.Balance().StringFixed(2))
	}

	settled, err := l.SettleBet(ctx, bet.ID, StatusLost, "Player B", true)
	if err != nil {
		t.Fatalf("retried re-settle: %v", err)
	}
	if settled.Status != StatusLost {
		t.Errorf("status = %s, want LOST", settled.Status)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(900)) {
		t.Errorf("balance after retried re-settle = %s, want 900", l.Balance().StringFixed(2))
	}
	checkInvariant(t, l)
}

func TestDuplicatePendingReturnsExisting(t *testing.T) {
	l := newTestLedger(1000)

	first := place(t, l, "match-1", 2.00, 100)
	second := place(t, l, "match-1", 2.50, 200)
	if first.ID != second.ID {
		t.Error("second pending bet on same match should return the existing bet")
	}
	if !l.Balance().Equal(decimal.NewFromFloat(900)) {
		t.Errorf("second stake should not be reserved, balance = %s", l.Balance().StringFixed(2))
	}

	dup, err := l.PlaceBet(context.Background(), PlaceParams{
		MatchID:        "match-1",
		Selection:      "Player B",
		Odds:           2.50,
		Stake:          decimal.NewFromFloat(200),
		AllowDuplicate: true,
	})
	if err != nil {
		t.Fatalf("PlaceBet with AllowDuplicate: %v", err)
	}
	if dup.ID == first.ID {
		t.Error("AllowDuplicate should place a new bet")
	}
	if len(l.PendingBets()) != 2 {
		t.Errorf("pending bets = %d, want 2", len(l.PendingBets()))
	}
}

func TestValidation(t *testing.T) {
	l := newTestLedger(1000)
	ctx := context.Background()

	cases := []PlaceParams{
		{MatchID: "", Selection: "a", Odds: 2.0, Stake: decimal.NewFromInt(10)},
		{MatchID: "m", Selection: "", Odds: 2.0, Stake: decimal.NewFromInt(10)},
		{MatchID: "m", Selection: "a", Odds: 1.0, Stake: decimal.NewFromInt(10)},
		{MatchID: "m", Selection: "a", Odds: 2.0, Stake: decimal.Zero},
	}
	for i, p := range cases {
		if _, err := l.PlaceBet(ctx, p); !errors.Is(err, ErrValidation) {
			t.Errorf("case %d: err = %v, want ErrValidation", i, err)
		}
	}

	bet := place(t, l, "match-1", 2.0, 10)
	if _, err := l.SettleBet(ctx, bet.ID, StatusPending, "", false); !errors.Is(err, ErrValidation) {
		t.Error("settling to PENDING should fail validation")
	}
}

func TestExternalFlows(t *testing.T) {
	l := newTestLedger(1000)
	ctx := context.Background()

	if err := l.Deposit(ctx, decimal.NewFromFloat(500), "top up"); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := l.Withdraw(ctx, decimal.NewFromFloat(200), "partner draw"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if err := l.RecordExpense(ctx, decimal.NewFromFloat(49.99), "odds feed"); err != nil {
		t.Fatalf("RecordExpense: %v", err)
	}
	if !l.Balance().Equal(decimal.NewFromFloat(1250.01)) {
		t.Errorf("balance = %s, want 1250.01", l.Balance().StringFixed(2))
	}
	if err := l.Withdraw(ctx, decimal.NewFromFloat(99999), "too much"); !errors.Is(err, ErrInsufficientBankroll) {
		t.Error("oversized withdrawal should fail")
	}
	checkInvariant(t, l)
}

func TestPeakTracksHighWater(t *testing.T) {
	l := newTestLedger(1000)
	ctx := context.Background()

	bet := place(t, l, "match-1", 3.00, 100)
	l.SettleBet(ctx, bet.ID, StatusWon, "Player A", false) // 1200
	bet2 := place(t, l, "match-2", 2.00, 300)
	l.SettleBet(ctx, bet2.ID, StatusLost, "Player B", false) // 900

	if !l.Peak().Equal(decimal.NewFromFloat(1200)) {
		t.Errorf("peak = %s, want 1200", l.Peak().StringFixed(2))
	}
	if !l.Balance().Equal(decimal.NewFromFloat(900)) {
		t.Errorf("balance = %s, want 900", l.Balance().StringFixed(2))
	}
}
