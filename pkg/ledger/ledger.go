// Package ledger tracks the bankroll: bets, the transactions that move
// money, and the running balance. Every movement is a signed
// transaction, so at all times
//
//	balance == starting + sum(transaction amounts)
//
// Settlement is one-way: a terminal bet stays terminal unless a forced
// re-settlement reverses the prior credit with an adjustment first.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store persists bets and transactions. Implementations live in
// pkg/store; a nil store keeps the ledger purely in memory.
type Store interface {
	SaveBet(ctx context.Context, bet *Bet) error
	AppendTransaction(ctx context.Context, tx *Transaction) error
}

// Snapshot is a point-in-time copy of the ledger for analytics.
type Snapshot struct {
	Starting     decimal.Decimal
	Balance      decimal.Decimal
	Peak         decimal.Decimal
	Bets         []Bet
	Transactions []Transaction
}

// PlaceParams describes a bet to be placed.
type PlaceParams struct {
	MatchID    string
	Sport      string
	Strategy   string
	Selection  string
	Odds       float64
	Stake      decimal.Decimal
	Confidence float64
	// AllowDuplicate permits a second pending bet on the same match.
	AllowDuplicate bool
}

// Ledger is the mutex-guarded bankroll state machine. Writes go through
// the store before the in-memory commit.
type Ledger struct {
	mu             sync.Mutex
	starting       decimal.Decimal
	balance        decimal.Decimal
	peak           decimal.Decimal
	bets           map[uuid.UUID]*Bet
	order          []uuid.UUID
	pendingByMatch map[string]uuid.UUID
	txs            []Transaction
	txSeq          int64
	store          Store
	log            zerolog.Logger
}

// New creates a ledger with the given starting bankroll.
func New(starting decimal.Decimal, store Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		starting:       starting,
		balance:        starting,
		peak:           starting,
		bets:           make(map[uuid.UUID]*Bet),
		pendingByMatch: make(map[string]uuid.UUID),
		store:          store,
		log:            log,
	}
}

// Balance returns the current bankroll.
func (l *Ledger) Balance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// StartingBalance returns the bankroll the ledger opened with.
func (l *Ledger) StartingBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.starting
}

// Peak returns the highest balance seen so far.
func (l *Ledger) Peak() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.peak
}

// PlaceBet reserves the stake and records a pending bet. If a pending
// bet already exists for the match and duplicates are not allowed, the
// existing bet is returned unchanged.
func (l *Ledger) PlaceBet(ctx context.Context, p PlaceParams) (*Bet, error) {
	if p.MatchID == "" || p.Selection == "" {
		return nil, fmt.Errorf("%w: match id and selection required", ErrValidation)
	}
	if p.Odds <= 1 {
		return nil, fmt.Errorf("%w: odds %.2f must exceed 1.00", ErrValidation, p.Odds)
	}
	if !p.Stake.IsPositive() {
		return nil, fmt.Errorf("%w: stake must be positive", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.pendingByMatch[p.MatchID]; ok && !p.AllowDuplicate {
		existing := *l.bets[id]
		return &existing, nil
	}
	if p.Stake.GreaterThan(l.balance) {
		return nil, fmt.Errorf("%w: stake %s exceeds balance %s",
			ErrInsufficientBankroll, p.Stake.StringFixed(2), l.balance.StringFixed(2))
	}

	now := time.Now().UTC()
	bet := &Bet{
		ID:         uuid.New(),
		MatchID:    p.MatchID,
		Sport:      p.Sport,
		Strategy:   p.Strategy,
		Selection:  p.Selection,
		Odds:       p.Odds,
		Stake:      p.Stake,
		Confidence: p.Confidence,
		PlacedAt:   now,
		Status:     StatusPending,
	}
	tx := l.newTx(TxStake, p.Stake.Neg(), &bet.ID, "stake "+p.MatchID, now)

	if err := l.persist(ctx, bet, tx); err != nil {
		return nil, err
	}
	l.bets[bet.ID] = bet
	l.order = append(l.order, bet.ID)
	l.pendingByMatch[p.MatchID] = bet.ID
	l.commit(tx)

	l.log.Info().
		Str("bet_id", bet.ID.String()).
		Str("match_id", p.MatchID).
		Str("selection", p.Selection).
		Float64("odds", p.Odds).
		Str("stake", p.Stake.StringFixed(2)).
		Msg("bet placed")

	out := *bet
	return &out, nil
}

// SettleBet resolves a pending bet. result must be WON, LOST or VOID.
// Settling an already terminal bet returns the bet unchanged with
// ErrAlreadySettled unless force is set, in which case the prior credit
// is reversed with an adjustment and the new result applied.
func (l *Ledger) SettleBet(ctx context.Context, betID uuid.UUID, result Status, actual string, force bool) (*Bet, error) {
	if !result.Terminal() {
		return nil, fmt.Errorf("%w: result %q is not terminal", ErrValidation, result)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.bets[betID]
	if !ok {
		return nil, ErrNotFound
	}

	// All mutations are staged on a copy; the stored bet changes only
	// after every store write succeeds, so a failed settle can be
	// retried cleanly.
	staged := *bet
	var reversal *Transaction
	if bet.Status.Terminal() {
		if !force {
			out := *bet
			return &out, ErrAlreadySettled
		}
		reversal = l.reversalTx(bet)
	}

	now := time.Now().UTC()
	var tx *Transaction
	switch result {
	case StatusWon:
		payout := staged.Stake.Mul(decimal.NewFromFloat(staged.Odds)).Round(2)
		staged.ProfitLoss = payout.Sub(staged.Stake)
		tx = l.newTx(TxWinnings, payout, &staged.ID, "winnings "+staged.MatchID, now)
	case StatusLost:
		staged.ProfitLoss = staged.Stake.Neg()
	case StatusVoid:
		staged.ProfitLoss = decimal.Zero
		tx = l.newTx(TxRefund, staged.Stake, &staged.ID, "void refund "+staged.MatchID, now)
	}

	staged.Status = result
	staged.SettledAt = &now
	staged.Outcome = actual

	if reversal != nil && l.store != nil {
		if err := l.store.AppendTransaction(ctx, reversal); err != nil {
			return nil, err
		}
	}
	if err := l.persist(ctx, &staged, tx); err != nil {
		return nil, err
	}

	*bet = staged
	if reversal != nil {
		l.commit(reversal)
	}
	if tx != nil {
		l.commit(tx)
	}
	if id, ok := l.pendingByMatch[bet.MatchID]; ok && id == bet.ID {
		delete(l.pendingByMatch, bet.MatchID)
	}

	l.log.Info().
		Str("bet_id", bet.ID.String()).
		Str("match_id", bet.MatchID).
		Str("result", string(result)).
		Str("profit_loss", bet.ProfitLoss.StringFixed(2)).
		Str("balance", l.balance.StringFixed(2)).
		Msg("bet settled")

	out := *bet
	return &out, nil
}

// reversalTx builds the adjustment that undoes the credit a prior
// settlement made, so a forced re-settle keeps the balance invariant.
// Returns nil when the prior result moved no money. Caller holds mu.
func (l *Ledger) reversalTx(bet *Bet) *Transaction {
	var amount decimal.Decimal
	switch bet.Status {
	case StatusWon:
		amount = bet.Stake.Mul(decimal.NewFromFloat(bet.Odds)).Round(2).Neg()
	case StatusVoid:
		amount = bet.Stake.Neg()
	default:
		return nil
	}
	return l.newTx(TxAdjustment, amount, &bet.ID, "reverse "+string(bet.Status)+" "+bet.MatchID, time.Now().UTC())
}

// Deposit credits external funds.
func (l *Ledger) Deposit(ctx context.Context, amount decimal.Decimal, note string) error {
	return l.externalTx(ctx, TxDeposit, amount, note, false)
}

// Withdraw debits external funds. Fails if the balance cannot cover it.
func (l *Ledger) Withdraw(ctx context.Context, amount decimal.Decimal, note string) error {
	return l.externalTx(ctx, TxWithdrawal, amount, note, true)
}

// RecordExpense debits an operating cost such as a data subscription.
func (l *Ledger) RecordExpense(ctx context.Context, amount decimal.Decimal, note string) error {
	return l.externalTx(ctx, TxExpense, amount, note, true)
}

func (l *Ledger) externalTx(ctx context.Context, typ TxType, amount decimal.Decimal, note string, debit bool) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	signed := amount
	if debit {
		if amount.GreaterThan(l.balance) {
			return fmt.Errorf("%w: %s %s exceeds balance %s",
				ErrInsufficientBankroll, typ, amount.StringFixed(2), l.balance.StringFixed(2))
		}
		signed = amount.Neg()
	}
	tx := l.newTx(typ, signed, nil, note, time.Now().UTC())
	if l.store != nil {
		if err := l.store.AppendTransaction(ctx, tx); err != nil {
			return err
		}
	}
	l.commit(tx)
	return nil
}

// Bet returns a copy of the bet with the given id.
func (l *Ledger) Bet(id uuid.UUID) (*Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bet, ok := l.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *bet
	return &out, nil
}

// PendingBets returns copies of all unsettled bets in placement order.
func (l *Ledger) PendingBets() []Bet {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Bet, 0, len(l.pendingByMatch))
	for _, id := range l.order {
		if b := l.bets[id]; b.Status == StatusPending {
			out = append(out, *b)
		}
	}
	return out
}

// Snapshot copies the full ledger state for analytics and reporting.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Snapshot{
		Starting: l.starting,
		Balance:  l.balance,
		Peak:     l.peak,
		Bets:     make([]Bet, 0, len(l.order)),
	}
	for _, id := range l.order {
		s.Bets = append(s.Bets, *l.bets[id])
	}
	s.Transactions = make([]Transaction, len(l.txs))
	copy(s.Transactions, l.txs)
	return s
}

// newTx builds a transaction with the next sequence id. Caller holds mu.
func (l *Ledger) newTx(typ TxType, amount decimal.Decimal, betID *uuid.UUID, note string, at time.Time) *Transaction {
	l.txSeq++
	return &Transaction{ID: l.txSeq, Type: typ, Amount: amount, BetID: betID, Note: note, At: at}
}

// persist writes the bet and optional transaction through the store.
// Caller holds mu.
func (l *Ledger) persist(ctx context.Context, bet *Bet, tx *Transaction) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveBet(ctx, bet); err != nil {
		return err
	}
	if tx != nil {
		return l.store.AppendTransaction(ctx, tx)
	}
	return nil
}

// commit applies a transaction to the in-memory state. Caller holds mu.
func (l *Ledger) commit(tx *Transaction) {
	l.txs = append(l.txs, *tx)
	l.balance = l.balance.Add(tx.Amount)
	if l.balance.GreaterThan(l.peak) {
		l.peak = l.balance
	}
}
