// Package profitshare generates monthly partner statements from ledger
// activity and splits realized profit between the two parties.
package profitshare

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/courtedge/courtedge/pkg/ledger"
)

// Config controls how monthly profit is split.
type Config struct {
	PartnerPct    float64         // partner share of net profit, percent
	MyPct         float64         // operator share of net profit, percent
	MinimumProfit decimal.Decimal // below this net profit nobody gets paid
}

// DefaultConfig splits net profit evenly with a 100 unit payout floor.
func DefaultConfig() Config {
	return Config{
		PartnerPct:    50,
		MyPct:         50,
		MinimumProfit: decimal.NewFromInt(100),
	}
}

// Validate checks that the split covers exactly the whole profit.
func (c Config) Validate() error {
	if c.PartnerPct < 0 || c.MyPct < 0 {
		return fmt.Errorf("split percentages must be non-negative")
	}
	if c.PartnerPct+c.MyPct != 100 {
		return fmt.Errorf("split percentages sum to %.1f, want 100", c.PartnerPct+c.MyPct)
	}
	return nil
}

// Statement is one calendar month of bankroll activity with the
// resulting profit split. Statements are keyed by (Year, Month);
// regenerating a month replaces the previous statement.
type Statement struct {
	Year            int             `json:"year" db:"year"`
	Month           time.Month      `json:"month" db:"month"`
	StartingBalance decimal.Decimal `json:"starting_balance" db:"starting_balance"`
	EndingBalance   decimal.Decimal `json:"ending_balance" db:"ending_balance"`
	Deposits        decimal.Decimal `json:"deposits" db:"deposits"`
	Withdrawals     decimal.Decimal `json:"withdrawals" db:"withdrawals"`
	TotalStaked     decimal.Decimal `json:"total_staked" db:"total_staked"`
	Winnings        decimal.Decimal `json:"winnings" db:"winnings"`
	Refunds         decimal.Decimal `json:"refunds" db:"refunds"`
	Expenses        decimal.Decimal `json:"expenses" db:"expenses"`
	GrossProfit     decimal.Decimal `json:"gross_profit" db:"gross_profit"`
	NetProfit       decimal.Decimal `json:"net_profit" db:"net_profit"`
	PartnerShare    decimal.Decimal `json:"partner_share" db:"partner_share"`
	MyShare         decimal.Decimal `json:"my_share" db:"my_share"`

	// Period betting stats over bets settled within the month.
	BetsSettled int     `json:"bets_settled" db:"bets_settled"`
	WinRate     float64 `json:"win_rate" db:"win_rate"`
	ROIPct      float64 `json:"roi_pct" db:"roi_pct"`

	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}

// Store persists statements, replacing any prior statement for the
// same year and month.
type Store interface {
	UpsertStatement(ctx context.Context, st *Statement) error
}

// Generator builds statements from ledger snapshots.
type Generator struct {
	cfg   Config
	store Store
	log   zerolog.Logger
}

// NewGenerator creates a generator. store may be nil.
func NewGenerator(cfg Config, store Store, log zerolog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, store: store, log: log}, nil
}

// Generate builds the statement for one calendar month (UTC) from the
// snapshot's full transaction history. The same snapshot always yields
// the same statement apart from GeneratedAt.
func (g *Generator) Generate(ctx context.Context, snap ledger.Snapshot, year int, month time.Month) (*Statement, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	st := &Statement{
		Year:         year,
		Month:        month,
		Deposits:     decimal.Zero,
		Withdrawals:  decimal.Zero,
		TotalStaked:  decimal.Zero,
		Winnings:     decimal.Zero,
		Refunds:      decimal.Zero,
		Expenses:     decimal.Zero,
		PartnerShare: decimal.Zero,
		MyShare:      decimal.Zero,
		GeneratedAt:  time.Now().UTC(),
	}

	opening := snap.Starting
	closing := snap.Starting
	for _, tx := range snap.Transactions {
		at := tx.At.UTC()
		if at.Before(start) {
			opening = opening.Add(tx.Amount)
		}
		if at.Before(end) {
			closing = closing.Add(tx.Amount)
		}
		if at.Before(start) || !at.Before(end) {
			continue
		}
		switch tx.Type {
		case ledger.TxDeposit:
			st.Deposits = st.Deposits.Add(tx.Amount)
		case ledger.TxWithdrawal:
			st.Withdrawals = st.Withdrawals.Add(tx.Amount.Abs())
		case ledger.TxStake:
			st.TotalStaked = st.TotalStaked.Add(tx.Amount.Abs())
		case ledger.TxWinnings:
			st.Winnings = st.Winnings.Add(tx.Amount)
		case ledger.TxRefund:
			st.Refunds = st.Refunds.Add(tx.Amount)
		case ledger.TxExpense:
			st.Expenses = st.Expenses.Add(tx.Amount.Abs())
		case ledger.TxAdjustment:
			// Adjustments correct prior settlements; fold them into
			// winnings so the gross stays truthful.
			st.Winnings = st.Winnings.Add(tx.Amount)
		}
	}
	st.StartingBalance = opening
	st.EndingBalance = closing

	var wins, losses int
	staked := decimal.Zero
	profit := decimal.Zero
	for _, bet := range snap.Bets {
		if bet.SettledAt == nil {
			continue
		}
		at := bet.SettledAt.UTC()
		if at.Before(start) || !at.Before(end) {
			continue
		}
		st.BetsSettled++
		switch bet.Status {
		case ledger.StatusWon:
			wins++
		case ledger.StatusLost:
			losses++
		default:
			continue
		}
		staked = staked.Add(bet.Stake)
		profit = profit.Add(bet.ProfitLoss)
	}
	if decided := wins + losses; decided > 0 {
		st.WinRate = float64(wins) / float64(decided)
	}
	if staked.IsPositive() {
		st.ROIPct, _ = profit.Div(staked).Mul(decimal.NewFromInt(100)).Float64()
	}

	st.GrossProfit = st.Winnings.Add(st.Refunds).Sub(st.TotalStaked)
	st.NetProfit = st.GrossProfit.Sub(st.Expenses)

	if st.NetProfit.GreaterThanOrEqual(g.cfg.MinimumProfit) {
		st.PartnerShare = st.NetProfit.Mul(decimal.NewFromFloat(g.cfg.PartnerPct)).Div(decimal.NewFromInt(100)).Round(2)
		st.MyShare = st.NetProfit.Sub(st.PartnerShare)
	}

	if g.store != nil {
		if err := g.store.UpsertStatement(ctx, st); err != nil {
			return nil, err
		}
	}

	g.log.Info().
		Int("year", year).
		Str("month", month.String()).
		Str("net_profit", st.NetProfit.StringFixed(2)).
		Str("partner_share", st.PartnerShare.StringFixed(2)).
		Msg("statement generated")
	return st, nil
}
