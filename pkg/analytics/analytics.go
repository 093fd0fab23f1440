// Package analytics computes performance reports from ledger snapshots.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtedge/courtedge/pkg/ledger"
)

// Window bounds a report to bets settled within [From, To). Zero values
// leave the corresponding side unbounded.
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) contains(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !t.Before(w.To) {
		return false
	}
	return true
}

// Breakdown is the per-strategy or per-sport slice of a report.
type Breakdown struct {
	Bets      int             `json:"bets"`
	Wins      int             `json:"wins"`
	Staked    decimal.Decimal `json:"staked"`
	NetProfit decimal.Decimal `json:"net_profit"`
	ROIPct    float64         `json:"roi_pct"`
}

// Report summarizes betting performance over a window.
type Report struct {
	TotalBets      int                  `json:"total_bets"`
	Wins           int                  `json:"wins"`
	Losses         int                  `json:"losses"`
	Voids          int                  `json:"voids"`
	Pending        int                  `json:"pending"`
	WinRate        float64              `json:"win_rate"`
	TotalStaked    decimal.Decimal      `json:"total_staked"`
	NetProfit      decimal.Decimal      `json:"net_profit"`
	ROIPct         float64              `json:"roi_pct"`
	MaxDrawdown    decimal.Decimal      `json:"max_drawdown"`
	MaxDrawdownPct float64              `json:"max_drawdown_pct"`
	ProfitFactor   float64              `json:"profit_factor"`
	SharpeRatio    float64              `json:"sharpe_ratio"`
	ByStrategy     map[string]Breakdown `json:"by_strategy"`
	BySport        map[string]Breakdown `json:"by_sport"`
}

// Analyze builds a report from a ledger snapshot. Pending bets count
// toward the pending total only; win rate and ROI cover decided bets.
func Analyze(snap ledger.Snapshot, w Window) Report {
	r := Report{
		TotalStaked: decimal.Zero,
		NetProfit:   decimal.Zero,
		ByStrategy:  make(map[string]Breakdown),
		BySport:     make(map[string]Breakdown),
	}

	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	for _, bet := range snap.Bets {
		if bet.Status == ledger.StatusPending {
			if w.contains(bet.PlacedAt) {
				r.Pending++
			}
			continue
		}
		if bet.SettledAt == nil || !w.contains(*bet.SettledAt) {
			continue
		}
		r.TotalBets++
		switch bet.Status {
		case ledger.StatusWon:
			r.Wins++
			grossWin = grossWin.Add(bet.ProfitLoss)
		case ledger.StatusLost:
			r.Losses++
			grossLoss = grossLoss.Add(bet.ProfitLoss.Abs())
		case ledger.StatusVoid:
			r.Voids++
		}
		if bet.Status != ledger.StatusVoid {
			r.TotalStaked = r.TotalStaked.Add(bet.Stake)
			r.NetProfit = r.NetProfit.Add(bet.ProfitLoss)
			addBreakdown(r.ByStrategy, bet.Strategy, bet)
			addBreakdown(r.BySport, bet.Sport, bet)
		}
	}

	if decided := r.Wins + r.Losses; decided > 0 {
		r.WinRate = float64(r.Wins) / float64(decided)
	}
	if r.TotalStaked.IsPositive() {
		r.ROIPct, _ = r.NetProfit.Div(r.TotalStaked).Mul(decimal.NewFromInt(100)).Float64()
	}
	if grossLoss.IsPositive() {
		r.ProfitFactor, _ = grossWin.Div(grossLoss).Float64()
	}
	for k, b := range r.ByStrategy {
		r.ByStrategy[k] = finishBreakdown(b)
	}
	for k, b := range r.BySport {
		r.BySport[k] = finishBreakdown(b)
	}

	series := dailyBalances(snap, w)
	r.MaxDrawdown, r.MaxDrawdownPct = maxDrawdown(series)
	r.SharpeRatio = sharpe(series)
	return r
}

func addBreakdown(m map[string]Breakdown, key string, bet ledger.Bet) {
	if key == "" {
		key = "unknown"
	}
	b, ok := m[key]
	if !ok {
		b = Breakdown{Staked: decimal.Zero, NetProfit: decimal.Zero}
	}
	b.Bets++
	if bet.Status == ledger.StatusWon {
		b.Wins++
	}
	b.Staked = b.Staked.Add(bet.Stake)
	b.NetProfit = b.NetProfit.Add(bet.ProfitLoss)
	m[key] = b
}

func finishBreakdown(b Breakdown) Breakdown {
	if b.Staked.IsPositive() {
		b.ROIPct, _ = b.NetProfit.Div(b.Staked).Mul(decimal.NewFromInt(100)).Float64()
	}
	return b
}

// dailyBalances replays transactions in the window on top of the
// balance at the window start and returns one closing balance per day.
func dailyBalances(snap ledger.Snapshot, w Window) []decimal.Decimal {
	balance := snap.Starting
	byDay := make(map[string]decimal.Decimal)
	var days []string
	for _, tx := range snap.Transactions {
		if !w.From.IsZero() && tx.At.Before(w.From) {
			balance = balance.Add(tx.Amount)
		}
	}
	running := balance
	for _, tx := range snap.Transactions {
		if !w.contains(tx.At) {
			continue
		}
		running = running.Add(tx.Amount)
		day := tx.At.UTC().Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = running
	}
	sort.Strings(days)
	out := make([]decimal.Decimal, 0, len(days))
	for _, day := range days {
		out = append(out, byDay[day])
	}
	return out
}

// maxDrawdown returns the largest running-peak-to-trough decline over
// the balance series, in absolute terms and as a percentage of the
// peak it fell from.
func maxDrawdown(series []decimal.Decimal) (decimal.Decimal, float64) {
	worst := decimal.Zero
	worstPct := 0.0
	if len(series) == 0 {
		return worst, worstPct
	}
	peak := series[0]
	for _, v := range series[1:] {
		if v.GreaterThan(peak) {
			peak = v
			continue
		}
		dd := peak.Sub(v)
		if dd.GreaterThan(worst) {
			worst = dd
			if peak.IsPositive() {
				worstPct, _ = dd.Div(peak).Mul(decimal.NewFromInt(100)).Float64()
			}
		}
	}
	return worst, worstPct
}

// sharpe computes the ratio of mean to standard deviation of daily
// returns. Fewer than two returns, or zero variance, yields 0.
func sharpe(series []decimal.Decimal) float64 {
	if len(series) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, _ := series[i-1].Float64()
		cur, _ := series[i].Float64()
		if prev == 0 {
			return 0
		}
		returns = append(returns, (cur-prev)/prev)
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}
