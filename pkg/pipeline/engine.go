// Package pipeline wires signal intake, detection, stake sizing and the
// ledger into one engine. A signal flows validate -> dedupe -> detect ->
// select -> size -> place; a malformed signal is counted and dropped,
// never fatal.
package pipeline

import (
	"context"
	"fmt"
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
	"github.com/courtedge/courtedge/pkg/stake"
)

// DefaultDedupeTTL is how long a processed signal key suppresses
// reprocessing of the same match state.
const DefaultDedupeTTL = 10 * time.Minute

var hundred = decimal.NewFromInt(100)

// Result reports what one signal produced.
type Result struct {
	Opportunity *detect.Opportunity `json:"opportunity,omitempty"`
	Bet         *ledger.Bet         `json:"bet,omitempty"`
	Skipped     bool                `json:"skipped"`
	Reason      string              `json:"reason,omitempty"`
}

// OpportunityCallback fires when the aggregator selects an opportunity.
type OpportunityCallback func(opp *detect.Opportunity)

// BetCallback fires when a bet is placed or settled.
type BetCallback func(bet *ledger.Bet)

// Config assembles an engine from its parts. Ledger is required; nil
// optional parts disable their feature.
type Config struct {
	Detectors  []detect.Detector
	Aggregator *detect.Aggregator
	Sizer      *stake.Sizer
	Method     stake.Method
	Ledger     *ledger.Ledger
	Recorder   *calibration.Recorder
	Cache      cache.Cache
	Metrics    *metrics.EngineMetrics
	DedupeTTL  time.Duration
	Logger     zerolog.Logger
}

// Engine runs the full opportunity pipeline for one bankroll.
type Engine struct {
	detectors []detect.Detector
	agg       *detect.Aggregator
	sizer     *stake.Sizer
	method    stake.Method
	ledger    *ledger.Ledger
	recorder  *calibration.Recorder
	cache     cache.Cache
	metrics   *metrics.EngineMetrics
	dedupeTTL time.Duration
	log       zerolog.Logger

	onOpportunity OpportunityCallback
	onBet         BetCallback
}

// New builds an engine. Zero-value Config fields fall back to the
// default detectors, aggregator, sizer and metrics.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("pipeline: ledger is required")
	}
	if len(cfg.Detectors) == 0 {
		cfg.Detectors = []detect.Detector{
			detect.NewMomentumDetector(detect.DefaultMomentumConfig(), nil),
			detect.NewFatigueDetector(detect.DefaultFatigueConfig()),
			detect.NewH2HDetector(detect.DefaultH2HConfig()),
		}
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = detect.NewAggregator(0.60)
	}
	if cfg.Sizer == nil {
		cfg.Sizer = stake.NewSizer(nil)
	}
	if cfg.Method == "" {
		cfg.Method = stake.MethodKelly
	}
	if !cfg.Method.Valid() {
		return nil, fmt.Errorf("pipeline: unknown staking method %q", cfg.Method)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = DefaultDedupeTTL
	}
	return &Engine{
		detectors: cfg.Detectors,
		agg:       cfg.Aggregator,
		sizer:     cfg.Sizer,
		method:    cfg.Method,
		ledger:    cfg.Ledger,
		recorder:  cfg.Recorder,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		dedupeTTL: cfg.DedupeTTL,
		log:       cfg.Logger,
	}, nil
}

// OnOpportunity registers a callback for selected opportunities.
func (e *Engine) OnOpportunity(cb OpportunityCallback) { e.onOpportunity = cb }

// OnBet registers a callback for placed and settled bets.
func (e *Engine) OnBet(cb BetCallback) { e.onBet = cb }

// ProcessSignal runs one signal through the pipeline. Validation
// failures return an error; a signal with no edge returns a skipped
// result and a nil error.
func (e *Engine) ProcessSignal(ctx context.Context, sig *signal.MatchSignal) (*Result, error) {
	start := time.Now()
	if err := sig.Validate(); err != nil {
		e.metrics.RecordSignalError("validation")
		e.log.Warn().Err(err).Msg("signal rejected")
		return nil, err
	}

	key := "signal:" + sig.Key()
	if e.cache != nil {
		if _, seen, err := e.cache.Get(ctx, key); err != nil {
			e.log.Warn().Err(err).Msg("cache get failed, processing anyway")
		} else if seen {
			e.metrics.RecordSignal(sig.Sport, "duplicate", 0)
			return &Result{Skipped: true, Reason: "duplicate signal"}, nil
		}
	}

	var opps []*detect.Opportunity
	for _, d := range e.detectors {
		if opp := d.Detect(sig); opp != nil {
			opps = append(opps, opp)
			e.metrics.RecordOpportunity(string(opp.Type), opp.ExpectedValuePct, opp.Confidence)
		}
	}

	best := e.agg.Select(opps)
	e.metrics.RecordSignal(sig.Sport, "processed", time.Since(start).Seconds())
	if best == nil {
		e.markProcessed(ctx, key)
		return &Result{Skipped: true, Reason: "no qualifying opportunity"}, nil
	}

	e.log.Info().
		Str("match_id", best.MatchID).
		Str("type", string(best.Type)).
		Str("selection", best.Selection).
		Float64("ev_pct", best.ExpectedValuePct).
		Float64("confidence", best.Confidence).
		Msg("opportunity selected")
	if e.onOpportunity != nil {
		e.onOpportunity(best)
	}

	amount := e.sizer.Size(best.Confidence, best.Odds, e.ledger.Balance(), e.method)
	if !amount.IsPositive() {
		e.markProcessed(ctx, key)
		return &Result{Opportunity: best, Skipped: true, Reason: "stake sized to zero"}, nil
	}

	bet, err := e.ledger.PlaceBet(ctx, ledger.PlaceParams{
		MatchID:    best.MatchID,
		Sport:      sig.Sport,
		Strategy:   best.Strategy,
		Selection:  best.Selection,
		Odds:       best.Odds,
		Stake:      amount,
		Confidence: best.Confidence,
	})
	if err != nil {
		// Not marked processed: a transient placement failure should
		// not suppress the signal for the full dedupe TTL.
		e.metrics.RecordSignalError("place_bet")
		return &Result{Opportunity: best}, err
	}
	e.markProcessed(ctx, key)
	e.metrics.RecordBetPlaced(bet.Strategy, bet.Sport, metrics.DecimalToFloat64(bet.Stake))
	e.updateBankrollGauges()
	if e.onBet != nil {
		e.onBet(bet)
	}
	return &Result{Opportunity: best, Bet: bet}, nil
}

// markProcessed marks the signal key in the cache so the same match
// state is not reprocessed within the TTL.
func (e *Engine) markProcessed(ctx context.Context, key string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, key, []byte("1"), e.dedupeTTL); err != nil {
		e.log.Warn().Err(err).Msg("cache set failed")
	}
}

// SettleMatch resolves every pending bet on the match. An empty winner
// voids the bets (abandoned match). Calibration is recorded for decided
// bets only.
func (e *Engine) SettleMatch(ctx context.Context, matchID, winner string) ([]ledger.Bet, error) {
	var settled []ledger.Bet
	for _, bet := range e.ledger.PendingBets() {
		if bet.MatchID != matchID {
			continue
		}
		result := ledger.StatusVoid
		if winner != "" {
			if signal.NormalizeName(bet.Selection) == signal.NormalizeName(winner) {
				result = ledger.StatusWon
			} else {
				result = ledger.StatusLost
			}
		}
		out, err := e.ledger.SettleBet(ctx, bet.ID, result, winner, false)
		if err != nil {
			return settled, err
		}
		settled = append(settled, *out)
		e.metrics.RecordBetSettled(out.Strategy, string(out.Status))

		if e.recorder != nil && result != ledger.StatusVoid {
			rec, err := e.recorder.Record(ctx, matchID, out.Confidence,
				signal.NormalizeName(out.Selection), signal.NormalizeName(winner))
			if err != nil {
				e.log.Warn().Err(err).Msg("calibration record failed")
			} else {
				e.metrics.RecordCalibration(rec.ConfidenceBucket, rec.CalibrationError)
			}
		}
		if e.onBet != nil {
			e.onBet(out)
		}
	}
	e.updateBankrollGauges()
	return settled, nil
}

// Statistics computes the performance report over a window.
func (e *Engine) Statistics(w analytics.Window) analytics.Report {
	return analytics.Analyze(e.ledger.Snapshot(), w)
}

// Ledger exposes the underlying ledger for deposits, withdrawals and
// manual settlement.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Calibration exposes the calibration recorder, if configured.
func (e *Engine) Calibration() *calibration.Recorder { return e.recorder }

func (e *Engine) updateBankrollGauges() {
	balance := e.ledger.Balance()
	peak := e.ledger.Peak()
	dd := 0.0
	if peak.IsPositive() && balance.LessThan(peak) {
		dd, _ = peak.Sub(balance).Div(peak).Mul(hundred).Float64()
	}
	e.metrics.UpdateBankroll(metrics.DecimalToFloat64(balance), dd, len(e.ledger.PendingBets()))
}
