// Package metrics provides Prometheus metrics for the detection engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// EngineMetrics collects and exposes engine-related Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Signal metrics
	SignalsTotal  *prometheus.CounterVec
	SignalErrors  *prometheus.CounterVec
	SignalLatency *prometheus.HistogramVec

	// Opportunity metrics
	OpportunitiesTotal    *prometheus.CounterVec
	OpportunityEV         *prometheus.HistogramVec
	OpportunityConfidence *prometheus.HistogramVec

	// Bet metrics
	BetsPlaced  *prometheus.CounterVec
	BetsSettled *prometheus.CounterVec
	StakeSize   *prometheus.HistogramVec

	// Bankroll metrics
	Bankroll    *prometheus.GaugeVec
	PendingBets *prometheus.GaugeVec
	DrawdownPct *prometheus.GaugeVec

	// Calibration metrics
	CalibrationError *prometheus.HistogramVec
}

// NewEngineMetrics creates a new engine metrics collector.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		// Signal metrics
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_signals_total",
				Help: "Total number of match signals processed",
			},
			[]string{"sport", "status"},
		),
		SignalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_signal_errors_total",
				Help: "Total number of invalid or failed signals",
			},
			[]string{"reason"},
		),
		SignalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtedge_signal_latency_seconds",
				Help:    "Time to run all detectors on one signal",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~400ms
			},
			[]string{},
		),

		// Opportunity metrics
		OpportunitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_opportunities_total",
				Help: "Total number of opportunities detected",
			},
			[]string{"type"},
		),
		OpportunityEV: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtedge_opportunity_ev_pct",
				Help:    "Expected value of detected opportunities in percent",
				Buckets: []float64{0, 5, 10, 15, 20, 30, 50, 75, 100, 200},
			},
			[]string{"type"},
		),
		OpportunityConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtedge_opportunity_confidence",
				Help:    "Confidence of detected opportunities (0-1)",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0, 0.1, ..., 1.0
			},
			[]string{"type"},
		),

		// Bet metrics
		BetsPlaced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_bets_placed_total",
				Help: "Total number of bets placed",
			},
			[]string{"strategy", "sport"},
		),
		BetsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtedge_bets_settled_total",
				Help: "Total number of bets settled",
			},
			[]string{"strategy", "result"},
		),
		StakeSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtedge_stake_size",
				Help:    "Stake size per bet in bankroll currency",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"strategy"},
		),

		// Bankroll metrics
		Bankroll: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "courtedge_bankroll",
				Help: "Current bankroll balance",
			},
			[]string{},
		),
		PendingBets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "courtedge_pending_bets",
				Help: "Current number of unsettled bets",
			},
			[]string{},
		),
		DrawdownPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "courtedge_drawdown_pct",
				Help: "Current drawdown percentage from peak bankroll",
			},
			[]string{},
		),

		// Calibration metrics
		CalibrationError: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtedge_calibration_error",
				Help:    "Absolute calibration error per settled prediction",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"bucket"},
		),
	}

	// Register all metrics
	em.registerAll()

	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.SignalsTotal,
		em.SignalErrors,
		em.SignalLatency,
		em.OpportunitiesTotal,
		em.OpportunityEV,
		em.OpportunityConfidence,
		em.BetsPlaced,
		em.BetsSettled,
		em.StakeSize,
		em.Bankroll,
		em.PendingBets,
		em.DrawdownPct,
		em.CalibrationError,
	)
}

// Registry returns the prometheus registry.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// --- Helper methods for recording metrics ---

// RecordSignal records a processed signal.
func (em *EngineMetrics) RecordSignal(sport, status string, latencySec float64) {
	em.SignalsTotal.WithLabelValues(sport, status).Inc()
	if latencySec > 0 {
		em.SignalLatency.WithLabelValues().Observe(latencySec)
	}
}

// RecordSignalError records a rejected or failed signal.
func (em *EngineMetrics) RecordSignalError(reason string) {
	em.SignalErrors.WithLabelValues(reason).Inc()
}

// RecordOpportunity records a detected opportunity.
func (em *EngineMetrics) RecordOpportunity(typ string, evPct, confidence float64) {
	em.OpportunitiesTotal.WithLabelValues(typ).Inc()
	em.OpportunityEV.WithLabelValues(typ).Observe(evPct)
	em.OpportunityConfidence.WithLabelValues(typ).Observe(confidence)
}

// RecordBetPlaced records a placed bet.
func (em *EngineMetrics) RecordBetPlaced(strategy, sport string, stake float64) {
	em.BetsPlaced.WithLabelValues(strategy, sport).Inc()
	if stake > 0 {
		em.StakeSize.WithLabelValues(strategy).Observe(stake)
	}
}

// RecordBetSettled records a settled bet.
func (em *EngineMetrics) RecordBetSettled(strategy, result string) {
	em.BetsSettled.WithLabelValues(strategy, result).Inc()
}

// UpdateBankroll updates bankroll gauges.
func (em *EngineMetrics) UpdateBankroll(balance, drawdownPct float64, pending int) {
	em.Bankroll.WithLabelValues().Set(balance)
	em.DrawdownPct.WithLabelValues().Set(drawdownPct)
	em.PendingBets.WithLabelValues().Set(float64(pending))
}

// RecordCalibration records a calibration error observation.
func (em *EngineMetrics) RecordCalibration(bucket string, calErr float64) {
	em.CalibrationError.WithLabelValues(bucket).Observe(calErr)
}

// --- Decimal helpers ---

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *EngineMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *EngineMetrics {
	once.Do(func() {
		defaultMetrics = NewEngineMetrics()
	})
	return defaultMetrics
}
