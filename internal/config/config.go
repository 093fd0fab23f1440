// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/courtedge/courtedge/pkg/detect"
	"github.com/courtedge/courtedge/pkg/stake"
)

// Config is the root configuration for one engine instance.
type Config struct {
	Bankroll    BankrollConfig    `yaml:"bankroll"`
	Staking     StakingConfig     `yaml:"staking"`
	Detection   DetectionConfig   `yaml:"detection"`
	ProfitShare ProfitShareConfig `yaml:"profit_share"`
	Storage     StorageConfig     `yaml:"storage"`
	Cache       CacheConfig       `yaml:"cache"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// BankrollConfig sets up the ledger.
type BankrollConfig struct {
	Starting float64 `yaml:"starting"`
	Currency string  `yaml:"currency"`
}

// StakingConfig selects and tunes the stake sizing method.
type StakingConfig struct {
	Method        string  `yaml:"method"`
	KellyFraction float64 `yaml:"kelly_fraction"`
	MaxStakePct   float64 `yaml:"max_stake_pct"`
	FixedPct      float64 `yaml:"fixed_pct"`
	MinStake      float64 `yaml:"min_stake"`
}

// SizerConfig converts the staking section into the sizer's config.
func (s StakingConfig) SizerConfig() *stake.Config {
	return &stake.Config{
		KellyFraction: s.KellyFraction,
		MaxStakePct:   s.MaxStakePct,
		FixedPct:      s.FixedPct,
		MinStake:      decimal.NewFromFloat(s.MinStake),
	}
}

// DetectionConfig tunes the detectors and the aggregator gate.
type DetectionConfig struct {
	MinConfidence float64              `yaml:"min_confidence"`
	Momentum      MomentumThresholds   `yaml:"momentum"`
	Fatigue       FatigueThresholds    `yaml:"fatigue"`
	H2H           H2HThresholds        `yaml:"h2h"`
}

// MomentumThresholds tunes the momentum shift detector.
type MomentumThresholds struct {
	FavoriteThreshold float64 `yaml:"favorite_threshold"`
	ValueThreshold    float64 `yaml:"value_threshold"`
	MinRecoveryRate   float64 `yaml:"min_recovery_rate"`
	MinEVPct          float64 `yaml:"min_ev_pct"`
}

// FatigueThresholds tunes the fatigue exploit detector.
type FatigueThresholds struct {
	RiskThreshold float64 `yaml:"risk_threshold"`
	MaxEdge       float64 `yaml:"max_edge"`
	MinEVPct      float64 `yaml:"min_ev_pct"`
}

// H2HThresholds tunes the head-to-head imbalance detector.
type H2HThresholds struct {
	DominanceWins int     `yaml:"dominance_wins"`
	DominanceRate float64 `yaml:"dominance_rate"`
	MinMeetings   int     `yaml:"min_meetings"`
	MinEVPct      float64 `yaml:"min_ev_pct"`
}

// ProfitShareConfig splits monthly net profit.
type ProfitShareConfig struct {
	PartnerPct    float64 `yaml:"partner_pct"`
	MyPct         float64 `yaml:"my_pct"`
	MinimumProfit float64 `yaml:"minimum_profit"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // "memory" or "postgres"
	Postgres string `yaml:"postgres_dsn"`
}

// CacheConfig selects the dedupe cache backend.
type CacheConfig struct {
	Backend    string        `yaml:"backend"` // "memory" or "redis"
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db"`
	RedisPass  string        `yaml:"redis_password"`
	Prefix     string        `yaml:"prefix"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MomentumConfig converts the thresholds into the detector config.
func (d DetectionConfig) MomentumConfig() detect.MomentumConfig {
	return detect.MomentumConfig{
		FavoriteThreshold: d.Momentum.FavoriteThreshold,
		ValueThreshold:    d.Momentum.ValueThreshold,
		MinRecoveryRate:   d.Momentum.MinRecoveryRate,
		MinEVPct:          d.Momentum.MinEVPct,
	}
}

// FatigueConfig converts the thresholds into the detector config.
func (d DetectionConfig) FatigueConfig() detect.FatigueConfig {
	cfg := detect.DefaultFatigueConfig()
	cfg.RiskThreshold = d.Fatigue.RiskThreshold
	cfg.MaxEdge = d.Fatigue.MaxEdge
	cfg.MinEVPct = d.Fatigue.MinEVPct
	return cfg
}

// H2HConfig converts the thresholds into the detector config.
func (d DetectionConfig) H2HConfig() detect.H2HConfig {
	return detect.H2HConfig{
		DominanceWins: d.H2H.DominanceWins,
		DominanceRate: d.H2H.DominanceRate,
		MinMeetings:   d.H2H.MinMeetings,
		MinEVPct:      d.H2H.MinEVPct,
	}
}

func (c *Config) applyDefaults() {
	if c.Bankroll.Starting == 0 {
		c.Bankroll.Starting = 10000
	}
	if c.Bankroll.Currency == "" {
		c.Bankroll.Currency = "USD"
	}
	if c.Staking.Method == "" {
		c.Staking.Method = string(stake.MethodKelly)
	}
	if c.Staking.KellyFraction == 0 {
		c.Staking.KellyFraction = 0.25
	}
	if c.Staking.MaxStakePct == 0 {
		c.Staking.MaxStakePct = 0.05
	}
	if c.Staking.FixedPct == 0 {
		c.Staking.FixedPct = 0.02
	}
	if c.Staking.MinStake == 0 {
		c.Staking.MinStake = 10
	}
	if c.Detection.MinConfidence == 0 {
		c.Detection.MinConfidence = 0.60
	}
	if c.Detection.Momentum == (MomentumThresholds{}) {
		def := detect.DefaultMomentumConfig()
		c.Detection.Momentum = MomentumThresholds{
			FavoriteThreshold: def.FavoriteThreshold,
			ValueThreshold:    def.ValueThreshold,
			MinRecoveryRate:   def.MinRecoveryRate,
			MinEVPct:          def.MinEVPct,
		}
	}
	if c.Detection.Fatigue == (FatigueThresholds{}) {
		def := detect.DefaultFatigueConfig()
		c.Detection.Fatigue = FatigueThresholds{
			RiskThreshold: def.RiskThreshold,
			MaxEdge:       def.MaxEdge,
			MinEVPct:      def.MinEVPct,
		}
	}
	if c.Detection.H2H == (H2HThresholds{}) {
		def := detect.DefaultH2HConfig()
		c.Detection.H2H = H2HThresholds{
			DominanceWins: def.DominanceWins,
			DominanceRate: def.DominanceRate,
			MinMeetings:   def.MinMeetings,
			MinEVPct:      def.MinEVPct,
		}
	}
	if c.ProfitShare.PartnerPct == 0 && c.ProfitShare.MyPct == 0 {
		c.ProfitShare.PartnerPct = 50
		c.ProfitShare.MyPct = 50
	}
	if c.ProfitShare.MinimumProfit == 0 {
		c.ProfitShare.MinimumProfit = 100
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 10 * time.Minute
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports the first configuration problem.
func (c *Config) Validate() error {
	if c.Bankroll.Starting <= 0 {
		return fmt.Errorf("bankroll.starting must be positive")
	}
	if !stake.Method(c.Staking.Method).Valid() {
		return fmt.Errorf("staking.method %q is not one of kelly, fixed, confidence", c.Staking.Method)
	}
	if c.Staking.KellyFraction <= 0 || c.Staking.KellyFraction > 1 {
		return fmt.Errorf("staking.kelly_fraction must be within (0,1]")
	}
	if c.Staking.MaxStakePct <= 0 || c.Staking.MaxStakePct > 1 {
		return fmt.Errorf("staking.max_stake_pct must be within (0,1]")
	}
	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence > 1 {
		return fmt.Errorf("detection.min_confidence must be within [0,1]")
	}
	if c.ProfitShare.PartnerPct+c.ProfitShare.MyPct != 100 {
		return fmt.Errorf("profit_share percentages must sum to 100")
	}
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.Postgres == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, postgres", c.Storage.Backend)
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of memory, redis", c.Cache.Backend)
	}
	return nil
}
