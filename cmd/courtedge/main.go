package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/courtedge/courtedge/internal/config"
	"github.com/courtedge/courtedge/pkg/cache"
	"github.com/courtedge/courtedge/pkg/calibration"
	"github.com/courtedge/courtedge/pkg/detect"
	"github.com/courtedge/courtedge/pkg/ledger"
	"github.com/courtedge/courtedge/pkg/metrics"
	"github.com/courtedge/courtedge/pkg/pipeline"
	"github.com/courtedge/courtedge/pkg/profitshare"
	"github.com/courtedge/courtedge/pkg/stake"
	"github.com/courtedge/courtedge/pkg/store"
)

var configPath string

// rootCmd is the base command for the courtedge CLI.
var rootCmd = &cobra.Command{
	Use:   "courtedge",
	Short: "Live match opportunity detection and staking engine",
	Long: `Courtedge watches live match signals for exploitable pricing,
sizes stakes with fractional Kelly against a tracked bankroll, and
produces performance analytics and monthly profit-split statements.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("courtedge - opportunity detection and staking engine")
		fmt.Println("Use 'courtedge serve' to start the API or 'courtedge simulate' to replay signals")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(configPath)
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

// runtime bundles everything a command needs once the config is wired.
type runtime struct {
	cfg        *config.Config
	log        zerolog.Logger
	engine     *pipeline.Engine
	statements *profitshare.Generator
	metrics    *metrics.EngineMetrics
	closers    []func() error
}

func (rt *runtime) Close() {
	for _, c := range rt.closers {
		if err := c(); err != nil {
			rt.log.Warn().Err(err).Msg("close failed")
		}
	}
}

func buildRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg.Logging)
	rt := &runtime{cfg: cfg, log: log, metrics: metrics.NewEngineMetrics()}

	var betStore ledger.Store
	var calStore calibration.Store
	var stmtStore profitshare.Store
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err := store.NewPostgres(cmd.Context(), cfg.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pg.Close)
		betStore, calStore, stmtStore = pg, pg, pg
	default:
		mem := store.NewMemory()
		betStore, calStore, stmtStore = mem, mem, mem
	}

	var dedupe cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedis(cmd.Context(), cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB, cfg.Cache.Prefix)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rc.Close)
		dedupe = rc
	default:
		dedupe = cache.NewMemory(cfg.Cache.MaxEntries)
	}

	led := ledger.New(decimal.NewFromFloat(cfg.Bankroll.Starting), betStore, log)
	recorder := calibration.NewRecorder(calStore, log)

	rt.statements, err = profitshare.NewGenerator(profitshare.Config{
		PartnerPct:    cfg.ProfitShare.PartnerPct,
		MyPct:         cfg.ProfitShare.MyPct,
		MinimumProfit: decimal.NewFromFloat(cfg.ProfitShare.MinimumProfit),
	}, stmtStore, log)
	if err != nil {
		return nil, err
	}

	rt.engine, err = pipeline.New(pipeline.Config{
		Detectors: []detect.Detector{
			detect.NewMomentumDetector(cfg.Detection.MomentumConfig(), nil),
			detect.NewFatigueDetector(cfg.Detection.FatigueConfig()),
			detect.NewH2HDetector(cfg.Detection.H2HConfig()),
		},
		Aggregator: detect.NewAggregator(cfg.Detection.MinConfidence),
		Sizer:      stake.NewSizer(cfg.Staking.SizerConfig()),
		Method:     stake.Method(cfg.Staking.Method),
		Ledger:     led,
		Recorder:   recorder,
		Cache:      dedupe,
		Metrics:    rt.metrics,
		DedupeTTL:  cfg.Cache.TTL,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}
