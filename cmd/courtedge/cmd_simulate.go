package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/courtedge/courtedge/pkg/analytics"
	"github.com/courtedge/courtedge/pkg/signal"
)

var (
	simFile      string
	simFormat    string
	simStatement bool
)

// simulateCmd replays a recorded signal file against a fresh bankroll.
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay recorded signals and print the resulting report",
	Long: `Replay a JSON file of match signals and settlement results through
the full pipeline against a fresh bankroll, then print the performance
report.

The file is a JSON array of events, each carrying either a signal or a
settlement:

  [
    {"signal": {"match_id": "wim-001", ...}},
    {"settle": {"match_id": "wim-001", "winner": "Alcaraz"}}
  ]`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simFile, "file", "", "Path to the signal replay file (required)")
	simulateCmd.Flags().StringVar(&simFormat, "format", "table", "Output format: table, json")
	simulateCmd.Flags().BoolVar(&simStatement, "statement", false, "Also print the current month's profit-split statement")
	simulateCmd.MarkFlagRequired("file")
}

type settleEvent struct {
	MatchID string `json:"match_id"`
	Winner  string `json:"winner"`
}

type replayEvent struct {
	Signal *signal.MatchSignal `json:"signal,omitempty"`
	Settle *settleEvent        `json:"settle,omitempty"`
}

func runSimulate(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	data, err := os.ReadFile(simFile)
	if err != nil {
		return fmt.Errorf("read replay file: %w", err)
	}
	var events []replayEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("parse replay file: %w", err)
	}

	ctx := cmd.Context()
	var placed, skipped, settledCount int
	for i, ev := range events {
		switch {
		case ev.Signal != nil:
			res, err := rt.engine.ProcessSignal(ctx, ev.Signal)
			if err != nil {
				rt.log.Warn().Err(err).Int("event", i).Msg("signal dropped")
				continue
			}
			if res.Bet != nil {
				placed++
			} else {
				skipped++
			}
		case ev.Settle != nil:
			settled, err := rt.engine.SettleMatch(ctx, ev.Settle.MatchID, ev.Settle.Winner)
			if err != nil {
				return fmt.Errorf("settle %s: %w", ev.Settle.MatchID, err)
			}
			settledCount += len(settled)
		default:
			return fmt.Errorf("event %d carries neither a signal nor a settlement", i)
		}
	}

	report := rt.engine.Statistics(analytics.Window{})
	fmt.Printf("Replayed %d events: %d bets placed, %d signals skipped, %d bets settled\n\n",
		len(events), placed, skipped, settledCount)

	if simFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if simStatement {
		now := time.Now().UTC()
		st, err := rt.statements.Generate(ctx, rt.engine.Ledger().Snapshot(), now.Year(), now.Month())
		if err != nil {
			return err
		}
		fmt.Printf("\nStatement %d-%02d: net profit %s, partner %s, operator %s\n",
			st.Year, int(st.Month), st.NetProfit.StringFixed(2),
			st.PartnerShare.StringFixed(2), st.MyShare.StringFixed(2))
	}
	return nil
}

func printReport(r analytics.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Bets\t%d (%d won, %d lost, %d void, %d pending)\n",
		r.TotalBets, r.Wins, r.Losses, r.Voids, r.Pending)
	fmt.Fprintf(w, "Win rate\t%.1f%%\n", r.WinRate*100)
	fmt.Fprintf(w, "Staked\t%s\n", r.TotalStaked.StringFixed(2))
	fmt.Fprintf(w, "Net profit\t%s\n", r.NetProfit.StringFixed(2))
	fmt.Fprintf(w, "ROI\t%.1f%%\n", r.ROIPct)
	fmt.Fprintf(w, "Max drawdown\t%s (%.1f%%)\n", r.MaxDrawdown.StringFixed(2), r.MaxDrawdownPct)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", r.ProfitFactor)
	fmt.Fprintf(w, "Sharpe\t%.2f\n", r.SharpeRatio)
	w.Flush()

	if len(r.ByStrategy) > 0 {
		fmt.Println("\nBy strategy:")
		names := make([]string, 0, len(r.ByStrategy))
		for name := range r.ByStrategy {
			names = append(names, name)
		}
		sort.Strings(names)
		bw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(bw, "strategy\tbets\twins\tstaked\tprofit\troi")
		for _, name := range names {
			b := r.ByStrategy[name]
			fmt.Fprintf(bw, "%s\t%d\t%d\t%s\t%s\t%.1f%%\n",
				name, b.Bets, b.Wins, b.Staked.StringFixed(2), b.NetProfit.StringFixed(2), b.ROIPct)
		}
		bw.Flush()
	}
}
