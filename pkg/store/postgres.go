package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/courtedge/courtedge/pkg/calibration"
	"github.com/courtedge/courtedge/pkg/ledger"
	"github.com/courtedge/courtedge/pkg/profitshare"
)

const schema = `
CREATE TABLE IF NOT EXISTS bets (
	id UUID PRIMARY KEY,
	match_id TEXT NOT NULL,
	sport TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '',
	selection TEXT NOT NULL,
	odds DOUBLE PRECISION NOT NULL,
	stake NUMERIC(18,2) NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	placed_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	settled_at TIMESTAMPTZ,
	outcome TEXT NOT NULL DEFAULT '',
	profit_loss NUMERIC(18,2) NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_bets_match ON bets (match_id);
CREATE INDEX IF NOT EXISTS idx_bets_status ON bets (status);

CREATE TABLE IF NOT EXISTS transactions (
	id BIGINT NOT NULL,
	type TEXT NOT NULL,
	amount NUMERIC(18,2) NOT NULL,
	bet_id UUID,
	note TEXT NOT NULL DEFAULT '',
	at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (id)
);

CREATE TABLE IF NOT EXISTS calibration_records (
	id BIGSERIAL PRIMARY KEY,
	match_id TEXT NOT NULL,
	predicted_confidence DOUBLE PRECISION NOT NULL,
	predicted_outcome TEXT NOT NULL,
	actual_outcome TEXT NOT NULL,
	correct BOOLEAN NOT NULL,
	calibration_error DOUBLE PRECISION NOT NULL,
	confidence_bucket TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS statements (
	year INT NOT NULL,
	month INT NOT NULL,
	starting_balance NUMERIC(18,2) NOT NULL,
	ending_balance NUMERIC(18,2) NOT NULL,
	deposits NUMERIC(18,2) NOT NULL,
	withdrawals NUMERIC(18,2) NOT NULL,
	total_staked NUMERIC(18,2) NOT NULL,
	winnings NUMERIC(18,2) NOT NULL,
	refunds NUMERIC(18,2) NOT NULL,
	expenses NUMERIC(18,2) NOT NULL,
	gross_profit NUMERIC(18,2) NOT NULL,
	net_profit NUMERIC(18,2) NOT NULL,
	partner_share NUMERIC(18,2) NOT NULL,
	my_share NUMERIC(18,2) NOT NULL,
	bets_settled INT NOT NULL DEFAULT 0,
	win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	roi_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	generated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (year, month)
);
`

// Postgres persists everything to a PostgreSQL database.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres connects, pings and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// SaveBet inserts or overwrites a bet.
func (p *Postgres) SaveBet(ctx context.Context, bet *ledger.Bet) error {
	const q = `
		INSERT INTO bets (id, match_id, sport, strategy, selection, odds, stake,
			confidence, placed_at, status, settled_at, outcome, profit_loss)
		VALUES (:id, :match_id, :sport, :strategy, :selection, :odds, :stake,
			:confidence, :placed_at, :status, :settled_at, :outcome, :profit_loss)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			settled_at = EXCLUDED.settled_at,
			outcome = EXCLUDED.outcome,
			profit_loss = EXCLUDED.profit_loss`
	_, err := p.db.NamedExecContext(ctx, q, bet)
	return err
}

// AppendTransaction records one bankroll movement.
func (p *Postgres) AppendTransaction(ctx context.Context, tx *ledger.Transaction) error {
	const q = `
		INSERT INTO transactions (id, type, amount, bet_id, note, at)
		VALUES (:id, :type, :amount, :bet_id, :note, :at)
		ON CONFLICT (id) DO NOTHING`
	_, err := p.db.NamedExecContext(ctx, q, tx)
	return err
}

// SaveCalibration appends a settled prediction record.
func (p *Postgres) SaveCalibration(ctx context.Context, rec *calibration.Record) error {
	const q = `
		INSERT INTO calibration_records (match_id, predicted_confidence,
			predicted_outcome, actual_outcome, correct, calibration_error,
			confidence_bucket, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.db.ExecContext(ctx, q,
		rec.MatchID, rec.PredictedConfidence, rec.PredictedOutcome,
		rec.ActualOutcome, rec.Correct, rec.CalibrationError,
		rec.ConfidenceBucket, rec.RecordedAt)
	return err
}

// UpsertStatement replaces any statement for the same year and month.
func (p *Postgres) UpsertStatement(ctx context.Context, st *profitshare.Statement) error {
	const q = `
		INSERT INTO statements (year, month, starting_balance, ending_balance,
			deposits, withdrawals, total_staked, winnings, refunds, expenses,
			gross_profit, net_profit, partner_share, my_share,
			bets_settled, win_rate, roi_pct, generated_at)
		VALUES (:year, :month, :starting_balance, :ending_balance,
			:deposits, :withdrawals, :total_staked, :winnings, :refunds, :expenses,
			:gross_profit, :net_profit, :partner_share, :my_share,
			:bets_settled, :win_rate, :roi_pct, :generated_at)
		ON CONFLICT (year, month) DO UPDATE SET
			starting_balance = EXCLUDED.starting_balance,
			ending_balance = EXCLUDED.ending_balance,
			deposits = EXCLUDED.deposits,
			withdrawals = EXCLUDED.withdrawals,
			total_staked = EXCLUDED.total_staked,
			winnings = EXCLUDED.winnings,
			refunds = EXCLUDED.refunds,
			expenses = EXCLUDED.expenses,
			gross_profit = EXCLUDED.gross_profit,
			net_profit = EXCLUDED.net_profit,
			partner_share = EXCLUDED.partner_share,
			my_share = EXCLUDED.my_share,
			bets_settled = EXCLUDED.bets_settled,
			win_rate = EXCLUDED.win_rate,
			roi_pct = EXCLUDED.roi_pct,
			generated_at = EXCLUDED.generated_at`
	_, err := p.db.NamedExecContext(ctx, q, st)
	return err
}
