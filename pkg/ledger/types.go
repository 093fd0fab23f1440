package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a bet.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusWon     Status = "WON"
	StatusLost    Status = "LOST"
	StatusVoid    Status = "VOID"
)

// Terminal reports whether a bet in this status has been settled.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusVoid
}

// TxType classifies a bankroll transaction.
type TxType string

const (
	TxDeposit    TxType = "deposit"
	TxWithdrawal TxType = "withdrawal"
	TxStake      TxType = "stake"
	TxWinnings   TxType = "winnings"
	TxRefund     TxType = "refund"
	TxExpense    TxType = "expense"
	TxAdjustment TxType = "adjustment"
)

// Bet is a single staked position on a match outcome.
type Bet struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	MatchID     string          `json:"match_id" db:"match_id"`
	Sport       string          `json:"sport" db:"sport"`
	Strategy    string          `json:"strategy" db:"strategy"`
	Selection   string          `json:"selection" db:"selection"`
	Odds        float64         `json:"odds" db:"odds"`
	Stake       decimal.Decimal `json:"stake" db:"stake"`
	Confidence  float64         `json:"confidence" db:"confidence"`
	PlacedAt    time.Time       `json:"placed_at" db:"placed_at"`
	Status      Status          `json:"status" db:"status"`
	SettledAt   *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
	Outcome     string          `json:"outcome,omitempty" db:"outcome"`
	ProfitLoss  decimal.Decimal `json:"profit_loss" db:"profit_loss"`
}

// Transaction is one signed movement of the bankroll. Amounts are
// positive for credits and negative for debits, so the balance is
// always the starting balance plus the sum of all amounts.
type Transaction struct {
	ID     int64           `json:"id" db:"id"`
	Type   TxType          `json:"type" db:"type"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
	BetID  *uuid.UUID      `json:"bet_id,omitempty" db:"bet_id"`
	Note   string          `json:"note,omitempty" db:"note"`
	At     time.Time       `json:"at" db:"at"`
}

var (
	ErrInsufficientBankroll = errors.New("insufficient bankroll")
	ErrAlreadySettled       = errors.New("bet already settled")
	ErrNotFound             = errors.New("bet not found")
	ErrValidation           = errors.New("invalid input")
)
