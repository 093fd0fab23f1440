// Package store provides persistence backends for bets, transactions,
// calibration records and monthly statements. Memory satisfies every
// consumer-side Store interface and is the default; Postgres is the
// durable option.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courtedge/courtedge/pkg/calibration"
	"github.com/courtedge/courtedge/pkg/ledger"
	"github.com/courtedge/courtedge/pkg/profitshare"
)

type statementKey struct {
	Year  int
	Month time.Month
}

// Memory is a thread-safe in-process store.
type Memory struct {
	mu           sync.RWMutex
	bets         map[uuid.UUID]ledger.Bet
	transactions []ledger.Transaction
	calibrations []calibration.Record
	statements   map[statementKey]profitshare.Statement
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		bets:       make(map[uuid.UUID]ledger.Bet),
		statements: make(map[statementKey]profitshare.Statement),
	}
}

// SaveBet inserts or overwrites a bet.
func (m *Memory) SaveBet(_ context.Context, bet *ledger.Bet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bets[bet.ID] = *bet
	return nil
}

// AppendTransaction records one bankroll movement.
func (m *Memory) AppendTransaction(_ context.Context, tx *ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, *tx)
	return nil
}

// SaveCalibration appends a settled prediction record.
func (m *Memory) SaveCalibration(_ context.Context, rec *calibration.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calibrations = append(m.calibrations, *rec)
	return nil
}

// UpsertStatement replaces any statement for the same year and month.
func (m *Memory) UpsertStatement(_ context.Context, st *profitshare.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statements[statementKey{st.Year, st.Month}] = *st
	return nil
}

// Bet returns the stored bet, if any.
func (m *Memory) Bet(id uuid.UUID) (ledger.Bet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bet, ok := m.bets[id]
	return bet, ok
}

// Transactions returns a copy of all recorded transactions.
func (m *Memory) Transactions() []ledger.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out
}

// Calibrations returns a copy of all calibration records.
func (m *Memory) Calibrations() []calibration.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]calibration.Record, len(m.calibrations))
	copy(out, m.calibrations)
	return out
}

// Statement returns the statement for the given month, if any.
func (m *Memory) Statement(year int, month time.Month) (profitshare.Statement, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statements[statementKey{year, month}]
	return st, ok
}
