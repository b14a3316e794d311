package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance-affecting ledger event.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeLock     TransactionType = "lock"
	TransactionTypeRelease  TransactionType = "release"
	TransactionTypeGameWon  TransactionType = "game-won"
	TransactionTypeGameLost TransactionType = "game-lost"
)

// TransactionRecord is an append-only audit entry under an account. Exactly
// one record is written per balance-affecting operation; records are never
// mutated or deleted, so balance history is reconstructable by replay.
type TransactionRecord struct {
	ID           uuid.UUID       `json:"id"`
	AccountID    uuid.UUID       `json:"account_id"`
	Type         TransactionType `json:"type"`
	AmountSOL    decimal.Decimal `json:"amount_sol"`
	AmountUSD    decimal.Decimal `json:"amount_usd"` // audit figure at the applicable rate
	Currency     string          `json:"currency"`
	Counterparty *uuid.UUID      `json:"counterparty,omitempty"` // opponent account for game results
	Reference    *uuid.UUID      `json:"reference,omitempty"`    // contract or withdrawal id
	CreatedAt    time.Time       `json:"created_at"`
}

// SettlementCurrency is the platform's single settlement currency.
const SettlementCurrency = "SOL"
