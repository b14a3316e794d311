package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds a player's settlement-currency balances. AvailableBalance is
// spendable; LockedBalance is reserved against in-flight wagers and is neither
// spendable nor withdrawable. Both are SOL amounts and must never go negative.
type Account struct {
	ID               uuid.UUID       `json:"id"`
	WalletAddress    string          `json:"wallet_address"` // base64 ed25519 public key
	Username         string          `json:"username"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	LockedBalance    decimal.Decimal `json:"locked_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TotalEquity returns available + locked.
func (a *Account) TotalEquity() decimal.Decimal {
	return a.AvailableBalance.Add(a.LockedBalance)
}

// CanRemove reports whether the account may be deleted. Accounts with
// outstanding locked funds must never be removed.
func (a *Account) CanRemove() bool {
	return a.LockedBalance.IsZero()
}
