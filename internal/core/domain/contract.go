package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ContractStatus is the escrow lifecycle state of a wager contract.
type ContractStatus string

const (
	ContractStatusPending   ContractStatus = "pending"
	ContractStatusAccepted  ContractStatus = "accepted"
	ContractStatusStarted   ContractStatus = "started"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCanceled  ContractStatus = "canceled"
)

// MatchType tags a contract for rake banding.
type MatchType string

const (
	MatchTypeStandard           MatchType = "standard"
	MatchTypeStandardRematch    MatchType = "standard-rematch"
	MatchTypeLeaderboardRematch MatchType = "leaderboard-rematch"
)

// Contract is a wager agreement between two players. AmountUSD is fixed at
// creation; AmountSOL is the per-party escrow captured at accept time using
// the then-current exchange rate. A contract completes at most once, and
// completion is the only transition that pays out.
type Contract struct {
	ID         uuid.UUID      `json:"id"`
	CreatorID  uuid.UUID      `json:"creator_id"`
	AcceptorID *uuid.UUID     `json:"acceptor_id,omitempty"`
	Game       string         `json:"game"`
	AmountUSD  decimal.Decimal `json:"amount_usd"`
	AmountSOL  decimal.Decimal `json:"amount_sol"` // locked per party, zero until accepted
	MatchType  MatchType      `json:"match_type"`
	Status     ContractStatus `json:"status"`
	RoomID     *string        `json:"room_id,omitempty"`

	// Result fields, populated at completion and immutable afterwards.
	WinnerID         *uuid.UUID       `json:"winner_id,omitempty"`
	LoserID          *uuid.UUID       `json:"loser_id,omitempty"`
	RakeUSD          *decimal.Decimal `json:"rake_usd,omitempty"`
	RakeSOL          *decimal.Decimal `json:"rake_sol,omitempty"`
	WinnerPayoutUSD  *decimal.Decimal `json:"winner_payout_usd,omitempty"`
	WinnerPayoutSOL  *decimal.Decimal `json:"winner_payout_sol,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the contract is in a final state.
func (c *Contract) IsTerminal() bool {
	return c.Status == ContractStatusCompleted || c.Status == ContractStatusCanceled
}

// IsParty reports whether the given account is creator or acceptor.
func (c *Contract) IsParty(id uuid.UUID) bool {
	if c.CreatorID == id {
		return true
	}
	return c.AcceptorID != nil && *c.AcceptorID == id
}

// HasParties reports whether the reported winner/loser pair matches the
// contract's two parties, in either order.
func (c *Contract) HasParties(winnerID, loserID uuid.UUID) bool {
	if c.AcceptorID == nil || winnerID == loserID {
		return false
	}
	return c.IsParty(winnerID) && c.IsParty(loserID)
}

// PayoutSummary is the immutable settlement result returned from result
// reporting. Repeated reports of the same contract return the same summary.
type PayoutSummary struct {
	ContractID      uuid.UUID       `json:"contract_id"`
	WinnerID        uuid.UUID       `json:"winner_id"`
	LoserID         uuid.UUID       `json:"loser_id"`
	WagerUSD        decimal.Decimal `json:"wager_usd"`
	WagerSOL        decimal.Decimal `json:"wager_sol"`
	RakeRate        decimal.Decimal `json:"rake_rate"`
	RakeUSD         decimal.Decimal `json:"rake_usd"`
	RakeSOL         decimal.Decimal `json:"rake_sol"`
	WinnerPayoutUSD decimal.Decimal `json:"winner_payout_usd"`
	WinnerPayoutSOL decimal.Decimal `json:"winner_payout_sol"`
	SettledAt       time.Time       `json:"settled_at"`
}
