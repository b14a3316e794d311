package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the approval state of an outbound transfer.
type WithdrawalStatus string

const (
	// WithdrawalStatusPending is held for manual admin approval.
	WithdrawalStatusPending WithdrawalStatus = "pending"
	// WithdrawalStatusApproved means the ledger debit happened and the
	// on-chain transfer has not been sent yet (or failed and awaits a retry).
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	// WithdrawalStatusProcessing claims the transfer attempt. At most one
	// approver holds the claim, so the transfer is sent at most once.
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	// WithdrawalStatusCompleted records the confirmed chain signature.
	WithdrawalStatusCompleted WithdrawalStatus = "completed"
	// WithdrawalStatusDenied never moves funds.
	WithdrawalStatusDenied WithdrawalStatus = "denied"
)

// DenialReason is a fixed, server-validated reason code. Free text lives in
// the optional note only.
type DenialReason string

const (
	DenialReasonSuspectedFraud    DenialReason = "suspected-fraud"
	DenialReasonLimitAbuse        DenialReason = "limit-abuse"
	DenialReasonInvalidDestination DenialReason = "invalid-destination"
	DenialReasonAccountReview     DenialReason = "account-review"
	DenialReasonOther             DenialReason = "other"
)

// ValidDenialReason reports whether code is one of the enumerated reasons.
func ValidDenialReason(code DenialReason) bool {
	switch code {
	case DenialReasonSuspectedFraud, DenialReasonLimitAbuse,
		DenialReasonInvalidDestination, DenialReasonAccountReview,
		DenialReasonOther:
		return true
	}
	return false
}

// WithdrawalRequest gates an outbound transfer to an external wallet.
type WithdrawalRequest struct {
	ID          uuid.UUID        `json:"id"`
	AccountID   uuid.UUID        `json:"account_id"`
	Destination string           `json:"destination"`
	AmountSOL   decimal.Decimal  `json:"amount_sol"`
	Status      WithdrawalStatus `json:"status"`
	Reason      *DenialReason    `json:"reason,omitempty"`
	ReasonNote  *string          `json:"reason_note,omitempty"`
	TxSignature *string          `json:"tx_signature,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// IsResolved returns true once the request reached a final state.
func (w *WithdrawalRequest) IsResolved() bool {
	return w.Status == WithdrawalStatusCompleted || w.Status == WithdrawalStatusDenied
}
