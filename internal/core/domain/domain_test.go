package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccount_TotalEquity(t *testing.T) {
	a := &Account{
		AvailableBalance: decimal.RequireFromString("1.25"),
		LockedBalance:    decimal.RequireFromString("0.75"),
	}
	assert.True(t, a.TotalEquity().Equal(decimal.NewFromInt(2)))
}

func TestAccount_CanRemove(t *testing.T) {
	a := &Account{LockedBalance: decimal.Zero}
	assert.True(t, a.CanRemove())

	a.LockedBalance = decimal.RequireFromString("0.001")
	assert.False(t, a.CanRemove())
}

func TestContract_IsTerminal(t *testing.T) {
	tests := []struct {
		status   ContractStatus
		terminal bool
	}{
		{ContractStatusPending, false},
		{ContractStatusAccepted, false},
		{ContractStatusStarted, false},
		{ContractStatusCompleted, true},
		{ContractStatusCanceled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := &Contract{Status: tt.status}
			assert.Equal(t, tt.terminal, c.IsTerminal())
		})
	}
}

func TestContract_HasParties(t *testing.T) {
	creator := uuid.New()
	acceptor := uuid.New()
	outsider := uuid.New()

	c := &Contract{CreatorID: creator, AcceptorID: &acceptor}

	assert.True(t, c.HasParties(creator, acceptor))
	assert.True(t, c.HasParties(acceptor, creator))
	assert.False(t, c.HasParties(creator, outsider))
	assert.False(t, c.HasParties(creator, creator))

	pending := &Contract{CreatorID: creator}
	assert.False(t, pending.HasParties(creator, acceptor))
}

func TestContract_IsParty(t *testing.T) {
	creator := uuid.New()
	c := &Contract{CreatorID: creator}

	assert.True(t, c.IsParty(creator))
	assert.False(t, c.IsParty(uuid.New()))
}

func TestValidDenialReason(t *testing.T) {
	assert.True(t, ValidDenialReason(DenialReasonSuspectedFraud))
	assert.True(t, ValidDenialReason(DenialReasonOther))
	assert.False(t, ValidDenialReason(DenialReason("because")))
	assert.False(t, ValidDenialReason(DenialReason("")))
}

func TestWithdrawalRequest_IsResolved(t *testing.T) {
	w := &WithdrawalRequest{Status: WithdrawalStatusPending}
	assert.False(t, w.IsResolved())

	w.Status = WithdrawalStatusApproved
	assert.False(t, w.IsResolved())

	w.Status = WithdrawalStatusProcessing
	assert.False(t, w.IsResolved())

	w.Status = WithdrawalStatusCompleted
	assert.True(t, w.IsResolved())

	w.Status = WithdrawalStatusDenied
	assert.True(t, w.IsResolved())
}
