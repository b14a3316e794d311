package handler

import (
	"time"

	"duel-escrow/internal/adapter/http/dto"
	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"
	"duel-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const transactionPageSize = 50

// WalletHandler handles balance, deposit, history and withdrawal endpoints
// for the authenticated player.
type WalletHandler struct {
	ledgerSvc     ports.LedgerService
	withdrawalSvc ports.WithdrawalService
	txRepo        ports.TransactionRepository
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledgerSvc ports.LedgerService, withdrawalSvc ports.WithdrawalService, txRepo ports.TransactionRepository) *WalletHandler {
	return &WalletHandler{
		ledgerSvc:     ledgerSvc,
		withdrawalSvc: withdrawalSvc,
		txRepo:        txRepo,
	}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	available, locked, err := h.ledgerSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Available: available.String(),
		Locked:    locked.String(),
		Currency:  domain.SettlementCurrency,
	})
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	if err := h.ledgerSvc.Deposit(c.Request.Context(), accountID, amount); err != nil {
		response.Error(c, err)
		return
	}

	available, locked, err := h.ledgerSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Available: available.String(),
		Locked:    locked.String(),
		Currency:  domain.SettlementCurrency,
	})
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	records, err := h.txRepo.ListByAccount(c.Request.Context(), accountID, transactionPageSize)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	items := make([]dto.TransactionResponse, 0, len(records))
	for i := range records {
		items = append(items, toTransactionResponse(&records[i]))
	}
	response.OK(c, items)
}

// Withdraw handles POST /api/v1/wallet/withdrawals.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	request, err := h.withdrawalSvc.Submit(c.Request.Context(), accountID, amount, req.Destination)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWithdrawalResponse(request))
}

// GetWithdrawal handles GET /api/v1/wallet/withdrawals/:id.
func (h *WalletHandler) GetWithdrawal(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	request, err := h.withdrawalSvc.Get(c.Request.Context(), parseUUIDParam(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if request == nil || request.AccountID != accountID {
		response.Error(c, apperror.ErrWithdrawalNotFound())
		return
	}

	response.OK(c, toWithdrawalResponse(request))
}

// toTransactionResponse converts a ledger record to DTO.
func toTransactionResponse(rec *domain.TransactionRecord) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:        rec.ID.String(),
		Type:      string(rec.Type),
		AmountSOL: rec.AmountSOL.String(),
		AmountUSD: rec.AmountUSD.String(),
		Currency:  rec.Currency,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
	if rec.Counterparty != nil {
		s := rec.Counterparty.String()
		resp.Counterparty = &s
	}
	if rec.Reference != nil {
		s := rec.Reference.String()
		resp.Reference = &s
	}
	return resp
}

// toWithdrawalResponse converts domain.WithdrawalRequest to DTO. The
// destination is intentionally omitted.
func toWithdrawalResponse(w *domain.WithdrawalRequest) dto.WithdrawalResponse {
	resp := dto.WithdrawalResponse{
		ID:          w.ID.String(),
		AccountID:   w.AccountID.String(),
		AmountSOL:   w.AmountSOL.String(),
		Status:      string(w.Status),
		TxSignature: w.TxSignature,
		CreatedAt:   w.CreatedAt.Format(time.RFC3339),
	}
	if w.Reason != nil {
		s := string(*w.Reason)
		resp.Reason = &s
	}
	resp.ReasonNote = w.ReasonNote
	if w.ResolvedAt != nil {
		s := w.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &s
	}
	return resp
}
