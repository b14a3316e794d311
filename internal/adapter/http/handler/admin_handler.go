package handler

import (
	"time"

	"duel-escrow/internal/adapter/http/dto"
	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"
	"duel-escrow/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler handles the withdrawal approval queue and rake reporting.
type AdminHandler struct {
	withdrawalSvc ports.WithdrawalService
	rakeRepo      ports.RakeRepository
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(withdrawalSvc ports.WithdrawalService, rakeRepo ports.RakeRepository) *AdminHandler {
	return &AdminHandler{withdrawalSvc: withdrawalSvc, rakeRepo: rakeRepo}
}

// ListWithdrawals handles GET /api/v1/admin/withdrawals?status=pending.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	status := domain.WithdrawalStatus(c.DefaultQuery("status", string(domain.WithdrawalStatusPending)))
	switch status {
	case domain.WithdrawalStatusPending, domain.WithdrawalStatusApproved,
		domain.WithdrawalStatusProcessing, domain.WithdrawalStatusCompleted,
		domain.WithdrawalStatusDenied:
	default:
		response.Error(c, apperror.Validation("unknown withdrawal status"))
		return
	}

	requests, err := h.withdrawalSvc.ListByStatus(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WithdrawalResponse, 0, len(requests))
	for i := range requests {
		items = append(items, toWithdrawalResponse(&requests[i]))
	}
	response.OK(c, items)
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/:id/approve.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	signature, err := h.withdrawalSvc.Approve(c.Request.Context(), parseUUIDParam(c, "id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"status":       string(domain.WithdrawalStatusCompleted),
		"tx_signature": signature,
	})
}

// DenyWithdrawal handles POST /api/v1/admin/withdrawals/:id/deny.
func (h *AdminHandler) DenyWithdrawal(c *gin.Context) {
	var req dto.DenyWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	err := h.withdrawalSvc.Deny(c.Request.Context(), parseUUIDParam(c, "id"), domain.DenialReason(req.Reason), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": string(domain.WithdrawalStatusDenied)})
}

// RakeTotals handles GET /api/v1/admin/rake?from=2026-03-01&to=2026-03-31.
func (h *AdminHandler) RakeTotals(c *gin.Context) {
	const dayFormat = "2006-01-02"

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(dayFormat, raw)
		if err != nil {
			response.Error(c, apperror.Validation("from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(dayFormat, raw)
		if err != nil {
			response.Error(c, apperror.Validation("to must be YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	usd, sol, err := h.rakeRepo.Totals(c.Request.Context(), from, to)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	response.OK(c, dto.RakeTotalsResponse{
		From:    from.Format(dayFormat),
		To:      to.Format(dayFormat),
		RakeUSD: usd.String(),
		RakeSOL: sol.String(),
	})
}
