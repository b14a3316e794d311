package handler

import (
	"time"

	"duel-escrow/internal/adapter/http/dto"
	"duel-escrow/internal/adapter/http/middleware"
	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"
	"duel-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscrowHandler handles wager contract endpoints.
type EscrowHandler struct {
	escrowSvc ports.EscrowService
}

// NewEscrowHandler creates a new EscrowHandler.
func NewEscrowHandler(escrowSvc ports.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrowSvc: escrowSvc}
}

// Create handles POST /api/v1/contracts.
func (h *EscrowHandler) Create(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	wager, err := decimal.NewFromString(req.WagerUSD)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	contract, err := h.escrowSvc.Create(c.Request.Context(), ports.CreateContractRequest{
		CreatorID: accountID,
		Game:      req.Game,
		WagerUSD:  wager,
		MatchType: domain.MatchType(req.MatchType),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toContractResponse(contract))
}

// Accept handles POST /api/v1/contracts/:id/accept.
func (h *EscrowHandler) Accept(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrContractNotFound())
		return
	}

	contract, err := h.escrowSvc.Accept(c.Request.Context(), contractID, accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toContractResponse(contract))
}

// Start handles POST /api/v1/contracts/:id/start.
func (h *EscrowHandler) Start(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrContractNotFound())
		return
	}

	roomID, err := h.escrowSvc.Start(c.Request.Context(), contractID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StartResponse{RoomID: roomID})
}

// Complete handles POST /api/v1/contracts/:id/result, the HMAC-authenticated
// result callback from the game server.
func (h *EscrowHandler) Complete(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrContractNotFound())
		return
	}

	var req dto.ResultCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	winnerID, err := uuid.Parse(req.WinnerID)
	if err != nil {
		response.Error(c, apperror.ErrResultPartyMismatch())
		return
	}
	loserID, err := uuid.Parse(req.LoserID)
	if err != nil {
		response.Error(c, apperror.ErrResultPartyMismatch())
		return
	}

	summary, err := h.escrowSvc.Complete(c.Request.Context(), contractID, winnerID, loserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPayoutSummaryResponse(summary))
}

// Cancel handles POST /api/v1/contracts/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	accountID, ok := getAccountID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrContractNotFound())
		return
	}

	if err := h.escrowSvc.Cancel(c.Request.Context(), contractID, accountID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"status": "canceled"})
}

// Get handles GET /api/v1/contracts/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	contractID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrContractNotFound())
		return
	}

	contract, err := h.escrowSvc.Get(c.Request.Context(), contractID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toContractResponse(contract))
}

// ListOpen handles GET /api/v1/contracts?game=chess.
func (h *EscrowHandler) ListOpen(c *gin.Context) {
	game := c.Query("game")
	if game == "" {
		response.Error(c, apperror.Validation("game query parameter is required"))
		return
	}

	contracts, err := h.escrowSvc.ListOpen(c.Request.Context(), game)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ContractResponse, 0, len(contracts))
	for i := range contracts {
		items = append(items, toContractResponse(&contracts[i]))
	}
	response.OK(c, items)
}

// getAccountID pulls the authenticated account from the context.
func getAccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxAccountID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// parseUUIDParam parses a path parameter as a UUID, returning uuid.Nil when
// it is malformed. Lookups with uuid.Nil resolve to not-found.
func parseUUIDParam(c *gin.Context, name string) uuid.UUID {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// toContractResponse converts domain.Contract to DTO.
func toContractResponse(contract *domain.Contract) dto.ContractResponse {
	resp := dto.ContractResponse{
		ID:        contract.ID.String(),
		CreatorID: contract.CreatorID.String(),
		Game:      contract.Game,
		WagerUSD:  contract.AmountUSD.String(),
		WagerSOL:  contract.AmountSOL.String(),
		MatchType: string(contract.MatchType),
		Status:    string(contract.Status),
		RoomID:    contract.RoomID,
		CreatedAt: contract.CreatedAt.Format(time.RFC3339),
	}
	if contract.AcceptorID != nil {
		s := contract.AcceptorID.String()
		resp.AcceptorID = &s
	}
	if contract.WinnerID != nil {
		s := contract.WinnerID.String()
		resp.WinnerID = &s
	}
	if contract.RakeSOL != nil {
		s := contract.RakeSOL.String()
		resp.RakeSOL = &s
	}
	if contract.WinnerPayoutSOL != nil {
		s := contract.WinnerPayoutSOL.String()
		resp.WinnerPayoutSOL = &s
	}
	return resp
}

// toPayoutSummaryResponse converts domain.PayoutSummary to DTO.
func toPayoutSummaryResponse(s *domain.PayoutSummary) dto.PayoutSummaryResponse {
	return dto.PayoutSummaryResponse{
		ContractID:      s.ContractID.String(),
		WinnerID:        s.WinnerID.String(),
		LoserID:         s.LoserID.String(),
		WagerUSD:        s.WagerUSD.String(),
		WagerSOL:        s.WagerSOL.String(),
		RakeRate:        s.RakeRate.String(),
		RakeUSD:         s.RakeUSD.String(),
		RakeSOL:         s.RakeSOL.String(),
		WinnerPayoutUSD: s.WinnerPayoutUSD.String(),
		WinnerPayoutSOL: s.WinnerPayoutSOL.String(),
		SettledAt:       s.SettledAt.Format(time.RFC3339),
	}
}
