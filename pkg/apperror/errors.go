package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Balance Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient available balance", http.StatusPaymentRequired)
}

func ErrInsufficientLockedFunds() *AppError {
	return New("LED_002", "Insufficient locked funds for settlement", http.StatusConflict)
}

func ErrAccountNotFound() *AppError {
	return New("LED_003", "Account not found", http.StatusNotFound)
}

func ErrInvalidAmount() *AppError {
	return New("LED_004", "Invalid amount", http.StatusBadRequest)
}

// ---- Escrow / Contracts (ESC) ----

func ErrBelowMinimumWager(minUsd string) *AppError {
	return New("ESC_001", fmt.Sprintf("Wager is below the $%s minimum", minUsd), http.StatusBadRequest)
}

func ErrContractNotFound() *AppError {
	return New("ESC_002", "Contract not found", http.StatusNotFound)
}

func ErrAlreadyAccepted() *AppError {
	return New("ESC_003", "Contract has already been accepted", http.StatusConflict)
}

func ErrNotCreator() *AppError {
	return New("ESC_004", "Only the contract creator may do this", http.StatusForbidden)
}

func ErrAlreadyStarted() *AppError {
	return New("ESC_005", "Match has already started", http.StatusConflict)
}

func ErrInvalidContractState(state string) *AppError {
	return New("ESC_006", fmt.Sprintf("Contract is not in a valid state for this operation (%s)", state), http.StatusConflict)
}

func ErrSelfAccept() *AppError {
	return New("ESC_007", "Cannot accept your own contract", http.StatusBadRequest)
}

func ErrResultPartyMismatch() *AppError {
	return New("ESC_008", "Reported winner/loser are not parties to this contract", http.StatusBadRequest)
}

// ---- Price Oracle (ORC) ----

func ErrPriceUnavailable(err error) *AppError {
	return Wrap("ORC_001", "Exchange rate temporarily unavailable, retry later", http.StatusServiceUnavailable, err)
}

// ---- Withdrawals (WDR) ----

func ErrWithdrawalNotFound() *AppError {
	return New("WDR_001", "Withdrawal request not found", http.StatusNotFound)
}

func ErrWithdrawalAlreadyResolved() *AppError {
	return New("WDR_002", "Withdrawal request has already been resolved", http.StatusConflict)
}

func ErrInvalidDenialReason() *AppError {
	return New("WDR_003", "Unknown denial reason code", http.StatusBadRequest)
}

func ErrTransferFailed(err error) *AppError {
	return Wrap("WDR_004", "On-chain transfer failed, withdrawal can be re-approved", http.StatusBadGateway, err)
}

func ErrTransferInFlight() *AppError {
	return New("WDR_005", "On-chain transfer is already in flight", http.StatusConflict)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("AUTH_003", "Invalid signature", http.StatusUnauthorized)
}

func ErrNonceUsed() *AppError {
	return New("AUTH_004", "Nonce has already been used", http.StatusForbidden)
}

func ErrTimestampExpired() *AppError {
	return New("AUTH_005", "Request timestamp expired", http.StatusForbidden)
}

func ErrWalletExists() *AppError {
	return New("AUTH_006", "Wallet is already registered", http.StatusConflict)
}

func ErrAdminOnly() *AppError {
	return New("AUTH_007", "Admin privileges required", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrTransientConflict(err error) *AppError {
	return Wrap("SYS_002", "Transient conflict, please retry", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("REQ_001", message, http.StatusBadRequest)
}
