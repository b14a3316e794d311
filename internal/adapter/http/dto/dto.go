package dto

// RegisterRequest is the request body for player registration.
type RegisterRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required,min=40,max=60"`
	Username      string `json:"username" binding:"required,min=3,max=30,safe_id"`
}

// ChallengeRequest asks for a login challenge for a wallet.
type ChallengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// ChallengeResponse carries the nonce the wallet must sign.
type ChallengeResponse struct {
	Nonce string `json:"nonce"`
}

// LoginRequest is the request body for wallet signature login.
type LoginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
	Signature     string `json:"signature" binding:"required"` // base64 ed25519 signature
}

// AdminLoginRequest is the request body for admin login.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the response body for successful login.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID               string `json:"id"`
	WalletAddress    string `json:"wallet_address"`
	Username         string `json:"username"`
	AvailableBalance string `json:"available_balance"`
	LockedBalance    string `json:"locked_balance"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Available string `json:"available"`
	Locked    string `json:"locked"`
	Currency  string `json:"currency"`
}

// DepositRequest credits the account's available balance.
type DepositRequest struct {
	Amount string `json:"amount" binding:"required,decimal_amount"` // SOL, decimal string
}

// CreateContractRequest is the request body for opening a wager contract.
type CreateContractRequest struct {
	Game      string `json:"game" binding:"required,safe_id,max=50"`
	WagerUSD  string `json:"wager_usd" binding:"required,decimal_amount"`
	MatchType string `json:"match_type" binding:"required"`
}

// ContractResponse is the public view of a wager contract.
type ContractResponse struct {
	ID              string  `json:"id"`
	CreatorID       string  `json:"creator_id"`
	AcceptorID      *string `json:"acceptor_id,omitempty"`
	Game            string  `json:"game"`
	WagerUSD        string  `json:"wager_usd"`
	WagerSOL        string  `json:"wager_sol"`
	MatchType       string  `json:"match_type"`
	Status          string  `json:"status"`
	RoomID          *string `json:"room_id,omitempty"`
	WinnerID        *string `json:"winner_id,omitempty"`
	RakeSOL         *string `json:"rake_sol,omitempty"`
	WinnerPayoutSOL *string `json:"winner_payout_sol,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// StartResponse carries the room assigned to a started match.
type StartResponse struct {
	RoomID string `json:"room_id"`
}

// ResultCallbackRequest is the game server's settlement report.
type ResultCallbackRequest struct {
	WinnerID string `json:"winner_id" binding:"required,uuid"`
	LoserID  string `json:"loser_id" binding:"required,uuid"`
}

// PayoutSummaryResponse is the settlement result. Repeated reports of the
// same contract receive an identical body.
type PayoutSummaryResponse struct {
	ContractID      string `json:"contract_id"`
	WinnerID        string `json:"winner_id"`
	LoserID         string `json:"loser_id"`
	WagerUSD        string `json:"wager_usd"`
	WagerSOL        string `json:"wager_sol"`
	RakeRate        string `json:"rake_rate"`
	RakeUSD         string `json:"rake_usd"`
	RakeSOL         string `json:"rake_sol"`
	WinnerPayoutUSD string `json:"winner_payout_usd"`
	WinnerPayoutSOL string `json:"winner_payout_sol"`
	SettledAt       string `json:"settled_at"`
}

// WithdrawRequest asks to move funds to an external wallet.
type WithdrawRequest struct {
	Amount      string `json:"amount" binding:"required,decimal_amount"`
	Destination string `json:"destination" binding:"required,min=32,max=64"`
}

// WithdrawalResponse is the public view of a withdrawal request. The
// destination address is never echoed back.
type WithdrawalResponse struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	AmountSOL   string  `json:"amount_sol"`
	Status      string  `json:"status"`
	Reason      *string `json:"reason,omitempty"`
	ReasonNote  *string `json:"reason_note,omitempty"`
	TxSignature *string `json:"tx_signature,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

// DenyWithdrawalRequest carries the admin's denial reason.
type DenyWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required"`
	Note   string `json:"note,omitempty" binding:"max=500"`
}

// TransactionResponse is one ledger record.
type TransactionResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	AmountSOL    string  `json:"amount_sol"`
	AmountUSD    string  `json:"amount_usd"`
	Currency     string  `json:"currency"`
	Counterparty *string `json:"counterparty,omitempty"`
	Reference    *string `json:"reference,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// RakeTotalsResponse reports collected rake over a date range.
type RakeTotalsResponse struct {
	From    string `json:"from"`
	To      string `json:"to"`
	RakeUSD string `json:"rake_usd"`
	RakeSOL string `json:"rake_sol"`
}
