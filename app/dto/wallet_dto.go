package dto

// GetWalletBalanceRequest represents the request to read a user's ledger balances
type GetWalletBalanceRequest struct {
	UserID uint `json:"user_id" validate:"required"` // Ledger account owner
}

// GetWalletBalanceResponse represents the current ledger balances of a user
type GetWalletBalanceResponse struct {
	Message       string `json:"message"`
	UserID        uint   `json:"user_id"`
	WalletBalance string `json:"wallet_balance"` // Decimal as string, two fraction digits
	Commission    string `json:"commission"`     // Decimal as string, two fraction digits
	Currency      string `json:"currency"`
}
