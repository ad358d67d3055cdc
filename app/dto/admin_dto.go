package dto

import "time"

// AdminLoginRequest represents the admin login request
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// AdminDTO represents an admin in API responses
type AdminDTO struct {
	ID          uint       `json:"id"`
	UUID        string     `json:"uuid"`
	Username    string     `json:"username"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// AdminLoginResponse represents the response after a successful login
type AdminLoginResponse struct {
	Message     string   `json:"message"`
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"` // Always "Bearer"
	ExpiresIn   int64    `json:"expires_in"` // Seconds until expiry
	Admin       AdminDTO `json:"admin"`
}
