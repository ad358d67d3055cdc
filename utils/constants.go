package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for admin access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 86400
)

// Ledger constants
const (
	// INRCurrency is the ledger currency code
	INRCurrency = "INR"

	// MaxTransferRecipients bounds the fan-out of a single transfer
	MaxTransferRecipients = 50

	// DefaultHistoryPageSize is the page size for transaction history listings
	DefaultHistoryPageSize = 20

	// MaxHistoryPageSize caps a caller-supplied page size
	MaxHistoryPageSize = 100
)

// Status polling constants
const (
	// StatusPollBatchSize is how many pending recharges a poll cycle claims
	StatusPollBatchSize = 100

	// GatewayRequestTimeout bounds a single status lookup against the gateway
	GatewayRequestTimeout = 15 * time.Second
)
