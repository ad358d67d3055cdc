// Package services provides external service integrations and technical concerns like notifications and the recharge gateway
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/novapay/recharge-ledger/config"
	"github.com/novapay/recharge-ledger/models"
)

// GatewayClient queries the recharge provider for the current status of a
// submitted recharge. A transport error or timeout yields an error, never a
// status: the caller must leave the transaction pending in that case.
type GatewayClient interface {
	CheckStatus(ctx context.Context, transactionID string) (*GatewayStatusResult, error)
}

// GatewayStatusResponse is the provider's wire shape
type GatewayStatusResponse struct {
	TxID       string `json:"txid"`
	Status     string `json:"status"`
	OperatorID string `json:"opid"`
	Number     string `json:"number"`
	Amount     string `json:"amount"`
	OrderID    string `json:"orderid"`
}

// GatewayStatusResult carries the raw provider response plus the mapped
// canonical status.
type GatewayStatusResult struct {
	Raw    GatewayStatusResponse
	Status models.TransactionStatus
}

// MapGatewayStatus maps the provider's status vocabulary onto the canonical
// one. Anything unrecognized, including an absent status, maps to pending.
func MapGatewayStatus(status string) models.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return models.TransactionStatusSuccess
	case "failure", "failed":
		return models.TransactionStatusFailed
	default:
		return models.TransactionStatusPending
	}
}

// GatewayClientImpl implements GatewayClient against the provider's HTTP API
type GatewayClientImpl struct {
	config *config.GatewayConfig
	client *http.Client
}

// NewGatewayClient creates a new gateway client instance
func NewGatewayClient(cfg *config.GatewayConfig) GatewayClient {
	return &GatewayClientImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// CheckStatus looks up a recharge by its correlation id
func (g *GatewayClientImpl) CheckStatus(ctx context.Context, transactionID string) (*GatewayStatusResult, error) {
	endpoint, err := url.Parse(g.config.BaseURL + "/api/v1/recharge/status")
	if err != nil {
		return nil, fmt.Errorf("invalid gateway base URL: %w", err)
	}

	query := endpoint.Query()
	query.Set("api_token", g.config.APIKey)
	query.Set("member_id", g.config.MemberID)
	query.Set("txid", transactionID)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway status request failed for %s: %w", transactionID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response for %s: %w", transactionID, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d for %s: %s", resp.StatusCode, transactionID, string(body))
	}

	var raw GatewayStatusResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response for %s: %w", transactionID, err)
	}

	return &GatewayStatusResult{
		Raw:    raw,
		Status: MapGatewayStatus(raw.Status),
	}, nil
}
