// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/novapay/recharge-ledger/app/dto"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
)

// WalletHandlerInterface defines the contract for wallet handlers
type WalletHandlerInterface interface {
	GetWalletBalance(c fiber.Ctx) error
}

// WalletHandler handles wallet-related HTTP requests
type WalletHandler struct {
	ledgerFlow businessflow.LedgerFlow
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(ledgerFlow businessflow.LedgerFlow) *WalletHandler {
	return &WalletHandler{
		ledgerFlow: ledgerFlow,
	}
}

func (h *WalletHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WalletHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetWalletBalance handles the retrieval of a user's ledger balances
func (h *WalletHandler) GetWalletBalance(c fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID", "INVALID_USER_ID", nil)
	}

	req := dto.GetWalletBalanceRequest{UserID: uint(userID)}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ledgerFlow.GetWalletBalance(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsUserNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		}

		log.Println("Wallet balance retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve wallet balance", "WALLET_BALANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *WalletHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		ctx = context.WithValue(ctx, businessflow.RequestIDKey, requestID)
	}
	return ctx
}
