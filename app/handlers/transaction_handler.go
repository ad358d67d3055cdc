// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/middleware"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
)

// TransactionHandlerInterface defines the contract for transaction handlers
type TransactionHandlerInterface interface {
	CreateTransaction(c fiber.Ctx) error
	UpdateTransactionStatus(c fiber.Ctx) error
	GetTransactionHistory(c fiber.Ctx) error
}

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	ledgerFlow    businessflow.LedgerFlow
	reconcileFlow businessflow.ReconcileFlow
	validator     *validator.Validate
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(ledgerFlow businessflow.LedgerFlow, reconcileFlow businessflow.ReconcileFlow) *TransactionHandler {
	return &TransactionHandler{
		ledgerFlow:    ledgerFlow,
		reconcileFlow: reconcileFlow,
		validator:     validator.New(),
	}
}

func (h *TransactionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TransactionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateTransaction handles the creation of a ledger transaction
func (h *TransactionHandler) CreateTransaction(c fiber.Ctx) error {
	var req dto.CreateTransactionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID, ok := c.Locals("request_id").(string); ok {
		metadata.SetRequestID(requestID)
	}

	result, err := h.ledgerFlow.CreateTransaction(h.createRequestContext(c), &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsUserNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		case businessflow.IsUserInactive(err):
			return h.ErrorResponse(c, fiber.StatusForbidden, "User account is inactive", "USER_INACTIVE", nil)
		case businessflow.IsOperatorRequired(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Recharge transactions require an operator", "OPERATOR_REQUIRED", nil)
		case businessflow.IsOperatorNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Operator not found", "OPERATOR_NOT_FOUND", nil)
		case businessflow.IsOperatorInactive(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Operator is inactive", "OPERATOR_INACTIVE", nil)
		case businessflow.IsRecipientsRequired(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Transfers require at least one recipient", "RECIPIENTS_REQUIRED", nil)
		case businessflow.IsTooManyRecipients(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Too many transfer recipients", "TOO_MANY_RECIPIENTS", nil)
		case businessflow.IsSelfTransfer(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Cannot transfer to the sending user", "SELF_TRANSFER", nil)
		case businessflow.IsRecipientNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "One or more recipients not found", "RECIPIENT_NOT_FOUND", nil)
		case businessflow.IsAmountNotPositive(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Transaction amount must be positive", "AMOUNT_NOT_POSITIVE", nil)
		case businessflow.IsInvalidTransactionType(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid transaction type", "INVALID_TRANSACTION_TYPE", nil)
		case businessflow.IsInvalidTransactionStatus(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid transaction status", "INVALID_TRANSACTION_STATUS", nil)
		case businessflow.IsDuplicateTransactionID(err):
			return h.ErrorResponse(c, fiber.StatusConflict, "Transaction ID already exists", "DUPLICATE_TRANSACTION_ID", nil)
		case businessflow.IsInsufficientBalance(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Insufficient wallet balance", "INSUFFICIENT_BALANCE", err.Error())
		}

		log.Println("Transaction creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Transaction creation failed", "TRANSACTION_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// UpdateTransactionStatus handles a status reconciliation request
func (h *TransactionHandler) UpdateTransactionStatus(c fiber.Ctx) error {
	transactionID := c.Params("transactionId")
	if transactionID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Transaction ID is required", "MISSING_TRANSACTION_ID", nil)
	}

	var req dto.UpdateTransactionStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID, ok := c.Locals("request_id").(string); ok {
		metadata.SetRequestID(requestID)
	}

	result, err := h.reconcileFlow.UpdateTransactionStatus(h.createRequestContext(c), transactionID, &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsTransactionNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Transaction not found", "TRANSACTION_NOT_FOUND", nil)
		case businessflow.IsAlreadyRefunded(err):
			return h.ErrorResponse(c, fiber.StatusConflict, "Transaction was already refunded", "ALREADY_REFUNDED", nil)
		case businessflow.IsInvalidTransactionType(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Cashback transactions are reconciled through their parent recharge", "INVALID_TRANSACTION_TYPE", nil)
		case businessflow.IsInvalidTransactionStatus(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid transaction status", "INVALID_TRANSACTION_STATUS", nil)
		case businessflow.IsInsufficientBalance(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Insufficient wallet balance", "INSUFFICIENT_BALANCE", err.Error())
		}

		log.Println("Status update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Status update failed", "STATUS_UPDATE_FAILED", nil)
	}

	middleware.RecordLedgerTransition(result.Transaction.Type, result.Transaction.Status)

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// GetTransactionHistory handles the retrieval of a user's transaction history
func (h *TransactionHandler) GetTransactionHistory(c fiber.Ctx) error {
	userID, err := strconv.ParseUint(c.Params("userId"), 10, 32)
	if err != nil || userID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user ID", "INVALID_USER_ID", nil)
	}

	// Parse query parameters
	page := uint(1)
	if pageStr := c.Query("page"); pageStr != "" {
		if parsed, err := strconv.ParseUint(pageStr, 10, 32); err == nil {
			page = uint(parsed)
		}
	}

	pageSize := uint(20)
	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.ParseUint(pageSizeStr, 10, 32); err == nil {
			pageSize = uint(parsed)
		}
	}

	req := dto.GetTransactionHistoryRequest{
		UserID:   uint(userID),
		Page:     page,
		PageSize: pageSize,
	}
	if typ := c.Query("type"); typ != "" {
		req.Type = &typ
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.ledgerFlow.GetTransactionHistory(h.createRequestContext(c), &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsUserNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "User not found", "USER_NOT_FOUND", nil)
		case businessflow.IsInvalidTransactionType(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid transaction type filter", "INVALID_TRANSACTION_TYPE", nil)
		case businessflow.IsInvalidTransactionStatus(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid transaction status filter", "INVALID_TRANSACTION_STATUS", nil)
		}

		log.Println("Transaction history retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve transaction history", "TRANSACTION_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *TransactionHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		ctx = context.WithValue(ctx, businessflow.RequestIDKey, requestID)
	}
	return ctx
}
