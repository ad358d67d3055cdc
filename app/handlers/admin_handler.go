// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/novapay/recharge-ledger/app/dto"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
)

// AdminHandlerInterface defines the contract for admin handlers
type AdminHandlerInterface interface {
	Login(c fiber.Ctx) error
}

// AdminHandler handles admin-related HTTP requests
type AdminHandler struct {
	adminFlow businessflow.AdminFlow
	validator *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminFlow businessflow.AdminFlow) *AdminHandler {
	return &AdminHandler{
		adminFlow: adminFlow,
		validator: validator.New(),
	}
}

func (h *AdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Login handles admin authentication
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
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

	result, err := h.adminFlow.Login(h.createRequestContext(c), &req, metadata)
	if err != nil {
		switch {
		case businessflow.IsAdminNotFound(err), businessflow.IsIncorrectPassword(err):
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid username or password", "INVALID_CREDENTIALS", nil)
		case businessflow.IsAdminInactive(err):
			return h.ErrorResponse(c, fiber.StatusForbidden, "Admin account is inactive", "ADMIN_INACTIVE", nil)
		}

		log.Println("Admin login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with timeout and request-scoped values
func (h *AdminHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		ctx = context.WithValue(ctx, businessflow.RequestIDKey, requestID)
	}
	return ctx
}
