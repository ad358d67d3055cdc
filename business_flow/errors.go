// Package businessflow contains the core business logic for the wallet ledger
// and transaction-status reconciliation workflows
package businessflow

import (
	"errors"
	"fmt"

	"github.com/novapay/recharge-ledger/repository"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user account is inactive")
	ErrRecipientNotFound = errors.New("recipient not found")

	// Operator-related errors
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOperatorInactive = errors.New("operator is inactive")
	ErrOperatorRequired = errors.New("operator is required for recharge transactions")

	// Ledger errors
	ErrInsufficientBalance = repository.ErrInsufficientBalance
	ErrAmountNotPositive   = errors.New("amount must be positive")

	// Transaction errors
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrDuplicateTransactionID   = errors.New("transaction ID already exists")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrAlreadyRefunded          = errors.New("transaction already refunded")
	ErrRecipientsRequired       = errors.New("at least one recipient is required for transfers")
	ErrTooManyRecipients        = errors.New("too many transfer recipients")
	ErrSelfTransfer             = errors.New("cannot transfer to the sending user")

	// Admin errors
	ErrAdminNotFound     = errors.New("admin not found")
	ErrAdminInactive     = errors.New("admin account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsUserInactive(err error) bool {
	return errors.Is(err, ErrUserInactive)
}

func IsRecipientNotFound(err error) bool {
	return errors.Is(err, ErrRecipientNotFound)
}

func IsOperatorNotFound(err error) bool {
	return errors.Is(err, ErrOperatorNotFound)
}

func IsOperatorInactive(err error) bool {
	return errors.Is(err, ErrOperatorInactive)
}

func IsOperatorRequired(err error) bool {
	return errors.Is(err, ErrOperatorRequired)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

func IsAmountNotPositive(err error) bool {
	return errors.Is(err, ErrAmountNotPositive)
}

func IsTransactionNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

func IsDuplicateTransactionID(err error) bool {
	return errors.Is(err, ErrDuplicateTransactionID)
}

func IsInvalidTransactionType(err error) bool {
	return errors.Is(err, ErrInvalidTransactionType)
}

func IsInvalidTransactionStatus(err error) bool {
	return errors.Is(err, ErrInvalidTransactionStatus)
}

func IsAlreadyRefunded(err error) bool {
	return errors.Is(err, ErrAlreadyRefunded)
}

func IsRecipientsRequired(err error) bool {
	return errors.Is(err, ErrRecipientsRequired)
}

func IsTooManyRecipients(err error) bool {
	return errors.Is(err, ErrTooManyRecipients)
}

func IsSelfTransfer(err error) bool {
	return errors.Is(err, ErrSelfTransfer)
}

func IsAdminNotFound(err error) bool {
	return errors.Is(err, ErrAdminNotFound)
}

func IsAdminInactive(err error) bool {
	return errors.Is(err, ErrAdminInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}
