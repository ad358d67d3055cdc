package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/services"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
	"github.com/novapay/recharge-ledger/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconcileFlow drives transaction status transitions and the ledger
// mutations they imply
type ReconcileFlow interface {
	UpdateTransactionStatus(ctx context.Context, transactionID string, req *dto.UpdateTransactionStatusRequest, metadata *ClientMetadata) (*dto.UpdateTransactionStatusResponse, error)
}

// ReconcileFlowImpl implements the reconciliation business flow
type ReconcileFlowImpl struct {
	userRepo        repository.UserRepository
	transactionRepo repository.TransactionRepository
	auditRepo       repository.AuditLogRepository
	cashback        *CashbackPolicy
	notifier        services.NotificationService
	db              *gorm.DB
}

// NewReconcileFlow creates a new reconciliation flow instance
func NewReconcileFlow(
	userRepo repository.UserRepository,
	transactionRepo repository.TransactionRepository,
	auditRepo repository.AuditLogRepository,
	cashback *CashbackPolicy,
	notifier services.NotificationService,
	db *gorm.DB,
) ReconcileFlow {
	return &ReconcileFlowImpl{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		auditRepo:       auditRepo,
		cashback:        cashback,
		notifier:        notifier,
		db:              db,
	}
}

// UpdateTransactionStatus applies a status transition together with every
// ledger mutation it implies, in one database transaction. All states are
// revisitable; failed -> success is explicitly supported. A refund is applied
// at most once per transaction: a second request fails with ErrAlreadyRefunded.
func (s *ReconcileFlowImpl) UpdateTransactionStatus(ctx context.Context, transactionID string, req *dto.UpdateTransactionStatusRequest, metadata *ClientMetadata) (*dto.UpdateTransactionStatusResponse, error) {
	target := models.TransactionStatus(req.Status)
	if !models.ValidTransactionStatus(target) {
		return nil, NewBusinessError("INVALID_TRANSACTION_STATUS", fmt.Sprintf("Transaction status %q is not allowed", req.Status), ErrInvalidTransactionStatus)
	}

	transaction, err := s.transactionRepo.ByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_LOOKUP_FAILED", "Failed to look up transaction", err)
	}
	if transaction == nil {
		return nil, NewBusinessError("TRANSACTION_NOT_FOUND", fmt.Sprintf("Transaction %s not found", transactionID), ErrTransactionNotFound)
	}
	if transaction.Type == models.TransactionTypeCashback {
		return nil, NewBusinessError("INVALID_TRANSACTION_TYPE", "Cashback transactions are reconciled through their parent recharge", ErrInvalidTransactionType)
	}

	var (
		user            *models.User
		refundApplied   bool
		redebitSkipped  bool
		grantedCashback *models.Transaction
		reversedAmount  decimal.Decimal
		creditedLeg     bool
		noChange        bool
	)

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		// The account row lock serializes every reconciliation and creation
		// touching this user; re-read the transaction under its protection.
		var err error
		user, err = s.userRepo.ByIDLocked(txCtx, transaction.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("account %d disappeared during reconciliation: %w", transaction.UserID, ErrUserNotFound)
		}
		transaction, err = s.transactionRepo.ByTransactionID(txCtx, transactionID)
		if err != nil {
			return err
		}
		if transaction == nil {
			return ErrTransactionNotFound
		}

		old := transaction.Status
		wasRefunded := transaction.IsRefunded()

		if old == target {
			if target == models.TransactionStatusFailed && req.NeedsRefund && wasRefunded {
				return ErrAlreadyRefunded
			}
			noChange = true
			return nil
		}

		switch target {
		case models.TransactionStatusSuccess:
			switch transaction.Type {
			case models.TransactionTypeRecharge, models.TransactionTypeTransfer:
				priorRefunded := wasRefunded
				if old == models.TransactionStatusFailed {
					// Re-take the hold: either an earlier refund credited it
					// back, or the row was created failed and never held.
					if user.HasSufficientBalance(transaction.Amount) {
						if _, err := s.userRepo.DebitBalance(txCtx, transaction.UserID, transaction.Amount); err != nil {
							return err
						}
						if wasRefunded {
							transaction.RefundedAt = nil
						}
					} else {
						// Flagged inconsistency: proceed with the status
						// change so the ledger and the provider agree about
						// the recharge itself.
						redebitSkipped = true
						log.Printf("re-debit skipped for %s: balance %s below %s",
							transaction.TransactionID, user.WalletBalance.StringFixed(2), transaction.Amount.StringFixed(2))
					}
				}
				if transaction.Type == models.TransactionTypeTransfer && transaction.RecipientID != nil {
					// Pay the recipient on the first arrival at success. A
					// refunded leg already paid them; refunds only re-credit
					// the sender.
					if old == models.TransactionStatusPending || (old == models.TransactionStatusFailed && !priorRefunded && !redebitSkipped) {
						if _, err := s.userRepo.CreditBalance(txCtx, *transaction.RecipientID, transaction.Amount); err != nil {
							return err
						}
						creditedLeg = true
					}
				}
				if transaction.Type == models.TransactionTypeRecharge {
					granted, err := s.cashback.Grant(txCtx, transaction)
					if err != nil {
						return err
					}
					grantedCashback = granted
				}
			case models.TransactionTypeAddFund, models.TransactionTypeReferral:
				// These credit on success, not at creation.
				if _, err := s.userRepo.CreditBalance(txCtx, transaction.UserID, transaction.Amount); err != nil {
					return err
				}
				if wasRefunded {
					transaction.RefundedAt = nil
				}
			case models.TransactionTypeDebit:
				if _, err := s.userRepo.DebitBalance(txCtx, transaction.UserID, transaction.Amount); err != nil {
					return err
				}
				if wasRefunded {
					transaction.RefundedAt = nil
				}
			}

		case models.TransactionStatusFailed:
			if req.NeedsRefund {
				if wasRefunded {
					// The hold already came back with the earlier refund,
					// so the request is a duplicate unless the recharge
					// still carries cashback from a failed -> success
					// transition whose re-debit was skipped. Claw that
					// back; only a fully settled transaction is rejected.
					if transaction.Type == models.TransactionTypeRecharge {
						reversed, err := s.cashback.Reverse(txCtx, transaction, old)
						if err != nil {
							return err
						}
						if reversed.IsPositive() {
							reversedAmount = reversed
							break
						}
					}
					return ErrAlreadyRefunded
				}
				switch transaction.Type {
				case models.TransactionTypeRecharge, models.TransactionTypeTransfer:
					// Return the hold taken at creation (or at failed->success).
					if _, err := s.userRepo.CreditBalance(txCtx, transaction.UserID, transaction.Amount); err != nil {
						return err
					}
					refundApplied = true
				case models.TransactionTypeAddFund, models.TransactionTypeReferral:
					// Undo the success credit; nothing was credited while pending.
					if old == models.TransactionStatusSuccess {
						if _, err := s.userRepo.DebitBalance(txCtx, transaction.UserID, transaction.Amount); err != nil {
							return err
						}
						refundApplied = true
					}
				case models.TransactionTypeDebit:
					if old == models.TransactionStatusSuccess {
						if _, err := s.userRepo.CreditBalance(txCtx, transaction.UserID, transaction.Amount); err != nil {
							return err
						}
						refundApplied = true
					}
				}

				if transaction.Type == models.TransactionTypeRecharge {
					reversed, err := s.cashback.Reverse(txCtx, transaction, old)
					if err != nil {
						return err
					}
					reversedAmount = reversed
				}

				if refundApplied {
					transaction.RefundedAt = utils.UTCNowPtr()
				}
			}

		case models.TransactionStatusPending:
			// Administrative reset; no ledger effect. Holds and cashback are
			// settled by the next pending -> success/failed transition.
		}

		transaction.Status = target
		if req.Description != "" {
			if transaction.Description != "" {
				transaction.Description = transaction.Description + " | " + req.Description
			} else {
				transaction.Description = req.Description
			}
		}
		return s.transactionRepo.Update(txCtx, transaction)
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionStatusUpdateFailed,
			fmt.Sprintf("Failed to update %s to %s", transactionID, target), false, &errMsg, metadata)
		switch {
		case IsAlreadyRefunded(err):
			return nil, NewBusinessError("ALREADY_REFUNDED", fmt.Sprintf("Transaction %s was already refunded", transactionID), err)
		case IsInsufficientBalance(err):
			return nil, NewBusinessError("INSUFFICIENT_BALANCE", "Wallet balance does not cover the reconciliation", err)
		case IsTransactionNotFound(err):
			return nil, NewBusinessError("TRANSACTION_NOT_FOUND", fmt.Sprintf("Transaction %s not found", transactionID), err)
		}
		return nil, err
	}

	if noChange {
		return &dto.UpdateTransactionStatusResponse{
			Message:     "Status unchanged",
			Transaction: ToTransactionDTO(*transaction),
		}, nil
	}

	s.recordOutcome(ctx, transaction, refundApplied, redebitSkipped, grantedCashback, reversedAmount, creditedLeg, metadata)

	return &dto.UpdateTransactionStatusResponse{
		Message:     fmt.Sprintf("Transaction %s updated to %s", transactionID, target),
		Transaction: ToTransactionDTO(*transaction),
	}, nil
}

// recordOutcome writes audit entries and queues notifications after a
// committed transition. Best effort: failures are logged, never surfaced.
func (s *ReconcileFlowImpl) recordOutcome(ctx context.Context, transaction *models.Transaction, refundApplied, redebitSkipped bool, grantedCashback *models.Transaction, reversedAmount decimal.Decimal, creditedLeg bool, metadata *ClientMetadata) {
	user := &models.User{ID: transaction.UserID}

	msg := fmt.Sprintf("Transaction %s updated to %s", transaction.TransactionID, transaction.Status)
	_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionStatusUpdated, msg, true, nil, metadata)

	if redebitSkipped {
		desc := fmt.Sprintf("Re-debit of %s skipped on %s: insufficient balance", transaction.Amount.StringFixed(2), transaction.TransactionID)
		_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionRedebitSkipped, desc, false, &desc, metadata)
	}
	if refundApplied {
		_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionRefundApplied,
			fmt.Sprintf("Refund of %s applied for %s", transaction.Amount.StringFixed(2), transaction.TransactionID), true, nil, metadata)
		_ = s.notifier.NotifyRefund(ctx, transaction.UserID, transaction.Amount.StringFixed(2), transaction.TransactionID)
	}
	if grantedCashback != nil {
		_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionCashbackGranted,
			fmt.Sprintf("Cashback of %s granted for %s", grantedCashback.Amount.StringFixed(2), transaction.TransactionID), true, nil, metadata)
		_ = s.notifier.NotifyCashback(ctx, transaction.UserID, grantedCashback.Amount.StringFixed(2), transaction.TransactionID)
	}
	if reversedAmount.IsPositive() {
		_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionCashbackReversed,
			fmt.Sprintf("Cashback of %s reversed for %s", reversedAmount.StringFixed(2), transaction.TransactionID), true, nil, metadata)
	}
	if creditedLeg && transaction.RecipientID != nil {
		_ = s.notifier.NotifyWalletCredit(ctx, *transaction.RecipientID, transaction.Amount.StringFixed(2), transaction.TransactionID)
	}
	if transaction.Type == models.TransactionTypeRecharge {
		_ = s.notifier.NotifyRechargeStatus(ctx, transaction.UserID, transaction.TransactionID, string(transaction.Status))
	}
}
