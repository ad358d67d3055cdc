package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/services"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
	"github.com/novapay/recharge-ledger/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerFlow handles transaction creation and ledger reads
type LedgerFlow interface {
	CreateTransaction(ctx context.Context, req *dto.CreateTransactionRequest, metadata *ClientMetadata) (*dto.CreateTransactionResponse, error)
	GetWalletBalance(ctx context.Context, req *dto.GetWalletBalanceRequest, metadata *ClientMetadata) (*dto.GetWalletBalanceResponse, error)
	GetTransactionHistory(ctx context.Context, req *dto.GetTransactionHistoryRequest, metadata *ClientMetadata) (*dto.TransactionHistoryResponse, error)
}

// LedgerFlowImpl implements the ledger business flow
type LedgerFlowImpl struct {
	userRepo        repository.UserRepository
	transactionRepo repository.TransactionRepository
	operatorRepo    repository.OperatorRepository
	auditRepo       repository.AuditLogRepository
	cashback        *CashbackPolicy
	notifier        services.NotificationService
	db              *gorm.DB
}

// NewLedgerFlow creates a new ledger flow instance
func NewLedgerFlow(
	userRepo repository.UserRepository,
	transactionRepo repository.TransactionRepository,
	operatorRepo repository.OperatorRepository,
	auditRepo repository.AuditLogRepository,
	cashback *CashbackPolicy,
	notifier services.NotificationService,
	db *gorm.DB,
) LedgerFlow {
	return &LedgerFlowImpl{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		operatorRepo:    operatorRepo,
		auditRepo:       auditRepo,
		cashback:        cashback,
		notifier:        notifier,
		db:              db,
	}
}

// CreateTransaction validates the request, holds funds for debit-on-create
// types and persists the transaction row(s) atomically. Transfers fan out
// into one row per recipient.
func (s *LedgerFlowImpl) CreateTransaction(ctx context.Context, req *dto.CreateTransactionRequest, metadata *ClientMetadata) (*dto.CreateTransactionResponse, error) {
	typ := models.TransactionType(req.Type)
	status := models.TransactionStatus(req.Status)
	if status == "" {
		status = models.TransactionStatusPending
	}

	if !models.ValidTransactionType(typ) || typ == models.TransactionTypeCashback {
		return nil, NewBusinessError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("Transaction type %q is not allowed", req.Type), ErrInvalidTransactionType)
	}
	if !models.ValidTransactionStatus(status) {
		return nil, NewBusinessError("INVALID_TRANSACTION_STATUS", fmt.Sprintf("Transaction status %q is not allowed", req.Status), ErrInvalidTransactionStatus)
	}
	if !req.Amount.IsPositive() {
		return nil, NewBusinessError("AMOUNT_NOT_POSITIVE", "Transaction amount must be positive", ErrAmountNotPositive)
	}

	user, err := s.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to look up user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", fmt.Sprintf("User %d not found", req.UserID), ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("USER_INACTIVE", fmt.Sprintf("User %d is inactive", req.UserID), ErrUserInactive)
	}

	if req.TransactionID != "" {
		existing, err := s.transactionRepo.ByTransactionID(ctx, req.TransactionID)
		if err != nil {
			return nil, NewBusinessError("TRANSACTION_LOOKUP_FAILED", "Failed to check transaction ID uniqueness", err)
		}
		if existing != nil {
			return nil, NewBusinessError("DUPLICATE_TRANSACTION_ID", fmt.Sprintf("Transaction ID %s already exists", req.TransactionID), ErrDuplicateTransactionID)
		}
	}

	var operator *models.Operator
	if typ == models.TransactionTypeRecharge {
		if req.OperatorID == nil {
			return nil, NewBusinessError("OPERATOR_REQUIRED", "Recharge transactions require an operator", ErrOperatorRequired)
		}
		operator, err = s.operatorRepo.ByID(ctx, *req.OperatorID)
		if err != nil {
			return nil, NewBusinessError("OPERATOR_LOOKUP_FAILED", "Failed to look up operator", err)
		}
		if operator == nil {
			return nil, NewBusinessError("OPERATOR_NOT_FOUND", fmt.Sprintf("Operator %d not found", *req.OperatorID), ErrOperatorNotFound)
		}
		if !utils.IsTrue(operator.IsActive) {
			return nil, NewBusinessError("OPERATOR_INACTIVE", fmt.Sprintf("Operator %d is inactive", *req.OperatorID), ErrOperatorInactive)
		}
	}

	var recipients []*models.User
	if typ == models.TransactionTypeTransfer {
		if len(req.RecipientIDs) == 0 {
			return nil, NewBusinessError("RECIPIENTS_REQUIRED", "Transfers require at least one recipient", ErrRecipientsRequired)
		}
		if len(req.RecipientIDs) > utils.MaxTransferRecipients {
			return nil, NewBusinessError("TOO_MANY_RECIPIENTS", fmt.Sprintf("Transfers are limited to %d recipients", utils.MaxTransferRecipients), ErrTooManyRecipients)
		}
		seen := make(map[uint]bool, len(req.RecipientIDs))
		for _, rid := range req.RecipientIDs {
			if rid == req.UserID {
				return nil, NewBusinessError("SELF_TRANSFER", "Cannot transfer to the sending user", ErrSelfTransfer)
			}
			seen[rid] = true
		}
		recipients, err = s.userRepo.ByIDs(ctx, req.RecipientIDs)
		if err != nil {
			return nil, NewBusinessError("RECIPIENT_LOOKUP_FAILED", "Failed to look up recipients", err)
		}
		if len(recipients) != len(seen) {
			return nil, NewBusinessError("RECIPIENT_NOT_FOUND", "One or more recipients not found", ErrRecipientNotFound)
		}
	}

	created := make([]*models.Transaction, 0, 1+len(req.RecipientIDs))

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		legs := 1
		if typ == models.TransactionTypeTransfer {
			legs = len(req.RecipientIDs)
		}

		// Hold semantics: recharge and transfer debit up front, even while
		// pending; the refund path credits the hold back on failure.
		switch {
		case (typ == models.TransactionTypeRecharge || typ == models.TransactionTypeTransfer) && status != models.TransactionStatusFailed:
			required := req.Amount.Mul(decimal.NewFromInt(int64(legs)))
			if _, err := s.userRepo.DebitBalance(txCtx, req.UserID, required); err != nil {
				return err
			}
		case typ == models.TransactionTypeDebit && status == models.TransactionStatusSuccess:
			if _, err := s.userRepo.DebitBalance(txCtx, req.UserID, req.Amount); err != nil {
				return err
			}
		case (typ == models.TransactionTypeAddFund || typ == models.TransactionTypeReferral) && status == models.TransactionStatusSuccess:
			if _, err := s.userRepo.CreditBalance(txCtx, req.UserID, req.Amount); err != nil {
				return err
			}
		}

		base := req.TransactionID
		if base == "" {
			base = fmt.Sprintf("TXN-%d-%s", time.Now().Unix(), uuid.New().String()[:8])
		}

		if typ == models.TransactionTypeTransfer {
			for i, recipient := range recipients {
				transactionID := base
				if len(recipients) > 1 {
					transactionID = fmt.Sprintf("%s-T%d", base, i+1)
				}
				leg := &models.Transaction{
					TransactionID: transactionID,
					UserID:        req.UserID,
					Type:          typ,
					Status:        status,
					Amount:        req.Amount,
					RecipientID:   &recipient.ID,
					Description:   req.Description,
				}
				if err := s.transactionRepo.Save(txCtx, leg); err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return ErrDuplicateTransactionID
					}
					return fmt.Errorf("failed to persist transfer leg %s: %w", transactionID, err)
				}
				created = append(created, leg)

				if status == models.TransactionStatusSuccess {
					if _, err := s.userRepo.CreditBalance(txCtx, recipient.ID, req.Amount); err != nil {
						return err
					}
				}
			}
			return nil
		}

		transaction := &models.Transaction{
			TransactionID: base,
			UserID:        req.UserID,
			Type:          typ,
			Status:        status,
			Amount:        req.Amount,
			OperatorID:    req.OperatorID,
			Description:   req.Description,
		}
		if err := s.transactionRepo.Save(txCtx, transaction); err != nil {
			// The pre-read above is only a fast path; a racing creator is
			// caught here by the uniqueness constraint itself.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateTransactionID
			}
			return fmt.Errorf("failed to persist transaction %s: %w", base, err)
		}
		created = append(created, transaction)

		// A recharge landing directly on success earns its cashback now.
		if typ == models.TransactionTypeRecharge && status == models.TransactionStatusSuccess {
			if _, err := s.cashback.Grant(txCtx, transaction); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		errMsg := err.Error()
		_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionTransactionCreateFailed,
			fmt.Sprintf("Failed to create %s of %s for user %d", typ, req.Amount.StringFixed(2), req.UserID),
			false, &errMsg, metadata)
		switch {
		case IsInsufficientBalance(err):
			return nil, NewBusinessError("INSUFFICIENT_BALANCE", "Wallet balance does not cover the transaction", err)
		case IsDuplicateTransactionID(err):
			return nil, NewBusinessError("DUPLICATE_TRANSACTION_ID", fmt.Sprintf("Transaction ID %s already exists", req.TransactionID), err)
		}
		return nil, err
	}

	msg := fmt.Sprintf("Created %s %s of %s for user %d", typ, created[0].TransactionID, req.Amount.StringFixed(2), req.UserID)
	_ = createAuditLog(ctx, s.auditRepo, user, models.AuditActionTransactionCreated, msg, true, nil, metadata)

	// Notifications are best effort and never fail the creation.
	if typ == models.TransactionTypeTransfer && status == models.TransactionStatusSuccess {
		for _, leg := range created {
			if leg.RecipientID != nil {
				_ = s.notifier.NotifyWalletCredit(ctx, *leg.RecipientID, leg.Amount.StringFixed(2), leg.TransactionID)
			}
		}
	}

	resp := &dto.CreateTransactionResponse{
		Message:     "Transaction created",
		Transaction: ToTransactionDTO(*created[0]),
	}
	if len(created) > 1 {
		resp.Transactions = make([]dto.TransactionDTO, 0, len(created))
		for _, t := range created {
			resp.Transactions = append(resp.Transactions, ToTransactionDTO(*t))
		}
	}
	return resp, nil
}

// GetWalletBalance returns the current ledger balances of a user
func (s *LedgerFlowImpl) GetWalletBalance(ctx context.Context, req *dto.GetWalletBalanceRequest, metadata *ClientMetadata) (*dto.GetWalletBalanceResponse, error) {
	user, err := s.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to look up user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", fmt.Sprintf("User %d not found", req.UserID), ErrUserNotFound)
	}

	return &dto.GetWalletBalanceResponse{
		Message:       "Wallet balance retrieved",
		UserID:        user.ID,
		WalletBalance: user.WalletBalance.StringFixed(2),
		Commission:    user.Commission.StringFixed(2),
		Currency:      utils.INRCurrency,
	}, nil
}

// GetTransactionHistory returns a page of a user's transactions, newest first
func (s *LedgerFlowImpl) GetTransactionHistory(ctx context.Context, req *dto.GetTransactionHistoryRequest, metadata *ClientMetadata) (*dto.TransactionHistoryResponse, error) {
	user, err := s.userRepo.ByID(ctx, req.UserID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to look up user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", fmt.Sprintf("User %d not found", req.UserID), ErrUserNotFound)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = utils.DefaultHistoryPageSize
	}
	if pageSize > utils.MaxHistoryPageSize {
		pageSize = utils.MaxHistoryPageSize
	}

	filter := models.TransactionFilter{UserID: &req.UserID}
	if req.Type != nil {
		typ := models.TransactionType(*req.Type)
		if !models.ValidTransactionType(typ) {
			return nil, NewBusinessError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("Transaction type %q is not allowed", *req.Type), ErrInvalidTransactionType)
		}
		filter.Type = &typ
	}
	if req.Status != nil {
		status := models.TransactionStatus(*req.Status)
		if !models.ValidTransactionStatus(status) {
			return nil, NewBusinessError("INVALID_TRANSACTION_STATUS", fmt.Sprintf("Transaction status %q is not allowed", *req.Status), ErrInvalidTransactionStatus)
		}
		filter.Status = &status
	}

	total, err := s.transactionRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_COUNT_FAILED", "Failed to count transactions", err)
	}

	offset := int(page-1) * int(pageSize)
	transactions, err := s.transactionRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", int(pageSize), offset)
	if err != nil {
		return nil, NewBusinessError("TRANSACTION_LIST_FAILED", "Failed to list transactions", err)
	}

	items := make([]dto.TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		items = append(items, ToTransactionDTO(*t))
	}

	totalPages := uint(0)
	if total > 0 {
		totalPages = (uint(total) + pageSize - 1) / pageSize
	}

	return &dto.TransactionHistoryResponse{
		Message: "Transaction history retrieved",
		Items:   items,
		Pagination: dto.PaginationInfo{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  uint(total),
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrevious: page > 1,
		},
	}, nil
}
