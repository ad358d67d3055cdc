// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/services"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
	"github.com/novapay/recharge-ledger/config"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
	"github.com/novapay/recharge-ledger/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

// StatusPoller periodically queries the recharge gateway for pending
// recharge transactions and reconciles the ledger with the provider's answer.
type StatusPoller struct {
	transactionRepo repository.TransactionRepository
	auditRepo       repository.AuditLogRepository
	reconcileFlow   businessflow.ReconcileFlow
	gateway         services.GatewayClient
	logger          *log.Logger
	interval        time.Duration
	batchSize       int
}

func NewStatusPoller(
	transactionRepo repository.TransactionRepository,
	auditRepo repository.AuditLogRepository,
	reconcileFlow businessflow.ReconcileFlow,
	gateway services.GatewayClient,
	cfg *config.ProductionConfig,
) *StatusPoller {
	interval := cfg.Scheduler.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	batchSize := cfg.Scheduler.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	s := &StatusPoller{
		transactionRepo: transactionRepo,
		auditRepo:       auditRepo,
		reconcileFlow:   reconcileFlow,
		gateway:         gateway,
		interval:        interval,
		batchSize:       batchSize,
	}
	s.initPollerLogger(cfg.Logging)

	return s
}

// initPollerLogger writes poller output to stdout and a rotating file
func (s *StatusPoller) initPollerLogger(cfg config.LoggingConfig) {
	if cfg.PollerLogPath == "" {
		s.logger = log.New(os.Stdout, "poller ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.PollerLogPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	s.logger = log.New(mw, "poller ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the polling loop in a background goroutine and returns a stop function
func (s *StatusPoller) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *StatusPoller) runOnce(ctx context.Context) {
	pending, err := s.transactionRepo.ListPendingRecharges(ctx, s.batchSize)
	if err != nil {
		s.logger.Printf("poller: list pending recharges failed: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	s.logger.Printf("poller: checking %d pending recharges", len(pending))

	for _, tx := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.pollOne(ctx, tx); err != nil {
			s.logger.Printf("poller: poll txid=%s failed: %v", tx.TransactionID, err)
		}
	}
}

// pollOne asks the gateway about a single transaction and applies the
// resulting status transition. A provider answer of pending (or any
// unrecognized value) leaves the transaction untouched.
func (s *StatusPoller) pollOne(ctx context.Context, tx *models.Transaction) error {
	result, err := s.gateway.CheckStatus(ctx, tx.TransactionID)
	if err != nil {
		// Gateway unreachable or malformed answer; retry on the next tick.
		return err
	}

	if result.Status == models.TransactionStatusPending {
		return nil
	}

	req := &dto.UpdateTransactionStatusRequest{
		Status: string(result.Status),
	}
	if result.Status == models.TransactionStatusFailed {
		// A provider-declared failure releases the held debit.
		req.NeedsRefund = true
	}

	metadata := businessflow.NewClientMetadata("status-poller", "recharge-ledger/poller")

	res, err := s.reconcileFlow.UpdateTransactionStatus(ctx, tx.TransactionID, req, metadata)
	if err != nil {
		return err
	}
	s.logger.Printf("poller: txid=%s transitioned %s -> %s (gateway status %q)",
		tx.TransactionID, tx.Status, res.Transaction.Status, result.Raw.Status)

	desc := fmt.Sprintf("Gateway reported %q for %s", result.Raw.Status, tx.TransactionID)
	_ = s.auditRepo.Save(ctx, &models.AuditLog{
		UserID:      &tx.UserID,
		Action:      models.AuditActionStatusPolled,
		Description: &desc,
		Success:     utils.ToPtr(true),
	})
	return nil
}
