// Package services provides external service integrations and technical concerns like notifications and the recharge gateway
package services

import (
	"context"
	"fmt"
	"log"

	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
)

// NotificationService queues user-facing notifications. Delivery (push, SMS)
// is an external concern; the ledger only records what should be sent.
type NotificationService interface {
	NotifyWalletCredit(ctx context.Context, userID uint, amount, reference string) error
	NotifyWalletDebit(ctx context.Context, userID uint, amount, reference string) error
	NotifyRefund(ctx context.Context, userID uint, amount, reference string) error
	NotifyCashback(ctx context.Context, userID uint, amount, reference string) error
	NotifyRechargeStatus(ctx context.Context, userID uint, reference, status string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	notificationRepo repository.NotificationRepository
}

// NewNotificationService creates a new notification service
func NewNotificationService(notificationRepo repository.NotificationRepository) NotificationService {
	return &NotificationServiceImpl{
		notificationRepo: notificationRepo,
	}
}

func (s *NotificationServiceImpl) queue(ctx context.Context, userID uint, typ models.NotificationType, title, body string) error {
	notification := &models.Notification{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
	}
	if err := s.notificationRepo.Save(ctx, notification); err != nil {
		return fmt.Errorf("failed to queue %s notification for user %d: %w", typ, userID, err)
	}
	return nil
}

// NotifyWalletCredit queues a credit notification
func (s *NotificationServiceImpl) NotifyWalletCredit(ctx context.Context, userID uint, amount, reference string) error {
	return s.queue(ctx, userID, models.NotificationTypeWalletCredit,
		"Wallet credited",
		fmt.Sprintf("Your wallet was credited %s (ref %s)", amount, reference))
}

// NotifyWalletDebit queues a debit notification
func (s *NotificationServiceImpl) NotifyWalletDebit(ctx context.Context, userID uint, amount, reference string) error {
	return s.queue(ctx, userID, models.NotificationTypeWalletDebit,
		"Wallet debited",
		fmt.Sprintf("Your wallet was debited %s (ref %s)", amount, reference))
}

// NotifyRefund queues a refund notification
func (s *NotificationServiceImpl) NotifyRefund(ctx context.Context, userID uint, amount, reference string) error {
	return s.queue(ctx, userID, models.NotificationTypeRefund,
		"Refund processed",
		fmt.Sprintf("A refund of %s was applied for transaction %s", amount, reference))
}

// NotifyCashback queues a cashback notification
func (s *NotificationServiceImpl) NotifyCashback(ctx context.Context, userID uint, amount, reference string) error {
	return s.queue(ctx, userID, models.NotificationTypeCashback,
		"Cashback earned",
		fmt.Sprintf("You earned %s cashback on recharge %s", amount, reference))
}

// NotifyRechargeStatus queues a recharge status notification
func (s *NotificationServiceImpl) NotifyRechargeStatus(ctx context.Context, userID uint, reference, status string) error {
	return s.queue(ctx, userID, models.NotificationTypeRechargeStatus,
		"Recharge status updated",
		fmt.Sprintf("Recharge %s is now %s", reference, status))
}

// MockNotificationService logs instead of persisting, for local runs
type MockNotificationService struct{}

func NewMockNotificationService() NotificationService {
	return &MockNotificationService{}
}

func (s *MockNotificationService) NotifyWalletCredit(ctx context.Context, userID uint, amount, reference string) error {
	log.Printf("notify user %d: wallet credit %s (%s)", userID, amount, reference)
	return nil
}

func (s *MockNotificationService) NotifyWalletDebit(ctx context.Context, userID uint, amount, reference string) error {
	log.Printf("notify user %d: wallet debit %s (%s)", userID, amount, reference)
	return nil
}

func (s *MockNotificationService) NotifyRefund(ctx context.Context, userID uint, amount, reference string) error {
	log.Printf("notify user %d: refund %s (%s)", userID, amount, reference)
	return nil
}

func (s *MockNotificationService) NotifyCashback(ctx context.Context, userID uint, amount, reference string) error {
	log.Printf("notify user %d: cashback %s (%s)", userID, amount, reference)
	return nil
}

func (s *MockNotificationService) NotifyRechargeStatus(ctx context.Context, userID uint, reference, status string) error {
	log.Printf("notify user %d: recharge %s -> %s", userID, reference, status)
	return nil
}
