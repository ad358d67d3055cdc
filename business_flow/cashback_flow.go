package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/novapay/recharge-ledger/config"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// cashbackAmountPattern recovers the granted amount from a cashback row's
// description. Legacy fallback for rows predating the parent link.
var cashbackAmountPattern = regexp.MustCompile(`[Cc]ashback of ([0-9]+(?:\.[0-9]+)?)`)

// CashbackPolicy derives, grants and reverses cashback rows for recharge
// transactions. All mutating methods must run inside a transaction context
// established via repository.WithTransaction; they lean on the row locks
// taken by the user repository.
type CashbackPolicy struct {
	userRepo        repository.UserRepository
	transactionRepo repository.TransactionRepository
	operatorRepo    repository.OperatorRepository

	rc          *redis.Client
	cacheConfig *config.CacheConfig
}

// NewCashbackPolicy creates a new cashback policy instance
func NewCashbackPolicy(
	userRepo repository.UserRepository,
	transactionRepo repository.TransactionRepository,
	operatorRepo repository.OperatorRepository,
	rc *redis.Client,
	cacheConfig *config.CacheConfig,
) *CashbackPolicy {
	return &CashbackPolicy{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		operatorRepo:    operatorRepo,
		rc:              rc,
		cacheConfig:     cacheConfig,
	}
}

func (p *CashbackPolicy) operatorCacheKey(operatorID uint) string {
	prefix := "ledger"
	if p.cacheConfig != nil && p.cacheConfig.RedisPrefix != "" {
		prefix = p.cacheConfig.RedisPrefix
	}
	return fmt.Sprintf("%s:operator:%d", prefix, operatorID)
}

// Operator resolves an operator, trying the redis cache first. Cache misses
// and cache errors fall through to the database; cache writes are best effort.
func (p *CashbackPolicy) Operator(ctx context.Context, operatorID uint) (*models.Operator, error) {
	cacheEnabled := p.rc != nil && (p.cacheConfig == nil || p.cacheConfig.Enabled)

	if cacheEnabled {
		if bs, err := p.rc.Get(ctx, p.operatorCacheKey(operatorID)).Bytes(); err == nil && len(bs) > 0 {
			var cached models.Operator
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	operator, err := p.operatorRepo.ByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, ErrOperatorNotFound
	}

	if cacheEnabled {
		if bs, err := json.Marshal(operator); err == nil {
			ttl := 15 * time.Minute
			if p.cacheConfig != nil && p.cacheConfig.DefaultTTL > 0 {
				ttl = p.cacheConfig.DefaultTTL
			}
			_ = p.rc.Set(ctx, p.operatorCacheKey(operatorID), bs, ttl).Err()
		}
	}

	return operator, nil
}

// locate finds the cashback row(s) derived from a recharge: first by the
// explicit parent link, then by the correlation-id convention for legacy rows.
func (p *CashbackPolicy) locate(ctx context.Context, recharge *models.Transaction) ([]*models.Transaction, error) {
	children, err := p.transactionRepo.ByParentID(ctx, recharge.ID)
	if err != nil {
		return nil, err
	}
	cashbacks := make([]*models.Transaction, 0, len(children))
	for _, child := range children {
		if child.Type == models.TransactionTypeCashback {
			cashbacks = append(cashbacks, child)
		}
	}
	if len(cashbacks) > 0 {
		return cashbacks, nil
	}

	legacy, err := p.transactionRepo.ByTransactionID(ctx, recharge.CashbackTransactionID())
	if err != nil {
		return nil, err
	}
	if legacy != nil && legacy.Type == models.TransactionTypeCashback {
		return []*models.Transaction{legacy}, nil
	}

	return nil, nil
}

// Grant creates the cashback row for a recharge that has reached success and
// credits the wallet and commission balances. Idempotent: if a cashback row
// already exists for this recharge, nothing happens and the existing row is
// returned. Returns nil when the operator rate yields a zero amount.
func (p *CashbackPolicy) Grant(ctx context.Context, recharge *models.Transaction) (*models.Transaction, error) {
	if recharge.OperatorID == nil {
		return nil, nil
	}

	existing, err := p.locate(ctx, recharge)
	if err != nil {
		return nil, fmt.Errorf("cashback lookup failed for %s: %w", recharge.TransactionID, err)
	}
	if len(existing) > 0 {
		return existing[0], nil
	}

	operator, err := p.Operator(ctx, *recharge.OperatorID)
	if err != nil {
		return nil, err
	}

	cashbackAmount := operator.CalculateCashback(recharge.Amount)
	if !cashbackAmount.IsPositive() {
		return nil, nil
	}

	cashback := &models.Transaction{
		TransactionID:       recharge.CashbackTransactionID(),
		UserID:              recharge.UserID,
		Type:                models.TransactionTypeCashback,
		Status:              models.TransactionStatusSuccess,
		Amount:              cashbackAmount,
		OperatorID:          recharge.OperatorID,
		ParentTransactionID: &recharge.ID,
		Description: fmt.Sprintf("Cashback of %s for recharge %s (%s at %s%%)",
			cashbackAmount.StringFixed(2), recharge.TransactionID, operator.Name, operator.CommissionPercent.String()),
	}
	if err := p.transactionRepo.Save(ctx, cashback); err != nil {
		return nil, fmt.Errorf("failed to persist cashback for %s: %w", recharge.TransactionID, err)
	}

	if _, err := p.userRepo.CreditBalance(ctx, recharge.UserID, cashbackAmount); err != nil {
		return nil, err
	}
	if _, err := p.userRepo.AdjustCommission(ctx, recharge.UserID, cashbackAmount); err != nil {
		return nil, err
	}

	return cashback, nil
}

// Reverse undoes the cashback of a recharge that is being reconciled away
// from success: deletes the derived row(s), debits the wallet by their sum
// (floored at zero) and reduces commission by the same sum. When no row can
// be located it falls back to the description text and finally to the
// operator rate, but only when the recharge had actually reached success.
// Returns the reversed amount.
func (p *CashbackPolicy) Reverse(ctx context.Context, recharge *models.Transaction, priorStatus models.TransactionStatus) (decimal.Decimal, error) {
	cashbacks, err := p.locate(ctx, recharge)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cashback lookup failed for %s: %w", recharge.TransactionID, err)
	}

	total := decimal.Zero
	for _, cashback := range cashbacks {
		total = total.Add(cashback.Amount)
	}

	if len(cashbacks) == 0 {
		// Cashback is only ever granted on success; nothing to reverse on a
		// pending -> failed transition.
		if priorStatus != models.TransactionStatusSuccess {
			return decimal.Zero, nil
		}
		total, err = p.recoverAmount(ctx, recharge)
		if err != nil {
			return decimal.Zero, err
		}
	}

	if !total.IsPositive() {
		return decimal.Zero, nil
	}

	for _, cashback := range cashbacks {
		if err := p.transactionRepo.Delete(ctx, cashback); err != nil {
			return decimal.Zero, err
		}
	}

	// Floored debit: the wallet may have been spent down below the cashback
	// sum since it was granted.
	user, err := p.userRepo.ByIDLocked(ctx, recharge.UserID)
	if err != nil {
		return decimal.Zero, err
	}
	if user == nil {
		return decimal.Zero, ErrUserNotFound
	}
	reclaim := total
	if user.WalletBalance.LessThan(reclaim) {
		reclaim = user.WalletBalance
	}
	if reclaim.IsPositive() {
		if _, err := p.userRepo.DebitBalance(ctx, recharge.UserID, reclaim); err != nil {
			return decimal.Zero, err
		}
	}
	if _, err := p.userRepo.AdjustCommission(ctx, recharge.UserID, total.Neg()); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}

// recoverAmount reconstructs the granted cashback amount when the derived
// row cannot be found: parse the recharge description, then recompute from
// the operator's current rate.
func (p *CashbackPolicy) recoverAmount(ctx context.Context, recharge *models.Transaction) (decimal.Decimal, error) {
	if match := cashbackAmountPattern.FindStringSubmatch(recharge.Description); len(match) == 2 {
		if amount, err := decimal.NewFromString(match[1]); err == nil {
			return amount, nil
		}
	}

	if recharge.OperatorID == nil {
		return decimal.Zero, nil
	}
	operator, err := p.Operator(ctx, *recharge.OperatorID)
	if err != nil {
		return decimal.Zero, err
	}
	return operator.CalculateCashback(recharge.Amount), nil
}
