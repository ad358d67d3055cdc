// Package testing provides test utilities and database setup for testing the ledger
package testing

import (
	"fmt"
	"math/rand"

	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with the given wallet balance
func (tf *TestFixtures) CreateTestUser(name string, walletBalance decimal.Decimal) (*models.User, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		Name:          name,
		Email:         fmt.Sprintf("%s.%s@example.com", name, randomDigits),
		Mobile:        fmt.Sprintf("+919%s", randomDigits),
		WalletBalance: walletBalance,
		Commission:    decimal.Zero,
		IsActive:      utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateInactiveUser creates a deactivated user
func (tf *TestFixtures) CreateInactiveUser(name string) (*models.User, error) {
	user, err := tf.CreateTestUser(name, decimal.Zero)
	if err != nil {
		return nil, err
	}
	user.IsActive = utils.ToPtr(false)
	if err := tf.DB.DB.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate test user: %w", err)
	}
	return user, nil
}

// CreateTestOperator creates an active operator with the given commission percentage
func (tf *TestFixtures) CreateTestOperator(name string, commissionPercent decimal.Decimal) (*models.Operator, error) {
	operator := &models.Operator{
		Name:              name,
		Code:              fmt.Sprintf("OP%06d", rand.Intn(900000)+100000),
		CommissionPercent: commissionPercent,
		IsActive:          utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(operator).Error; err != nil {
		return nil, fmt.Errorf("failed to create test operator: %w", err)
	}
	return operator, nil
}

// CreateTestAdmin creates an active admin whose password is the given plaintext
func (tf *TestFixtures) CreateTestAdmin(username, password string) (*models.Admin, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.Admin{
		Username:     username,
		PasswordHash: string(hashed),
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}
	return admin, nil
}

// ReloadUser re-reads a user row, bypassing any cached copy
func (tf *TestFixtures) ReloadUser(id uint) (*models.User, error) {
	var user models.User
	if err := tf.DB.DB.Where("id = ?", id).Last(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ReloadTransaction re-reads a transaction row by correlation id
func (tf *TestFixtures) ReloadTransaction(transactionID string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := tf.DB.DB.Where("transaction_id = ?", transactionID).Last(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}
