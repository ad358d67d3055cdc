package businessflow_test

import (
	"context"
	"testing"

	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/services"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
	"github.com/novapay/recharge-ledger/models"
	"github.com/novapay/recharge-ledger/repository"
	testingutil "github.com/novapay/recharge-ledger/testing"
	"github.com/novapay/recharge-ledger/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flowEnv bundles the repositories and flows wired against a test database
type flowEnv struct {
	userRepo        repository.UserRepository
	transactionRepo repository.TransactionRepository
	operatorRepo    repository.OperatorRepository
	ledgerFlow      businessflow.LedgerFlow
	reconcileFlow   businessflow.ReconcileFlow
}

func newFlowEnv(testDB *testingutil.TestDB) *flowEnv {
	userRepo := repository.NewUserRepository(testDB.DB)
	transactionRepo := repository.NewTransactionRepository(testDB.DB)
	operatorRepo := repository.NewOperatorRepository(testDB.DB)
	auditRepo := repository.NewAuditLogRepository(testDB.DB)

	cashback := businessflow.NewCashbackPolicy(userRepo, transactionRepo, operatorRepo, nil, nil)
	notifier := services.NewMockNotificationService()

	return &flowEnv{
		userRepo:        userRepo,
		transactionRepo: transactionRepo,
		operatorRepo:    operatorRepo,
		ledgerFlow: businessflow.NewLedgerFlow(
			userRepo, transactionRepo, operatorRepo, auditRepo, cashback, notifier, testDB.DB),
		reconcileFlow: businessflow.NewReconcileFlow(
			userRepo, transactionRepo, auditRepo, cashback, notifier, testDB.DB),
	}
}

func testMetadata() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("127.0.0.1", "ledger-tests")
}

func TestCreateTransaction(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		operator, err := fixtures.CreateTestOperator("Airtel", decimal.NewFromInt(10))
		require.NoError(t, err)

		t.Run("PendingRechargeHoldsFunds", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("recharge-pending", decimal.NewFromInt(100))
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:     user.ID,
				Type:       string(models.TransactionTypeRecharge),
				Amount:     decimal.NewFromInt(50),
				OperatorID: &operator.ID,
			}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, string(models.TransactionStatusPending), result.Transaction.Status)
			assert.NotEmpty(t, result.Transaction.TransactionID)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(50)),
				"expected 50.00, got %s", reloaded.WalletBalance)
			assert.True(t, reloaded.Commission.IsZero())

			// No cashback while pending
			children, err := env.transactionRepo.ByFilter(ctx, models.TransactionFilter{UserID: &user.ID}, "id ASC", 0, 0)
			require.NoError(t, err)
			require.Len(t, children, 1)
		})

		t.Run("SuccessfulRechargeGrantsCashback", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("recharge-success", decimal.NewFromInt(100))
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:     user.ID,
				Type:       string(models.TransactionTypeRecharge),
				Status:     string(models.TransactionStatusSuccess),
				Amount:     decimal.NewFromInt(50),
				OperatorID: &operator.ID,
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			// 100 - 50 hold + 5 cashback
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(55)),
				"expected 55.00, got %s", reloaded.WalletBalance)
			assert.True(t, reloaded.Commission.Equal(decimal.NewFromInt(5)))

			cashback, err := fixtures.ReloadTransaction(result.Transaction.TransactionID + "-CB")
			require.NoError(t, err)
			assert.Equal(t, models.TransactionTypeCashback, cashback.Type)
			assert.Equal(t, models.TransactionStatusSuccess, cashback.Status)
			assert.True(t, cashback.Amount.Equal(decimal.NewFromInt(5)))
			require.NotNil(t, cashback.ParentTransactionID)
		})

		t.Run("InsufficientBalanceLeavesNothingBehind", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("recharge-broke", decimal.NewFromInt(10))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:     user.ID,
				Type:       string(models.TransactionTypeRecharge),
				Amount:     decimal.NewFromInt(50),
				OperatorID: &operator.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInsufficientBalance(err))

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(10)))

			count, err := env.transactionRepo.Count(ctx, models.TransactionFilter{UserID: &user.ID})
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("RechargeRequiresOperator", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("recharge-noop", decimal.NewFromInt(100))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeRecharge),
				Amount: decimal.NewFromInt(50),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsOperatorRequired(err))
		})

		t.Run("CashbackTypeRejected", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("cashback-direct", decimal.NewFromInt(100))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeCashback),
				Amount: decimal.NewFromInt(5),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidTransactionType(err))
		})

		t.Run("DuplicateTransactionIDRejected", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("dup-txid", decimal.NewFromInt(100))
			require.NoError(t, err)

			req := &dto.CreateTransactionRequest{
				UserID:        user.ID,
				Type:          string(models.TransactionTypeAddFund),
				Amount:        decimal.NewFromInt(10),
				TransactionID: "TXN-DUP-1",
			}
			_, err = env.ledgerFlow.CreateTransaction(ctx, req, testMetadata())
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, req, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsDuplicateTransactionID(err))
		})

		t.Run("DuplicateCaughtByConstraintNotJustPreRead", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("dup-race", decimal.NewFromInt(100))
			require.NoError(t, err)
			first, err := fixtures.CreateTestUser("dup-race-first", decimal.Zero)
			require.NoError(t, err)
			second, err := fixtures.CreateTestUser("dup-race-second", decimal.Zero)
			require.NoError(t, err)

			// A pre-existing row under a leg-suffixed id slips past the
			// pre-read on the base id, the way a racing creator would; the
			// insert itself must surface the duplicate and roll back the hold.
			taken := &models.Transaction{
				TransactionID: "TXN-RACE-1-T2",
				UserID:        first.ID,
				Type:          models.TransactionTypeAddFund,
				Status:        models.TransactionStatusPending,
				Amount:        decimal.NewFromInt(1),
			}
			require.NoError(t, env.transactionRepo.Save(ctx, taken))

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:        user.ID,
				Type:          string(models.TransactionTypeTransfer),
				Amount:        decimal.NewFromInt(10),
				TransactionID: "TXN-RACE-1",
				RecipientIDs:  []uint{first.ID, second.ID},
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsDuplicateTransactionID(err))

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(100)),
				"failed creation must release the hold, got %s", reloaded.WalletBalance)
		})

		t.Run("AddFundCreditsOnlyOnSuccess", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("addfund", decimal.NewFromInt(100))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Amount: decimal.NewFromInt(25),
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(100)),
				"pending add_fund must not credit, got %s", reloaded.WalletBalance)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Status: string(models.TransactionStatusSuccess),
				Amount: decimal.NewFromInt(25),
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err = fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(125)))
		})

		t.Run("InactiveUserRejected", func(t *testing.T) {
			user, err := fixtures.CreateInactiveUser("inactive")
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Amount: decimal.NewFromInt(10),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsUserInactive(err))
		})

		t.Run("NonPositiveAmountRejected", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("zero-amount", decimal.NewFromInt(100))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Amount: decimal.Zero,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAmountNotPositive(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCreateTransfer(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		t.Run("FanOutDebitsPerLeg", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("sender", decimal.NewFromInt(100))
			require.NoError(t, err)
			r1, err := fixtures.CreateTestUser("recipient-1", decimal.Zero)
			require.NoError(t, err)
			r2, err := fixtures.CreateTestUser("recipient-2", decimal.Zero)
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Amount:       decimal.NewFromInt(20),
				RecipientIDs: []uint{r1.ID, r2.ID},
			}, testMetadata())
			require.NoError(t, err)
			require.Len(t, result.Transactions, 2)

			reloaded, err := fixtures.ReloadUser(sender.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(60)),
				"two legs of 20 held, got %s", reloaded.WalletBalance)

			// Pending legs pay nobody yet
			rec1, err := fixtures.ReloadUser(r1.ID)
			require.NoError(t, err)
			assert.True(t, rec1.WalletBalance.IsZero())
		})

		t.Run("SuccessfulTransferPaysRecipients", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("sender-success", decimal.NewFromInt(100))
			require.NoError(t, err)
			r1, err := fixtures.CreateTestUser("paid-1", decimal.Zero)
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Status:       string(models.TransactionStatusSuccess),
				Amount:       decimal.NewFromInt(30),
				RecipientIDs: []uint{r1.ID},
			}, testMetadata())
			require.NoError(t, err)

			rec, err := fixtures.ReloadUser(r1.ID)
			require.NoError(t, err)
			assert.True(t, rec.WalletBalance.Equal(decimal.NewFromInt(30)))
		})

		t.Run("InsufficientBalanceRollsEverythingBack", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("sender-broke", decimal.NewFromInt(30))
			require.NoError(t, err)
			r1, err := fixtures.CreateTestUser("unpaid-1", decimal.Zero)
			require.NoError(t, err)
			r2, err := fixtures.CreateTestUser("unpaid-2", decimal.Zero)
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Amount:       decimal.NewFromInt(20),
				RecipientIDs: []uint{r1.ID, r2.ID},
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInsufficientBalance(err))

			reloaded, err := fixtures.ReloadUser(sender.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(30)))

			count, err := env.transactionRepo.Count(ctx, models.TransactionFilter{UserID: &sender.ID})
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("SelfTransferRejected", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("self-sender", decimal.NewFromInt(100))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Amount:       decimal.NewFromInt(10),
				RecipientIDs: []uint{sender.ID},
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsSelfTransfer(err))
		})

		t.Run("UnknownRecipientRejected", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("lost-sender", decimal.NewFromInt(100))
			require.NoError(t, err)

			_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Amount:       decimal.NewFromInt(10),
				RecipientIDs: []uint{99999},
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsRecipientNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetWalletBalance(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser("balance-reader", decimal.RequireFromString("123.45"))
		require.NoError(t, err)

		result, err := env.ledgerFlow.GetWalletBalance(ctx, &dto.GetWalletBalanceRequest{UserID: user.ID}, testMetadata())
		require.NoError(t, err)
		assert.Equal(t, "123.45", result.WalletBalance)
		assert.Equal(t, "0.00", result.Commission)
		assert.Equal(t, utils.INRCurrency, result.Currency)

		_, err = env.ledgerFlow.GetWalletBalance(ctx, &dto.GetWalletBalanceRequest{UserID: 99999}, testMetadata())
		require.Error(t, err)
		assert.True(t, businessflow.IsUserNotFound(err))

		return nil
	})
	require.NoError(t, err)
}

func TestGetTransactionHistory(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		user, err := fixtures.CreateTestUser("history", decimal.NewFromInt(1000))
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Amount: decimal.NewFromInt(int64(10 + i)),
			}, testMetadata())
			require.NoError(t, err)
		}
		_, err = env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
			UserID: user.ID,
			Type:   string(models.TransactionTypeDebit),
			Amount: decimal.NewFromInt(3),
		}, testMetadata())
		require.NoError(t, err)

		t.Run("Paginates", func(t *testing.T) {
			result, err := env.ledgerFlow.GetTransactionHistory(ctx, &dto.GetTransactionHistoryRequest{
				UserID:   user.ID,
				Page:     1,
				PageSize: 4,
			}, testMetadata())
			require.NoError(t, err)
			assert.Len(t, result.Items, 4)
			assert.Equal(t, uint(6), result.Pagination.TotalItems)
			assert.Equal(t, uint(2), result.Pagination.TotalPages)
			assert.True(t, result.Pagination.HasNext)
		})

		t.Run("FiltersByType", func(t *testing.T) {
			typ := string(models.TransactionTypeDebit)
			result, err := env.ledgerFlow.GetTransactionHistory(ctx, &dto.GetTransactionHistoryRequest{
				UserID:   user.ID,
				Page:     1,
				PageSize: 10,
				Type:     &typ,
			}, testMetadata())
			require.NoError(t, err)
			require.Len(t, result.Items, 1)
			assert.Equal(t, typ, result.Items[0].Type)
		})

		t.Run("RejectsUnknownTypeFilter", func(t *testing.T) {
			typ := "bogus"
			_, err := env.ledgerFlow.GetTransactionHistory(ctx, &dto.GetTransactionHistoryRequest{
				UserID:   user.ID,
				Page:     1,
				PageSize: 10,
				Type:     &typ,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidTransactionType(err))
		})

		return nil
	})
	require.NoError(t, err)
}
