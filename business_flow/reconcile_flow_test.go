package businessflow_test

import (
	"context"
	"testing"

	"github.com/novapay/recharge-ledger/app/dto"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
	"github.com/novapay/recharge-ledger/models"
	testingutil "github.com/novapay/recharge-ledger/testing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createRecharge(t *testing.T, env *flowEnv, userID, operatorID uint, amount int64) string {
	t.Helper()
	result, err := env.ledgerFlow.CreateTransaction(context.Background(), &dto.CreateTransactionRequest{
		UserID:     userID,
		Type:       string(models.TransactionTypeRecharge),
		Amount:     decimal.NewFromInt(amount),
		OperatorID: &operatorID,
	}, testMetadata())
	require.NoError(t, err)
	return result.Transaction.TransactionID
}

func TestReconcileRecharge(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		operator, err := fixtures.CreateTestOperator("Jio", decimal.NewFromInt(10))
		require.NoError(t, err)

		t.Run("SuccessGrantsCashback", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-success", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			result, err := env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.TransactionStatusSuccess), result.Transaction.Status)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			// 100 - 50 hold + 5 cashback
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(55)),
				"expected 55.00, got %s", reloaded.WalletBalance)
			assert.True(t, reloaded.Commission.Equal(decimal.NewFromInt(5)))

			cashback, err := fixtures.ReloadTransaction(txid + "-CB")
			require.NoError(t, err)
			assert.True(t, cashback.Amount.Equal(decimal.NewFromInt(5)))
		})

		t.Run("SuccessIsIdempotentOnCashback", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-idem", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			// Same target again: no change, no second cashback
			result, err := env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, "Status unchanged", result.Message)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(55)))
			assert.True(t, reloaded.Commission.Equal(decimal.NewFromInt(5)))
		})

		t.Run("FailureWithRefundReleasesHoldAndReversesCashback", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-refund", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			// Back to 100: the hold returns and the 5 cashback is clawed out of the wallet
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(100)),
				"hold returned and cashback debited, got %s", reloaded.WalletBalance)
			assert.True(t, reloaded.Commission.IsZero())

			transaction, err := fixtures.ReloadTransaction(txid)
			require.NoError(t, err)
			assert.Equal(t, models.TransactionStatusFailed, transaction.Status)
			assert.NotNil(t, transaction.RefundedAt)
		})

		t.Run("DuplicateRefundRejected", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-double-refund", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAlreadyRefunded(err))

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(100)),
				"second refund must not move money, got %s", reloaded.WalletBalance)
		})

		t.Run("FailedToSuccessReDebitsAfterRefund", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-roundtrip", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			for _, step := range []dto.UpdateTransactionStatusRequest{
				{Status: string(models.TransactionStatusSuccess)},
				{Status: string(models.TransactionStatusFailed), NeedsRefund: true},
				{Status: string(models.TransactionStatusSuccess)},
			} {
				step := step
				_, err := env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &step, testMetadata())
				require.NoError(t, err)
			}

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			// Net effect of landing on success once: -50 +5, like the plain success case
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(55)),
				"expected 55.00 after round trip, got %s", reloaded.WalletBalance)
			assert.True(t, reloaded.Commission.Equal(decimal.NewFromInt(5)))

			transaction, err := fixtures.ReloadTransaction(txid)
			require.NoError(t, err)
			assert.Equal(t, models.TransactionStatusSuccess, transaction.Status)
			assert.Nil(t, transaction.RefundedAt, "re-debit clears the refund marker")
		})

		t.Run("ReDebitSkippedWhenWalletDrained", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-drained", decimal.NewFromInt(50))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			// Drain the refunded balance before the provider flips its answer
			_, err = env.userRepo.DebitBalance(ctx, user.ID, decimal.NewFromInt(45))
			require.NoError(t, err)

			result, err := env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err, "status still converges even when the hold cannot be retaken")
			assert.Equal(t, string(models.TransactionStatusSuccess), result.Transaction.Status)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			// 5 left untouched, plus the granted cashback of 5
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(10)),
				"expected 10.00, got %s", reloaded.WalletBalance)

			transaction, err := fixtures.ReloadTransaction(txid)
			require.NoError(t, err)
			assert.NotNil(t, transaction.RefundedAt, "skipped re-debit keeps the refund marker")
		})

		t.Run("RefundAfterSkippedReDebitReversesCashbackOnly", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-drained-refund", decimal.NewFromInt(50))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.userRepo.DebitBalance(ctx, user.ID, decimal.NewFromInt(45))
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			// Hold refund was already applied and the re-debit was skipped,
			// but the cashback granted on success still has to come back out.
			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err, "cashback reversal must not be blocked by the earlier refund")

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			// 10 after the skipped re-debit, minus the 5 cashback; the hold
			// that was never retaken is not credited a second time
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(5)),
				"expected 5.00, got %s", reloaded.WalletBalance)
			assert.True(t, reloaded.Commission.IsZero())

			transaction, err := fixtures.ReloadTransaction(txid)
			require.NoError(t, err)
			assert.Equal(t, models.TransactionStatusFailed, transaction.Status)
			assert.NotNil(t, transaction.RefundedAt)

			// With the cashback settled, another refund is a duplicate
			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAlreadyRefunded(err))
		})

		t.Run("PendingResetTouchesNoBalances", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-reset", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusPending),
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(55)),
				"pending reset is status-only, got %s", reloaded.WalletBalance)

			transaction, err := fixtures.ReloadTransaction(txid)
			require.NoError(t, err)
			assert.Equal(t, models.TransactionStatusPending, transaction.Status)
		})

		t.Run("UnknownTransactionRejected", func(t *testing.T) {
			_, err := env.reconcileFlow.UpdateTransactionStatus(ctx, "TXN-MISSING", &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsTransactionNotFound(err))
		})

		t.Run("CashbackRowNotDirectlyReconcilable", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("rc-child", decimal.NewFromInt(100))
			require.NoError(t, err)
			txid := createRecharge(t, env, user.ID, operator.ID, 50)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid+"-CB", &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusFailed),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidTransactionType(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestReconcileTransfer(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		t.Run("SuccessPaysRecipient", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("tf-sender", decimal.NewFromInt(100))
			require.NoError(t, err)
			recipient, err := fixtures.CreateTestUser("tf-recipient", decimal.Zero)
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Amount:       decimal.NewFromInt(20),
				RecipientIDs: []uint{recipient.ID},
			}, testMetadata())
			require.NoError(t, err)
			txid := result.Transaction.TransactionID

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			paid, err := fixtures.ReloadUser(recipient.ID)
			require.NoError(t, err)
			assert.True(t, paid.WalletBalance.Equal(decimal.NewFromInt(20)))
		})

		t.Run("RefundRecreditsSenderOnly", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("tf-refund-sender", decimal.NewFromInt(100))
			require.NoError(t, err)
			recipient, err := fixtures.CreateTestUser("tf-refund-recipient", decimal.Zero)
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Status:       string(models.TransactionStatusSuccess),
				Amount:       decimal.NewFromInt(20),
				RecipientIDs: []uint{recipient.ID},
			}, testMetadata())
			require.NoError(t, err)
			txid := result.Transaction.TransactionID

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			reloadedSender, err := fixtures.ReloadUser(sender.ID)
			require.NoError(t, err)
			assert.True(t, reloadedSender.WalletBalance.Equal(decimal.NewFromInt(100)))

			reloadedRecipient, err := fixtures.ReloadUser(recipient.ID)
			require.NoError(t, err)
			assert.True(t, reloadedRecipient.WalletBalance.Equal(decimal.NewFromInt(20)),
				"refund never claws back from the recipient")
		})

		t.Run("RefundedLegDoesNotPayRecipientTwice", func(t *testing.T) {
			sender, err := fixtures.CreateTestUser("tf-twice-sender", decimal.NewFromInt(100))
			require.NoError(t, err)
			recipient, err := fixtures.CreateTestUser("tf-twice-recipient", decimal.Zero)
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID:       sender.ID,
				Type:         string(models.TransactionTypeTransfer),
				Status:       string(models.TransactionStatusSuccess),
				Amount:       decimal.NewFromInt(20),
				RecipientIDs: []uint{recipient.ID},
			}, testMetadata())
			require.NoError(t, err)
			txid := result.Transaction.TransactionID

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			reloadedRecipient, err := fixtures.ReloadUser(recipient.ID)
			require.NoError(t, err)
			assert.True(t, reloadedRecipient.WalletBalance.Equal(decimal.NewFromInt(20)),
				"recipient paid exactly once, got %s", reloadedRecipient.WalletBalance)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestReconcileCreditAndDebitTypes(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		env := newFlowEnv(testDB)
		ctx := context.Background()

		t.Run("AddFundCreditsOnSuccessAndDebitsOnRefund", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("af-cycle", decimal.NewFromInt(10))
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Amount: decimal.NewFromInt(40),
			}, testMetadata())
			require.NoError(t, err)
			txid := result.Transaction.TransactionID

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(50)))

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err = fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(10)))
		})

		t.Run("PendingAddFundRefundMovesNothing", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("af-pending", decimal.NewFromInt(10))
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeAddFund),
				Amount: decimal.NewFromInt(40),
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, result.Transaction.TransactionID, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(10)),
				"nothing was credited while pending, nothing to refund")
		})

		t.Run("DebitTypeDebitsOnSuccess", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("debit-cycle", decimal.NewFromInt(50))
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeDebit),
				Amount: decimal.NewFromInt(30),
			}, testMetadata())
			require.NoError(t, err)
			txid := result.Transaction.TransactionID

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(20)))

			// Refunding the failed debit puts the money back
			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, txid, &dto.UpdateTransactionStatusRequest{
				Status:      string(models.TransactionStatusFailed),
				NeedsRefund: true,
			}, testMetadata())
			require.NoError(t, err)

			reloaded, err = fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(50)))
		})

		t.Run("DebitTypeInsufficientBalanceFailsHard", func(t *testing.T) {
			user, err := fixtures.CreateTestUser("debit-broke", decimal.NewFromInt(5))
			require.NoError(t, err)

			result, err := env.ledgerFlow.CreateTransaction(ctx, &dto.CreateTransactionRequest{
				UserID: user.ID,
				Type:   string(models.TransactionTypeDebit),
				Amount: decimal.NewFromInt(30),
			}, testMetadata())
			require.NoError(t, err)

			_, err = env.reconcileFlow.UpdateTransactionStatus(ctx, result.Transaction.TransactionID, &dto.UpdateTransactionStatusRequest{
				Status: string(models.TransactionStatusSuccess),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInsufficientBalance(err))

			reloaded, err := fixtures.ReloadUser(user.ID)
			require.NoError(t, err)
			assert.True(t, reloaded.WalletBalance.Equal(decimal.NewFromInt(5)))
		})

		return nil
	})
	require.NoError(t, err)
}
