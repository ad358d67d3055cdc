package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/services"
	businessflow "github.com/novapay/recharge-ledger/business_flow"
	"github.com/novapay/recharge-ledger/repository"
	testingutil "github.com/novapay/recharge-ledger/testing"
	"github.com/novapay/recharge-ledger/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := context.Background()

		adminRepo := repository.NewAdminRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		tokenService, err := services.NewTokenService(1*time.Hour, "test-issuer", "test-audience", "test-secret-key-at-least-32-chars!")
		require.NoError(t, err)

		adminFlow := businessflow.NewAdminFlow(adminRepo, auditRepo, tokenService)

		admin, err := fixtures.CreateTestAdmin("ops-admin", "SuperSecret123!")
		require.NoError(t, err)

		t.Run("SuccessfulLogin", func(t *testing.T) {
			result, err := adminFlow.Login(ctx, &dto.AdminLoginRequest{
				Username: "ops-admin",
				Password: "SuperSecret123!",
			}, testMetadata())
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.NotEmpty(t, result.AccessToken)
			assert.Equal(t, "Bearer", result.TokenType)
			assert.Equal(t, int64(utils.AccessTokenTTLSeconds), result.ExpiresIn)
			assert.Equal(t, admin.Username, result.Admin.Username)

			claims, err := tokenService.ValidateAdminToken(result.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, admin.ID, claims.AdminID)

			// Login stamps last_login_at
			reloaded, err := adminRepo.ByUsername(ctx, "ops-admin")
			require.NoError(t, err)
			require.NotNil(t, reloaded.LastLoginAt)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := adminFlow.Login(ctx, &dto.AdminLoginRequest{
				Username: "ops-admin",
				Password: "nope-nope-nope",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsIncorrectPassword(err))
		})

		t.Run("UnknownUsername", func(t *testing.T) {
			_, err := adminFlow.Login(ctx, &dto.AdminLoginRequest{
				Username: "ghost",
				Password: "whatever-pass",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAdminNotFound(err))
		})

		t.Run("InactiveAdmin", func(t *testing.T) {
			frozen, err := fixtures.CreateTestAdmin("frozen-admin", "SuperSecret123!")
			require.NoError(t, err)
			frozen.IsActive = utils.ToPtr(false)
			require.NoError(t, adminRepo.Update(ctx, frozen))

			_, err = adminFlow.Login(ctx, &dto.AdminLoginRequest{
				Username: "frozen-admin",
				Password: "SuperSecret123!",
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAdminInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}
