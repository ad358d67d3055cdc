package businessflow

import (
	"context"
	"fmt"

	"github.com/novapay/recharge-ledger/app/dto"
	"github.com/novapay/recharge-ledger/app/services"
	"github.com/novapay/recharge-ledger/repository"
	"github.com/novapay/recharge-ledger/utils"
	"golang.org/x/crypto/bcrypt"

	"github.com/novapay/recharge-ledger/models"
)

// AdminFlow handles back-office authentication
type AdminFlow interface {
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
}

// AdminFlowImpl implements the admin business flow
type AdminFlowImpl struct {
	adminRepo    repository.AdminRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
}

// NewAdminFlow creates a new admin flow instance
func NewAdminFlow(
	adminRepo repository.AdminRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
) AdminFlow {
	return &AdminFlowImpl{
		adminRepo:    adminRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
	}
}

// Login verifies admin credentials and issues an access token. Failed
// attempts are audited with the same error shape regardless of whether the
// username exists.
func (s *AdminFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	admin, err := s.adminRepo.ByUsername(ctx, req.Username)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to look up admin", err)
	}
	if admin == nil {
		s.auditFailedLogin(ctx, req.Username, metadata)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid username or password", ErrAdminNotFound)
	}
	if !utils.IsTrue(admin.IsActive) {
		s.auditFailedLogin(ctx, req.Username, metadata)
		return nil, NewBusinessError("ADMIN_INACTIVE", "Admin account is inactive", ErrAdminInactive)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		s.auditFailedLogin(ctx, req.Username, metadata)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid username or password", ErrIncorrectPassword)
	}

	accessToken, err := s.tokenService.GenerateAdminToken(admin.ID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate access token", err)
	}

	admin.LastLoginAt = utils.UTCNowPtr()
	if err := s.adminRepo.Update(ctx, admin); err != nil {
		return nil, NewBusinessError("ADMIN_UPDATE_FAILED", "Failed to record login time", err)
	}

	msg := fmt.Sprintf("Admin %s logged in", admin.Username)
	_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionAdminLoginSuccess, msg, true, nil, metadata)

	return &dto.AdminLoginResponse{
		Message:     "Login successful",
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   utils.AccessTokenTTLSeconds,
		Admin: dto.AdminDTO{
			ID:          admin.ID,
			UUID:        admin.UUID.String(),
			Username:    admin.Username,
			LastLoginAt: admin.LastLoginAt,
		},
	}, nil
}

func (s *AdminFlowImpl) auditFailedLogin(ctx context.Context, username string, metadata *ClientMetadata) {
	desc := fmt.Sprintf("Failed login attempt for %s", username)
	_ = createAuditLog(ctx, s.auditRepo, nil, models.AuditActionAdminLoginFailed, desc, false, &desc, metadata)
}
