package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/smsinterview/internal/models"
	"github.com/GTDGit/smsinterview/internal/utils"
)

// AdminUserStore loads and stores operators; see repository.AdminUserRepository.
type AdminUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	Create(ctx context.Context, user *models.AdminUser) error
	TouchLastLogin(ctx context.Context, id int) error
}

// TokenTTL is the lifetime of admin tokens.
const TokenTTL = 24 * time.Hour

type AdminAuthService struct {
	adminRepo AdminUserStore
	jwtSecret string
}

func NewAdminAuthService(adminRepo AdminUserStore, jwtSecret string) *AdminAuthService {
	return &AdminAuthService{adminRepo: adminRepo, jwtSecret: jwtSecret}
}

func (s *AdminAuthService) Login(ctx context.Context, email, password string) (string, error) {
	log.Debug().Str("email", email).Msg("Login attempt")

	user, err := s.adminRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Warn().Err(err).Str("email", email).Msg("Failed to get user by email")
		return "", utils.ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Warn().Str("email", email).Msg("Account is inactive")
		return "", utils.ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("Password verification failed")
		return "", utils.ErrInvalidCredentials
	}

	if err := s.adminRepo.TouchLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Int("user_id", user.ID).Msg("Failed to record last login")
	}

	log.Info().Str("email", email).Msg("Login successful")
	return utils.GenerateJWT(s.jwtSecret, user.ID, user.Email, TokenTTL)
}

// CreateAdmin creates or resets an operator account.
func (s *AdminAuthService) CreateAdmin(ctx context.Context, email, password, name string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.AdminUser{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		IsActive:     true,
	}
	return s.adminRepo.Create(ctx, user)
}
