package service

import (
	"context"
	"fmt"

	"github.com/testme/testme-backend/internal/admin/jwt"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/errors"
	"github.com/testme/testme-backend/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// LoginRequest is the dashboard login body
type LoginRequest struct {
	Password string `json:"password" validate:"required,max=72"`
}

// AuthService checks the admin password and issues tokens
type AuthService struct {
	passwordHash []byte
	tokens       *jwt.Manager
	logger       *logger.Logger
}

// NewAuthService creates an auth service. A configured bcrypt hash wins;
// a plain password is hashed once here so every check goes through bcrypt.
func NewAuthService(cfg *config.AdminConfig, tokens *jwt.Manager, log *logger.Logger) (*AuthService, error) {
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, errors.Configuration("admin.password_hash")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return &AuthService{
		passwordHash: hash,
		tokens:       tokens,
		logger:       log.WithComponent("admin-auth"),
	}, nil
}

// Login verifies the password and returns an access token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*jwt.Token, error) {
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil {
		s.logger.Warn().Msg("admin login failed")
		return nil, errors.InvalidCredentials()
	}

	token, err := s.tokens.GenerateAdminToken()
	if err != nil {
		return nil, fmt.Errorf("failed to issue admin token: %w", err)
	}

	s.logger.Info().Time("expires_at", token.ExpiresAt).Msg("admin logged in")
	return token, nil
}

// Authenticate validates a bearer token and requires the admin role
func (s *AuthService) Authenticate(tokenString string) (*jwt.Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Role != jwt.RoleAdmin {
		return nil, errors.TokenInvalid()
	}
	return claims, nil
}
