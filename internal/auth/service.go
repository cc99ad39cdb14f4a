package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/user-management/internal"
	"github.com/frahmantamala/user-management/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	GetCredentials(ctx context.Context, username string) (*Credentials, error)
	GetPrincipal(ctx context.Context, userID int64) (*Principal, error)
}

// Service issues and validates tokens and hashes passwords at the HTTP boundary.
type Service struct {
	userRepo       UserRepository
	tokenGenerator TokenGenerator
	bcryptCost     int
	logger         *slog.Logger
}

func NewService(userRepo UserRepository, tokenGen TokenGenerator, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:       userRepo,
		tokenGenerator: tokenGen,
		bcryptCost:     bcryptCost,
		logger:         logger.LoggerWrapper(),
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	creds, err := s.userRepo.GetCredentials(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return AuthTokens{}, invalidCredentials()
		}
		return AuthTokens{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, invalidCredentials()
	}
	if !creds.IsActive {
		return AuthTokens{}, internal.NewUnauthorizedError("user is inactive", internal.ErrCodeUserInactive)
	}

	s.logger.InfoContext(ctx, "user authenticated", "user_id", creds.UserID)
	return s.issue(strconv.FormatInt(creds.UserID, 10), dto.Username)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, tokenError(err)
	}

	// the user may have been deleted or deactivated since the token was issued
	if _, err := s.Principal(ctx, claims); err != nil {
		return AuthTokens{}, err
	}

	return s.issue(claims.UserID, claims.Username)
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, tokenError(err)
	}
	return claims, nil
}

// Principal resolves token claims into the live user they belong to.
func (s *Service) Principal(ctx context.Context, claims *Claims) (*Principal, error) {
	id, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, tokenError(ErrInvalidToken)
	}

	p, err := s.userRepo.GetPrincipal(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserInactive):
			return nil, internal.NewUnauthorizedError("user is inactive", internal.ErrCodeUserInactive)
		case errors.Is(err, ErrInvalidToken):
			return nil, tokenError(err)
		}
		return nil, err
	}
	return p, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) issue(userID, username string) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, username)
	if err != nil {
		return AuthTokens{}, err
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, username)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenGenerator.AccessTTL().Seconds()),
	}, nil
}

func invalidCredentials() *internal.AppError {
	return internal.NewUnauthorizedError("invalid credentials", internal.ErrCodeInvalidCredentials)
}

func tokenError(err error) *internal.AppError {
	if errors.Is(err, ErrTokenExpired) {
		return internal.NewUnauthorizedError("token expired", internal.ErrCodeTokenExpired)
	}
	return internal.NewUnauthorizedError("invalid token", internal.ErrCodeInvalidToken)
}

// GenerateRandomToken generates a cryptographically secure random token
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
