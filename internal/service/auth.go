package service

import (
	"fmt"
	"log/slog"

	"github.com/sakif/poetry-studio/internal/apperror"
	"github.com/sakif/poetry-studio/internal/auth"
)

// AuthorSubject is the JWT subject issued to the studio's single author.
const AuthorSubject = "author"

// AuthService checks the author's password and issues session tokens.
//
//	AuthHandler (HTTP) → AuthService → PasswordService (bcrypt)
//	                               ↘ TokenService (JWT)
//
// The password hash comes from configuration; there is no users table.
type AuthService struct {
	passwordHash string
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	logger       *slog.Logger
}

func NewAuthService(
	passwordHash string,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		passwordHash: passwordHash,
		tokens:       tokens,
		passwords:    passwords,
		logger:       logger,
	}
}

// Login verifies password and returns a signed token.
// A wrong password is reported as Forbidden without saying why.
func (s *AuthService) Login(password string) (string, error) {
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	if err := s.passwords.Verify(s.passwordHash, password); err != nil {
		s.logger.Warn("login rejected")
		return "", apperror.Forbidden("invalid credentials")
	}

	token, err := s.tokens.Generate(AuthorSubject)
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing token: %w", err)
	}

	s.logger.Info("author logged in")
	return token, nil
}

// ValidateToken returns the subject of a valid token.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	subject, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return subject, nil
}
