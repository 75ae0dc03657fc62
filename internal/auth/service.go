package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// Issuer signs session tokens.
type Issuer interface {
	Issue(principalID int64, role string) (string, time.Time, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	issuer Issuer
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer Issuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, issuer: issuer, logger: logger}
}

// Authenticate validates email/password credentials. Unknown, inactive and
// wrong-password attempts all yield shared.ErrInvalidCredentials; store
// failures wrap shared.ErrStoreFailure.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", shared.ErrStoreFailure, err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password, ip, ua string) (*Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	signed, expiresAt, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	event := LoginEvent{ID: uuid.NewString(), UserID: user.ID, ExpiresAt: expiresAt, IP: ip, UserAgent: ua}
	if err := s.repo.RecordLogin(ctx, event); err != nil {
		s.logger.Warn("record login", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	return &Session{Token: signed, ExpiresAt: expiresAt, User: *user}, nil
}
