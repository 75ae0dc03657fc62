package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// DefaultStoreTimeout bounds a single identity lookup.
const DefaultStoreTimeout = 5 * time.Second

// Service resolves verified token subjects into active principals.
type Service struct {
	repo    Repository
	timeout time.Duration
}

// NewService constructs a Service. A non-positive timeout falls back to DefaultStoreTimeout.
func NewService(repo Repository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Service{repo: repo, timeout: timeout}
}

// Resolve re-reads the principal on every call so a deactivation takes effect
// on the next request regardless of the token's remaining lifetime.
func (s *Service) Resolve(ctx context.Context, id int64) (Principal, error) {
	if id <= 0 {
		return Principal{}, ErrUnknownOrInactivePrincipal
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.repo.FindActive(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUnknownOrInactivePrincipal) {
			return Principal{}, err
		}
		return Principal{}, fmt.Errorf("%w: resolve principal %d: %v", shared.ErrStoreFailure, id, err)
	}
	return p, nil
}
