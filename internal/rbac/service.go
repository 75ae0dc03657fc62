package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// GrantObserver is notified after a role's grants change.
type GrantObserver interface {
	GrantsChanged(ctx context.Context, roleID int64) error
}

// Service orchestrates grant administration.
type Service struct {
	repo     Repository
	cache    *Cache
	observer GrantObserver
	logger   *slog.Logger
}

// NewService constructs a Service. cache and observer may be nil.
func NewService(repo Repository, cache *Cache, observer GrantObserver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, observer: observer, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListResources returns the full menu tree including inactive entries.
func (s *Service) ListResources(ctx context.Context) ([]MenuNode, error) {
	return s.repo.ListResources(ctx)
}

// ListGrants returns the grants held by a role.
func (s *Service) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	if roleID <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.GrantsForRoles(ctx, []int64{roleID})
}

// Grant links roleID to res. Granting an existing edge is a no-op.
func (s *Service) Grant(ctx context.Context, roleID int64, res Resource) error {
	if !Valid(res) {
		return ErrInvalidResource
	}
	if roleID <= 0 {
		return ErrNotFound
	}
	if err := s.repo.InsertGrant(ctx, Grant{RoleID: roleID, Resource: res}); err != nil {
		return fmt.Errorf("rbac: grant %s to role %d: %w", res, roleID, err)
	}
	s.changed(ctx, roleID)
	return nil
}

// Revoke hard-deletes the edge between roleID and res.
func (s *Service) Revoke(ctx context.Context, roleID int64, res Resource) error {
	if !Valid(res) {
		return ErrInvalidResource
	}
	removed, err := s.repo.DeleteGrant(ctx, Grant{RoleID: roleID, Resource: res})
	if err != nil {
		return fmt.Errorf("rbac: revoke %s from role %d: %w", res, roleID, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	s.changed(ctx, roleID)
	return nil
}

func (s *Service) changed(ctx context.Context, roleID int64) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Error("rbac cache bump", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
	if s.observer == nil {
		return
	}
	if err := s.observer.GrantsChanged(ctx, roleID); err != nil {
		s.logger.Warn("rbac notify grant change", slog.Int64("role_id", roleID), slog.Any("error", err))
	}
}
