package users

import (
	"context"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// MenuSource aggregates the navigation a principal may use.
type MenuSource interface {
	VisibleMenus(ctx context.Context, principalID int64) ([]rbac.MenuNode, error)
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	menus MenuSource
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, menus MenuSource) *Service {
	return &Service{repo: repo, menus: menus}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Profile returns p together with its visible menus.
func (s *Service) Profile(ctx context.Context, p shared.Principal) (Profile, error) {
	menus, err := s.menus.VisibleMenus(ctx, p.ID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Principal: p, Menus: menus}, nil
}
