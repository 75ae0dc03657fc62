package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// DefaultStoreTimeout bounds each role or grant read.
const DefaultStoreTimeout = 5 * time.Second

// Evaluator decides whether a principal's roles grant a resource.
type Evaluator struct {
	repo    Repository
	cache   *Cache
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewEvaluator wires the evaluator. cache may be nil.
func NewEvaluator(repo Repository, cache *Cache, timeout time.Duration, logger *slog.Logger) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{repo: repo, cache: cache, timeout: timeout, logger: logger}
}

// Authorize allows access iff at least one of the principal's roles is granted
// res and res is active. Store failures wrap shared.ErrStoreFailure.
func (e *Evaluator) Authorize(ctx context.Context, principalID int64, res Resource) (Decision, error) {
	if !Valid(res) {
		return Deny, ErrMisconfiguredRoute
	}
	// The version is read once so a decision computed across a Bump is
	// stored under the superseded version.
	cached := e.cache.Enabled()
	ver, err := e.cache.Version(ctx)
	if err != nil {
		e.logger.Warn("rbac cache version", slog.Int64("principal_id", principalID), slog.Any("error", err))
		cached = false
	}
	if cached {
		if d, ok, err := e.cache.Lookup(ctx, ver, principalID, res); err != nil {
			e.logger.Warn("rbac cache lookup", slog.Int64("principal_id", principalID), slog.String("resource", res.String()), slog.Any("error", err))
		} else if ok {
			return d, nil
		}
	}

	// Flights are per version: a caller that saw a Bump never joins an
	// evaluation that started before it.
	key := fmt.Sprintf("%d/%s/v%d", principalID, res, ver)
	// The flight must not inherit one caller's cancellation; evaluate applies
	// its own store timeout and each caller waits on its own ctx.
	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		return e.evaluate(detached, principalID, res)
	})
	var d Decision
	select {
	case <-ctx.Done():
		return Deny, fmt.Errorf("%w: authorize %s: %v", shared.ErrStoreFailure, res, ctx.Err())
	case out := <-ch:
		if out.Err != nil {
			return Deny, out.Err
		}
		d = out.Val.(Decision)
	}

	if cached {
		if err := e.cache.Store(ctx, ver, principalID, res, d); err != nil {
			e.logger.Warn("rbac cache store", slog.Int64("principal_id", principalID), slog.String("resource", res.String()), slog.Any("error", err))
		}
	}
	return d, nil
}

func (e *Evaluator) evaluate(ctx context.Context, principalID int64, res Resource) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	roles, err := e.repo.RoleIDs(ctx, principalID)
	if err != nil {
		return Deny, fmt.Errorf("%w: load roles of %d: %v", shared.ErrStoreFailure, principalID, err)
	}
	if len(roles) == 0 {
		return Deny, nil
	}
	granted, err := e.repo.GrantedRoles(ctx, res, roles)
	if err != nil {
		return Deny, fmt.Errorf("%w: load grants of %s: %v", shared.ErrStoreFailure, res, err)
	}
	if len(granted) == 0 {
		return Deny, nil
	}
	return Allow, nil
}

// VisibleMenus aggregates the active menus and submenus a principal may see.
// A granted submenu makes its parent menu visible.
func (e *Evaluator) VisibleMenus(ctx context.Context, principalID int64) ([]MenuNode, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	roles, err := e.repo.RoleIDs(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("%w: load roles of %d: %v", shared.ErrStoreFailure, principalID, err)
	}
	visible := []MenuNode{}
	if len(roles) == 0 {
		return visible, nil
	}
	grants, err := e.repo.GrantsForRoles(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("%w: load grants: %v", shared.ErrStoreFailure, err)
	}
	menus, err := e.repo.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load menus: %v", shared.ErrStoreFailure, err)
	}

	menuGranted := make(map[int64]struct{})
	submenuGranted := make(map[int64]struct{})
	for _, g := range grants {
		switch g.Resource.Kind() {
		case KindMenu:
			menuGranted[g.Resource.ID()] = struct{}{}
		case KindSubmenu:
			submenuGranted[g.Resource.ID()] = struct{}{}
		}
	}

	for _, m := range menus {
		if !m.Active {
			continue
		}
		node := m
		node.Submenus = []SubmenuNode{}
		for _, s := range m.Submenus {
			if !s.Active {
				continue
			}
			if _, ok := submenuGranted[s.ID]; ok {
				node.Submenus = append(node.Submenus, s)
			}
		}
		_, direct := menuGranted[m.ID]
		if !direct && len(node.Submenus) == 0 {
			continue
		}
		sort.SliceStable(node.Submenus, func(i, j int) bool {
			return lessOrder(node.Submenus[i].SortOrder, node.Submenus[i].ID, node.Submenus[j].SortOrder, node.Submenus[j].ID)
		})
		visible = append(visible, node)
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return lessOrder(visible[i].SortOrder, visible[i].ID, visible[j].SortOrder, visible[j].ID)
	})
	return visible, nil
}

func lessOrder(orderA int, idA int64, orderB int, idB int64) bool {
	if orderA != orderB {
		return orderA < orderB
	}
	return idA < idB
}
