package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/db"
)

// Repository defines the role and grant store contract.
type Repository interface {
	// RoleIDs returns the active primary role and secondary role assignments of a principal.
	RoleIDs(ctx context.Context, principalID int64) ([]int64, error)
	// GrantedRoles returns the subset of roleIDs granted res, restricted to active resources.
	GrantedRoles(ctx context.Context, res Resource, roleIDs []int64) ([]int64, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListResources(ctx context.Context) ([]MenuNode, error)
	GrantsForRoles(ctx context.Context, roleIDs []int64) ([]Grant, error)
	PrincipalsWithRole(ctx context.Context, roleID int64) ([]int64, error)
	InsertGrant(ctx context.Context, g Grant) error
	DeleteGrant(ctx context.Context, g Grant) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleIDsSQL = `
SELECT u.role_id FROM users u JOIN roles r ON r.id = u.role_id AND r.is_active WHERE u.id = $1
UNION
SELECT ur.role_id FROM user_roles ur JOIN roles r ON r.id = ur.role_id AND r.is_active WHERE ur.user_id = $1`

// RoleIDs returns the union of primary and secondary roles.
func (r *PGRepository) RoleIDs(ctx context.Context, principalID int64) ([]int64, error) {
	return r.collectIDs(ctx, roleIDsSQL, principalID)
}

const grantedMenuRolesSQL = `
SELECT DISTINCT rm.role_id
FROM role_menus rm
JOIN menus m ON m.id = rm.menu_id
WHERE rm.menu_id = $1 AND m.is_active AND rm.role_id = ANY($2)`

const grantedSubmenuRolesSQL = `
SELECT DISTINCT rs.role_id
FROM role_submenus rs
JOIN submenus s ON s.id = rs.submenu_id
JOIN menus m ON m.id = s.menu_id
WHERE rs.submenu_id = $1 AND s.is_active AND m.is_active AND rs.role_id = ANY($2)`

// GrantedRoles intersects the grant relation of res with roleIDs.
func (r *PGRepository) GrantedRoles(ctx context.Context, res Resource, roleIDs []int64) ([]int64, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	switch res.Kind() {
	case KindMenu:
		return r.collectIDs(ctx, grantedMenuRolesSQL, res.ID(), roleIDs)
	case KindSubmenu:
		return r.collectIDs(ctx, grantedSubmenuRolesSQL, res.ID(), roleIDs)
	default:
		return nil, ErrMisconfiguredRoute
	}
}

// ListRoles returns all roles ordered by label.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, label, is_active FROM roles ORDER BY label, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Label, &role.Active); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// ListResources returns every menu with its submenus, active or not.
func (r *PGRepository) ListResources(ctx context.Context) ([]MenuNode, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, label, icon, url, sort_order, is_active FROM menus ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	var menus []MenuNode
	index := make(map[int64]int)
	for rows.Next() {
		var m MenuNode
		if err := rows.Scan(&m.ID, &m.Label, &m.Icon, &m.URL, &m.SortOrder, &m.Active); err != nil {
			rows.Close()
			return nil, err
		}
		m.Submenus = []SubmenuNode{}
		index[m.ID] = len(menus)
		menus = append(menus, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT id, menu_id, label, icon, url, sort_order, is_active FROM submenus ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s SubmenuNode
		if err := rows.Scan(&s.ID, &s.MenuID, &s.Label, &s.Icon, &s.URL, &s.SortOrder, &s.Active); err != nil {
			return nil, err
		}
		if i, ok := index[s.MenuID]; ok {
			menus[i].Submenus = append(menus[i].Submenus, s)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return menus, nil
}

const grantsForRolesSQL = `
SELECT role_id, 'menu', menu_id FROM role_menus WHERE role_id = ANY($1)
UNION ALL
SELECT role_id, 'submenu', submenu_id FROM role_submenus WHERE role_id = ANY($1)`

// GrantsForRoles lists every grant edge held by roleIDs.
func (r *PGRepository) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]Grant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, grantsForRolesSQL, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var (
			roleID int64
			kind   string
			id     int64
		)
		if err := rows.Scan(&roleID, &kind, &id); err != nil {
			return nil, err
		}
		res, err := ParseResource(kind, id)
		if err != nil {
			return nil, err
		}
		grants = append(grants, Grant{RoleID: roleID, Resource: res})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(grants, func(i, j int) bool {
		if grants[i].RoleID != grants[j].RoleID {
			return grants[i].RoleID < grants[j].RoleID
		}
		return grants[i].Resource.String() < grants[j].Resource.String()
	})
	return grants, nil
}

const principalsWithRoleSQL = `
SELECT u.id FROM users u WHERE u.role_id = $1 AND u.is_active
UNION
SELECT ur.user_id FROM user_roles ur JOIN users u ON u.id = ur.user_id AND u.is_active WHERE ur.role_id = $1`

// PrincipalsWithRole lists active principals holding roleID as primary or secondary role.
func (r *PGRepository) PrincipalsWithRole(ctx context.Context, roleID int64) ([]int64, error) {
	return r.collectIDs(ctx, principalsWithRoleSQL, roleID)
}

// InsertGrant creates the edge when absent. Unknown roles or resources yield ErrNotFound.
func (r *PGRepository) InsertGrant(ctx context.Context, g Grant) error {
	table, column, err := grantTable(g.Resource)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, g.RoleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: role %d", ErrNotFound, g.RoleID)
		}
		query := fmt.Sprintf(`INSERT INTO %s (role_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, table, column)
		if _, err := tx.Exec(ctx, query, g.RoleID, g.Resource.ID()); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return fmt.Errorf("%w: %s", ErrNotFound, g.Resource)
			}
			return err
		}
		return nil
	})
}

// DeleteGrant hard-deletes the edge and reports how many rows went away.
func (r *PGRepository) DeleteGrant(ctx context.Context, g Grant) (int64, error) {
	table, column, err := grantTable(g.Resource)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE role_id = $1 AND %s = $2`, table, column)
	tag, err := r.pool.Exec(ctx, query, g.RoleID, g.Resource.ID())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) collectIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func grantTable(res Resource) (string, string, error) {
	if !Valid(res) {
		return "", "", ErrInvalidResource
	}
	switch res.Kind() {
	case KindMenu:
		return "role_menus", "menu_id", nil
	case KindSubmenu:
		return "role_submenus", "submenu_id", nil
	default:
		return "", "", ErrInvalidResource
	}
}

var _ Repository = (*PGRepository)(nil)
