package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the identity store read used by the resolver.
type Repository interface {
	FindActive(ctx context.Context, id int64) (Principal, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const findActiveSQL = `
SELECT u.id, u.name, u.email, u.role_id, r.label,
       COALESCE(ARRAY(SELECT ur.role_id FROM user_roles ur WHERE ur.user_id = u.id ORDER BY ur.role_id), '{}')
FROM users u
JOIN roles r ON r.id = u.role_id
WHERE u.id = $1 AND u.is_active`

// FindActive fetches an active user with its role label and secondary role assignments.
func (r *PGRepository) FindActive(ctx context.Context, id int64) (Principal, error) {
	var p Principal
	err := r.pool.QueryRow(ctx, findActiveSQL, id).Scan(&p.ID, &p.Name, &p.Email, &p.RoleID, &p.Role, &p.RoleIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrUnknownOrInactivePrincipal
		}
		return Principal{}, err
	}
	return p, nil
}

var _ Repository = (*PGRepository)(nil)
