package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	RecordLogin(ctx context.Context, event LoginEvent) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const findUserByEmailSQL = `
SELECT u.id, u.email, u.name, u.password_hash, u.is_active, r.label
FROM users u
JOIN roles r ON r.id = u.role_id
WHERE lower(u.email) = lower($1)`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, findUserByEmailSQL, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.IsActive, &user.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

const insertLoginEventSQL = `
INSERT INTO login_events (id, user_id, created_at, expires_at, ip, ua)
VALUES ($1, $2, $3, $4, $5, $6)`

// RecordLogin persists a login audit row.
func (r *PGRepository) RecordLogin(ctx context.Context, event LoginEvent) error {
	_, err := r.pool.Exec(ctx, insertLoginEventSQL,
		event.ID,
		event.UserID,
		pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
		pgtype.Timestamptz{Time: event.ExpiresAt.UTC(), Valid: true},
		pgtype.Text{String: event.IP, Valid: event.IP != ""},
		pgtype.Text{String: event.UserAgent, Valid: event.UserAgent != ""},
	)
	return err
}

var _ Repository = (*PGRepository)(nil)
