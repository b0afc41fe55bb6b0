package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/session-auth/internal/core/domain"
)

const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{pool: pool}
}

// EnsureSchema creates the users table with its unique email constraint.
func (r *PgxUserRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, usersSchema)
	return err
}

// GetByEmail returns the user matching the given email.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByEmail(ctx context.Context, email string) (*domain.UserRow, error) {
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE email = $1`
	return r.queryRow(ctx, query, email)
}

// GetByID returns the user with the given numeric ID.
// Returns (nil, nil) when no user is found or id is not numeric.
func (r *PgxUserRepository) GetByID(ctx context.Context, id string) (*domain.UserRow, error) {
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}
	query := `SELECT id, name, email, password_hash, created_at FROM users WHERE id = $1`
	return r.queryRow(ctx, query, userID)
}

func (r *PgxUserRepository) queryRow(ctx context.Context, query string, arg any) (*domain.UserRow, error) {
	var (
		row domain.UserRow
		id  int64
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&id, &row.Name, &row.Email, &row.PasswordHash, &row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	row.ID = strconv.FormatInt(id, 10)
	return &row, nil
}

// Create inserts a new user and returns the generated user ID.
func (r *PgxUserRepository) Create(ctx context.Context, name, email, passwordHash string) (string, error) {
	query := `INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id`

	var userID int64
	err := r.pool.QueryRow(ctx, query, name, email, passwordHash).Scan(&userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", domain.ErrDuplicateEmail
		}
		return "", err
	}

	return strconv.FormatInt(userID, 10), nil
}
