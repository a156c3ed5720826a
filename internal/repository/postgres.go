package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelsync/backend/internal/domain"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email          TEXT NOT NULL UNIQUE,
	password_hash  TEXT,
	display_name   TEXT NOT NULL DEFAULT '',
	photo_url      TEXT,
	google_id      TEXT UNIQUE,
	email_verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const accountColumns = `id, email, display_name, photo_url, google_id, email_verified, created_at, updated_at`

// PostgresRepository implements domain.AccountRepository using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// InitSchema creates the accounts table if it does not exist.
func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// CreateAccount inserts an account. A duplicate email or Google id yields
// domain.ErrEmailInUse.
func (r *PostgresRepository) CreateAccount(ctx context.Context, params domain.CreateAccountParams) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (email, password_hash, display_name, photo_url, google_id, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	row := r.db.QueryRow(ctx, query,
		params.Email,
		params.PasswordHash,
		params.DisplayName,
		params.PhotoURL,
		params.GoogleID,
		params.EmailVerified,
	)

	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrEmailInUse
		}
		return nil, err
	}
	return account, nil
}

func (r *PostgresRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (r *PostgresRepository) GetAccountByGoogleID(ctx context.Context, googleID string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE google_id = $1`, googleID)
	return scanAccount(row)
}

// GetAccountWithPassword returns the account and its password hash. The hash
// is empty for accounts that only sign in through Google.
func (r *PostgresRepository) GetAccountWithPassword(ctx context.Context, email string) (*domain.Account, string, error) {
	query := `SELECT ` + accountColumns + `, password_hash FROM accounts WHERE email = $1`
	row := r.db.QueryRow(ctx, query, email)

	var account domain.Account
	var passwordHash *string
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PhotoURL,
		&account.GoogleID,
		&account.EmailVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
		&passwordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.ErrUserNotFound
		}
		return nil, "", err
	}

	hash := ""
	if passwordHash != nil {
		hash = *passwordHash
	}
	return &account, hash, nil
}

// LinkGoogleAccount attaches a Google id to an existing account and marks its
// email verified.
func (r *PostgresRepository) LinkGoogleAccount(ctx context.Context, accountID uuid.UUID, googleID string) (*domain.Account, error) {
	query := `
		UPDATE accounts SET google_id = $2, email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns
	row := r.db.QueryRow(ctx, query, accountID, googleID)
	return scanAccount(row)
}

func (r *PostgresRepository) AccountExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.PhotoURL,
		&account.GoogleID,
		&account.EmailVerified,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &account, nil
}
