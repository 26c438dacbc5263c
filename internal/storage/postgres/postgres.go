package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"identity_service/internal/config"
	"identity_service/internal/models"
	"identity_service/internal/storage"
	"identity_service/internal/storage/postgres/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

const (
	constraintEmail    = "accounts_email_key"
	constraintUsername = "accounts_username_key"
	constraintMobile   = "accounts_mobile_key"
)

// DefaultCategories are seeded for every new account.
var DefaultCategories = []string{
	"Food", "Rent", "Travel", "Shopping", "Utilities", "Health", "Education", "Entertainment",
}

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresRepo struct {
	db   DB
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(ctx context.Context, cfg config.Postgres) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{db: pool, pool: pool, now: time.Now}, nil
}

// NewWithDB wraps an existing connection, used with pgxmock in tests.
func NewWithDB(db DB) *PostgresRepo {
	return &PostgresRepo{db: db, now: time.Now}
}

// WithClock overrides the timestamp source.
func (r *PostgresRepo) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

// Migrate applies the embedded goose migrations.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	if r.pool == nil {
		return fmt.Errorf("%s: no connection pool", op)
	}

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveAccount(ctx context.Context, acc models.Account) (models.Account, error) {
	const op = "storage.postgres.SaveAccount"

	query := `
		INSERT INTO accounts (id, name, email, username, mobile, password_hash,
			email_verified, mobile_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`

	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}

	now := r.now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		acc.ID,
		acc.Name,
		acc.Email,
		acc.Username,
		acc.Mobile,
		string(acc.PassHash),
		acc.EmailVerified,
		acc.MobileVerified,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueErr(err); conflict != nil {
			return models.Account{}, conflict
		}

		return models.Account{}, fmt.Errorf("%s: failed to save account: %w", op, err)
	}

	return acc, nil
}

func (r *PostgresRepo) UpdateAccount(ctx context.Context, acc models.Account) error {
	const op = "storage.postgres.UpdateAccount"

	query := `
		UPDATE accounts
		SET name = $2, email = $3, username = $4, mobile = $5, password_hash = $6,
			email_verified = $7, mobile_verified = $8, updated_at = $9
		WHERE id = $1;
	`

	tag, err := r.db.Exec(ctx, query,
		acc.ID,
		acc.Name,
		acc.Email,
		acc.Username,
		acc.Mobile,
		string(acc.PassHash),
		acc.EmailVerified,
		acc.MobileVerified,
		r.now().UTC(),
	)
	if err != nil {
		if conflict := uniqueErr(err); conflict != nil {
			return conflict
		}

		return fmt.Errorf("%s: failed to update account: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrAccountNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteAccount(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteAccount"

	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrAccountNotFound
	}

	return nil
}

func (r *PostgresRepo) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	return r.accountBy(ctx, "email", email)
}

func (r *PostgresRepo) AccountByUsername(ctx context.Context, username string) (models.Account, error) {
	return r.accountBy(ctx, "username", username)
}

func (r *PostgresRepo) AccountByMobile(ctx context.Context, mobile string) (models.Account, error) {
	return r.accountBy(ctx, "mobile", mobile)
}

// SeedDefaultCategories inserts the default category set. Existing rows are kept.
func (r *PostgresRepo) SeedDefaultCategories(ctx context.Context, accountID string) error {
	const op = "storage.postgres.SeedDefaultCategories"

	query := `
		INSERT INTO categories (account_id, name)
		SELECT $1, unnest($2::text[])
		ON CONFLICT (account_id, name) DO NOTHING;
	`

	if _, err := r.db.Exec(ctx, query, accountID, DefaultCategories); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Close() {
	r.db.Close()
}

// accountBy looks an account up by one of the unique columns. column is never user input.
func (r *PostgresRepo) accountBy(ctx context.Context, column, value string) (models.Account, error) {
	const op = "storage.postgres.accountBy"

	query := fmt.Sprintf(`
		SELECT id, name, email, username, mobile, password_hash,
			email_verified, mobile_verified, created_at, updated_at
		FROM accounts
		WHERE %s = $1;
	`, column)

	var (
		a      models.Account
		mobile pgtype.Text
	)

	err := r.db.QueryRow(ctx, query, value).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Username,
		&mobile,
		&a.PassHash,
		&a.EmailVerified,
		&a.MobileVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrAccountNotFound
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	if mobile.Valid {
		m := mobile.String
		a.Mobile = &m
	}

	return a, nil
}

// uniqueErr maps a unique violation to the storage error for the offending column.
func uniqueErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}

	switch pgErr.ConstraintName {
	case constraintEmail:
		return storage.ErrEmailExists
	case constraintUsername:
		return storage.ErrUsernameExists
	case constraintMobile:
		return storage.ErrMobileExists
	default:
		return storage.ErrAccountExists
	}
}
