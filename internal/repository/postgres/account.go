package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/xid"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/model"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint
// violation. See https://www.postgresql.org/docs/current/errcodes-appendix.html
const uniqueViolation = "23505"

// CreateAccount inserts a new account, letting the UNIQUE constraint on
// email arbitrate concurrent registrations (same contract as the sqlite
// store — no racy pre-check).
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	account.ID = xid.New().String()
	account.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, is_admin, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.IsAdmin,
		account.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperror.DuplicateEmail(account.Email)
		}
		return fmt.Errorf("postgres: creating account: %w", err)
	}

	return nil
}

// GetAccountByEmail retrieves an account by its (unique) email.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at
		 FROM accounts WHERE email = $1`,
		email,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsAdmin, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("postgres: getting account by email: %w", err)
	}

	return &a, nil
}

// GetAccountByID retrieves an account by its internal ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at
		 FROM accounts WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsAdmin, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("postgres: getting account %s: %w", id, err)
	}

	return &a, nil
}

// CountAccounts returns the total number of registered accounts.
func (db *DB) CountAccounts(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting accounts: %w", err)
	}
	return count, nil
}

// DeleteAccount removes an account; its exchanges cascade away with it.
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting account %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("account", id)
	}

	return nil
}
