package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/model"
)

// CreateAccount inserts a new account.
//
// DUPLICATE DETECTION:
// We do NOT pre-check for an existing email — that would be a race (two
// concurrent registrations could both pass the check). Instead we insert
// unconditionally and let the UNIQUE constraint on email decide. SQLite
// serializes the writes, so exactly one of two simultaneous registrations
// succeeds; the loser's constraint error is translated to DuplicateEmail.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	account.ID = xid.New().String()
	account.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, name, email, password_hash, is_admin, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.IsAdmin,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateEmail(account.Email)
		}
		return fmt.Errorf("sqlite: creating account: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint error.
// modernc.org/sqlite does not export a typed error for this, so we match the
// canonical message ("UNIQUE constraint failed: accounts.email").
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetAccountByEmail retrieves an account by its (unique) email.
// Returns apperror.ErrNotFound if no account exists with that email.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at
		 FROM accounts WHERE email = ?`,
		email,
	).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.IsAdmin,
		&a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}

	return &a, nil
}

// GetAccountByID retrieves an account by its internal ID.
func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, is_admin, created_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.IsAdmin,
		&a.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("account", id)
		}
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}

	return &a, nil
}

// CountAccounts returns the total number of registered accounts.
func (db *DB) CountAccounts(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting accounts: %w", err)
	}
	return count, nil
}

// DeleteAccount removes an account. The ON DELETE CASCADE on exchanges
// removes the account's history in the same transaction.
func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting account %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("account", id)
	}

	return nil
}
