package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/magami/pmai/internal/model"
)

// CreateExchange appends one exchange to the interaction log in a single
// atomic insert. account_id is NULL for anonymous exchanges.
func (db *DB) CreateExchange(ctx context.Context, exchange *model.Exchange) error {
	exchange.ID = xid.New().String()
	exchange.CreatedAt = time.Now()

	var accountID sql.NullString
	if exchange.AccountID != nil {
		accountID = sql.NullString{String: *exchange.AccountID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO exchanges (id, account_id, mode, lang, input, output, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		exchange.ID,
		accountID,
		exchange.Mode,
		exchange.Language,
		exchange.Input,
		exchange.Output,
		exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating exchange: %w", err)
	}

	return nil
}

// History returns the account's exchanges, newest first.
func (db *DB) History(ctx context.Context, accountID string, limit int) ([]model.Exchange, error) {
	limit = clampLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, mode, lang, input, output, created_at
		 FROM exchanges
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		accountID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing history: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows, limit)
}

// CountExchanges returns the total number of logged exchanges.
func (db *DB) CountExchanges(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting exchanges: %w", err)
	}
	return count, nil
}

// CountByMode returns the number of exchanges per mode tag.
func (db *DB) CountByMode(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT mode, COUNT(*) FROM exchanges GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("postgres: counting by mode: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("postgres: scanning mode count: %w", err)
		}
		counts[mode] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating mode counts: %w", err)
	}

	return counts, nil
}

// RecentExchanges returns the newest exchanges across all accounts.
func (db *DB) RecentExchanges(ctx context.Context, limit int) ([]model.Exchange, error) {
	limit = clampLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, mode, lang, input, output, created_at
		 FROM exchanges
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing recent exchanges: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows, limit)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func scanExchanges(rows *sql.Rows, capacity int) ([]model.Exchange, error) {
	exchanges := make([]model.Exchange, 0, capacity)

	for rows.Next() {
		var e model.Exchange
		var accountID sql.NullString
		if err := rows.Scan(
			&e.ID, &accountID, &e.Mode, &e.Language,
			&e.Input, &e.Output, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning exchange row: %w", err)
		}
		if accountID.Valid {
			e.AccountID = &accountID.String
		}
		exchanges = append(exchanges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating exchanges: %w", err)
	}

	return exchanges, nil
}
