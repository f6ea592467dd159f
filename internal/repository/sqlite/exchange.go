package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/magami/pmai/internal/model"
)

// CreateExchange appends one exchange to the interaction log.
//
// The insert is a single statement, so it is atomic: either the whole row is
// visible or none of it is. There is no update path — exchanges are
// immutable once written.
//
// account_id is NULL for anonymous exchanges (AccountID == nil).
func (db *DB) CreateExchange(ctx context.Context, exchange *model.Exchange) error {
	exchange.ID = xid.New().String()
	exchange.CreatedAt = time.Now()

	var accountID sql.NullString
	if exchange.AccountID != nil {
		accountID = sql.NullString{String: *exchange.AccountID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO exchanges (id, account_id, mode, lang, input, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		exchange.ID,
		accountID,
		exchange.Mode,
		exchange.Language,
		exchange.Input,
		exchange.Output,
		exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating exchange: %w", err)
	}

	return nil
}

// History returns the account's exchanges, newest first.
//
// The secondary ORDER BY on id breaks ties between exchanges created within
// the same timestamp granularity — xid values are creation-time sortable.
func (db *DB) History(ctx context.Context, accountID string, limit int) ([]model.Exchange, error) {
	limit = clampLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, mode, lang, input, output, created_at
		 FROM exchanges
		 WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		accountID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing history: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows, limit)
}

// CountExchanges returns the total number of logged exchanges.
func (db *DB) CountExchanges(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting exchanges: %w", err)
	}
	return count, nil
}

// CountByMode returns the number of exchanges per mode tag.
// Modes with no exchanges are absent from the map.
func (db *DB) CountByMode(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT mode, COUNT(*) FROM exchanges GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting by mode: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning mode count: %w", err)
		}
		counts[mode] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating mode counts: %w", err)
	}

	return counts, nil
}

// RecentExchanges returns the newest exchanges across all accounts,
// anonymous ones included.
func (db *DB) RecentExchanges(ctx context.Context, limit int) ([]model.Exchange, error) {
	limit = clampLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, account_id, mode, lang, input, output, created_at
		 FROM exchanges
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent exchanges: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows, limit)
}

// clampLimit applies the default and maximum page sizes.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// scanExchanges reads exchange rows, translating a NULL account_id into a
// nil AccountID pointer.
func scanExchanges(rows *sql.Rows, capacity int) ([]model.Exchange, error) {
	exchanges := make([]model.Exchange, 0, capacity)

	for rows.Next() {
		var e model.Exchange
		var accountID sql.NullString
		if err := rows.Scan(
			&e.ID, &accountID, &e.Mode, &e.Language,
			&e.Input, &e.Output, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning exchange row: %w", err)
		}
		if accountID.Valid {
			e.AccountID = &accountID.String
		}
		exchanges = append(exchanges, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating exchanges: %w", err)
	}

	return exchanges, nil
}
