// Package repository defines the storage interfaces the services depend on.
// Two implementations exist: sqlite (the default, embedded) and postgres,
// selected by config at wire-up time.
package repository

import (
	"context"

	"github.com/magami/pmai/internal/model"
)

// AccountRepository is the credential store's persistence boundary.
type AccountRepository interface {
	// CreateAccount persists a new account. Returns a DuplicateEmail
	// conflict if the email is already registered — the UNIQUE constraint
	// in the store serializes concurrent registrations, so exactly one of
	// two simultaneous attempts with the same email succeeds.
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	CountAccounts(ctx context.Context) (int, error)
	// DeleteAccount removes an account; its exchanges cascade away with it.
	DeleteAccount(ctx context.Context, id string) error
}

// ExchangeRepository is the append-only interaction log.
type ExchangeRepository interface {
	// CreateExchange inserts one exchange atomically — a partially written
	// record is never observable.
	CreateExchange(ctx context.Context, exchange *model.Exchange) error
	// History returns the account's exchanges, newest first, up to limit.
	History(ctx context.Context, accountID string, limit int) ([]model.Exchange, error)
	CountExchanges(ctx context.Context) (int, error)
	CountByMode(ctx context.Context) (map[string]int, error)
	// RecentExchanges returns the newest exchanges across all accounts.
	RecentExchanges(ctx context.Context, limit int) ([]model.Exchange, error)
}

// Store bundles both repositories with lifecycle management; the concrete
// sqlite and postgres types implement it.
type Store interface {
	AccountRepository
	ExchangeRepository
	Close() error
}
