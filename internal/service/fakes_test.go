package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/gateway"
	"github.com/magami/pmai/internal/model"
	"github.com/magami/pmai/internal/safety"
)

// Hand-written fakes, not a mock framework — you can see exactly what each
// fake does, and simulating failures is just setting a field.

// =========================================================================
// fakeAccountRepo
// =========================================================================

type fakeAccountRepo struct {
	accounts map[string]*model.Account // keyed by internal ID
	byEmail  map[string]*model.Account
	nextID   int
	// set to a non-nil error to simulate a database failure
	createErr error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		accounts: make(map[string]*model.Account),
		byEmail:  make(map[string]*model.Account),
	}
}

func (f *fakeAccountRepo) CreateAccount(_ context.Context, account *model.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	// Mirror the real store: the email UNIQUE constraint is the arbiter.
	if _, exists := f.byEmail[account.Email]; exists {
		return apperror.DuplicateEmail(account.Email)
	}
	f.nextID++
	account.ID = fmt.Sprintf("acct-%d", f.nextID)
	account.CreatedAt = time.Now()
	stored := *account
	f.accounts[account.ID] = &stored
	f.byEmail[account.Email] = &stored
	return nil
}

func (f *fakeAccountRepo) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, apperror.NotFound("account", email)
	}
	result := *a
	return &result, nil
}

func (f *fakeAccountRepo) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	result := *a
	return &result, nil
}

func (f *fakeAccountRepo) CountAccounts(_ context.Context) (int, error) {
	return len(f.accounts), nil
}

func (f *fakeAccountRepo) DeleteAccount(_ context.Context, id string) error {
	a, ok := f.accounts[id]
	if !ok {
		return apperror.NotFound("account", id)
	}
	delete(f.byEmail, a.Email)
	delete(f.accounts, id)
	return nil
}

// =========================================================================
// fakeExchangeRepo
// =========================================================================

type fakeExchangeRepo struct {
	mu        sync.Mutex // the real stores take concurrent writes; so does the fake
	exchanges []model.Exchange
	nextID    int
	createErr error
}

func newFakeExchangeRepo() *fakeExchangeRepo {
	return &fakeExchangeRepo{}
}

func (f *fakeExchangeRepo) CreateExchange(_ context.Context, exchange *model.Exchange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	exchange.ID = fmt.Sprintf("ex-%d", f.nextID)
	exchange.CreatedAt = time.Now()
	f.exchanges = append(f.exchanges, *exchange)
	return nil
}

func (f *fakeExchangeRepo) History(_ context.Context, accountID string, limit int) ([]model.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.Exchange
	for _, e := range f.exchanges {
		if e.AccountID != nil && *e.AccountID == accountID {
			result = append(result, e)
		}
	}
	// newest first
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeExchangeRepo) CountExchanges(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exchanges), nil
}

func (f *fakeExchangeRepo) CountByMode(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range f.exchanges {
		counts[e.Mode]++
	}
	return counts, nil
}

func (f *fakeExchangeRepo) RecentExchanges(_ context.Context, limit int) ([]model.Exchange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := append([]model.Exchange(nil), f.exchanges...)
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// =========================================================================
// fakeCompleter and fakeChecker
// =========================================================================

// fakeCompleter returns a fixed reply or a fixed error.
type fakeCompleter struct {
	reply string
	err   error
	// records the last prompt for assertions
	lastPrompt string
	calls      int
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ gateway.Options) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// failingCompleter always reports the gateway as down. Unlike fakeCompleter
// it keeps no state, so it can be shared across goroutines.
type failingCompleter struct{}

func (failingCompleter) Complete(context.Context, string, gateway.Options) (string, error) {
	return "", gateway.Transient("upstream down")
}

// fakeChecker returns a fixed verdict or a fixed error.
type fakeChecker struct {
	result safety.Result
	err    error
	calls  int
}

func (f *fakeChecker) Check(_ context.Context, _ string) (safety.Result, error) {
	f.calls++
	if f.err != nil {
		return safety.Result{}, f.err
	}
	return f.result, nil
}

// testLogger discards everything below error level.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
