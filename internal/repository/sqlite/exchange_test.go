package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/magami/pmai/internal/model"
)

func createTestExchange(t *testing.T, db *DB, accountID *string, mode string) *model.Exchange {
	t.Helper()
	exchange := &model.Exchange{
		AccountID: accountID,
		Mode:      mode,
		Language:  "en",
		Input:     "some question",
		Output:    "some reply",
	}
	if err := db.CreateExchange(context.Background(), exchange); err != nil {
		t.Fatalf("failed to create test exchange: %v", err)
	}
	return exchange
}

func TestCreateExchange(t *testing.T) {
	db := newTestDB(t)

	exchange := createTestExchange(t, db, nil, "chatbox")

	if exchange.ID == "" {
		t.Error("CreateExchange() should assign an ID")
	}
	if exchange.CreatedAt.IsZero() {
		t.Error("CreateExchange() should set CreatedAt")
	}
}

func TestCreateExchange_AnonymousHasNullAccount(t *testing.T) {
	db := newTestDB(t)

	created := createTestExchange(t, db, nil, "chatbox")

	recent, err := db.RecentExchanges(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentExchanges() error = %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("RecentExchanges() returned %d rows, want 1", len(recent))
	}
	if recent[0].ID != created.ID {
		t.Errorf("RecentExchanges() ID = %q, want %q", recent[0].ID, created.ID)
	}
	if recent[0].AccountID != nil {
		t.Errorf("anonymous exchange AccountID = %v, want nil", *recent[0].AccountID)
	}
}

func TestHistory_ReturnsJustRecordedExchange(t *testing.T) {
	db := newTestDB(t)

	account := createTestAccount(t, db, "A", "a@x.com")
	created := createTestExchange(t, db, &account.ID, "edu")

	history, err := db.History(context.Background(), account.ID, 1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History() returned %d rows, want 1", len(history))
	}
	got := history[0]
	if got.ID != created.ID {
		t.Errorf("History() ID = %q, want %q", got.ID, created.ID)
	}
	if got.Input != created.Input || got.Output != created.Output {
		t.Error("History() should return the exchange exactly as recorded")
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	account := createTestAccount(t, db, "A", "a@x.com")

	var ids []string
	for i := 0; i < 5; i++ {
		e := &model.Exchange{
			AccountID: &account.ID,
			Mode:      "chatbox",
			Language:  "en",
			Input:     fmt.Sprintf("question %d", i),
			Output:    "reply",
		}
		if err := db.CreateExchange(ctx, e); err != nil {
			t.Fatalf("CreateExchange() error = %v", err)
		}
		ids = append(ids, e.ID)
	}

	history, err := db.History(ctx, account.ID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("History() returned %d rows, want 5", len(history))
	}
	// Newest first — the last created ID comes out first.
	for i, e := range history {
		want := ids[len(ids)-1-i]
		if e.ID != want {
			t.Errorf("History()[%d].ID = %q, want %q", i, e.ID, want)
		}
	}
}

func TestHistory_ExcludesOtherAccounts(t *testing.T) {
	db := newTestDB(t)

	a := createTestAccount(t, db, "A", "a@x.com")
	b := createTestAccount(t, db, "B", "b@x.com")
	createTestExchange(t, db, &a.ID, "chatbox")
	createTestExchange(t, db, &b.ID, "chatbox")
	createTestExchange(t, db, nil, "chatbox")

	history, err := db.History(context.Background(), a.ID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("History() returned %d rows, want only account A's 1", len(history))
	}
}

func TestCountByMode(t *testing.T) {
	db := newTestDB(t)

	createTestExchange(t, db, nil, "chatbox")
	createTestExchange(t, db, nil, "chatbox")
	createTestExchange(t, db, nil, "scam")

	counts, err := db.CountByMode(context.Background())
	if err != nil {
		t.Fatalf("CountByMode() error = %v", err)
	}
	if counts["chatbox"] != 2 {
		t.Errorf("CountByMode()[chatbox] = %d, want 2", counts["chatbox"])
	}
	if counts["scam"] != 1 {
		t.Errorf("CountByMode()[scam] = %d, want 1", counts["scam"])
	}
	if len(counts) != 2 {
		t.Errorf("CountByMode() has %d entries, want 2", len(counts))
	}
}

func TestCountExchanges_Empty(t *testing.T) {
	db := newTestDB(t)

	count, err := db.CountExchanges(context.Background())
	if err != nil {
		t.Fatalf("CountExchanges() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountExchanges() = %d, want 0", count)
	}
}

func TestRecentExchanges_SpansAccounts(t *testing.T) {
	db := newTestDB(t)

	a := createTestAccount(t, db, "A", "a@x.com")
	createTestExchange(t, db, &a.ID, "edu")
	createTestExchange(t, db, nil, "scam")

	recent, err := db.RecentExchanges(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentExchanges() error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("RecentExchanges() returned %d rows, want 2", len(recent))
	}
}
