package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/gateway"
	"github.com/magami/pmai/internal/prompt"
	"github.com/magami/pmai/internal/quota"
	"github.com/magami/pmai/internal/safety"
)

func newTestChatService(exchanges *fakeExchangeRepo, completer gateway.Completer, checker safety.Checker, quotas *quota.Store) *ChatService {
	return NewChatService(exchanges, prompt.NewBuilder(), completer, checker, quotas, ChatConfig{
		Options: gateway.Options{Model: "test-model"},
		Timeout: time.Second,
	}, testLogger())
}

func TestChatService_Submit(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "Savings means putting money aside regularly."}
	svc := newTestChatService(exchanges, completer, nil, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "edu",
		Language:  "en",
		Text:      "What is savings?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Savings means putting money aside regularly.", ex.Output)
	assert.Equal(t, "What is savings?", ex.Input)
	require.NotNil(t, ex.AccountID)
	assert.Equal(t, "acct-1", *ex.AccountID)

	// the prompt sent to the gateway must carry the user's text verbatim
	assert.Contains(t, completer.lastPrompt, "What is savings?")

	require.Len(t, exchanges.exchanges, 1)
	assert.Equal(t, ex.Output, exchanges.exchanges[0].Output)
}

func TestChatService_Submit_EmptyText(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "should not be called"}
	svc := newTestChatService(exchanges, completer, nil, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{Mode: "chatbox", Language: "en", Text: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Zero(t, completer.calls)
	assert.Empty(t, exchanges.exchanges)
}

func TestChatService_Submit_GatewayFailureUsesFallback(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{err: gateway.Transient("connection refused")}
	svc := newTestChatService(exchanges, completer, nil, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "chatbox",
		Language:  "pidgin",
		Text:      "how far?",
	})
	require.NoError(t, err, "a gateway failure must not surface to the caller")

	assert.NotEmpty(t, ex.Output, "fallback reply must never be empty")
	assert.Contains(t, defaultFallbacks, ex.Output)

	// the fallback exchange is still recorded, never with an empty output
	require.Len(t, exchanges.exchanges, 1)
	assert.NotEmpty(t, exchanges.exchanges[0].Output)
}

func TestChatService_Submit_DegenerateReplyUsesFallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"empty", ""},
		{"too short", "ok"},
		{"whitespace only", "    \n  "},
		{"error marker", "Internal Error: upstream returned 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exchanges := newFakeExchangeRepo()
			completer := &fakeCompleter{reply: tt.reply}
			svc := newTestChatService(exchanges, completer, nil, nil)

			ex, err := svc.Submit(context.Background(), SubmitInput{
				AccountID: "acct-1",
				Mode:      "advice",
				Language:  "en",
				Text:      "I need some advice",
			})
			require.NoError(t, err)
			assert.Contains(t, defaultFallbacks, ex.Output)
		})
	}
}

func TestChatService_Submit_ScamModeWarning(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "This message shows classic advance-fee fraud signs."}
	checker := &fakeChecker{result: safety.Result{Unsafe: true, Reason: "known phishing domain"}}
	svc := newTestChatService(exchanges, completer, checker, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "scam",
		Language:  "en",
		Text:      "Is http://free-money.example legit?",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, checker.calls)
	assert.True(t, strings.HasPrefix(ex.Output, warningMarker), "flagged submission must lead with the warning")
	assert.Contains(t, ex.Output, "known phishing domain")
	assert.Contains(t, ex.Output, "advance-fee fraud", "the model reply must still follow the warning")
}

func TestChatService_Submit_CheckerOnlyRunsInScamMode(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "Here is a study plan for your exam."}
	checker := &fakeChecker{result: safety.Result{Unsafe: true, Reason: "irrelevant"}}
	svc := newTestChatService(exchanges, completer, checker, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "exam",
		Language:  "en",
		Text:      "Help me prepare for JAMB",
	})
	require.NoError(t, err)
	assert.Zero(t, checker.calls)
	assert.False(t, strings.Contains(ex.Output, warningMarker))
}

func TestChatService_Submit_CheckerFailureFailsOpen(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "That message looks suspicious to me."}
	checker := &fakeChecker{err: errors.New("checker unreachable")}
	svc := newTestChatService(exchanges, completer, checker, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "scam",
		Language:  "en",
		Text:      "Check this message for me",
	})
	require.NoError(t, err, "checker failure must not block the chat")
	assert.Equal(t, "That message looks suspicious to me.", ex.Output)
}

func TestChatService_Submit_AnonymousQuota(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "A reply long enough to pass."}
	quotas := quota.NewStore(2, time.Minute)
	defer quotas.Stop()
	svc := newTestChatService(exchanges, completer, nil, quotas)

	in := SubmitInput{GuestID: "guest-1", Mode: "chatbox", Language: "en", Text: "hello there"}

	for range 2 {
		_, err := svc.Submit(context.Background(), in)
		require.NoError(t, err)
	}

	// third message from the same guest is over the allowance
	_, err := svc.Submit(context.Background(), in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	// a different guest still has theirs
	other := in
	other.GuestID = "guest-2"
	_, err = svc.Submit(context.Background(), other)
	require.NoError(t, err)
}

func TestChatService_Submit_QuotaIgnoredForAccounts(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "A reply long enough to pass."}
	quotas := quota.NewStore(1, time.Minute)
	defer quotas.Stop()
	svc := newTestChatService(exchanges, completer, nil, quotas)

	in := SubmitInput{AccountID: "acct-1", GuestID: "guest-1", Mode: "chatbox", Language: "en", Text: "hello there"}
	for range 5 {
		_, err := svc.Submit(context.Background(), in)
		require.NoError(t, err)
	}
}

func TestChatService_Submit_RecordFailureKeepsReply(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	exchanges.createErr = errors.New("disk full")
	completer := &fakeCompleter{reply: "A perfectly good reply that must survive."}
	svc := newTestChatService(exchanges, completer, nil, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "chatbox",
		Language:  "en",
		Text:      "hello there",
	})
	require.NoError(t, err, "a logging failure must not cost the user the reply")
	assert.Equal(t, "A perfectly good reply that must survive.", ex.Output)
}

func TestChatService_Submit_NormalizesUnknownTags(t *testing.T) {
	exchanges := newFakeExchangeRepo()
	completer := &fakeCompleter{reply: "A reply long enough to pass."}
	svc := newTestChatService(exchanges, completer, nil, nil)

	ex, err := svc.Submit(context.Background(), SubmitInput{
		AccountID: "acct-1",
		Mode:      "astrology",
		Language:  "fr",
		Text:      "what's my sign",
	})
	require.NoError(t, err)

	// the recorded tags come from the closed sets, not from the caller, so
	// per-mode counts can never accumulate arbitrary tags
	assert.Equal(t, string(prompt.ModeGeneral), ex.Mode)
	assert.Equal(t, string(prompt.LangEnglish), ex.Language)

	counts, err := exchanges.CountByMode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"general": 1}, counts)
	assert.NotContains(t, counts, "astrology")
}

func TestChatService_Submit_ConcurrentSubmissions(t *testing.T) {
	// One ChatService serves every request. Chatbox mode plus a failing
	// gateway exercises both randomized picks (flourish and fallback) from
	// many goroutines at once; run with -race to catch regressions.
	exchanges := newFakeExchangeRepo()
	svc := newTestChatService(exchanges, failingCompleter{}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				ex, err := svc.Submit(context.Background(), SubmitInput{
					AccountID: "acct-1",
					Mode:      "chatbox",
					Language:  "pidgin",
					Text:      "how far?",
				})
				if err != nil {
					t.Errorf("Submit() error under concurrency: %v", err)
					return
				}
				if ex.Output == "" {
					t.Error("Submit() returned an empty reply under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()

	count, err := exchanges.CountExchanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16*20, count)
}

func TestChatService_History_RequiresAccount(t *testing.T) {
	svc := newTestChatService(newFakeExchangeRepo(), &fakeCompleter{}, nil, nil)

	_, err := svc.History(context.Background(), "", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}
