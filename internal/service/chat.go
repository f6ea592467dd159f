package service

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/gateway"
	"github.com/magami/pmai/internal/model"
	"github.com/magami/pmai/internal/prompt"
	"github.com/magami/pmai/internal/quota"
	"github.com/magami/pmai/internal/repository"
	"github.com/magami/pmai/internal/safety"
)

// minReplyLength is the shortest gateway reply accepted as meaningful; a
// shorter one is treated the same as a gateway failure.
const minReplyLength = 10

// warningMarker prefixes the reply when the safety checker flags the
// submission. Tests and the UI both key off it.
const warningMarker = "⚠️ WARNING:"

// defaultFallbacks are the canned replies substituted when the gateway
// fails or returns a degenerate result. The end user never sees a raw
// gateway error.
var defaultFallbacks = []string{
	"Sorry o, I no sabi that one well well. Try ask me something wey relate.",
	"Hmm, I no get answer to that matter. Abeg try ask wetin relate.",
	"Omo, dat one pass my hand. Make we yarn about something else.",
	"Wahala dey to understand dat one. Abeg make we focus on the correct topic.",
	"I no fit answer dat one now. Try ask me question make we yarn.",
}

// ChatService orchestrates one chat submission end to end:
// quota → safety check → prompt → gateway (with timeout) → fallback → record.
type ChatService struct {
	exchanges repository.ExchangeRepository
	builder   *prompt.Builder
	completer gateway.Completer
	checker   safety.Checker // nil when scam-check has no external checker
	quotas    *quota.Store   // nil when the free-message quota is disabled
	opts      gateway.Options
	timeout   time.Duration
	fallbacks []string
	logger    *slog.Logger
}

// ChatConfig carries the knobs for NewChatService.
type ChatConfig struct {
	Options   gateway.Options
	Timeout   time.Duration // bound on the gateway call; expiry = transient failure
	Fallbacks []string      // canned replies; defaults used when empty
}

// NewChatService creates a ChatService. checker and quotas may be nil to
// disable the safety check and the anonymous quota respectively.
func NewChatService(
	exchanges repository.ExchangeRepository,
	builder *prompt.Builder,
	completer gateway.Completer,
	checker safety.Checker,
	quotas *quota.Store,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatService {
	fallbacks := cfg.Fallbacks
	if len(fallbacks) == 0 {
		fallbacks = defaultFallbacks
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatService{
		exchanges: exchanges,
		builder:   builder,
		completer: completer,
		checker:   checker,
		quotas:    quotas,
		opts:      cfg.Options,
		timeout:   timeout,
		fallbacks: fallbacks,
		logger:    logger,
	}
}

// SubmitInput is one chat submission. AccountID is empty for anonymous
// callers; GuestID identifies the anonymous visitor for quota purposes.
type SubmitInput struct {
	AccountID string
	GuestID   string
	Mode      string
	Language  string
	Text      string
}

// Submit runs the full chat flow and returns the recorded exchange.
//
// GRACEFUL DEGRADATION IS LOAD-BEARING:
// A gateway failure, timeout, empty reply, too-short reply, or error-marked
// reply never surfaces to the caller — a canned fallback is substituted and
// the exchange is recorded with that fallback, so no exchange ever carries
// an empty output. Only validation/quota failures return errors.
func (s *ChatService) Submit(ctx context.Context, in SubmitInput) (*model.Exchange, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, apperror.ValidationFailed("message", "message must not be empty")
	}

	// Normalize the tags once and use the normalized values everywhere:
	// the prompt, the recorded exchange, and the per-mode counts all see
	// the same closed set, so a caller-supplied tag can never leak into
	// the usage report.
	mode := prompt.NormalizeMode(prompt.Mode(in.Mode))
	lang := prompt.NormalizeLanguage(prompt.Language(in.Language))

	if in.AccountID == "" && s.quotas != nil {
		key := in.GuestID
		if key == "" {
			key = "anonymous"
		}
		if !s.quotas.Allow(key) {
			return nil, apperror.Forbidden("free message limit reached — register to continue chatting")
		}
	}

	// Scam-check mode consults the external safety checker. The checker
	// failing is NOT a request failure: we log and carry on without a
	// verdict (the model still analyses the text itself).
	var warning string
	if mode == prompt.ModeScam && s.checker != nil {
		result, err := s.checker.Check(ctx, text)
		switch {
		case err != nil:
			s.logger.Warn("safety check failed, continuing without verdict",
				slog.String("error", err.Error()))
		case result.Unsafe:
			warning = warningMarker + " this looks unsafe (" + result.Reason + ")"
		}
	}

	p := s.builder.Build(mode, lang, text)

	// The gateway call is the only slow operation in the request; bound it.
	// Hitting the deadline is just another transient gateway failure.
	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.completer.Complete(gctx, p, s.opts)
	if err != nil || degenerate(reply) {
		if err != nil {
			s.logger.Warn("gateway failed, using fallback reply",
				slog.String("mode", string(mode)),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Warn("gateway returned degenerate reply, using fallback",
				slog.String("mode", string(mode)),
				slog.Int("length", len(reply)),
			)
		}
		// package-level rand: lock-protected, fine to share across requests
		reply = s.fallbacks[rand.Intn(len(s.fallbacks))]
	}

	if warning != "" {
		reply = warning + "\n\n" + reply
	}

	exchange := &model.Exchange{
		Mode:     string(mode),
		Language: string(lang),
		Input:    text,
		Output:   reply,
	}
	if in.AccountID != "" {
		exchange.AccountID = &in.AccountID
	}

	// Recording failure must not cost the user their reply: log it and
	// return the exchange anyway. The log stays consistent — either the
	// whole row exists or none of it does.
	if err := s.exchanges.CreateExchange(ctx, exchange); err != nil {
		s.logger.Error("failed to record exchange", slog.String("error", err.Error()))
	}

	return exchange, nil
}

// History returns the account's exchanges, newest first.
func (s *ChatService) History(ctx context.Context, accountID string, limit int) ([]model.Exchange, error) {
	if accountID == "" {
		return nil, apperror.Forbidden("history requires a logged-in account")
	}
	return s.exchanges.History(ctx, accountID, limit)
}

// degenerate reports whether a gateway reply should be replaced by a
// fallback: missing, too short, or itself reporting an error.
func degenerate(reply string) bool {
	trimmed := strings.TrimSpace(reply)
	if len(trimmed) < minReplyLength {
		return true
	}
	return strings.Contains(strings.ToLower(trimmed), "error")
}
