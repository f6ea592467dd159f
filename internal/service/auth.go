// Package service — the business logic layer, between the HTTP handlers and
// the repositories/external collaborators.
//
//	AuthHandler (HTTP) → AuthService (rules) → AccountRepository (DB)
//	                   ↘ TokenService (JWT) ↘ PasswordService (bcrypt)
//
// The services know nothing about HTTP; the handlers know nothing about SQL
// or bcrypt. Each service is testable with fake dependencies.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/auth"
	"github.com/magami/pmai/internal/model"
	"github.com/magami/pmai/internal/repository"
)

// AuthService handles registration, login, and session validation.
type AuthService struct {
	accounts    repository.AccountRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	policy      auth.Policy
	adminEmails []string
	logger      *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// adminEmails is the configured allow-list; accounts registered with one of
// these emails get the administrator flag.
func NewAuthService(
	accounts repository.AccountRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	policy auth.Policy,
	adminEmails []string,
	logger *slog.Logger,
) *AuthService {
	normalized := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		normalized = append(normalized, normalizeEmail(e))
	}
	return &AuthService{
		accounts:    accounts,
		tokens:      tokens,
		passwords:   passwords,
		policy:      policy,
		adminEmails: normalized,
		logger:      logger,
	}
}

// AuthResult bundles the account and the issued session token so the HTTP
// handler can set the cookie and respond in one step.
type AuthResult struct {
	Account *model.Account
	Token   string
}

// Register creates a new account.
//
// VALIDATION ORDER:
// Local checks first (mismatch, policy) — they are cheap and need no I/O.
// The duplicate-email check is NOT done here at all: the repository's UNIQUE
// constraint is the only arbiter, so two concurrent registrations with the
// same email race safely (exactly one succeeds, the other gets the
// DuplicateEmail conflict).
func (s *AuthService) Register(ctx context.Context, name, email, password, confirm string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email is required")
	}
	if password != confirm {
		return nil, apperror.ValidationFailed("confirm", "passwords do not match")
	}
	if err := s.policy.Validate(password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	account := &model.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      slices.Contains(s.adminEmails, email),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		// DuplicateEmail passes through as-is for the handler to map.
		return nil, err
	}

	s.logger.Info("account registered",
		slog.String("accountID", account.ID),
		slog.String("email", account.Email),
	)

	token, err := s.tokens.Generate(account.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for account %s: %w", account.ID, err)
	}

	return &AuthResult{Account: account, Token: token}, nil
}

// Login authenticates an email/password pair.
//
// UNIFORM FAILURE:
// Unknown email and wrong password both return the same InvalidCredentials
// error — the response must not reveal which check failed. The lookup error
// is deliberately swallowed (logged at debug only) for the same reason.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		s.logger.Debug("login failed: account lookup", slog.String("email", email))
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(account.PasswordHash, password); err != nil {
		s.logger.Debug("login failed: credential mismatch", slog.String("email", email))
		return nil, apperror.InvalidCredentials()
	}

	token, err := s.tokens.Generate(account.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for account %s: %w", account.ID, err)
	}

	s.logger.Info("account logged in", slog.String("accountID", account.ID))

	return &AuthResult{Account: account, Token: token}, nil
}

// GetAccountByID returns the account for the given internal ID. Used by the
// /api/me handler after the middleware validates the session token.
func (s *AuthService) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: account ID must not be empty")
	}
	account, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching account %s: %w", id, err)
	}
	return account, nil
}

// DeleteAccount removes an account and, via the storage cascade, its entire
// exchange history. Only the account itself may request this.
func (s *AuthService) DeleteAccount(ctx context.Context, callerID, accountID string) error {
	if callerID != accountID {
		return apperror.Forbidden("you can only delete your own account")
	}
	if err := s.accounts.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("account deleted", slog.String("accountID", accountID))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
