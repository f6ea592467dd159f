package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/magami/pmai/internal/apperror"
	"github.com/magami/pmai/internal/model"
	"github.com/magami/pmai/internal/repository"
)

// ReportService produces the admin usage dashboard: read-only aggregation
// over the credential store and the interaction log.
//
// ACCESS CONTROL:
// Access is restricted to accounts whose email is on the configured admin
// allow-list. The check runs against the live config list (not the stored
// is_admin flag) so revoking an admin is a config change, not a migration.
type ReportService struct {
	accounts    repository.AccountRepository
	exchanges   repository.ExchangeRepository
	adminEmails []string
	recentLimit int
	logger      *slog.Logger
}

// NewReportService creates a ReportService. recentLimit caps the "most
// recent exchanges" section of the report.
func NewReportService(
	accounts repository.AccountRepository,
	exchanges repository.ExchangeRepository,
	adminEmails []string,
	recentLimit int,
	logger *slog.Logger,
) *ReportService {
	normalized := make([]string, 0, len(adminEmails))
	for _, e := range adminEmails {
		normalized = append(normalized, normalizeEmail(e))
	}
	if recentLimit <= 0 {
		recentLimit = 10
	}
	return &ReportService{
		accounts:    accounts,
		exchanges:   exchanges,
		adminEmails: normalized,
		recentLimit: recentLimit,
		logger:      logger,
	}
}

// UsageReport is the admin dashboard payload.
type UsageReport struct {
	TotalAccounts  int              `json:"totalAccounts"`
	TotalExchanges int              `json:"totalExchanges"`
	ByMode         map[string]int   `json:"byMode"`
	Recent         []model.Exchange `json:"recent"`
}

// Stats builds the usage report for the given caller.
// Returns Forbidden unless the caller's email is on the admin allow-list.
func (s *ReportService) Stats(ctx context.Context, callerID string) (*UsageReport, error) {
	caller, err := s.accounts.GetAccountByID(ctx, callerID)
	if err != nil {
		// An unknown caller gets the same answer as a non-admin one.
		return nil, apperror.Forbidden("admin access required")
	}
	if !slices.Contains(s.adminEmails, strings.ToLower(caller.Email)) {
		return nil, apperror.Forbidden("admin access required")
	}

	totalAccounts, err := s.accounts.CountAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/report: counting accounts: %w", err)
	}

	totalExchanges, err := s.exchanges.CountExchanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/report: counting exchanges: %w", err)
	}

	byMode, err := s.exchanges.CountByMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/report: counting by mode: %w", err)
	}

	recent, err := s.exchanges.RecentExchanges(ctx, s.recentLimit)
	if err != nil {
		return nil, fmt.Errorf("service/report: listing recent exchanges: %w", err)
	}

	s.logger.Info("usage report generated", slog.String("adminID", callerID))

	return &UsageReport{
		TotalAccounts:  totalAccounts,
		TotalExchanges: totalExchanges,
		ByMode:         byMode,
		Recent:         recent,
	}, nil
}
