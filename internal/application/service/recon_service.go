package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/recon"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/config"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// ReconService compares a statement's bank balance against the ledger and
// optionally books the remediation suggestions.
type ReconService struct {
	repo     storage.Repository
	balances ledger.BalanceProvider
	logger   *slog.Logger
	cfg      config.ReconciliationConfig
}

// NewReconService creates a new reconciliation service. balances defaults
// to the repository's journal-derived balance when nil.
func NewReconService(cfg *config.Config, repo storage.Repository, balances ledger.BalanceProvider, logger *slog.Logger) *ReconService {
	if logger == nil {
		logger = slog.Default()
	}
	if balances == nil {
		balances = repo
	}
	return &ReconService{
		repo:     repo,
		balances: balances,
		logger:   logger,
		cfg:      cfg.Reconciliation,
	}
}

// Reconcile produces the balanced/unbalanced verdict for a statement. A
// failed ledger balance lookup yields an unbalanced verdict with an
// explanatory difference item, not an error. With autoBook set, every
// unmatched-line suggestion is posted as a balanced journal entry (debit
// bank GL / credit clearing account, swapped for debits) and its line is
// marked MATCHED.
func (s *ReconService) Reconcile(ctx context.Context, statementID string, autoBook bool) (*recon.Result, error) {
	rec, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, err
	}

	asOf := rec.ImportedAt
	ledgerBalance, err := s.balances.GetBalance(ctx, s.cfg.BankGLAccount, asOf)
	if err != nil {
		s.logger.Warn("ledger balance unavailable", "statement_id", statementID, "error", err)
		result := recon.Unavailable(statementID, rec.ClosingBalance, err.Error())
		return &result, nil
	}

	unmatched, err := s.repo.LinesByStatus(ctx, statementID, statement.StatusUnmatched)
	if err != nil {
		return nil, fmt.Errorf("failed to load unmatched lines: %w", err)
	}
	pairs := make([]recon.UnmatchedLine, 0, len(unmatched))
	for _, line := range unmatched {
		pairs = append(pairs, recon.UnmatchedLine{ID: line.ID, Line: line.Line})
	}

	result := recon.Compare(statementID, rec.ClosingBalance, ledgerBalance, pairs, s.cfg.ClearingAccount)

	if autoBook {
		if err := s.bookSuggestions(ctx, unmatched, &result); err != nil {
			return nil, err
		}
	}

	s.logger.Info("reconciliation complete",
		"statement_id", statementID,
		"bank_balance", result.BankBalance.StringFixed(2),
		"ledger_balance", result.LedgerBalance.StringFixed(2),
		"balanced", result.IsBalanced,
		"differences", len(result.Differences))

	return &result, nil
}

// bookSuggestions posts one journal entry per CREATE_ENTRY item. Credits on
// the statement debit the bank GL account; debits credit it. Each posting
// and its line-status flip commit together.
func (s *ReconService) bookSuggestions(ctx context.Context, unmatched []storage.LineRecord, result *recon.Result) error {
	lineByID := make(map[string]*storage.LineRecord, len(unmatched))
	for i := range unmatched {
		lineByID[unmatched[i].ID] = &unmatched[i]
	}

	for _, item := range result.Differences {
		if item.SuggestedAction != recon.ActionCreateEntry {
			continue
		}
		line, ok := lineByID[item.LineID]
		if !ok {
			continue
		}

		entry := &storage.JournalEntry{
			Amount:    line.Amount.Abs(),
			EntryDate: line.BookingDate,
			Description: fmt.Sprintf("bank statement line %d: %s",
				line.LineNumber, line.RemittanceInfo),
		}
		if line.Amount.IsPositive() {
			entry.DebitAccount = s.cfg.BankGLAccount
			entry.CreditAccount = item.SuggestedAccount
		} else {
			entry.DebitAccount = item.SuggestedAccount
			entry.CreditAccount = s.cfg.BankGLAccount
		}

		if err := s.repo.MarkLineBooked(ctx, line.ID, entry); err != nil {
			return fmt.Errorf("failed to book line %s: %w", line.ID, err)
		}
		s.logger.Info("remediation entry booked",
			"line_id", line.ID,
			"debit", entry.DebitAccount,
			"credit", entry.CreditAccount,
			"amount", entry.Amount.StringFixed(2))
	}
	return nil
}
