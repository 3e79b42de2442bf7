// Package service wires the domain engines to persistence and exposes the
// three operations the surrounding ERP consumes: importing a statement,
// running a matching pass, and reconciling balances.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/config"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// ImportService turns raw statement files into persisted normalized
// statements. Statements are append-only; importing never touches existing
// data.
type ImportService struct {
	cfg    *config.Config
	repo   storage.Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewImportService creates a new import service.
func NewImportService(cfg *config.Config, repo storage.Repository, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		cfg:    cfg,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Import parses raw bytes in the given format and persists the result.
// Entry-level parse errors are returned alongside the record, not as a
// failure: whatever parsed is imported.
func (s *ImportService) Import(ctx context.Context, format statement.Format, raw []byte, accountID string) (*storage.StatementRecord, error) {
	opts := statement.DefaultOptions()
	if c := s.cfg.Parsers.DefaultCurrency; c != "" {
		opts.DefaultCurrency = c
	}
	opts.MissingIndicatorCredit = s.cfg.Parsers.MissingIndicatorCredit()
	if format == statement.FormatCSV {
		// CSV files carry no account block; the caller's account stands in.
		opts.AccountIBAN = accountID
	}

	stmt, parseErrs, err := statement.Parse(format, raw, opts)
	if err != nil {
		return nil, err
	}

	rec := &storage.StatementRecord{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Format:         format,
		AccountIBAN:    stmt.AccountIBAN,
		Currency:       stmt.Currency,
		OpeningBalance: stmt.OpeningBalance,
		ClosingBalance: stmt.ClosingBalance,
		ImportedAt:     s.now().UTC(),
		ParseErrors:    parseErrs,
	}
	for _, line := range stmt.Lines {
		rec.Lines = append(rec.Lines, storage.LineRecord{
			ID:          uuid.NewString(),
			StatementID: rec.ID,
			Line:        line,
		})
	}

	if err := s.repo.SaveStatement(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist statement: %w", err)
	}

	s.logger.Info("statement imported",
		"statement_id", rec.ID,
		"format", string(format),
		"account", accountID,
		"lines", len(rec.Lines),
		"parse_errors", len(parseErrs),
		"closing_balance", rec.ClosingBalance.StringFixed(2))

	return rec, nil
}
