package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/config"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// MatchRequest holds parameters for one matching run.
type MatchRequest struct {
	StatementID   string
	Tenant        string
	AutoApply     bool
	MinConfidence float64
}

// MatchService runs the rule engine over a statement's unmatched lines and
// applies the auto-apply policy. Re-running over the same statement is
// idempotent: only UNMATCHED lines are ever evaluated.
type MatchService struct {
	repo      storage.Repository
	directory ledger.CounterpartyDirectory
	logger    *slog.Logger
	defaults  config.MatchingConfig
}

// NewMatchService creates a new match service. directory may wrap the
// repository's master data with a cache.
func NewMatchService(cfg *config.Config, repo storage.Repository, directory ledger.CounterpartyDirectory, logger *slog.Logger) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	if directory == nil {
		directory = repo
	}
	return &MatchService{
		repo:      repo,
		directory: directory,
		logger:    logger,
		defaults:  cfg.Matching,
	}
}

// RunMatching evaluates every unmatched line of the statement against the
// open-item ledger. Candidates are auto-applied only when the caller asked
// for it, the confidence clears the request minimum, and an auto-apply rule
// cleared its own threshold. Per-line failures (settlement conflicts, races
// on line status) degrade that line to suggest-only instead of failing the
// run.
func (s *MatchService) RunMatching(ctx context.Context, req MatchRequest) ([]matching.Result, error) {
	if req.MinConfidence <= 0 {
		req.MinConfidence = s.defaults.MinConfidence
	}

	lines, err := s.repo.LinesByStatus(ctx, req.StatementID, statement.StatusUnmatched)
	if err != nil {
		return nil, fmt.Errorf("failed to load unmatched lines: %w", err)
	}

	rules, err := s.repo.ListRules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load matching rules: %w", err)
	}

	items, err := s.repo.FindOpenItems(ctx, req.Tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load open items: %w", err)
	}

	engine := matching.NewEngine(rules, s.directory)

	results := make([]matching.Result, 0, len(lines))
	applied := 0
	for _, line := range lines {
		result := engine.Evaluate(ctx, line.ID, line.Line, items)

		if result.ChosenOpenItemID != "" &&
			req.AutoApply &&
			result.Confidence >= req.MinConfidence &&
			result.AutoEligible {
			if err := s.apply(ctx, req.StatementID, &line, &result, items, matching.MatchedBySystem, true); err != nil {
				// The run continues; this line stays unmatched with its
				// suggestions attached for human review.
				s.logger.Warn("auto-apply rejected",
					"line_id", line.ID, "open_item_id", result.ChosenOpenItemID, "error", err)
			} else {
				applied++
			}
		}

		if !result.Matched {
			rec := &storage.MatchRecord{
				LineID:           line.ID,
				StatementID:      req.StatementID,
				ChosenOpenItemID: result.ChosenOpenItemID,
				Confidence:       result.Confidence,
				Suggestions:      result.Suggestions,
			}
			if err := s.repo.SaveMatchResult(ctx, rec); err != nil {
				return nil, fmt.Errorf("failed to persist match result: %w", err)
			}
		}

		results = append(results, result)
	}

	s.logger.Info("matching run complete",
		"statement_id", req.StatementID,
		"lines", len(lines),
		"auto_applied", applied)

	return results, nil
}

// ApplyManual confirms a human decision: the line is matched to the given
// open item with full confidence.
func (s *MatchService) ApplyManual(ctx context.Context, lineID, openItemID string) (*matching.Result, error) {
	line, err := s.repo.GetLine(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.Status != statement.StatusUnmatched {
		return nil, storage.ErrLineAlreadyMatched
	}

	item, err := s.repo.GetOpenItem(ctx, openItemID)
	if err != nil {
		return nil, err
	}

	result := matching.Result{
		LineID:           lineID,
		ChosenOpenItemID: openItemID,
		Confidence:       1.0,
	}
	if err := s.apply(ctx, line.StatementID, line, &result, []ledger.OpenItem{*item}, matching.MatchedByManual, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reverse returns a matched line to UNMATCHED and restores the settled
// amount on its open item.
func (s *MatchService) Reverse(ctx context.Context, lineID string) error {
	if err := s.repo.ReverseMatch(ctx, lineID); err != nil {
		return err
	}
	s.logger.Info("match reversed", "line_id", lineID)
	return nil
}

// apply settles the chosen open item and flips the line status, atomically
// through the repository. A line settling less than its own amount (the
// open item was smaller) is marked PARTIAL rather than MATCHED.
func (s *MatchService) apply(ctx context.Context, statementID string, line *storage.LineRecord, result *matching.Result, items []ledger.OpenItem, matchedBy string, auto bool) error {
	var chosen *ledger.OpenItem
	for i := range items {
		if items[i].ID == result.ChosenOpenItemID {
			chosen = &items[i]
			break
		}
	}
	if chosen == nil {
		return fmt.Errorf("open item %s not in candidate set", result.ChosenOpenItemID)
	}

	lineAmount := line.Amount.Abs()
	settle := decimal.Min(lineAmount, chosen.OpenAmount)
	newStatus := statement.StatusMatched
	if settle.LessThan(lineAmount) {
		newStatus = statement.StatusPartial
	}

	rec := &storage.MatchRecord{
		LineID:           line.ID,
		StatementID:      statementID,
		ChosenOpenItemID: chosen.ID,
		Matched:          true,
		Confidence:       result.Confidence,
		AutoMatched:      auto,
		MatchedBy:        matchedBy,
		SettledAmount:    settle,
		Suggestions:      result.Suggestions,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.repo.ApplyMatch(ctx, rec, newStatus); err != nil {
		if errors.Is(err, ledger.ErrSettlementConflict) || errors.Is(err, storage.ErrLineAlreadyMatched) {
			return err
		}
		return fmt.Errorf("failed to apply match: %w", err)
	}

	chosen.OpenAmount = chosen.OpenAmount.Sub(settle)
	result.Matched = true
	result.AutoMatched = auto
	result.MatchedBy = matchedBy
	return nil
}
