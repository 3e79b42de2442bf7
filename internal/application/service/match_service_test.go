package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

var matchDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func seedStatement(t *testing.T, repo *storage.MockRepository, lines ...statement.Line) *storage.StatementRecord {
	t.Helper()
	rec := &storage.StatementRecord{
		ID:        "S-1",
		AccountID: "ACC-1",
		Format:    statement.FormatCSV,
		Currency:  "EUR",
	}
	for i, line := range lines {
		line.LineNumber = i + 1
		rec.Lines = append(rec.Lines, storage.LineRecord{
			ID:          "L-" + string(rune('1'+i)),
			StatementID: rec.ID,
			Line:        line,
		})
	}
	require.NoError(t, repo.SaveStatement(context.Background(), rec))
	return rec
}

func seedOpenItem(t *testing.T, repo *storage.MockRepository, id, doc string, amount float64) *ledger.OpenItem {
	t.Helper()
	amt := decimal.NewFromFloat(amount)
	item := &ledger.OpenItem{
		ID:             id,
		DocumentNumber: doc,
		TotalAmount:    amt,
		OpenAmount:     amt,
		DueDate:        matchDay,
		Side:           ledger.SideReceivable,
	}
	require.NoError(t, repo.SaveOpenItem(context.Background(), item))
	return item
}

func matchLine(amount float64, reference string) statement.Line {
	return statement.Line{
		BookingDate: matchDay,
		ValueDate:   matchDay,
		Amount:      decimal.NewFromFloat(amount),
		Currency:    "EUR",
		Reference:   reference,
		Status:      statement.StatusUnmatched,
	}
}

func TestMatchService_AutoApply(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()
	seedStatement(t, repo, matchLine(1250.00, "RE-2024-0042"))
	seedOpenItem(t, repo, "OI-1", "RE-2024-0042", 1250.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	results, err := svc.RunMatching(context.Background(), MatchRequest{
		StatementID: "S-1",
		AutoApply:   true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	result := results[0]
	assert.True(t, result.Matched)
	assert.True(t, result.AutoMatched)
	assert.Equal(t, matching.MatchedBySystem, result.MatchedBy)
	assert.Equal(t, "OI-1", result.ChosenOpenItemID)

	assert.True(t, repo.ApplyMatchCalled)
	require.NotNil(t, repo.LastAppliedMatch)
	assert.True(t, repo.LastAppliedMatch.SettledAmount.Equal(decimal.NewFromFloat(1250.00)))

	line, err := repo.GetLine(context.Background(), "L-1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusMatched, line.Status)
	assert.Equal(t, "OI-1", line.MatchedOpenItemID)

	item, err := repo.GetOpenItem(context.Background(), "OI-1")
	require.NoError(t, err)
	assert.True(t, item.OpenAmount.IsZero())
}

func TestMatchService_SuggestOnlyWithoutAutoApply(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()
	seedStatement(t, repo, matchLine(1250.00, "RE-2024-0042"))
	seedOpenItem(t, repo, "OI-1", "RE-2024-0042", 1250.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	results, err := svc.RunMatching(context.Background(), MatchRequest{StatementID: "S-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Matched)
	assert.Equal(t, "OI-1", results[0].ChosenOpenItemID)
	assert.NotEmpty(t, results[0].Suggestions)
	assert.False(t, repo.ApplyMatchCalled)

	line, err := repo.GetLine(context.Background(), "L-1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusUnmatched, line.Status)

	// The suggest-only verdict is persisted for review.
	records, err := repo.ListMatchResults(context.Background(), "S-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Matched)
}

func TestMatchService_MinConfidenceGatesAutoApply(t *testing.T) {
	// Exact reference but a noticeably wrong amount: high enough for the
	// rule's own threshold, below a strict request minimum.
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()
	seedStatement(t, repo, matchLine(1250.00, "RE-2024-0042"))
	seedOpenItem(t, repo, "OI-1", "RE-2024-0042", 2000.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	results, err := svc.RunMatching(context.Background(), MatchRequest{
		StatementID:   "S-1",
		AutoApply:     true,
		MinConfidence: 0.95,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Matched)
	assert.Less(t, results[0].Confidence, 0.95)
	assert.False(t, repo.ApplyMatchCalled)
}

func TestMatchService_AutoEligibilityGatesAutoApply(t *testing.T) {
	// Perfect amount and date but no reference or IBAN: only rules without
	// auto-apply can score, so nothing fires even at full confidence.
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()
	seedStatement(t, repo, matchLine(500.00, ""))
	seedOpenItem(t, repo, "OI-1", "RE-2024-0042", 500.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	results, err := svc.RunMatching(context.Background(), MatchRequest{
		StatementID: "S-1",
		AutoApply:   true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Matched)
	assert.Equal(t, "OI-1", results[0].ChosenOpenItemID)
	assert.False(t, repo.ApplyMatchCalled)
}

func TestMatchService_RerunIsIdempotent(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()
	seedStatement(t, repo, matchLine(1250.00, "RE-2024-0042"))
	seedOpenItem(t, repo, "OI-1", "RE-2024-0042", 1250.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	req := MatchRequest{StatementID: "S-1", AutoApply: true}

	first, err := svc.RunMatching(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, first[0].Matched)

	// The matched line is not evaluated again.
	second, err := svc.RunMatching(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestMatchService_ApplyFailureDegradesToSuggestion(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()
	repo.ApplyMatchErr = ledger.ErrSettlementConflict
	seedStatement(t, repo, matchLine(1250.00, "RE-2024-0042"))
	seedOpenItem(t, repo, "OI-1", "RE-2024-0042", 1250.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	results, err := svc.RunMatching(context.Background(), MatchRequest{
		StatementID: "S-1",
		AutoApply:   true,
	})
	require.NoError(t, err, "a per-line conflict must not fail the run")
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched)
	assert.NotEmpty(t, results[0].Suggestions)
}

func TestMatchService_ApplyManual(t *testing.T) {
	repo := storage.NewMockRepository()
	seedStatement(t, repo, matchLine(1000.00, ""))
	seedOpenItem(t, repo, "OI-1", "DOC-1", 600.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	result, err := svc.ApplyManual(context.Background(), "L-1", "OI-1")
	require.NoError(t, err)

	assert.True(t, result.Matched)
	assert.False(t, result.AutoMatched)
	assert.Equal(t, matching.MatchedByManual, result.MatchedBy)
	assert.Equal(t, 1.0, result.Confidence)

	// The open item was smaller than the line, so the line is PARTIAL and
	// only the open amount was settled.
	line, err := repo.GetLine(context.Background(), "L-1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusPartial, line.Status)

	require.NotNil(t, repo.LastAppliedMatch)
	assert.True(t, repo.LastAppliedMatch.SettledAmount.Equal(decimal.NewFromFloat(600.00)))

	item, err := repo.GetOpenItem(context.Background(), "OI-1")
	require.NoError(t, err)
	assert.True(t, item.OpenAmount.IsZero())

	t.Run("second apply conflicts", func(t *testing.T) {
		_, err := svc.ApplyManual(context.Background(), "L-1", "OI-1")
		assert.ErrorIs(t, err, storage.ErrLineAlreadyMatched)
	})
}

func TestMatchService_Reverse(t *testing.T) {
	repo := storage.NewMockRepository()
	seedStatement(t, repo, matchLine(500.00, ""))
	seedOpenItem(t, repo, "OI-1", "DOC-1", 500.00)

	svc := NewMatchService(testConfig(), repo, nil, nil)
	_, err := svc.ApplyManual(context.Background(), "L-1", "OI-1")
	require.NoError(t, err)

	require.NoError(t, svc.Reverse(context.Background(), "L-1"))

	line, err := repo.GetLine(context.Background(), "L-1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusUnmatched, line.Status)
	assert.Empty(t, line.MatchedOpenItemID)

	item, err := repo.GetOpenItem(context.Background(), "OI-1")
	require.NoError(t, err)
	assert.True(t, item.OpenAmount.Equal(decimal.NewFromFloat(500.00)))

	// A reversed line is matchable again.
	_, err = svc.ApplyManual(context.Background(), "L-1", "OI-1")
	assert.NoError(t, err)
}

func TestMatchService_UnknownStatementYieldsNoResults(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.SeedDefaultRules()

	svc := NewMatchService(testConfig(), repo, nil, nil)
	results, err := svc.RunMatching(context.Background(), MatchRequest{StatementID: "missing"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
