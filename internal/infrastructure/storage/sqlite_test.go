package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testStatement(id string) *StatementRecord {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return &StatementRecord{
		ID:             id,
		AccountID:      "ACC-1",
		Format:         statement.FormatCAMT,
		AccountIBAN:    "DE89370400440532013000",
		Currency:       "EUR",
		OpeningBalance: decimal.NewFromFloat(1000.00),
		ClosingBalance: decimal.NewFromFloat(2250.00),
		ImportedAt:     day,
		ParseErrors: []statement.LineError{
			{Line: 3, Reason: "invalid amount"},
		},
		Lines: []LineRecord{
			{
				ID:          id + "-L1",
				StatementID: id,
				Line: statement.Line{
					LineNumber:       1,
					BookingDate:      day,
					ValueDate:        day,
					Amount:           decimal.NewFromFloat(1250.00),
					Currency:         "EUR",
					Reference:        "RE-2024-0042",
					RemittanceInfo:   "Invoice RE-2024-0042",
					CounterpartyName: "Acme GmbH",
					CounterpartyIBAN: "DE02120300000000202051",
					Status:           statement.StatusUnmatched,
					Flags:            []string{statement.FlagDefaultedIndicator},
				},
			},
			{
				ID:          id + "-L2",
				StatementID: id,
				Line: statement.Line{
					LineNumber:  2,
					BookingDate: day,
					ValueDate:   day,
					Amount:      decimal.NewFromFloat(-42.50),
					Currency:    "EUR",
					Status:      statement.StatusUnmatched,
				},
			},
		},
	}
}

func TestStatementRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveStatement(ctx, testStatement("S-1")))

	rec, err := store.GetStatement(ctx, "S-1")
	require.NoError(t, err)
	assert.Equal(t, "ACC-1", rec.AccountID)
	assert.Equal(t, statement.FormatCAMT, rec.Format)
	assert.True(t, rec.ClosingBalance.Equal(decimal.NewFromFloat(2250.00)))
	require.Len(t, rec.ParseErrors, 1)
	assert.Equal(t, 3, rec.ParseErrors[0].Line)

	require.Len(t, rec.Lines, 2)
	first := rec.Lines[0]
	assert.Equal(t, 1, first.LineNumber)
	assert.True(t, first.Amount.Equal(decimal.NewFromFloat(1250.00)))
	assert.Equal(t, "RE-2024-0042", first.Reference)
	assert.Equal(t, statement.StatusUnmatched, first.Status)
	assert.Equal(t, []string{statement.FlagDefaultedIndicator}, first.Flags)
	assert.True(t, rec.Lines[1].Amount.Equal(decimal.NewFromFloat(-42.50)))
}

func TestGetStatementNotFound(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.GetStatement(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListStatements(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"S-1", "S-2", "S-3"} {
		require.NoError(t, store.SaveStatement(ctx, testStatement(id)))
	}

	records, total, err := store.ListStatements(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, records, 2)
	// List omits lines.
	assert.Empty(t, records[0].Lines)
}

func TestLinesByStatus(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveStatement(ctx, testStatement("S-1")))

	lines, err := store.LinesByStatus(ctx, "S-1", statement.StatusUnmatched)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	lines, err = store.LinesByStatus(ctx, "S-1", statement.StatusMatched)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSeededRules(t *testing.T) {
	store := newTestStorage(t)

	rules, err := store.ListRules(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, rules, 5)
	assert.Equal(t, "exact-reference", rules[0].Name)
	assert.Equal(t, 100, rules[0].Priority)
	for i := 1; i < len(rules); i++ {
		assert.GreaterOrEqual(t, rules[i-1].Priority, rules[i].Priority)
	}
}

func TestSaveRuleUpsertsByName(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	rule := &matching.Rule{
		Name:                "exact-reference",
		Priority:            110,
		Type:                matching.RuleReference,
		Params:              matching.ReferenceParams{},
		ConfidenceThreshold: 0.9,
		AutoApply:           false,
		Active:              true,
	}
	require.NoError(t, store.SaveRule(ctx, rule))

	rules, err := store.ListRules(ctx, false)
	require.NoError(t, err)
	assert.Len(t, rules, 5)
	assert.Equal(t, "exact-reference", rules[0].Name)
	assert.Equal(t, 110, rules[0].Priority)
	assert.False(t, rules[0].AutoApply)
}

func seedMatchedLine(t *testing.T, store *Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveStatement(ctx, testStatement("S-1")))
	require.NoError(t, store.SaveOpenItem(ctx, &ledger.OpenItem{
		ID:             "OI-1",
		DocumentNumber: "RE-2024-0042",
		TotalAmount:    decimal.NewFromFloat(1250.00),
		OpenAmount:     decimal.NewFromFloat(1250.00),
		DueDate:        time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Side:           ledger.SideReceivable,
	}))
}

func TestApplyMatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedLine(t, store)

	rec := &MatchRecord{
		LineID:           "S-1-L1",
		StatementID:      "S-1",
		ChosenOpenItemID: "OI-1",
		Matched:          true,
		Confidence:       1.0,
		AutoMatched:      true,
		MatchedBy:        "SYSTEM",
		SettledAmount:    decimal.NewFromFloat(1250.00),
	}
	require.NoError(t, store.ApplyMatch(ctx, rec, statement.StatusMatched))

	line, err := store.GetLine(ctx, "S-1-L1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusMatched, line.Status)
	assert.Equal(t, "OI-1", line.MatchedOpenItemID)

	item, err := store.GetOpenItem(ctx, "OI-1")
	require.NoError(t, err)
	assert.True(t, item.OpenAmount.IsZero())

	results, err := store.ListMatchResults(ctx, "S-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].AutoMatched)
	assert.Equal(t, "SYSTEM", results[0].MatchedBy)

	t.Run("second apply is rejected", func(t *testing.T) {
		err := store.ApplyMatch(ctx, rec, statement.StatusMatched)
		assert.ErrorIs(t, err, ErrLineAlreadyMatched)
	})
}

func TestApplyMatchOverSettlementRollsBack(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedLine(t, store)

	rec := &MatchRecord{
		LineID:           "S-1-L1",
		StatementID:      "S-1",
		ChosenOpenItemID: "OI-1",
		Matched:          true,
		SettledAmount:    decimal.NewFromFloat(2000.00),
	}
	err := store.ApplyMatch(ctx, rec, statement.StatusMatched)
	assert.ErrorIs(t, err, ledger.ErrSettlementConflict)

	// Nothing was mutated.
	line, err := store.GetLine(ctx, "S-1-L1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusUnmatched, line.Status)

	item, err := store.GetOpenItem(ctx, "OI-1")
	require.NoError(t, err)
	assert.True(t, item.OpenAmount.Equal(decimal.NewFromFloat(1250.00)))

	results, err := store.ListMatchResults(ctx, "S-1")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReverseMatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedLine(t, store)

	rec := &MatchRecord{
		LineID:           "S-1-L1",
		StatementID:      "S-1",
		ChosenOpenItemID: "OI-1",
		Matched:          true,
		SettledAmount:    decimal.NewFromFloat(1250.00),
	}
	require.NoError(t, store.ApplyMatch(ctx, rec, statement.StatusMatched))
	require.NoError(t, store.ReverseMatch(ctx, "S-1-L1"))

	line, err := store.GetLine(ctx, "S-1-L1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusUnmatched, line.Status)
	assert.Empty(t, line.MatchedOpenItemID)

	item, err := store.GetOpenItem(ctx, "OI-1")
	require.NoError(t, err)
	assert.True(t, item.OpenAmount.Equal(decimal.NewFromFloat(1250.00)))

	results, err := store.ListMatchResults(ctx, "S-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Reversed)

	t.Run("unmatched line cannot be reversed", func(t *testing.T) {
		assert.Error(t, store.ReverseMatch(ctx, "S-1-L1"))
	})
}

func TestMarkLineBooked(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveStatement(ctx, testStatement("S-1")))

	entry := &JournalEntry{
		DebitAccount:  "1200",
		CreditAccount: "1460",
		Amount:        decimal.NewFromFloat(1250.00),
		EntryDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Description:   "bank statement line 1",
	}
	require.NoError(t, store.MarkLineBooked(ctx, "S-1-L1", entry))

	line, err := store.GetLine(ctx, "S-1-L1")
	require.NoError(t, err)
	assert.Equal(t, statement.StatusMatched, line.Status)

	entries, err := store.ListJournalEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1200", entries[0].DebitAccount)
	assert.Equal(t, "1460", entries[0].CreditAccount)

	t.Run("booked line cannot be booked again", func(t *testing.T) {
		err := store.MarkLineBooked(ctx, "S-1-L1", entry)
		assert.ErrorIs(t, err, ErrLineAlreadyMatched)
	})
}

func TestOpenItemValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.SaveOpenItem(ctx, &ledger.OpenItem{
		ID:             "OI-1",
		DocumentNumber: "RE-1",
		TotalAmount:    decimal.NewFromFloat(100.00),
		OpenAmount:     decimal.NewFromFloat(150.00),
		DueDate:        time.Now(),
		Side:           ledger.SideReceivable,
	})
	assert.Error(t, err)

	_, err = store.GetOpenItem(ctx, "OI-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindOpenItems(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"OI-2", "OI-1"} {
		require.NoError(t, store.SaveOpenItem(ctx, &ledger.OpenItem{
			ID:             id,
			DocumentNumber: "RE-" + id,
			TotalAmount:    decimal.NewFromFloat(100.00),
			OpenAmount:     decimal.NewFromFloat(100.00),
			DueDate:        time.Now(),
			Side:           ledger.SidePayable,
		}))
	}

	items, err := store.FindOpenItems(ctx, "default")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "OI-1", items[0].ID)
	assert.Equal(t, "OI-2", items[1].ID)
}

func TestGetBalance(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	jan15 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.PostEntry(ctx, "1200", "8400", decimal.NewFromFloat(500.00), jan15, "revenue")
	require.NoError(t, err)
	_, err = store.PostEntry(ctx, "4400", "1200", decimal.NewFromFloat(120.00), jan15, "expense")
	require.NoError(t, err)
	_, err = store.PostEntry(ctx, "1200", "8400", decimal.NewFromFloat(999.00), feb1, "later revenue")
	require.NoError(t, err)

	balance, err := store.GetBalance(ctx, "1200", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(380.00)), "got %s", balance)

	balance, err = store.GetBalance(ctx, "1200", feb1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromFloat(1379.00)), "got %s", balance)
}

func TestPostEntryRejectsNonPositive(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.PostEntry(context.Background(), "1200", "8400", decimal.Zero, time.Now(), "")
	assert.Error(t, err)
}

func TestCounterpartyLookup(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCounterparty(ctx, &Counterparty{Name: "Acme GmbH", IBAN: "DE02120300000000202051"}))

	iban, ok := store.LookupIBAN(ctx, "Acme GmbH")
	assert.True(t, ok)
	assert.Equal(t, "DE02120300000000202051", iban)

	_, ok = store.LookupIBAN(ctx, "Unknown")
	assert.False(t, ok)

	// Saving the same name again updates the IBAN.
	require.NoError(t, store.SaveCounterparty(ctx, &Counterparty{Name: "Acme GmbH", IBAN: "DE89370400440532013000"}))
	iban, _ = store.LookupIBAN(ctx, "Acme GmbH")
	assert.Equal(t, "DE89370400440532013000", iban)
}

func TestGetStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seedMatchedLine(t, store)

	require.NoError(t, store.ApplyMatch(ctx, &MatchRecord{
		LineID:           "S-1-L1",
		StatementID:      "S-1",
		ChosenOpenItemID: "OI-1",
		Matched:          true,
		AutoMatched:      true,
		SettledAmount:    decimal.NewFromFloat(1250.00),
	}, statement.StatusMatched))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.StatementCount)
	assert.Equal(t, 2, stats.LineCount)
	assert.Equal(t, 1, stats.MatchedLineCount)
	assert.Equal(t, 0, stats.OpenItemCount)
	assert.Equal(t, 1, stats.AutoMatchedCount)
	assert.Equal(t, "1250.00", stats.TotalMatched)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveStatement(context.Background(), testStatement("S-1")))
	require.NoError(t, store.Close())

	// Reopening the same file runs no migration twice and keeps the data.
	store, err = NewStorage(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rec, err := store.GetStatement(context.Background(), "S-1")
	require.NoError(t, err)
	assert.Len(t, rec.Lines, 2)

	rules, err := store.ListRules(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, rules, 5)
}
