package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	statements     map[string]*StatementRecord
	lines          map[string]*LineRecord
	rules          map[string]*matching.Rule
	matchResults   []*MatchRecord
	openItems      map[string]*ledger.OpenItem
	counterparties map[string]string // name -> iban
	journal        []JournalEntry

	// Hooks for test assertions
	SaveStatementCalled bool
	ApplyMatchCalled    bool
	LastAppliedMatch    *MatchRecord
	ReverseMatchCalled  bool
	PostEntryCalled     bool
	LastPostedEntry     *JournalEntry

	// Error injection for testing error paths
	SaveStatementErr error
	ApplyMatchErr    error
	FindOpenItemsErr error
	GetBalanceErr    error
	PostEntryErr     error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		statements:     make(map[string]*StatementRecord),
		lines:          make(map[string]*LineRecord),
		rules:          make(map[string]*matching.Rule),
		openItems:      make(map[string]*ledger.OpenItem),
		counterparties: make(map[string]string),
	}
}

// SeedDefaultRules installs the standard rule set, as migrations do.
func (m *MockRepository) SeedDefaultRules() {
	for _, rule := range matching.DefaultRules() {
		r := rule
		r.ID = uuid.NewString()
		m.rules[r.Name] = &r
	}
}

func (m *MockRepository) Close() error { return nil }

// --- statements ---

func (m *MockRepository) SaveStatement(_ context.Context, rec *StatementRecord) error {
	m.SaveStatementCalled = true
	if m.SaveStatementErr != nil {
		return m.SaveStatementErr
	}
	clone := *rec
	m.statements[rec.ID] = &clone
	for i := range rec.Lines {
		line := rec.Lines[i]
		m.lines[line.ID] = &line
	}
	return nil
}

func (m *MockRepository) GetStatement(_ context.Context, id string) (*StatementRecord, error) {
	rec, ok := m.statements[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	out.Lines = m.statementLines(id, "")
	return &out, nil
}

func (m *MockRepository) ListStatements(_ context.Context, limit, offset int) ([]*StatementRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var all []*StatementRecord
	for _, rec := range m.statements {
		out := *rec
		out.Lines = nil
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].ImportedAt.Equal(all[j].ImportedAt) {
			return all[i].ImportedAt.After(all[j].ImportedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (m *MockRepository) GetLine(_ context.Context, lineID string) (*LineRecord, error) {
	line, ok := m.lines[lineID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *line
	return &out, nil
}

func (m *MockRepository) LinesByStatus(_ context.Context, statementID string, status statement.LineStatus) ([]LineRecord, error) {
	return m.statementLines(statementID, status), nil
}

func (m *MockRepository) statementLines(statementID string, status statement.LineStatus) []LineRecord {
	var lines []LineRecord
	for _, line := range m.lines {
		if line.StatementID != statementID {
			continue
		}
		if status != "" && line.Status != status {
			continue
		}
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })
	return lines
}

// --- rules ---

func (m *MockRepository) ListRules(_ context.Context, activeOnly bool) ([]matching.Rule, error) {
	var rules []matching.Rule
	for _, rule := range m.rules {
		if activeOnly && !rule.Active {
			continue
		}
		rules = append(rules, *rule)
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Name < rules[j].Name
	})
	return rules, nil
}

func (m *MockRepository) SaveRule(_ context.Context, rule *matching.Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	clone := *rule
	m.rules[rule.Name] = &clone
	return nil
}

// --- match results ---

func (m *MockRepository) SaveMatchResult(_ context.Context, rec *MatchRecord) error {
	m.storeMatchResult(rec)
	return nil
}

func (m *MockRepository) storeMatchResult(rec *MatchRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	clone := *rec
	m.matchResults = append(m.matchResults, &clone)
}

func (m *MockRepository) ApplyMatch(ctx context.Context, rec *MatchRecord, newStatus statement.LineStatus) error {
	m.ApplyMatchCalled = true
	if m.ApplyMatchErr != nil {
		return m.ApplyMatchErr
	}

	line, ok := m.lines[rec.LineID]
	if !ok {
		return ErrNotFound
	}
	if line.Status != statement.StatusUnmatched {
		return ErrLineAlreadyMatched
	}
	item, ok := m.openItems[rec.ChosenOpenItemID]
	if !ok {
		return ErrNotFound
	}
	if rec.SettledAmount.IsNegative() || rec.SettledAmount.GreaterThan(item.OpenAmount) {
		return fmt.Errorf("settle %s against open %s: %w", rec.SettledAmount, item.OpenAmount, ledger.ErrSettlementConflict)
	}

	item.OpenAmount = item.OpenAmount.Sub(rec.SettledAmount)
	line.Status = newStatus
	line.MatchedOpenItemID = rec.ChosenOpenItemID
	m.storeMatchResult(rec)
	m.LastAppliedMatch = rec
	return nil
}

func (m *MockRepository) ReverseMatch(_ context.Context, lineID string) error {
	m.ReverseMatchCalled = true
	line, ok := m.lines[lineID]
	if !ok {
		return ErrNotFound
	}
	if line.Status == statement.StatusUnmatched {
		return fmt.Errorf("line %s is not matched", lineID)
	}

	for i := len(m.matchResults) - 1; i >= 0; i-- {
		rec := m.matchResults[i]
		if rec.LineID != lineID || !rec.Matched || rec.Reversed {
			continue
		}
		if item, ok := m.openItems[rec.ChosenOpenItemID]; ok {
			restored := item.OpenAmount.Add(rec.SettledAmount)
			if restored.GreaterThan(item.TotalAmount) {
				return ledger.ErrSettlementConflict
			}
			item.OpenAmount = restored
		}
		rec.Reversed = true
		break
	}

	line.Status = statement.StatusUnmatched
	line.MatchedOpenItemID = ""
	return nil
}

func (m *MockRepository) MarkLineBooked(_ context.Context, lineID string, entry *JournalEntry) error {
	line, ok := m.lines[lineID]
	if !ok {
		return ErrNotFound
	}
	if line.Status != statement.StatusUnmatched {
		return ErrLineAlreadyMatched
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	m.journal = append(m.journal, *entry)
	line.Status = statement.StatusMatched
	return nil
}

func (m *MockRepository) ListMatchResults(_ context.Context, statementID string) ([]MatchRecord, error) {
	var records []MatchRecord
	for _, rec := range m.matchResults {
		if rec.StatementID == statementID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

// --- open items ---

func (m *MockRepository) SaveOpenItem(_ context.Context, item *ledger.OpenItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	clone := *item
	m.openItems[item.ID] = &clone
	return nil
}

func (m *MockRepository) GetOpenItem(_ context.Context, id string) (*ledger.OpenItem, error) {
	item, ok := m.openItems[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *item
	return &out, nil
}

func (m *MockRepository) FindOpenItems(_ context.Context, _ string) ([]ledger.OpenItem, error) {
	if m.FindOpenItemsErr != nil {
		return nil, m.FindOpenItemsErr
	}
	var items []ledger.OpenItem
	for _, item := range m.openItems {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *MockRepository) Settle(_ context.Context, openItemID string, amount decimal.Decimal) error {
	item, ok := m.openItems[openItemID]
	if !ok {
		return ErrNotFound
	}
	if amount.IsNegative() || amount.GreaterThan(item.OpenAmount) {
		return ledger.ErrSettlementConflict
	}
	item.OpenAmount = item.OpenAmount.Sub(amount)
	return nil
}

func (m *MockRepository) Reverse(_ context.Context, openItemID string, amount decimal.Decimal) error {
	item, ok := m.openItems[openItemID]
	if !ok {
		return ErrNotFound
	}
	restored := item.OpenAmount.Add(amount)
	if amount.IsNegative() || restored.GreaterThan(item.TotalAmount) {
		return ledger.ErrSettlementConflict
	}
	item.OpenAmount = restored
	return nil
}

// --- counterparties ---

func (m *MockRepository) SaveCounterparty(_ context.Context, cp *Counterparty) error {
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	m.counterparties[cp.Name] = cp.IBAN
	return nil
}

func (m *MockRepository) LookupIBAN(_ context.Context, name string) (string, bool) {
	iban, ok := m.counterparties[name]
	return iban, ok
}

// --- journal ---

func (m *MockRepository) PostEntry(_ context.Context, debitAccount, creditAccount string, amount decimal.Decimal, date time.Time, description string) (string, error) {
	m.PostEntryCalled = true
	if m.PostEntryErr != nil {
		return "", m.PostEntryErr
	}
	entry := JournalEntry{
		ID:            uuid.NewString(),
		DebitAccount:  debitAccount,
		CreditAccount: creditAccount,
		Amount:        amount,
		EntryDate:     date,
		Description:   description,
		CreatedAt:     time.Now().UTC(),
	}
	m.journal = append(m.journal, entry)
	m.LastPostedEntry = &entry
	return entry.ID, nil
}

func (m *MockRepository) GetBalance(_ context.Context, bankAccountID string, asOf time.Time) (decimal.Decimal, error) {
	if m.GetBalanceErr != nil {
		return decimal.Zero, m.GetBalanceErr
	}
	balance := decimal.Zero
	for _, entry := range m.journal {
		if entry.EntryDate.After(asOf) {
			continue
		}
		if entry.DebitAccount == bankAccountID {
			balance = balance.Add(entry.Amount)
		}
		if entry.CreditAccount == bankAccountID {
			balance = balance.Sub(entry.Amount)
		}
	}
	return balance, nil
}

func (m *MockRepository) ListJournalEntries(_ context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > len(m.journal) {
		limit = len(m.journal)
	}
	out := make([]JournalEntry, len(m.journal))
	copy(out, m.journal)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out[:limit], nil
}

// --- stats ---

func (m *MockRepository) GetStats(_ context.Context) (*Stats, error) {
	stats := &Stats{
		StatementCount: len(m.statements),
		LineCount:      len(m.lines),
	}
	for _, line := range m.lines {
		if line.Status != statement.StatusUnmatched {
			stats.MatchedLineCount++
		}
	}
	for _, item := range m.openItems {
		if item.IsOpen() {
			stats.OpenItemCount++
		}
	}
	total := decimal.Zero
	for _, rec := range m.matchResults {
		if rec.Matched && !rec.Reversed {
			total = total.Add(rec.SettledAmount)
			if rec.AutoMatched {
				stats.AutoMatchedCount++
			}
		}
	}
	stats.TotalMatched = total.StringFixed(2)
	return stats, nil
}
