package matching

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// stubDirectory is a fixed name-to-IBAN map for engine tests.
type stubDirectory map[string]string

func (d stubDirectory) LookupIBAN(_ context.Context, name string) (string, bool) {
	iban, ok := d[name]
	return iban, ok
}

var (
	cent    = decimal.NewFromFloat(0.01)
	testDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
)

func openItem(id, docNumber string, amount float64, dueOffset int) ledger.OpenItem {
	amt := decimal.NewFromFloat(amount)
	return ledger.OpenItem{
		ID:             id,
		DocumentNumber: docNumber,
		TotalAmount:    amt,
		OpenAmount:     amt,
		DueDate:        testDay.AddDate(0, 0, dueOffset),
		Side:           ledger.SideReceivable,
	}
}

func creditLine(amount float64, reference string) statement.Line {
	return statement.Line{
		BookingDate: testDay,
		ValueDate:   testDay,
		Amount:      decimal.NewFromFloat(amount),
		Currency:    "EUR",
		Reference:   reference,
		Status:      statement.StatusUnmatched,
	}
}

func TestEngine_ExactReferenceWins(t *testing.T) {
	engine := NewEngine(DefaultRules(), nil)

	items := []ledger.OpenItem{
		openItem("OI-1", "RE-2024-0042", 1250.00, 0),
		openItem("OI-2", "RE-2024-0099", 1250.00, 0),
	}
	line := creditLine(1250.00, "RE-2024-0042")

	result := engine.Evaluate(context.Background(), "L-1", line, items)

	assert.Equal(t, "OI-1", result.ChosenOpenItemID)
	assert.InDelta(t, 1.0, result.Confidence, 0.0001)
	assert.True(t, result.AutoEligible, "exact-reference is an auto-apply rule")
	require.NotNil(t, result.Best())
	assert.Equal(t, RuleReference, result.Best().RuleType)
}

func TestEngine_TieBreaksOnLowerOpenItemID(t *testing.T) {
	rules := []Rule{{
		Name:     "exact-amount",
		Priority: 80,
		Type:     RuleAmount,
		Params:   AmountParams{Tolerance: cent, MaxDateDays: 30},
		Active:   true,
	}}
	engine := NewEngine(rules, nil)

	// Identical amounts and due dates score identically.
	items := []ledger.OpenItem{
		openItem("OI-9", "DOC-A", 500.00, 0),
		openItem("OI-2", "DOC-B", 500.00, 0),
	}

	result := engine.Evaluate(context.Background(), "L-1", creditLine(500.00, ""), items)

	assert.Equal(t, "OI-2", result.ChosenOpenItemID)
	require.Len(t, result.Suggestions, 2)
	assert.Equal(t, "OI-2", result.Suggestions[0].OpenItemID)
	assert.Equal(t, "OI-9", result.Suggestions[1].OpenItemID)
}

func TestEngine_Deterministic(t *testing.T) {
	engine := NewEngine(DefaultRules(), nil)
	items := []ledger.OpenItem{
		openItem("OI-3", "RE-2024-0001", 100.00, 3),
		openItem("OI-1", "RE-2024-0002", 102.00, 10),
		openItem("OI-2", "RE-2024-0003", 99.00, -5),
	}
	line := creditLine(100.00, "RE-2024-0002")

	first := engine.Evaluate(context.Background(), "L-1", line, items)
	second := engine.Evaluate(context.Background(), "L-1", line, items)

	assert.Equal(t, first, second)

	// Input order must not matter either.
	shuffled := []ledger.OpenItem{items[2], items[0], items[1]}
	third := engine.Evaluate(context.Background(), "L-1", line, shuffled)
	assert.Equal(t, first, third)
}

func TestEngine_SettledItemsExcluded(t *testing.T) {
	engine := NewEngine(DefaultRules(), nil)

	settled := openItem("OI-1", "RE-2024-0042", 1250.00, 0)
	settled.OpenAmount = decimal.Zero

	result := engine.Evaluate(context.Background(), "L-1", creditLine(1250.00, "RE-2024-0042"),
		[]ledger.OpenItem{settled})

	assert.Empty(t, result.ChosenOpenItemID)
	assert.Empty(t, result.Suggestions)
}

func TestEngine_InactiveRulesIgnored(t *testing.T) {
	rules := []Rule{{
		Name:     "exact-amount",
		Priority: 80,
		Type:     RuleAmount,
		Params:   AmountParams{Tolerance: cent, MaxDateDays: 30},
		Active:   false,
	}}
	engine := NewEngine(rules, nil)

	result := engine.Evaluate(context.Background(), "L-1", creditLine(500.00, ""),
		[]ledger.OpenItem{openItem("OI-1", "DOC-A", 500.00, 0)})

	assert.Empty(t, result.Suggestions)
}

func TestEngine_TopSuggestionsRetained(t *testing.T) {
	rules := []Rule{{
		Name:     "exact-amount",
		Priority: 80,
		Type:     RuleAmount,
		Params:   AmountParams{Tolerance: cent, MaxDateDays: 30},
		Active:   true,
	}}
	engine := NewEngine(rules, nil)

	var items []ledger.OpenItem
	for i := 0; i < 8; i++ {
		items = append(items, openItem(
			string(rune('A'+i))+"-item", "DOC", 500.00, i))
	}

	result := engine.Evaluate(context.Background(), "L-1", creditLine(500.00, ""), items)

	assert.Len(t, result.Suggestions, MaxSuggestions)
	// The best suggestion is the one the candidate was chosen from.
	assert.Equal(t, result.Suggestions[0].OpenItemID, result.ChosenOpenItemID)
}

func TestEngine_IBANRule(t *testing.T) {
	directory := stubDirectory{"Acme GmbH": "DE89370400440532013000"}
	engine := NewEngine(DefaultRules(), directory)

	item := openItem("OI-1", "UNRELATED-DOC", 750.00, 0)
	item.CounterpartyName = "Acme GmbH"

	line := creditLine(750.00, "")
	line.CounterpartyIBAN = "DE89 3704 0044 0532 0130 00"

	result := engine.Evaluate(context.Background(), "L-1", line, []ledger.OpenItem{item})

	require.NotEmpty(t, result.Suggestions)
	var sawIBAN bool
	for _, s := range result.Suggestions {
		if s.RuleType == RuleIBAN {
			sawIBAN = true
			assert.InDelta(t, 1.0, s.Confidence, 0.0001)
		}
	}
	assert.True(t, sawIBAN, "IBAN rule should have scored")
	assert.True(t, result.AutoEligible, "counterparty-iban is an auto-apply rule")
}

func TestEngine_NoAutoEligibilityFromNonAutoRules(t *testing.T) {
	engine := NewEngine(DefaultRules(), nil)

	// Amount matches perfectly but there is no reference or IBAN, so only
	// non-auto-apply rules can score.
	item := openItem("OI-1", "RE-2024-0042", 500.00, 0)
	result := engine.Evaluate(context.Background(), "L-1", creditLine(500.00, ""),
		[]ledger.OpenItem{item})

	assert.Equal(t, "OI-1", result.ChosenOpenItemID)
	assert.False(t, result.AutoEligible)
}
