package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/scoring"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// Engine evaluates the active rule set against open items for one line at a
// time. It holds no mutable state between evaluations; re-running it over
// the same inputs yields the same results.
type Engine struct {
	rules     []Rule
	directory ledger.CounterpartyDirectory
}

// NewEngine builds an engine over the given rules. Inactive rules are
// dropped, the rest sorted by descending priority with the rule name as a
// stable tie-break. directory may be nil; IBAN scores are then always zero.
func NewEngine(rules []Rule, directory ledger.CounterpartyDirectory) *Engine {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].Name < active[j].Name
	})
	return &Engine{rules: active, directory: directory}
}

// Evaluate scores every (rule, open item) pair for one line and returns the
// line's result: all positive-scoring pairs as suggestions (top 5, sorted by
// confidence with the lower open-item ID winning ties) and the best-scoring
// pair as the candidate match.
func (e *Engine) Evaluate(ctx context.Context, lineID string, line statement.Line, items []ledger.OpenItem) Result {
	result := Result{LineID: lineID}

	open := make([]ledger.OpenItem, 0, len(items))
	for _, item := range items {
		if item.IsOpen() {
			open = append(open, item)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })

	for _, rule := range e.rules {
		for _, item := range open {
			confidence := e.scorePair(ctx, rule, line, item)
			if confidence <= 0 {
				continue
			}

			result.Suggestions = append(result.Suggestions, Suggestion{
				LineID:             lineID,
				OpenItemID:         item.ID,
				Confidence:         confidence,
				RuleType:           rule.Type,
				RuleName:           rule.Name,
				Reason:             reasonText(rule, line, item),
				AmountDifference:   line.Amount.Abs().Sub(item.OpenAmount.Abs()),
				DateDifferenceDays: scoring.DaysBetween(line.BookingDate, item.DueDate),
			})
		}
	}

	sort.SliceStable(result.Suggestions, func(i, j int) bool {
		a, b := result.Suggestions[i], result.Suggestions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.OpenItemID < b.OpenItemID
	})

	if len(result.Suggestions) > 0 {
		best := result.Suggestions[0]
		result.ChosenOpenItemID = best.OpenItemID
		result.Confidence = best.Confidence
		result.AutoEligible = e.autoEligible(best.OpenItemID, result.Suggestions)
	}
	if len(result.Suggestions) > MaxSuggestions {
		result.Suggestions = result.Suggestions[:MaxSuggestions]
	}

	return result
}

// scorePair combines the dimension scorers with the fixed weights for the
// rule's type.
func (e *Engine) scorePair(ctx context.Context, rule Rule, line statement.Line, item ledger.OpenItem) float64 {
	switch p := rule.Params.(type) {
	case AmountParams:
		amount := scoring.Amount(line.Amount, item.OpenAmount, p.Tolerance)
		date := scoring.Date(line.BookingDate, item.DueDate, p.MaxDateDays)
		return 0.7*amount + 0.3*date

	case ReferenceParams:
		ref := scoring.Reference(line.Reference, line.RemittanceInfo, item.DocumentNumber)
		if ref == 0 {
			return 0.0
		}
		amount := scoring.Amount(line.Amount, item.OpenAmount, p.Tolerance)
		date := scoring.Date(line.BookingDate, item.DueDate, p.MaxDateDays)
		return 0.5*ref + 0.3*amount + 0.2*date

	case IBANParams:
		iban := scoring.IBAN(line.CounterpartyIBAN, e.lookupIBAN(ctx, item.CounterpartyName))
		if iban == 0 {
			return 0.0
		}
		amount := scoring.Amount(line.Amount, item.OpenAmount, p.Tolerance)
		return 0.6*iban + 0.4*amount

	case DateRangeParams:
		if scoring.DaysBetween(line.BookingDate, item.DueDate) > p.Days {
			return 0.0
		}
		date := scoring.Date(line.BookingDate, item.DueDate, p.Days)
		amount := scoring.Amount(line.Amount, item.OpenAmount, p.Tolerance)
		return 0.5*date + 0.5*amount

	case CombinedParams:
		amount := scoring.Amount(line.Amount, item.OpenAmount, p.Tolerance)
		date := scoring.Date(line.BookingDate, item.DueDate, p.MaxDateDays)
		ref := scoring.Reference(line.Reference, line.RemittanceInfo, item.DocumentNumber)
		return 0.4*amount + 0.3*date + 0.3*ref

	default:
		return 0.0
	}
}

// lookupIBAN resolves the open item's counterparty IBAN through master
// data. No directory or no hit means no IBAN dimension for this item.
func (e *Engine) lookupIBAN(ctx context.Context, counterpartyName string) string {
	if e.directory == nil || counterpartyName == "" {
		return ""
	}
	iban, ok := e.directory.LookupIBAN(ctx, counterpartyName)
	if !ok {
		return ""
	}
	return iban
}

// autoEligible reports whether any active auto-apply rule scored the chosen
// item at or above that rule's own confidence threshold.
func (e *Engine) autoEligible(chosenItemID string, suggestions []Suggestion) bool {
	thresholds := make(map[string]Rule, len(e.rules))
	for _, rule := range e.rules {
		thresholds[rule.Name] = rule
	}
	for _, s := range suggestions {
		if s.OpenItemID != chosenItemID {
			continue
		}
		if rule, ok := thresholds[s.RuleName]; ok && rule.AutoApply && s.Confidence >= rule.ConfidenceThreshold {
			return true
		}
	}
	return false
}

func reasonText(rule Rule, line statement.Line, item ledger.OpenItem) string {
	return fmt.Sprintf("%s rule %q: %s %s vs open %s, booked %s, due %s",
		rule.Type, rule.Name,
		line.Amount.StringFixed(2), line.Currency,
		item.OpenAmount.StringFixed(2),
		line.BookingDate.Format("2006-01-02"),
		item.DueDate.Format("2006-01-02"))
}
