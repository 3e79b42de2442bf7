package matching

import (
	"github.com/shopspring/decimal"
)

// MatchedBy records who confirmed a match.
const (
	MatchedBySystem = "SYSTEM"
	MatchedByManual = "MANUAL"
)

// MaxSuggestions is how many suggestions survive per line for human review.
const MaxSuggestions = 5

// Suggestion is one scored (rule, open item) pairing for a line. Ephemeral:
// produced per matching run, only the top few are persisted.
type Suggestion struct {
	LineID             string          `json:"line_id"`
	OpenItemID         string          `json:"open_item_id"`
	Confidence         float64         `json:"confidence"`
	RuleType           RuleType        `json:"rule_type"`
	RuleName           string          `json:"rule_name"`
	Reason             string          `json:"reason"`
	AmountDifference   decimal.Decimal `json:"amount_difference"`
	DateDifferenceDays int             `json:"date_difference_days"`
}

// Result is the engine's verdict for one line. Matched and AutoMatched are
// set by the orchestrator once a candidate is actually applied.
type Result struct {
	LineID           string       `json:"line_id"`
	ChosenOpenItemID string       `json:"chosen_open_item_id,omitempty"`
	Matched          bool         `json:"matched"`
	Confidence       float64      `json:"confidence"`
	AutoMatched      bool         `json:"auto_matched"`
	MatchedBy        string       `json:"matched_by,omitempty"`
	Suggestions      []Suggestion `json:"suggestions"`

	// AutoEligible is true when some active auto-apply rule scored the
	// chosen item at or above that rule's own threshold.
	AutoEligible bool `json:"-"`
}

// Best returns the top suggestion, or nil when the line has none.
func (r *Result) Best() *Suggestion {
	if len(r.Suggestions) == 0 {
		return nil
	}
	return &r.Suggestions[0]
}
