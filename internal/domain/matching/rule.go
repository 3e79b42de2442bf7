// Package matching implements the prioritized, confidence-scored rule engine
// that pairs statement lines with open items.
//
// Rules are configuration data, not code: new matching behavior means a new
// RuleType with its own typed parameter struct, never a new key in a loose
// parameter map. The engine is deterministic: identical rules, open items
// and lines always produce identical results.
package matching

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleType selects the scorer combination a rule applies.
type RuleType string

const (
	RuleAmount    RuleType = "AMOUNT"
	RuleReference RuleType = "REFERENCE"
	RuleIBAN      RuleType = "IBAN"
	RuleDateRange RuleType = "DATE_RANGE"
	RuleCombined  RuleType = "COMBINED"
	RuleManual    RuleType = "MANUAL"
)

// RuleParams is the closed set of per-type rule parameters. Each variant
// carries only the fields its rule type reads.
type RuleParams interface {
	isRuleParams()
}

// AmountParams parameterizes AMOUNT rules.
type AmountParams struct {
	Tolerance   decimal.Decimal `json:"tolerance"`
	MaxDateDays int             `json:"max_date_days"`
}

// ReferenceParams parameterizes REFERENCE rules.
type ReferenceParams struct {
	Tolerance   decimal.Decimal `json:"tolerance"`
	MaxDateDays int             `json:"max_date_days"`
}

// IBANParams parameterizes IBAN rules.
type IBANParams struct {
	Tolerance decimal.Decimal `json:"tolerance"`
}

// DateRangeParams parameterizes DATE_RANGE rules. Days is a hard window:
// outside it the rule scores zero regardless of amount.
type DateRangeParams struct {
	Days      int             `json:"days"`
	Tolerance decimal.Decimal `json:"tolerance"`
}

// CombinedParams parameterizes COMBINED rules.
type CombinedParams struct {
	Tolerance   decimal.Decimal `json:"tolerance"`
	MaxDateDays int             `json:"max_date_days"`
}

func (AmountParams) isRuleParams()    {}
func (ReferenceParams) isRuleParams() {}
func (IBANParams) isRuleParams()      {}
func (DateRangeParams) isRuleParams() {}
func (CombinedParams) isRuleParams()  {}

// Rule is one row of matching configuration. Higher priority evaluates
// first; inactive rules are ignored entirely.
type Rule struct {
	ID                  string
	Name                string
	Priority            int
	Type                RuleType
	Params              RuleParams
	ConfidenceThreshold float64
	AutoApply           bool
	Active              bool
}

// MarshalParams serializes a rule's parameters for persistence.
func MarshalParams(p RuleParams) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// UnmarshalParams revives the typed parameter variant for a rule type.
// Unknown types are rejected; the union is closed on purpose.
func UnmarshalParams(t RuleType, data []byte) (RuleParams, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	switch t {
	case RuleAmount:
		var p AmountParams
		err := json.Unmarshal(data, &p)
		return p, err
	case RuleReference:
		var p ReferenceParams
		err := json.Unmarshal(data, &p)
		return p, err
	case RuleIBAN:
		var p IBANParams
		err := json.Unmarshal(data, &p)
		return p, err
	case RuleDateRange:
		var p DateRangeParams
		err := json.Unmarshal(data, &p)
		return p, err
	case RuleCombined:
		var p CombinedParams
		err := json.Unmarshal(data, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown rule type %q", t)
	}
}

// DefaultRules is the rule set seeded on first start. Priorities put the
// high-precision reference rule first, the broad combined rule last.
func DefaultRules() []Rule {
	cent := decimal.NewFromFloat(0.01)
	return []Rule{
		{
			Name:                "exact-reference",
			Priority:            100,
			Type:                RuleReference,
			Params:              ReferenceParams{Tolerance: cent, MaxDateDays: 30},
			ConfidenceThreshold: 0.85,
			AutoApply:           true,
			Active:              true,
		},
		{
			Name:                "counterparty-iban",
			Priority:            90,
			Type:                RuleIBAN,
			Params:              IBANParams{Tolerance: cent},
			ConfidenceThreshold: 0.9,
			AutoApply:           true,
			Active:              true,
		},
		{
			Name:                "exact-amount",
			Priority:            80,
			Type:                RuleAmount,
			Params:              AmountParams{Tolerance: cent, MaxDateDays: 30},
			ConfidenceThreshold: 0.9,
			AutoApply:           false,
			Active:              true,
		},
		{
			Name:                "due-date-window",
			Priority:            70,
			Type:                RuleDateRange,
			Params:              DateRangeParams{Days: 14, Tolerance: cent},
			ConfidenceThreshold: 0.9,
			AutoApply:           false,
			Active:              true,
		},
		{
			Name:                "weighted-combined",
			Priority:            60,
			Type:                RuleCombined,
			Params:              CombinedParams{Tolerance: cent, MaxDateDays: 30},
			ConfidenceThreshold: 0.8,
			AutoApply:           false,
			Active:              true,
		},
	}
}
