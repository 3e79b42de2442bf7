// Package recon compares a statement's bank-reported balance against the
// ledger-computed balance for the same account and turns the gap into
// reviewable booking suggestions.
package recon

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// BalancedTolerance is the cent threshold below which a difference counts
// as balanced.
var BalancedTolerance = decimal.NewFromFloat(0.01)

// DifferenceKind classifies a reconciliation difference item.
type DifferenceKind string

const (
	// DiffUnmatchedLine flags a statement line with no ledger counterpart.
	DiffUnmatchedLine DifferenceKind = "UNMATCHED_LINE"
	// DiffLedgerGap flags a residual difference not explained by any line.
	DiffLedgerGap DifferenceKind = "LEDGER_GAP"
	// DiffBalanceUnavailable flags a failed ledger balance lookup.
	DiffBalanceUnavailable DifferenceKind = "BALANCE_UNAVAILABLE"
)

// Action suggests how to remediate a difference item.
type Action string

const (
	ActionCreateEntry Action = "CREATE_ENTRY"
	ActionReview      Action = "REVIEW"
)

// DifferenceItem is one human-reviewable discrepancy with a suggested
// remediation. Suggestions are never posted automatically; that is the
// orchestrator's autoBook decision.
type DifferenceItem struct {
	Kind             DifferenceKind  `json:"kind"`
	LineNumber       int             `json:"line_number,omitempty"`
	LineID           string          `json:"line_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	SuggestedAccount string          `json:"suggested_account,omitempty"`
	SuggestedAction  Action          `json:"suggested_action"`
	Description      string          `json:"description"`
}

// Result is the verdict for one statement.
type Result struct {
	StatementID   string           `json:"statement_id"`
	BankBalance   decimal.Decimal  `json:"bank_balance"`
	LedgerBalance decimal.Decimal  `json:"ledger_balance"`
	Difference    decimal.Decimal  `json:"difference"`
	IsBalanced    bool             `json:"is_balanced"`
	Differences   []DifferenceItem `json:"differences"`
}

// UnmatchedLine pairs a persisted line with its ID for difference items.
type UnmatchedLine struct {
	ID   string
	Line statement.Line
}

// Compare produces the reconciliation verdict. Difference is bank minus
// ledger; balanced means the absolute difference is below a cent. Every
// unmatched line becomes a CREATE_ENTRY suggestion against the clearing
// account, and any residual gap the lines do not explain becomes a REVIEW
// item.
func Compare(statementID string, bankBalance, ledgerBalance decimal.Decimal, unmatched []UnmatchedLine, clearingAccount string) Result {
	diff := bankBalance.Sub(ledgerBalance)
	result := Result{
		StatementID:   statementID,
		BankBalance:   bankBalance,
		LedgerBalance: ledgerBalance,
		Difference:    diff,
		IsBalanced:    diff.Abs().LessThan(BalancedTolerance),
		Differences:   []DifferenceItem{},
	}
	if result.IsBalanced {
		return result
	}

	explained := decimal.Zero
	for _, u := range unmatched {
		explained = explained.Add(u.Line.Amount)
		result.Differences = append(result.Differences, DifferenceItem{
			Kind:             DiffUnmatchedLine,
			LineNumber:       u.Line.LineNumber,
			LineID:           u.ID,
			Amount:           u.Line.Amount,
			SuggestedAccount: clearingAccount,
			SuggestedAction:  ActionCreateEntry,
			Description: fmt.Sprintf("unmatched line %d: %s %s (%s)",
				u.Line.LineNumber, u.Line.Amount.StringFixed(2), u.Line.Currency, u.Line.RemittanceInfo),
		})
	}

	if gap := diff.Sub(explained); !gap.Abs().LessThan(BalancedTolerance) {
		result.Differences = append(result.Differences, DifferenceItem{
			Kind:            DiffLedgerGap,
			Amount:          gap,
			SuggestedAction: ActionReview,
			Description:     fmt.Sprintf("residual difference of %s not explained by unmatched lines", gap.StringFixed(2)),
		})
	}

	return result
}

// Unavailable builds the verdict for a failed ledger balance lookup: not
// balanced, with a single explanatory item instead of an error.
func Unavailable(statementID string, bankBalance decimal.Decimal, reason string) Result {
	return Result{
		StatementID: statementID,
		BankBalance: bankBalance,
		Difference:  bankBalance,
		IsBalanced:  false,
		Differences: []DifferenceItem{{
			Kind:            DiffBalanceUnavailable,
			Amount:          bankBalance,
			SuggestedAction: ActionReview,
			Description:     "ledger balance unavailable: " + reason,
		}},
	}
}
