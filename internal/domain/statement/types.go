// Package statement normalizes raw bank statement files into a single model.
//
// Three wire formats are supported: CAMT.053 XML, SWIFT MT940 and delimited
// CSV exports. Parsing is fail-soft per entry: a bad entry is skipped and
// reported, the rest of the statement is still returned.
package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Format identifies a supported statement file format.
type Format string

const (
	FormatCAMT  Format = "camt053"
	FormatMT940 Format = "mt940"
	FormatCSV   Format = "csv"
)

// LineStatus tracks the matching state of a statement line.
type LineStatus string

const (
	StatusUnmatched LineStatus = "UNMATCHED"
	StatusMatched   LineStatus = "MATCHED"
	StatusPartial   LineStatus = "PARTIAL"
)

// Flag values attached to lines that parsed with a defaulted field.
const (
	FlagDefaultedIndicator = "defaulted_credit_debit_indicator"
)

// Statement is the normalized form of one bank statement file.
//
// ClosingBalance is always computed as OpeningBalance plus the sum of line
// amounts, never trusted from the file, so the statement is arithmetically
// consistent with its own lines.
type Statement struct {
	AccountIBAN    string          `json:"account_iban"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Lines          []Line          `json:"lines"`
}

// Line is one booking on a statement. Amount is signed: credits positive,
// debits negative. Status and MatchedOpenItemID are the only fields that
// change after import.
type Line struct {
	LineNumber        int             `json:"line_number"`
	BookingDate       time.Time       `json:"booking_date"`
	ValueDate         time.Time       `json:"value_date"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Reference         string          `json:"reference"`
	RemittanceInfo    string          `json:"remittance_info"`
	CounterpartyName  string          `json:"counterparty_name"`
	CounterpartyIBAN  string          `json:"counterparty_iban"`
	Status            LineStatus      `json:"status"`
	MatchedOpenItemID string          `json:"matched_open_item_id,omitempty"`
	Flags             []string        `json:"flags,omitempty"`
}

// Options carries caller-supplied context a file may not contain itself.
type Options struct {
	// AccountIBAN is required for CSV files, which carry no account block.
	AccountIBAN string

	// DefaultCurrency is used when an entry has no currency of its own.
	DefaultCurrency string

	// MissingIndicatorCredit controls how a CAMT entry without a
	// credit/debit indicator is booked. The business default is credit.
	MissingIndicatorCredit bool
}

// DefaultOptions returns the standard parser options.
func DefaultOptions() Options {
	return Options{
		DefaultCurrency:        "EUR",
		MissingIndicatorCredit: true,
	}
}

// computeClosing finalizes a statement: line numbers are renumbered
// contiguously from 1 over the entries that parsed, and the closing balance
// is derived from the opening balance and line amounts.
func computeClosing(s *Statement) {
	sum := decimal.Zero
	for i := range s.Lines {
		s.Lines[i].LineNumber = i + 1
		if s.Lines[i].Status == "" {
			s.Lines[i].Status = StatusUnmatched
		}
		sum = sum.Add(s.Lines[i].Amount)
	}
	s.ClosingBalance = s.OpeningBalance.Add(sum)
}
