package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// StatementRecord is a persisted normalized statement. Statements are
// append-only: once imported they are never updated or deleted, only their
// lines' matching status moves.
type StatementRecord struct {
	ID             string                `json:"id"`
	AccountID      string                `json:"account_id"`
	Format         statement.Format      `json:"format"`
	AccountIBAN    string                `json:"account_iban"`
	Currency       string                `json:"currency"`
	OpeningBalance decimal.Decimal       `json:"opening_balance"`
	ClosingBalance decimal.Decimal       `json:"closing_balance"`
	ImportedAt     time.Time             `json:"imported_at"`
	ParseErrors    []statement.LineError `json:"parse_errors,omitempty"`
	Lines          []LineRecord          `json:"lines,omitempty"`
}

// LineRecord is a persisted statement line.
type LineRecord struct {
	ID          string `json:"id"`
	StatementID string `json:"statement_id"`
	statement.Line
}

// MatchRecord is a persisted matching verdict for one line, including the
// retained suggestions. SettledAmount is what was actually taken off the
// open item; it is what a reversal restores.
type MatchRecord struct {
	ID               string                `json:"id"`
	LineID           string                `json:"line_id"`
	StatementID      string                `json:"statement_id"`
	ChosenOpenItemID string                `json:"chosen_open_item_id,omitempty"`
	Matched          bool                  `json:"matched"`
	Confidence       float64               `json:"confidence"`
	AutoMatched      bool                  `json:"auto_matched"`
	MatchedBy        string                `json:"matched_by,omitempty"`
	SettledAmount    decimal.Decimal       `json:"settled_amount"`
	Suggestions      []matching.Suggestion `json:"suggestions"`
	Reversed         bool                  `json:"reversed"`
	CreatedAt        time.Time             `json:"created_at"`
}

// JournalEntry is one posted double-entry booking.
type JournalEntry struct {
	ID            string          `json:"id"`
	DebitAccount  string          `json:"debit_account"`
	CreditAccount string          `json:"credit_account"`
	Amount        decimal.Decimal `json:"amount"`
	EntryDate     time.Time       `json:"entry_date"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Counterparty is a master-data row used by the IBAN scorer.
type Counterparty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IBAN string `json:"iban"`
}

// Stats aggregates import and matching activity for the dashboard.
type Stats struct {
	StatementCount   int    `json:"statement_count"`
	LineCount        int    `json:"line_count"`
	MatchedLineCount int    `json:"matched_line_count"`
	OpenItemCount    int    `json:"open_item_count"`
	AutoMatchedCount int    `json:"auto_matched_count"`
	TotalMatched     string `json:"total_matched_amount"`
}
