package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// StatementResponse represents a statement in API responses. Balances and
// amounts are decimal strings.
type StatementResponse struct {
	ID             string           `json:"id"`
	AccountID      string           `json:"account_id"`
	Format         string           `json:"format"`
	AccountIBAN    string           `json:"account_iban"`
	Currency       string           `json:"currency"`
	OpeningBalance string           `json:"opening_balance"`
	ClosingBalance string           `json:"closing_balance"`
	ImportedAt     string           `json:"imported_at"`
	LineCount      int              `json:"line_count"`
	ParseErrors    []ParseErrorItem `json:"parse_errors,omitempty"`
	Lines          []LineResponse   `json:"lines,omitempty"`
}

// ParseErrorItem reports one skipped entry from an import.
type ParseErrorItem struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// LineResponse represents a statement line in API responses.
type LineResponse struct {
	ID                string   `json:"id"`
	LineNumber        int      `json:"line_number"`
	BookingDate       string   `json:"booking_date"`
	ValueDate         string   `json:"value_date,omitempty"`
	Amount            string   `json:"amount"`
	Currency          string   `json:"currency"`
	Reference         string   `json:"reference,omitempty"`
	RemittanceInfo    string   `json:"remittance_info,omitempty"`
	CounterpartyName  string   `json:"counterparty_name,omitempty"`
	CounterpartyIBAN  string   `json:"counterparty_iban,omitempty"`
	Status            string   `json:"status"`
	MatchedOpenItemID string   `json:"matched_open_item_id,omitempty"`
	Flags             []string `json:"flags,omitempty"`
}

// StatementListResponse is a paginated list of statements.
type StatementListResponse struct {
	Statements []StatementResponse `json:"statements"`
	TotalCount int                 `json:"total_count"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}

// SuggestionResponse is one ranked match candidate.
type SuggestionResponse struct {
	OpenItemID         string  `json:"open_item_id"`
	Confidence         float64 `json:"confidence"`
	RuleType           string  `json:"rule_type"`
	RuleName           string  `json:"rule_name"`
	Reason             string  `json:"reason"`
	AmountDifference   string  `json:"amount_difference"`
	DateDifferenceDays int     `json:"date_difference_days"`
}

// MatchResultResponse is the verdict for one line from a matching run.
type MatchResultResponse struct {
	LineID           string               `json:"line_id"`
	ChosenOpenItemID string               `json:"chosen_open_item_id,omitempty"`
	Matched          bool                 `json:"matched"`
	Confidence       float64              `json:"confidence"`
	AutoMatched      bool                 `json:"auto_matched"`
	MatchedBy        string               `json:"matched_by,omitempty"`
	Suggestions      []SuggestionResponse `json:"suggestions"`
}

// MatchRunResponse summarizes a matching run over a statement.
type MatchRunResponse struct {
	StatementID string                `json:"statement_id"`
	Evaluated   int                   `json:"evaluated"`
	AutoApplied int                   `json:"auto_applied"`
	Results     []MatchResultResponse `json:"results"`
}

// RuleResponse represents a matching rule in API responses. Params carries
// the type-specific parameter object verbatim.
type RuleResponse struct {
	ID                  string      `json:"id"`
	Name                string      `json:"name"`
	Priority            int         `json:"priority"`
	Type                string      `json:"type"`
	Params              interface{} `json:"params"`
	ConfidenceThreshold float64     `json:"confidence_threshold"`
	AutoApply           bool        `json:"auto_apply"`
	Active              bool        `json:"active"`
}

// OpenItemResponse represents an open item in API responses.
type OpenItemResponse struct {
	ID               string `json:"id"`
	DocumentNumber   string `json:"document_number"`
	CounterpartyID   string `json:"counterparty_id,omitempty"`
	CounterpartyName string `json:"counterparty_name,omitempty"`
	TotalAmount      string `json:"total_amount"`
	OpenAmount       string `json:"open_amount"`
	DueDate          string `json:"due_date"`
	Side             string `json:"side"`
}

// StatsResponse aggregates import and matching activity.
type StatsResponse struct {
	StatementCount   int    `json:"statement_count"`
	LineCount        int    `json:"line_count"`
	MatchedLineCount int    `json:"matched_line_count"`
	OpenItemCount    int    `json:"open_item_count"`
	AutoMatchedCount int    `json:"auto_matched_count"`
	TotalMatched     string `json:"total_matched_amount"`
}
