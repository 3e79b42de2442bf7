package dto

import "encoding/json"

// ImportStatementRequest is the body of POST /api/statements. Content holds
// the raw statement text; ContentBase64 is the alternative for callers that
// cannot embed the file verbatim in JSON. Exactly one should be set.
type ImportStatementRequest struct {
	Format        string `json:"format"`
	AccountID     string `json:"account_id"`
	Content       string `json:"content,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
}

// MatchStatementRequest is the body of POST /api/statements/{id}/match.
type MatchStatementRequest struct {
	Tenant        string  `json:"tenant,omitempty"`
	AutoApply     bool    `json:"auto_apply"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// ManualMatchRequest is the body of POST /api/lines/{id}/match.
type ManualMatchRequest struct {
	OpenItemID string `json:"open_item_id"`
}

// ReconcileRequest is the body of POST /api/statements/{id}/reconcile.
type ReconcileRequest struct {
	AutoBook bool `json:"auto_book"`
}

// RuleRequest is the body of POST /api/rules. Params is decoded against
// Type, so unknown rule types are rejected before anything is stored.
type RuleRequest struct {
	Name                string          `json:"name"`
	Priority            int             `json:"priority"`
	Type                string          `json:"type"`
	Params              json.RawMessage `json:"params"`
	ConfidenceThreshold float64         `json:"confidence_threshold"`
	AutoApply           bool            `json:"auto_apply"`
	Active              bool            `json:"active"`
}

// OpenItemRequest is the body of POST /api/open-items. Amounts are decimal
// strings so callers never lose cents to float rounding.
type OpenItemRequest struct {
	ID               string `json:"id,omitempty"`
	DocumentNumber   string `json:"document_number"`
	CounterpartyID   string `json:"counterparty_id,omitempty"`
	CounterpartyName string `json:"counterparty_name,omitempty"`
	TotalAmount      string `json:"total_amount"`
	OpenAmount       string `json:"open_amount,omitempty"`
	DueDate          string `json:"due_date"`
	Side             string `json:"side"`
}
