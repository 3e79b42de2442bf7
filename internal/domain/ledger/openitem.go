// Package ledger defines the open-item model and the collaborator contracts
// the matching and reconciliation engines consume. The engines never talk to
// the general ledger directly; everything money-related goes through these
// interfaces so the enclosing transaction scope stays with the caller.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side distinguishes receivables from payables.
type Side string

const (
	SideReceivable Side = "RECEIVABLE"
	SidePayable    Side = "PAYABLE"
)

// OpenItem is an unsettled receivable or payable document.
// Invariant: 0 <= OpenAmount <= TotalAmount. Only settlement decreases the
// open amount and only reversal increases it.
type OpenItem struct {
	ID               string          `json:"id"`
	DocumentNumber   string          `json:"document_number"`
	CounterpartyID   string          `json:"counterparty_id"`
	CounterpartyName string          `json:"counterparty_name"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	OpenAmount       decimal.Decimal `json:"open_amount"`
	DueDate          time.Time       `json:"due_date"`
	Side             Side            `json:"side"`
}

// IsOpen reports whether the item can still receive a settlement.
func (o OpenItem) IsOpen() bool {
	return o.OpenAmount.IsPositive()
}
