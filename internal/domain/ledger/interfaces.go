package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrSettlementConflict is returned when a settlement would push an open
// amount below zero. The operation is rejected and no state is mutated.
var ErrSettlementConflict = errors.New("settlement exceeds open amount")

// ErrBalanceUnavailable is returned by a BalanceProvider that cannot produce
// a ledger balance. Reconciliation reports an unbalanced verdict with an
// explanatory item instead of failing.
var ErrBalanceUnavailable = errors.New("ledger balance unavailable")

// OpenItemRepository is the read/write view on the open-item ledger.
type OpenItemRepository interface {
	// FindOpenItems returns every open item for the tenant, settled or not.
	// Callers filter on IsOpen themselves.
	FindOpenItems(ctx context.Context, tenant string) ([]OpenItem, error)

	// Settle reduces an item's open amount. Returns ErrSettlementConflict
	// when amount exceeds the remaining open amount.
	Settle(ctx context.Context, openItemID string, amount decimal.Decimal) error

	// Reverse restores a previously settled amount.
	Reverse(ctx context.Context, openItemID string, amount decimal.Decimal) error
}

// CounterpartyDirectory resolves counterparty names to known IBANs. Used by
// the IBAN scorer; a miss yields a zero score, never an error.
type CounterpartyDirectory interface {
	LookupIBAN(ctx context.Context, name string) (string, bool)
}

// BalanceProvider computes the ledger-side balance of a bank account as of a
// date (sum of posted journal lines against the account's GL mapping).
type BalanceProvider interface {
	GetBalance(ctx context.Context, bankAccountID string, asOf time.Time) (decimal.Decimal, error)
}

// JournalPoster posts one balanced double-entry journal line pair.
type JournalPoster interface {
	PostEntry(ctx context.Context, debitAccount, creditAccount string, amount decimal.Decimal, date time.Time, description string) (string, error)
}
