package storage

import (
	"context"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
//
// It also satisfies the ledger collaborator contracts so one SQLite handle
// can serve as open-item ledger, journal and master data in a deployment
// that does not federate those out to the surrounding ERP.
type Repository interface {
	StatementRepository
	RuleRepository
	MatchRepository
	OpenItemAdmin
	CounterpartyAdmin
	JournalReader

	ledger.OpenItemRepository
	ledger.CounterpartyDirectory
	ledger.BalanceProvider
	ledger.JournalPoster

	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// StatementRepository handles statement and line persistence.
type StatementRepository interface {
	// SaveStatement persists a statement with all its lines; append-only.
	SaveStatement(ctx context.Context, rec *StatementRecord) error

	// GetStatement retrieves a statement including its lines.
	GetStatement(ctx context.Context, id string) (*StatementRecord, error)

	// ListStatements returns statements without lines, newest first.
	ListStatements(ctx context.Context, limit, offset int) ([]*StatementRecord, int, error)

	// GetLine retrieves one line by ID.
	GetLine(ctx context.Context, lineID string) (*LineRecord, error)

	// LinesByStatus returns a statement's lines with the given status,
	// ordered by line number.
	LinesByStatus(ctx context.Context, statementID string, status statement.LineStatus) ([]LineRecord, error)
}

// RuleRepository handles matching rule configuration.
type RuleRepository interface {
	// ListRules returns rules sorted by descending priority.
	ListRules(ctx context.Context, activeOnly bool) ([]matching.Rule, error)

	// SaveRule inserts or updates a rule, keyed by name.
	SaveRule(ctx context.Context, rule *matching.Rule) error
}

// MatchRepository handles match verdict persistence and the atomic
// line/open-item mutations.
type MatchRepository interface {
	// SaveMatchResult persists a suggest-only verdict (no mutation).
	SaveMatchResult(ctx context.Context, rec *MatchRecord) error

	// ApplyMatch marks the line matched and settles the open item in one
	// transaction, persisting the match record. newStatus is MATCHED or
	// PARTIAL. Fails with ErrLineAlreadyMatched or
	// ledger.ErrSettlementConflict, in which case nothing is mutated.
	ApplyMatch(ctx context.Context, rec *MatchRecord, newStatus statement.LineStatus) error

	// ReverseMatch returns a line to UNMATCHED and restores the settled
	// amount on the open item, atomically.
	ReverseMatch(ctx context.Context, lineID string) error

	// MarkLineBooked marks a line MATCHED after a remediation posting.
	// entry is posted in the same transaction.
	MarkLineBooked(ctx context.Context, lineID string, entry *JournalEntry) error

	// ListMatchResults returns a statement's match records, newest first.
	ListMatchResults(ctx context.Context, statementID string) ([]MatchRecord, error)
}

// OpenItemAdmin is the write surface the ERP uses to maintain open items.
type OpenItemAdmin interface {
	SaveOpenItem(ctx context.Context, item *ledger.OpenItem) error
	GetOpenItem(ctx context.Context, id string) (*ledger.OpenItem, error)
}

// CounterpartyAdmin maintains counterparty master data.
type CounterpartyAdmin interface {
	SaveCounterparty(ctx context.Context, cp *Counterparty) error
}

// JournalReader exposes posted entries for review.
type JournalReader interface {
	ListJournalEntries(ctx context.Context, limit int) ([]JournalEntry, error)
}

// Compile-time interface checks live in sqlite.go and mock.go.
