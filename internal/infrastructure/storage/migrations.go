package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "statements_and_lines",
		Up:      migration001StatementsAndLines,
	},
	{
		Version: 2,
		Name:    "ledger_tables",
		Up:      migration002LedgerTables,
	},
	{
		Version: 3,
		Name:    "matching_tables",
		Up:      migration003MatchingTables,
	},
	{
		Version: 4,
		Name:    "seed_default_rules",
		Up:      migration004SeedDefaultRules,
	},
	{
		Version: 5,
		Name:    "indexes",
		Up:      migration005Indexes,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001StatementsAndLines(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE statements (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			format TEXT NOT NULL,
			account_iban TEXT,
			currency TEXT NOT NULL,
			opening_balance TEXT NOT NULL,
			closing_balance TEXT NOT NULL,
			imported_at TIMESTAMP NOT NULL,
			parse_errors_json TEXT
		);

		CREATE TABLE statement_lines (
			id TEXT PRIMARY KEY,
			statement_id TEXT NOT NULL REFERENCES statements(id),
			line_number INTEGER NOT NULL,
			booking_date TIMESTAMP NOT NULL,
			value_date TIMESTAMP NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			reference TEXT,
			remittance_info TEXT,
			counterparty_name TEXT,
			counterparty_iban TEXT,
			status TEXT NOT NULL DEFAULT 'UNMATCHED',
			matched_open_item_id TEXT,
			flags_json TEXT
		);
	`)
	return err
}

func migration002LedgerTables(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE open_items (
			id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL DEFAULT '',
			document_number TEXT NOT NULL,
			counterparty_id TEXT,
			counterparty_name TEXT,
			total_amount TEXT NOT NULL,
			open_amount TEXT NOT NULL,
			due_date TIMESTAMP NOT NULL,
			side TEXT NOT NULL
		);

		CREATE TABLE counterparties (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			iban TEXT NOT NULL
		);

		CREATE TABLE journal_entries (
			id TEXT PRIMARY KEY,
			debit_account TEXT NOT NULL,
			credit_account TEXT NOT NULL,
			amount TEXT NOT NULL,
			entry_date TIMESTAMP NOT NULL,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func migration003MatchingTables(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE matching_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			priority INTEGER NOT NULL,
			rule_type TEXT NOT NULL,
			params_json TEXT NOT NULL DEFAULT '{}',
			confidence_threshold REAL NOT NULL,
			auto_apply INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE match_results (
			id TEXT PRIMARY KEY,
			line_id TEXT NOT NULL REFERENCES statement_lines(id),
			statement_id TEXT NOT NULL,
			chosen_open_item_id TEXT,
			matched INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			auto_matched INTEGER NOT NULL DEFAULT 0,
			matched_by TEXT,
			settled_amount TEXT NOT NULL DEFAULT '0',
			suggestions_json TEXT,
			reversed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);
	`)
	return err
}

// migration004SeedDefaultRules installs the standard rule set so a fresh
// database matches out of the box. Rules are plain rows afterwards.
func migration004SeedDefaultRules(tx *sql.Tx) error {
	for _, rule := range matching.DefaultRules() {
		params, err := matching.MarshalParams(rule.Params)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO matching_rules
			(id, name, priority, rule_type, params_json, confidence_threshold, auto_apply, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, uuid.NewString(), rule.Name, rule.Priority, string(rule.Type), string(params),
			rule.ConfidenceThreshold, rule.AutoApply, rule.Active); err != nil {
			return err
		}
	}
	return nil
}

func migration005Indexes(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX idx_lines_statement ON statement_lines(statement_id, status);
		CREATE INDEX idx_open_items_tenant ON open_items(tenant, open_amount);
		CREATE INDEX idx_match_results_statement ON match_results(statement_id, created_at);
		CREATE INDEX idx_journal_entries_accounts ON journal_entries(debit_account, credit_account, entry_date);
	`)
	return err
}
