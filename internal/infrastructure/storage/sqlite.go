package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clearledger/bankrecon-backend/internal/domain/ledger"
	"github.com/clearledger/bankrecon-backend/internal/domain/matching"
	"github.com/clearledger/bankrecon-backend/internal/domain/statement"
)

// ErrNotFound is returned for lookups of IDs that do not exist.
var ErrNotFound = errors.New("not found")

// ErrLineAlreadyMatched rejects a match application against a line that is
// no longer UNMATCHED.
var ErrLineAlreadyMatched = errors.New("statement line already matched")

// Storage provides SQLite database access for statements, matching state
// and the embedded open-item ledger. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// --- statements ---

// SaveStatement persists a statement and all of its lines in one transaction.
func (s *Storage) SaveStatement(ctx context.Context, rec *StatementRecord) error {
	errsJSON, err := json.Marshal(rec.ParseErrors)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO statements
		(id, account_id, format, account_iban, currency, opening_balance, closing_balance, imported_at, parse_errors_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.AccountID, string(rec.Format), rec.AccountIBAN, rec.Currency,
		rec.OpeningBalance.String(), rec.ClosingBalance.String(), rec.ImportedAt, string(errsJSON)); err != nil {
		return err
	}

	for i := range rec.Lines {
		line := &rec.Lines[i]
		flagsJSON, err := json.Marshal(line.Flags)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO statement_lines
			(id, statement_id, line_number, booking_date, value_date, amount, currency,
			 reference, remittance_info, counterparty_name, counterparty_iban, status, matched_open_item_id, flags_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, line.ID, rec.ID, line.LineNumber, line.BookingDate, line.ValueDate,
			line.Amount.String(), line.Currency, line.Reference, line.RemittanceInfo,
			line.CounterpartyName, line.CounterpartyIBAN, string(line.Status),
			line.MatchedOpenItemID, string(flagsJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStatement retrieves a statement including its lines.
func (s *Storage) GetStatement(ctx context.Context, id string) (*StatementRecord, error) {
	rec, err := s.scanStatement(s.db.QueryRowContext(ctx, `
		SELECT id, account_id, format, account_iban, currency, opening_balance, closing_balance, imported_at, parse_errors_json
		FROM statements WHERE id = ?
	`, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, lineSelect+` WHERE statement_id = ? ORDER BY line_number`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		rec.Lines = append(rec.Lines, *line)
	}
	return rec, rows.Err()
}

// ListStatements returns statements without lines, newest first.
func (s *Storage) ListStatements(ctx context.Context, limit, offset int) ([]*StatementRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statements`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, format, account_iban, currency, opening_balance, closing_balance, imported_at, parse_errors_json
		FROM statements ORDER BY imported_at DESC, id LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	var records []*StatementRecord
	for rows.Next() {
		rec, err := s.scanStatement(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// GetLine retrieves one line by ID.
func (s *Storage) GetLine(ctx context.Context, lineID string) (*LineRecord, error) {
	return scanLine(s.db.QueryRowContext(ctx, lineSelect+` WHERE id = ?`, lineID))
}

// LinesByStatus returns a statement's lines with the given status.
func (s *Storage) LinesByStatus(ctx context.Context, statementID string, status statement.LineStatus) ([]LineRecord, error) {
	rows, err := s.db.QueryContext(ctx, lineSelect+` WHERE statement_id = ? AND status = ? ORDER BY line_number`, statementID, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []LineRecord
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

const lineSelect = `
	SELECT id, statement_id, line_number, booking_date, value_date, amount, currency,
	       reference, remittance_info, counterparty_name, counterparty_iban, status,
	       matched_open_item_id, flags_json
	FROM statement_lines`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLine(row rowScanner) (*LineRecord, error) {
	var (
		line      LineRecord
		amount    string
		status    string
		matchedID sql.NullString
		flagsJSON sql.NullString
	)
	err := row.Scan(&line.ID, &line.StatementID, &line.LineNumber, &line.BookingDate, &line.ValueDate,
		&amount, &line.Currency, &line.Reference, &line.RemittanceInfo,
		&line.CounterpartyName, &line.CounterpartyIBAN, &status, &matchedID, &flagsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if line.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("line %s amount: %w", line.ID, err)
	}
	line.Status = statement.LineStatus(status)
	line.MatchedOpenItemID = matchedID.String
	if flagsJSON.Valid && flagsJSON.String != "" {
		_ = json.Unmarshal([]byte(flagsJSON.String), &line.Flags)
	}
	return &line, nil
}

func (s *Storage) scanStatement(row rowScanner) (*StatementRecord, error) {
	var (
		rec      StatementRecord
		format   string
		opening  string
		closing  string
		errsJSON sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.AccountID, &format, &rec.AccountIBAN, &rec.Currency,
		&opening, &closing, &rec.ImportedAt, &errsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Format = statement.Format(format)
	if rec.OpeningBalance, err = decimal.NewFromString(opening); err != nil {
		return nil, err
	}
	if rec.ClosingBalance, err = decimal.NewFromString(closing); err != nil {
		return nil, err
	}
	if errsJSON.Valid && errsJSON.String != "" {
		_ = json.Unmarshal([]byte(errsJSON.String), &rec.ParseErrors)
	}
	return &rec, nil
}

// --- matching rules ---

// ListRules returns rules sorted by descending priority.
func (s *Storage) ListRules(ctx context.Context, activeOnly bool) ([]matching.Rule, error) {
	query := `
		SELECT id, name, priority, rule_type, params_json, confidence_threshold, auto_apply, active
		FROM matching_rules`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY priority DESC, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rules []matching.Rule
	for rows.Next() {
		var (
			rule       matching.Rule
			ruleType   string
			paramsJSON string
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Priority, &ruleType, &paramsJSON,
			&rule.ConfidenceThreshold, &rule.AutoApply, &rule.Active); err != nil {
			return nil, err
		}
		rule.Type = matching.RuleType(ruleType)
		if rule.Params, err = matching.UnmarshalParams(rule.Type, []byte(paramsJSON)); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SaveRule inserts or updates a rule, keyed by name.
func (s *Storage) SaveRule(ctx context.Context, rule *matching.Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	params, err := matching.MarshalParams(rule.Params)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matching_rules
		(id, name, priority, rule_type, params_json, confidence_threshold, auto_apply, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			priority = excluded.priority,
			rule_type = excluded.rule_type,
			params_json = excluded.params_json,
			confidence_threshold = excluded.confidence_threshold,
			auto_apply = excluded.auto_apply,
			active = excluded.active
	`, rule.ID, rule.Name, rule.Priority, string(rule.Type), string(params),
		rule.ConfidenceThreshold, rule.AutoApply, rule.Active)
	return err
}

// --- match results ---

// SaveMatchResult persists a suggest-only verdict.
func (s *Storage) SaveMatchResult(ctx context.Context, rec *MatchRecord) error {
	return s.insertMatchResult(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Storage) insertMatchResult(ctx context.Context, db execer, rec *MatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	suggestionsJSON, err := json.Marshal(rec.Suggestions)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO match_results
		(id, line_id, statement_id, chosen_open_item_id, matched, confidence, auto_matched,
		 matched_by, settled_amount, suggestions_json, reversed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.LineID, rec.StatementID, rec.ChosenOpenItemID, rec.Matched, rec.Confidence,
		rec.AutoMatched, rec.MatchedBy, rec.SettledAmount.String(), string(suggestionsJSON),
		rec.Reversed, rec.CreatedAt)
	return err
}

// ApplyMatch marks the line matched and settles the open item atomically.
// The line must still be UNMATCHED and the open item must cover the settled
// amount; otherwise nothing is mutated.
func (s *Storage) ApplyMatch(ctx context.Context, rec *MatchRecord, newStatus statement.LineStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM statement_lines WHERE id = ?`, rec.LineID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if statement.LineStatus(status) != statement.StatusUnmatched {
		return ErrLineAlreadyMatched
	}

	if err := settleInTx(ctx, tx, rec.ChosenOpenItemID, rec.SettledAmount); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE statement_lines SET status = ?, matched_open_item_id = ? WHERE id = ?
	`, string(newStatus), rec.ChosenOpenItemID, rec.LineID); err != nil {
		return err
	}

	if err := s.insertMatchResult(ctx, tx, rec); err != nil {
		return err
	}

	return tx.Commit()
}

// ReverseMatch returns a line to UNMATCHED and restores the settled amount.
func (s *Storage) ReverseMatch(ctx context.Context, lineID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		status    string
		matchedID sql.NullString
	)
	err = tx.QueryRowContext(ctx, `SELECT status, matched_open_item_id FROM statement_lines WHERE id = ?`, lineID).Scan(&status, &matchedID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if statement.LineStatus(status) == statement.StatusUnmatched {
		return fmt.Errorf("line %s is not matched", lineID)
	}

	// The most recent applied, unreversed match record carries the amount
	// to restore. Booked remediation lines have no open item to restore.
	var (
		resultID sql.NullString
		settled  sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, settled_amount FROM match_results
		WHERE line_id = ? AND matched = 1 AND reversed = 0
		ORDER BY created_at DESC LIMIT 1
	`, lineID).Scan(&resultID, &settled)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if matchedID.Valid && matchedID.String != "" && settled.Valid {
		amount, err := decimal.NewFromString(settled.String)
		if err != nil {
			return err
		}
		if err := reverseInTx(ctx, tx, matchedID.String, amount); err != nil {
			return err
		}
	}

	if resultID.Valid {
		if _, err := tx.ExecContext(ctx, `UPDATE match_results SET reversed = 1 WHERE id = ?`, resultID.String); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE statement_lines SET status = ?, matched_open_item_id = NULL WHERE id = ?
	`, string(statement.StatusUnmatched), lineID); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkLineBooked posts the remediation entry and marks the line MATCHED in
// one transaction.
func (s *Storage) MarkLineBooked(ctx context.Context, lineID string, entry *JournalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM statement_lines WHERE id = ?`, lineID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if statement.LineStatus(status) != statement.StatusUnmatched {
		return ErrLineAlreadyMatched
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (id, debit_account, credit_account, amount, entry_date, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.DebitAccount, entry.CreditAccount, entry.Amount.String(), entry.EntryDate, entry.Description); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE statement_lines SET status = ? WHERE id = ?
	`, string(statement.StatusMatched), lineID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListMatchResults returns a statement's match records, newest first.
func (s *Storage) ListMatchResults(ctx context.Context, statementID string) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, line_id, statement_id, chosen_open_item_id, matched, confidence, auto_matched,
		       matched_by, settled_amount, suggestions_json, reversed, created_at
		FROM match_results WHERE statement_id = ? ORDER BY created_at DESC, id
	`, statementID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []MatchRecord
	for rows.Next() {
		var (
			rec             MatchRecord
			chosenID        sql.NullString
			matchedBy       sql.NullString
			settled         string
			suggestionsJSON sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.LineID, &rec.StatementID, &chosenID, &rec.Matched,
			&rec.Confidence, &rec.AutoMatched, &matchedBy, &settled, &suggestionsJSON,
			&rec.Reversed, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.ChosenOpenItemID = chosenID.String
		rec.MatchedBy = matchedBy.String
		if rec.SettledAmount, err = decimal.NewFromString(settled); err != nil {
			return nil, err
		}
		if suggestionsJSON.Valid && suggestionsJSON.String != "" {
			_ = json.Unmarshal([]byte(suggestionsJSON.String), &rec.Suggestions)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- open items (ledger.OpenItemRepository) ---

// SaveOpenItem inserts or replaces an open item.
func (s *Storage) SaveOpenItem(ctx context.Context, item *ledger.OpenItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.OpenAmount.IsNegative() || item.OpenAmount.GreaterThan(item.TotalAmount) {
		return fmt.Errorf("open amount %s outside [0, %s]", item.OpenAmount, item.TotalAmount)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO open_items
		(id, document_number, counterparty_id, counterparty_name, total_amount, open_amount, due_date, side)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.DocumentNumber, item.CounterpartyID, item.CounterpartyName,
		item.TotalAmount.String(), item.OpenAmount.String(), item.DueDate, string(item.Side))
	return err
}

// GetOpenItem retrieves one open item.
func (s *Storage) GetOpenItem(ctx context.Context, id string) (*ledger.OpenItem, error) {
	item, err := scanOpenItem(s.db.QueryRowContext(ctx, `
		SELECT id, document_number, counterparty_id, counterparty_name, total_amount, open_amount, due_date, side
		FROM open_items WHERE id = ?
	`, id))
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FindOpenItems returns every open item for the tenant.
func (s *Storage) FindOpenItems(ctx context.Context, tenant string) ([]ledger.OpenItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_number, counterparty_id, counterparty_name, total_amount, open_amount, due_date, side
		FROM open_items WHERE tenant = ? OR tenant = '' ORDER BY id
	`, tenant)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []ledger.OpenItem
	for rows.Next() {
		item, err := scanOpenItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanOpenItem(row rowScanner) (*ledger.OpenItem, error) {
	var (
		item  ledger.OpenItem
		total string
		open  string
		side  string
	)
	err := row.Scan(&item.ID, &item.DocumentNumber, &item.CounterpartyID, &item.CounterpartyName,
		&total, &open, &item.DueDate, &side)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	if item.OpenAmount, err = decimal.NewFromString(open); err != nil {
		return nil, err
	}
	item.Side = ledger.Side(side)
	return &item, nil
}

// Settle reduces an item's open amount, rejecting over-settlement.
func (s *Storage) Settle(ctx context.Context, openItemID string, amount decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := settleInTx(ctx, tx, openItemID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// Reverse restores a previously settled amount.
func (s *Storage) Reverse(ctx context.Context, openItemID string, amount decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := reverseInTx(ctx, tx, openItemID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

func settleInTx(ctx context.Context, tx *sql.Tx, openItemID string, amount decimal.Decimal) error {
	open, _, err := openAmountsInTx(ctx, tx, openItemID)
	if err != nil {
		return err
	}
	if amount.IsNegative() || amount.GreaterThan(open) {
		return fmt.Errorf("settle %s against open %s: %w", amount, open, ledger.ErrSettlementConflict)
	}
	_, err = tx.ExecContext(ctx, `UPDATE open_items SET open_amount = ? WHERE id = ?`,
		open.Sub(amount).String(), openItemID)
	return err
}

func reverseInTx(ctx context.Context, tx *sql.Tx, openItemID string, amount decimal.Decimal) error {
	open, total, err := openAmountsInTx(ctx, tx, openItemID)
	if err != nil {
		return err
	}
	restored := open.Add(amount)
	if amount.IsNegative() || restored.GreaterThan(total) {
		return fmt.Errorf("reverse %s against open %s of total %s: %w", amount, open, total, ledger.ErrSettlementConflict)
	}
	_, err = tx.ExecContext(ctx, `UPDATE open_items SET open_amount = ? WHERE id = ?`,
		restored.String(), openItemID)
	return err
}

func openAmountsInTx(ctx context.Context, tx *sql.Tx, openItemID string) (open, total decimal.Decimal, err error) {
	var openStr, totalStr string
	err = tx.QueryRowContext(ctx, `SELECT open_amount, total_amount FROM open_items WHERE id = ?`, openItemID).Scan(&openStr, &totalStr)
	if errors.Is(err, sql.ErrNoRows) {
		return open, total, ErrNotFound
	}
	if err != nil {
		return open, total, err
	}
	if open, err = decimal.NewFromString(openStr); err != nil {
		return open, total, err
	}
	total, err = decimal.NewFromString(totalStr)
	return open, total, err
}

// --- counterparties (ledger.CounterpartyDirectory) ---

// SaveCounterparty inserts or updates master data, keyed by name.
func (s *Storage) SaveCounterparty(ctx context.Context, cp *Counterparty) error {
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counterparties (id, name, iban) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET iban = excluded.iban
	`, cp.ID, cp.Name, cp.IBAN)
	return err
}

// LookupIBAN resolves a counterparty name to its known IBAN.
func (s *Storage) LookupIBAN(ctx context.Context, name string) (string, bool) {
	var iban string
	err := s.db.QueryRowContext(ctx, `SELECT iban FROM counterparties WHERE name = ?`, name).Scan(&iban)
	if err != nil {
		return "", false
	}
	return iban, true
}

// --- journal (ledger.JournalPoster, ledger.BalanceProvider) ---

// PostEntry posts one balanced double-entry booking and returns its ID.
func (s *Storage) PostEntry(ctx context.Context, debitAccount, creditAccount string, amount decimal.Decimal, date time.Time, description string) (string, error) {
	if !amount.IsPositive() {
		return "", fmt.Errorf("journal amount must be positive, got %s", amount)
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (id, debit_account, credit_account, amount, entry_date, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, debitAccount, creditAccount, amount.String(), date, description)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetBalance computes the ledger balance of an account as of a date:
// debits increase, credits decrease (asset-account convention).
func (s *Storage) GetBalance(ctx context.Context, bankAccountID string, asOf time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT debit_account, credit_account, amount FROM journal_entries WHERE entry_date <= ?
	`, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ledger.ErrBalanceUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	balance := decimal.Zero
	for rows.Next() {
		var debit, credit, amountStr string
		if err := rows.Scan(&debit, &credit, &amountStr); err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", ledger.ErrBalanceUnavailable, err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %v", ledger.ErrBalanceUnavailable, err)
		}
		if debit == bankAccountID {
			balance = balance.Add(amount)
		}
		if credit == bankAccountID {
			balance = balance.Sub(amount)
		}
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ledger.ErrBalanceUnavailable, err)
	}
	return balance, nil
}

// ListJournalEntries returns posted entries, newest first.
func (s *Storage) ListJournalEntries(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, debit_account, credit_account, amount, entry_date, description, created_at
		FROM journal_entries ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry  JournalEntry
			amount string
			desc   sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.DebitAccount, &entry.CreditAccount, &amount,
			&entry.EntryDate, &desc, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if entry.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		entry.Description = desc.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// --- stats ---

// GetStats returns aggregate import and matching statistics.
func (s *Storage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM statements),
			(SELECT COUNT(*) FROM statement_lines),
			(SELECT COUNT(*) FROM statement_lines WHERE status != 'UNMATCHED'),
			(SELECT COUNT(*) FROM open_items WHERE CAST(open_amount AS REAL) > 0),
			(SELECT COUNT(*) FROM match_results WHERE auto_matched = 1 AND reversed = 0)
	`).Scan(&stats.StatementCount, &stats.LineCount, &stats.MatchedLineCount,
		&stats.OpenItemCount, &stats.AutoMatchedCount)
	if err != nil {
		return nil, err
	}

	// Settled totals are summed in decimal, not SQL floats.
	rows, err := s.db.QueryContext(ctx, `SELECT settled_amount FROM match_results WHERE matched = 1 AND reversed = 0`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var settled string
		if err := rows.Scan(&settled); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(settled)
		if err != nil {
			return nil, err
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.TotalMatched = total.StringFixed(2)
	return stats, nil
}
