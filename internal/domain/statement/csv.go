package statement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CSV exports are header-driven. German bank exports name their columns in
// German and use semicolon delimiters with comma decimals; both spellings
// and both separators are accepted.

// csvColumns maps accepted header names (lowercased) to canonical fields.
var csvColumns = map[string]string{
	"date":              "date",
	"datum":             "date",
	"buchungsdatum":     "date",
	"value_date":        "value_date",
	"valuta":            "value_date",
	"wertstellung":      "value_date",
	"amount":            "amount",
	"betrag":            "amount",
	"currency":          "currency",
	"waehrung":          "currency",
	"reference":         "reference",
	"referenz":          "reference",
	"remittance_info":   "remittance_info",
	"verwendungszweck":  "remittance_info",
	"creditor_name":     "creditor_name",
	"empfaenger":        "creditor_name",
	"debtor_name":       "debtor_name",
	"auftraggeber":      "debtor_name",
	"iban":              "iban",
	"counterparty_iban": "iban",
}

var csvDateLayouts = []string{"2006-01-02", "02.01.2006", "02.01.06"}

func parseCSV(raw []byte, opts Options) (*Statement, []LineError, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Semicolon-delimited exports are detected from the header line.
	if idx := bytes.IndexByte(raw, '\n'); idx > 0 && bytes.Contains(raw[:idx], []byte(";")) {
		reader.Comma = ';'
	} else if bytes.Contains(raw, []byte(";")) && !bytes.Contains(raw, []byte(",")) {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if err != nil {
		return nil, nil, &FormatError{Format: FormatCSV, Reason: fmt.Sprintf("missing header row: %v", err)}
	}

	cols := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := csvColumns[key]; ok {
			cols[canonical] = i
		}
	}
	if _, ok := cols["date"]; !ok {
		return nil, nil, &FormatError{Format: FormatCSV, Reason: "no date column in header"}
	}
	if _, ok := cols["amount"]; !ok {
		return nil, nil, &FormatError{Format: FormatCSV, Reason: "no amount column in header"}
	}

	stmt := &Statement{
		AccountIBAN: opts.AccountIBAN,
		Currency:    opts.DefaultCurrency,
	}

	var errs []LineError
	rowNo := 1 // header was row 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			rowNo++
			errs = append(errs, LineError{Line: rowNo, Reason: err.Error()})
			continue
		}
		rowNo++

		line, err := csvRecordToLine(record, cols, stmt.Currency)
		if err != nil {
			errs = append(errs, LineError{Line: rowNo, Reason: err.Error()})
			continue
		}
		stmt.Lines = append(stmt.Lines, line)
	}

	computeClosing(stmt)
	return stmt, errs, nil
}

func csvRecordToLine(record []string, cols map[string]int, defaultCcy string) (Line, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	bookingDate, err := parseCSVDate(field("date"))
	if err != nil {
		return Line{}, fmt.Errorf("date: %v", err)
	}
	valueDate := bookingDate
	if v := field("value_date"); v != "" {
		if valueDate, err = parseCSVDate(v); err != nil {
			return Line{}, fmt.Errorf("value date: %v", err)
		}
	}

	amt, err := parseCSVAmount(field("amount"))
	if err != nil {
		return Line{}, fmt.Errorf("amount: %v", err)
	}

	line := Line{
		BookingDate:      bookingDate,
		ValueDate:        valueDate,
		Amount:           amt,
		Currency:         field("currency"),
		Reference:        field("reference"),
		RemittanceInfo:   field("remittance_info"),
		CounterpartyIBAN: field("iban"),
		Status:           StatusUnmatched,
	}
	if line.Currency == "" {
		line.Currency = defaultCcy
	}

	// Debits name the creditor as counterparty, credits the debtor. When
	// only one of the two columns is filled, that one wins regardless.
	creditor, debtor := field("creditor_name"), field("debtor_name")
	switch {
	case amt.IsNegative() && creditor != "":
		line.CounterpartyName = creditor
	case debtor != "":
		line.CounterpartyName = debtor
	default:
		line.CounterpartyName = creditor
	}

	return line, nil
}

func parseCSVDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty")
	}
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseCSVAmount normalizes "1.234,56" and "1234,56" and "1234.56".
func parseCSVAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty")
	}
	if strings.Contains(s, ",") {
		// Comma decimal: dots are thousands separators.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	s = strings.ReplaceAll(s, " ", "")
	return decimal.NewFromString(s)
}
