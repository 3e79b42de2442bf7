package statement

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MT940 is line-oriented: every field starts with a :NN: tag, and untagged
// lines continue the preceding :86: block. Only the tags the normalized
// model needs are interpreted; everything else is ignored.

func parseMT940(raw []byte, opts Options) (*Statement, []LineError, error) {
	stmt := &Statement{Currency: opts.DefaultCurrency}

	var (
		errs       []LineError
		pending    *Line
		pendingErr bool // current :61: failed, swallow its :86:
		sawTag     bool
	)

	flush := func() {
		if pending != nil {
			stmt.Lines = append(stmt.Lines, *pending)
			pending = nil
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" || text == "-" {
			continue
		}

		tag, rest, ok := splitTag(text)
		if !ok {
			// Continuation of a :86: block. An empty :86: still collects
			// its continuation lines.
			if pending != nil {
				if pending.RemittanceInfo == "" {
					pending.RemittanceInfo = strings.TrimSpace(text)
				} else {
					pending.RemittanceInfo += " " + strings.TrimSpace(text)
				}
			}
			continue
		}
		sawTag = true

		switch tag {
		case "25":
			flush()
			stmt.AccountIBAN = strings.TrimSpace(rest)
		case "60F", "60M":
			flush()
			bal, ccy, err := parseMT940Balance(rest)
			if err != nil {
				errs = append(errs, LineError{Line: lineNo, Reason: fmt.Sprintf("tag :%s: %v", tag, err)})
				continue
			}
			stmt.OpeningBalance = bal
			if ccy != "" {
				stmt.Currency = ccy
			}
		case "61":
			flush()
			line, err := parseMT940Transaction(rest)
			if err != nil {
				errs = append(errs, LineError{Line: lineNo, Reason: fmt.Sprintf("tag :61: %v", err)})
				pendingErr = true
				continue
			}
			line.Currency = stmt.Currency
			pending = &line
			pendingErr = false
		case "86":
			if pending != nil {
				pending.RemittanceInfo = strings.TrimSpace(rest)
			} else if !pendingErr {
				errs = append(errs, LineError{Line: lineNo, Reason: "tag :86: without preceding :61:"})
			}
		default:
			// :20:, :28C:, :62F:, bank-specific tags: not needed. The
			// closing balance is recomputed from the lines anyway.
			flush()
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, nil, &FormatError{Format: FormatMT940, Reason: err.Error()}
	}
	if !sawTag {
		return nil, nil, &FormatError{Format: FormatMT940, Reason: "no SWIFT tags found"}
	}

	computeClosing(stmt)
	return stmt, errs, nil
}

// splitTag splits ":61:rest" into ("61", "rest", true).
func splitTag(s string) (tag, rest string, ok bool) {
	if !strings.HasPrefix(s, ":") {
		return "", "", false
	}
	end := strings.Index(s[1:], ":")
	if end < 0 {
		return "", "", false
	}
	return s[1 : end+1], s[end+2:], true
}

// parseMT940Balance parses a :60F:/:60M: value: C|D + YYMMDD + currency +
// comma-decimal amount, e.g. "C240101EUR10500,00".
func parseMT940Balance(s string) (decimal.Decimal, string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 11 {
		return decimal.Zero, "", fmt.Errorf("too short: %q", s)
	}
	mark := s[0]
	if mark != 'C' && mark != 'D' {
		return decimal.Zero, "", fmt.Errorf("bad debit/credit mark %q", mark)
	}
	if _, err := time.Parse("060102", s[1:7]); err != nil {
		return decimal.Zero, "", fmt.Errorf("bad date %q", s[1:7])
	}
	ccy := s[7:10]
	amt, err := decimal.NewFromString(strings.ReplaceAll(s[10:], ",", "."))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("bad amount %q", s[10:])
	}
	if mark == 'D' {
		amt = amt.Neg()
	}
	return amt, ccy, nil
}

// parseMT940Transaction parses a :61: value into a line. Layout: value date
// (YYMMDD), optional booking date (YYMMDD or MMDD), debit/credit mark
// (C, D, RC, RD), comma-decimal amount, transaction type code, customer
// reference, optional "//" bank reference. The bank reference, when present,
// is the structured one and wins as the line reference.
func parseMT940Transaction(s string) (Line, error) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return Line{}, fmt.Errorf("too short: %q", s)
	}

	valueDate, err := time.Parse("060102", s[:6])
	if err != nil {
		return Line{}, fmt.Errorf("bad value date %q", s[:6])
	}
	s = s[6:]

	// Booking date digits, if any, sit between the value date and the mark.
	digits := leadingDigits(s)
	bookingDate := valueDate
	switch {
	case digits >= 6:
		if bookingDate, err = time.Parse("060102", s[:6]); err != nil {
			return Line{}, fmt.Errorf("bad booking date %q", s[:6])
		}
		s = s[6:]
	case digits >= 4:
		month, day := mustAtoi(s[:2]), mustAtoi(s[2:4])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return Line{}, fmt.Errorf("bad booking date %q", s[:4])
		}
		bookingDate = time.Date(valueDate.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)
		s = s[4:]
	}

	negative := false
	switch {
	case strings.HasPrefix(s, "RC"), strings.HasPrefix(s, "RD"):
		// Reversal entries invert the original direction.
		negative = s[1] == 'C'
		s = s[2:]
	case strings.HasPrefix(s, "C"), strings.HasPrefix(s, "D"):
		negative = s[0] == 'D'
		s = s[1:]
	default:
		return Line{}, fmt.Errorf("missing debit/credit mark in %q", s)
	}

	amtEnd := 0
	for amtEnd < len(s) && (s[amtEnd] >= '0' && s[amtEnd] <= '9' || s[amtEnd] == ',') {
		amtEnd++
	}
	if amtEnd == 0 {
		return Line{}, fmt.Errorf("missing amount in %q", s)
	}
	amt, err := decimal.NewFromString(strings.ReplaceAll(s[:amtEnd], ",", "."))
	if err != nil {
		return Line{}, fmt.Errorf("bad amount %q", s[:amtEnd])
	}
	if negative {
		amt = amt.Neg()
	}
	s = s[amtEnd:]

	// Transaction type code, e.g. NTRF. One letter plus three alphanumerics.
	if len(s) >= 4 && (s[0] == 'N' || s[0] == 'F' || s[0] == 'S') {
		s = s[4:]
	}

	customerRef := s
	bankRef := ""
	if idx := strings.Index(s, "//"); idx >= 0 {
		customerRef = s[:idx]
		bankRef = s[idx+2:]
	}
	ref := strings.TrimSpace(bankRef)
	if ref == "" {
		ref = strings.TrimSpace(customerRef)
	}

	return Line{
		BookingDate: bookingDate,
		ValueDate:   valueDate,
		Amount:      amt,
		Reference:   ref,
		Status:      StatusUnmatched,
	}, nil
}

func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}

func mustAtoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
