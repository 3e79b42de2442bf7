package statement

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// camt.053.001.02 subset. Element names follow the ISO 20022 short names.

type camtDocument struct {
	XMLName       xml.Name          `xml:"Document"`
	BkToCstmrStmt camtBkToCstmrStmt `xml:"BkToCstmrStmt"`
}

type camtBkToCstmrStmt struct {
	Stmt camtStmt `xml:"Stmt"`
}

type camtStmt struct {
	ID   string     `xml:"Id"`
	Acct camtAcct   `xml:"Acct"`
	Bal  []camtBal  `xml:"Bal"`
	Ntry []camtNtry `xml:"Ntry"`
}

type camtAcct struct {
	ID struct {
		IBAN string `xml:"IBAN"`
	} `xml:"Id"`
	Ccy string `xml:"Ccy"`
}

type camtBal struct {
	Amt       camtAmt `xml:"Amt"`
	CdtDbtInd string  `xml:"CdtDbtInd"`
	Dt        struct {
		Dt string `xml:"Dt"`
	} `xml:"Dt"`
}

type camtAmt struct {
	Value string `xml:",chardata"`
	Ccy   string `xml:"Ccy,attr"`
}

type camtNtry struct {
	Amt       camtAmt  `xml:"Amt"`
	CdtDbtInd string   `xml:"CdtDbtInd"`
	BookgDt   camtDate `xml:"BookgDt"`
	ValDt     camtDate `xml:"ValDt"`
	AcctSvcrRef string `xml:"AcctSvcrRef"`
	NtryDtls  struct {
		TxDtls struct {
			Refs struct {
				EndToEndID string `xml:"EndToEndId"`
			} `xml:"Refs"`
			RmtInf struct {
				Ustrd []string `xml:"Ustrd"`
			} `xml:"RmtInf"`
			RltdPties struct {
				Cdtr struct {
					Nm string `xml:"Nm"`
				} `xml:"Cdtr"`
				CdtrAcct struct {
					ID struct {
						IBAN string `xml:"IBAN"`
					} `xml:"Id"`
				} `xml:"CdtrAcct"`
				Dbtr struct {
					Nm string `xml:"Nm"`
				} `xml:"Dbtr"`
				DbtrAcct struct {
					ID struct {
						IBAN string `xml:"IBAN"`
					} `xml:"Id"`
				} `xml:"DbtrAcct"`
			} `xml:"RltdPties"`
		} `xml:"TxDtls"`
	} `xml:"NtryDtls"`
}

type camtDate struct {
	Dt   string `xml:"Dt"`
	DtTm string `xml:"DtTm"`
}

func (d camtDate) parse() (time.Time, error) {
	if d.Dt != "" {
		return time.Parse("2006-01-02", d.Dt)
	}
	if d.DtTm != "" {
		return time.Parse(time.RFC3339, d.DtTm)
	}
	return time.Time{}, fmt.Errorf("empty date")
}

func parseCAMT(raw []byte, opts Options) (*Statement, []LineError, error) {
	var doc camtDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &FormatError{Format: FormatCAMT, Reason: err.Error()}
	}

	stmt := &Statement{
		AccountIBAN: strings.TrimSpace(doc.BkToCstmrStmt.Stmt.Acct.ID.IBAN),
		Currency:    doc.BkToCstmrStmt.Stmt.Acct.Ccy,
	}
	if stmt.Currency == "" {
		stmt.Currency = opts.DefaultCurrency
	}

	// Opening balance from the first balance block. Banks order OPBD first
	// in the subset we accept.
	if len(doc.BkToCstmrStmt.Stmt.Bal) > 0 {
		bal := doc.BkToCstmrStmt.Stmt.Bal[0]
		amt, err := decimal.NewFromString(strings.TrimSpace(bal.Amt.Value))
		if err != nil {
			return nil, nil, &FormatError{Format: FormatCAMT, Reason: fmt.Sprintf("opening balance: %v", err)}
		}
		if bal.CdtDbtInd == "DBIT" {
			amt = amt.Neg()
		}
		stmt.OpeningBalance = amt
	}

	var errs []LineError
	for i, ntry := range doc.BkToCstmrStmt.Stmt.Ntry {
		line, err := camtEntryToLine(ntry, stmt.Currency, opts)
		if err != nil {
			errs = append(errs, LineError{Line: i + 1, Reason: err.Error()})
			continue
		}
		stmt.Lines = append(stmt.Lines, line)
	}

	computeClosing(stmt)
	return stmt, errs, nil
}

func camtEntryToLine(ntry camtNtry, defaultCcy string, opts Options) (Line, error) {
	amt, err := decimal.NewFromString(strings.TrimSpace(ntry.Amt.Value))
	if err != nil {
		return Line{}, fmt.Errorf("amount: %v", err)
	}

	line := Line{
		Amount:   amt,
		Currency: ntry.Amt.Ccy,
		Status:   StatusUnmatched,
	}
	if line.Currency == "" {
		line.Currency = defaultCcy
	}

	switch ntry.CdtDbtInd {
	case "CRDT":
		// credit, amount stays positive
	case "DBIT":
		line.Amount = line.Amount.Neg()
	case "":
		// Missing indicator: the configured default applies and the line
		// is flagged for review rather than rejected.
		if !opts.MissingIndicatorCredit {
			line.Amount = line.Amount.Neg()
		}
		line.Flags = append(line.Flags, FlagDefaultedIndicator)
	default:
		return Line{}, fmt.Errorf("unknown credit/debit indicator %q", ntry.CdtDbtInd)
	}

	if line.BookingDate, err = ntry.BookgDt.parse(); err != nil {
		return Line{}, fmt.Errorf("booking date: %v", err)
	}
	if line.ValueDate, err = ntry.ValDt.parse(); err != nil {
		// Value date falls back to booking date when absent.
		line.ValueDate = line.BookingDate
	}

	tx := ntry.NtryDtls.TxDtls
	line.Reference = tx.Refs.EndToEndID
	if line.Reference == "" {
		line.Reference = ntry.AcctSvcrRef
	}
	line.RemittanceInfo = strings.Join(tx.RmtInf.Ustrd, " ")

	// The counterparty is the creditor for debits (we paid them) and the
	// debtor for credits (they paid us).
	if line.Amount.IsNegative() {
		line.CounterpartyName = tx.RltdPties.Cdtr.Nm
		line.CounterpartyIBAN = tx.RltdPties.CdtrAcct.ID.IBAN
	} else {
		line.CounterpartyName = tx.RltdPties.Dbtr.Nm
		line.CounterpartyIBAN = tx.RltdPties.DbtrAcct.ID.IBAN
	}

	return line, nil
}
