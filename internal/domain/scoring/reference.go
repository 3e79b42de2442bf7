package scoring

import (
	"regexp"
	"strings"
)

// Invoice-number shapes seen in remittance text and document numbers. Order
// matters: the more specific patterns run first so "RE-2024-001" is not
// swallowed by the digit-run pattern.
var invoiceTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bRE-\d{4}-\d+\b`),
	regexp.MustCompile(`(?i)\bINV-\d+\b`),
	regexp.MustCompile(`\b\d{4}/\d+\b`),
	regexp.MustCompile(`\b\d{6,}\b`),
}

// Reference scores the statement's reference and remittance text against an
// open item's document number.
//
//	1.0   case-insensitive exact match
//	0.9   substring containment
//	0.95  identical extracted invoice token
//	0.85  partially overlapping invoice tokens
//	0.0   otherwise
func Reference(reference, remittanceInfo, documentNumber string) float64 {
	doc := strings.ToLower(strings.TrimSpace(documentNumber))
	if doc == "" {
		return 0.0
	}

	combined := strings.ToLower(strings.TrimSpace(reference + " " + remittanceInfo))
	if combined == "" {
		return 0.0
	}

	if strings.ToLower(strings.TrimSpace(reference)) == doc ||
		strings.ToLower(strings.TrimSpace(remittanceInfo)) == doc ||
		combined == doc {
		return 1.0
	}
	if strings.Contains(combined, doc) {
		return 0.9
	}

	stmtTokens := ExtractInvoiceTokens(combined)
	docTokens := ExtractInvoiceTokens(doc)
	if len(stmtTokens) == 0 || len(docTokens) == 0 {
		return 0.0
	}

	partial := false
	for _, st := range stmtTokens {
		for _, dt := range docTokens {
			if st == dt {
				return 0.95
			}
			if strings.Contains(st, dt) || strings.Contains(dt, st) {
				partial = true
			}
		}
	}
	if partial {
		return 0.85
	}
	return 0.0
}

// ExtractInvoiceTokens pulls canonical invoice-number tokens out of free
// text. Tokens are lowercased; each source region is consumed by the first
// pattern that matches it.
func ExtractInvoiceTokens(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	for _, pattern := range invoiceTokenPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			tokens = append(tokens, match)
		}
		text = pattern.ReplaceAllString(text, " ")
	}
	return tokens
}
