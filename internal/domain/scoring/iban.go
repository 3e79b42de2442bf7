package scoring

import "strings"

// IBAN scores a statement line's counterparty IBAN against the IBAN known
// for the open item's counterparty. Absent data on either side yields 0.0;
// the IBAN dimension never blocks other rule types.
func IBAN(lineIBAN, knownIBAN string) float64 {
	a := NormalizeIBAN(lineIBAN)
	b := NormalizeIBAN(knownIBAN)
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	return 0.0
}

// NormalizeIBAN strips spaces and uppercases, the canonical comparison form.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}
