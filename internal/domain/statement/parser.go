package statement

import "fmt"

// FormatError reports an unrecoverable problem with a statement file: an
// unknown format string or an envelope that cannot be parsed at all.
type FormatError struct {
	Format Format
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("statement format %q: %s", e.Format, e.Reason)
}

// LineError reports one skipped entry. The source line (or entry ordinal for
// XML) is kept so the caller can audit how many raw entries were dropped.
type LineError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Parse converts raw statement bytes into the normalized model.
//
// Entry-level failures never fail the whole statement: each bad entry is
// collected into the returned LineError slice and omitted from the result.
// The error return is non-nil only for envelope-level failures (FormatError).
// Parsing the same bytes twice produces identical output.
func Parse(format Format, raw []byte, opts Options) (*Statement, []LineError, error) {
	switch format {
	case FormatCAMT:
		return parseCAMT(raw, opts)
	case FormatMT940:
		return parseMT940(raw, opts)
	case FormatCSV:
		return parseCSV(raw, opts)
	default:
		return nil, nil, &FormatError{Format: format, Reason: "unsupported format"}
	}
}
