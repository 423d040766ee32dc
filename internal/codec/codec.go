// Package codec maps an expense to one line of the flat file format and back.
//
// A line carries the fields id,date,amount,category,note separated by a
// comma. Commas inside category or note are replaced by semicolons and line
// breaks by a single space, so a record always occupies exactly one line.
package codec

import (
	"fmt"
	"strings"

	"smartexpense/internal/core"
)

const (
	// Delimiter separates fields within a line.
	Delimiter = ","
	// Substitute replaces the delimiter inside free-text fields.
	Substitute = ";"
	// Header is the optional first line written by exports.
	Header = "id,date,amount,category,note"

	fieldCount    = 5
	minFieldCount = 4
)

var textEscaper = strings.NewReplacer(
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
	Delimiter, Substitute,
)

// Escape makes free text safe to embed in a line.
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// Encode renders e as a single line without a trailing line break.
func Encode(e core.Expense) string {
	return strings.Join([]string{
		e.ID,
		e.Date.String(),
		e.Amount.String(),
		Escape(e.Category),
		Escape(e.Note),
	}, Delimiter)
}

// Decode parses one line. Any structural or field-level failure is reported
// as an error wrapping core.ErrMalformedLine.
func Decode(line string) (core.Expense, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, Delimiter, fieldCount)
	if len(parts) < minFieldCount {
		return core.Expense{}, fmt.Errorf("%w: %d fields, want at least %d", core.ErrMalformedLine, len(parts), minFieldCount)
	}

	id := strings.TrimSpace(parts[0])
	if id == "" {
		return core.Expense{}, fmt.Errorf("%w: %v", core.ErrMalformedLine, core.ErrEmptyID)
	}
	date, err := core.ParseDate(parts[1])
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v", core.ErrMalformedLine, err)
	}
	amount, err := core.ParseAmount(parts[2])
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %v %q", core.ErrMalformedLine, err, parts[2])
	}

	e := core.Expense{
		ID:       id,
		Date:     date,
		Amount:   amount,
		Category: parts[3],
	}
	if len(parts) == fieldCount {
		e.Note = parts[4]
	}
	return e, nil
}

// IsHeader reports whether line is the column header written by exports.
func IsHeader(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), Header)
}
