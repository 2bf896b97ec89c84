// Package tabular converts between the replacement manager's values and
// tabular files: replacement imports, mapping exports, batch resolution of
// product lists and state files.
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Format names a supported file encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Column headers used by replacement and mapping files.
const (
	ColumnOld  = "Old Product"
	ColumnNew  = "New Product"
	ColumnDate = "Date"
)

// DateLayout is the layout dates are written in.
const DateLayout = time.DateOnly

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

var (
	// ErrMissingColumn is wrapped when a required header is absent.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnknownFormat is wrapped by ParseFormat.
	ErrUnknownFormat = errors.New("unknown format")
)

// RowError locates a problem in an input file. Line is 1-based and counts
// the header.
type RowError struct {
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseFormat accepts csv, json, yaml and yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w %q: want csv, json or yaml", ErrUnknownFormat, s)
}

// FormatFromPath picks a format from the file extension, falling back to
// fallback when the extension is not recognised.
func FormatFromPath(path string, fallback Format) Format {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return fallback
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string { return string(f) }

// ContentType returns the MIME type written alongside uploaded exports.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/csv"
	}
}

// NormalizeName trims surrounding space and applies Unicode NFC so that
// visually identical names map to one product.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ParseDate accepts the date forms found in spreadsheets exported from
// common tools. Results are in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// FormatDate renders t as YYYY-MM-DD, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}
