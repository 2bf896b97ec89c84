package tabular

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"replacechain/pkg/domain"
)

// ReadOptions configures ReadReplacements.
type ReadOptions struct {
	// Format of the input; csv when empty.
	Format Format
	// Now dates rows when the input has no Date column. Defaults to the
	// current UTC time truncated to the day.
	Now func() time.Time
}

// replacementRecord is the JSON and YAML shape of one replacement.
type replacementRecord struct {
	Old  string `json:"old" yaml:"old"`
	New  string `json:"new" yaml:"new"`
	Date string `json:"date,omitempty" yaml:"date,omitempty"`
}

// ReadReplacements decodes replacement rows in input order. CSV input needs
// Old Product and New Product columns (OldProduct and NewProduct are
// accepted too); the Date column is optional. Fully blank rows are skipped.
func ReadReplacements(r io.Reader, opts ReadOptions) ([]domain.Replacement, error) {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC().Truncate(24 * time.Hour) }
	}
	switch opts.Format {
	case "", FormatCSV:
		return readReplacementsCSV(r, now)
	case FormatJSON:
		var recs []replacementRecord
		if err := json.NewDecoder(r).Decode(&recs); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return fromRecords(recs, now)
	case FormatYAML:
		var recs []replacementRecord
		if err := yaml.NewDecoder(r).Decode(&recs); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		return fromRecords(recs, now)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format)
	}
}

func readReplacementsCSV(r io.Reader, now func() time.Time) ([]domain.Replacement, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)
	oldIdx, ok := cols.find(ColumnOld, "OldProduct")
	if !ok {
		return nil, &RowError{Line: 1, Column: ColumnOld, Err: ErrMissingColumn}
	}
	newIdx, ok := cols.find(ColumnNew, "NewProduct")
	if !ok {
		return nil, &RowError{Line: 1, Column: ColumnNew, Err: ErrMissingColumn}
	}
	dateIdx, hasDate := cols.find(ColumnDate)

	var out []domain.Replacement
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		if blank(rec) {
			continue
		}
		rep := domain.Replacement{Old: NormalizeName(rec[oldIdx]), New: NormalizeName(rec[newIdx])}
		if rep.Old == "" {
			return nil, &RowError{Line: line, Column: ColumnOld, Err: domain.ErrEmptyProductName}
		}
		if rep.New == "" {
			return nil, &RowError{Line: line, Column: ColumnNew, Err: domain.ErrEmptyProductName}
		}
		if hasDate {
			d, err := ParseDate(rec[dateIdx])
			if err != nil {
				return nil, &RowError{Line: line, Column: ColumnDate, Err: err}
			}
			rep.Date = d
		} else {
			rep.Date = now()
		}
		out = append(out, rep)
	}
}

func fromRecords(recs []replacementRecord, now func() time.Time) ([]domain.Replacement, error) {
	out := make([]domain.Replacement, 0, len(recs))
	for i, rec := range recs {
		item := i + 1
		r := domain.Replacement{Old: NormalizeName(rec.Old), New: NormalizeName(rec.New)}
		if r.Old == "" {
			return nil, &RowError{Line: item, Column: "old", Err: domain.ErrEmptyProductName}
		}
		if r.New == "" {
			return nil, &RowError{Line: item, Column: "new", Err: domain.ErrEmptyProductName}
		}
		if strings.TrimSpace(rec.Date) == "" {
			r.Date = now()
		} else {
			d, err := ParseDate(rec.Date)
			if err != nil {
				return nil, &RowError{Line: item, Column: "date", Err: err}
			}
			r.Date = d
		}
		out = append(out, r)
	}
	return out, nil
}

type columns map[string]int

func indexColumns(header []string) columns {
	cols := make(columns, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func (c columns) find(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := c[n]; ok {
			return i, true
		}
	}
	return 0, false
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
