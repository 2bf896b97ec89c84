package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"replacechain/pkg/domain"
)

// mappingRow is the JSON and YAML shape of one exported mapping.
type mappingRow struct {
	Product string `json:"product" yaml:"product"`
	Latest  string `json:"latest" yaml:"latest"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
}

// SortMappings returns a copy of rows ordered by Latest, keeping
// registration order within a group.
func SortMappings(rows []domain.Mapping) []domain.Mapping {
	out := make([]domain.Mapping, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Latest < out[j].Latest })
	return out
}

// WriteMappings writes rows grouped by their latest product. CSV uses the
// Old Product, New Product and Date columns; undated rows leave Date empty.
func WriteMappings(w io.Writer, format Format, rows []domain.Mapping) error {
	sorted := SortMappings(rows)
	switch format {
	case "", FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{ColumnOld, ColumnNew, ColumnDate}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, row := range sorted {
			if err := cw.Write([]string{row.Product, row.Latest, FormatDate(row.Date)}); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(toRows(sorted)); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toRows(sorted)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("close yaml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

func toRows(rows []domain.Mapping) []mappingRow {
	out := make([]mappingRow, len(rows))
	for i, r := range rows {
		out[i] = mappingRow{Product: r.Product, Latest: r.Latest, Date: FormatDate(r.Date)}
	}
	return out
}
