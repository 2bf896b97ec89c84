package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"replacechain/pkg/domain"
)

// Resolver answers latest-version queries. *core.Manager satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, name string) domain.Resolution
}

// ResolveFile reads a CSV with an Old Product column and writes it back with
// New Product and Date filled in from resolver. Other columns pass through
// unchanged; New Product and Date are appended when absent. It returns the
// number of data rows written.
func ResolveFile(ctx context.Context, r io.Reader, w io.Writer, resolver Resolver, progress domain.ProgressFunc) (int, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return 0, &RowError{Line: 1, Column: ColumnOld, Err: ErrMissingColumn}
	}
	header := append([]string(nil), records[0]...)
	cols := indexColumns(header)
	oldIdx, ok := cols.find(ColumnOld, "OldProduct")
	if !ok {
		return 0, &RowError{Line: 1, Column: ColumnOld, Err: ErrMissingColumn}
	}
	newIdx, ok := cols.find(ColumnNew, "NewProduct")
	if !ok {
		newIdx = len(header)
		header = append(header, ColumnNew)
	}
	dateIdx, ok := cols.find(ColumnDate)
	if !ok {
		dateIdx = len(header)
		header = append(header, ColumnDate)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	rows := records[1:]
	for i, rec := range rows {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		out := make([]string, len(header))
		copy(out, rec)
		res := resolver.Resolve(ctx, NormalizeName(rec[oldIdx]))
		out[newIdx] = res.Latest
		out[dateIdx] = FormatDate(res.Date)
		if err := cw.Write(out); err != nil {
			return i, fmt.Errorf("write row: %w", err)
		}
		if progress != nil {
			progress(i+1, len(rows))
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return len(rows), fmt.Errorf("flush csv: %w", err)
	}
	return len(rows), nil
}
