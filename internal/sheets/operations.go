package sheets

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
)

// TaskColumns is the fixed width of the task table (A:M).
const TaskColumns = 13

// TaskHeaders is the canonical header row of the task table.
var TaskHeaders = []string{
	"ID", "Title", "Description", "Status", "Assignee", "Priority", "Due",
	"Labels", "CreatedAt", "UpdatedAt", "Source", "TG_ThreadID", "TG_MessageLink",
}

// ErrInvalidHeader marks a header row that cannot be zipped with a data row.
var ErrInvalidHeader = errors.New("invalid header row")

// RowRecord is one task row keyed by header name.
type RowRecord struct {
	Index   int
	headers []string
	values  []string
}

// NewRowRecord zips headers with values. Every header must be non-blank;
// values shorter than the header row are padded with empty strings.
func NewRowRecord(index int, headers, values []string) (RowRecord, error) {
	if len(headers) == 0 {
		return RowRecord{}, fmt.Errorf("%w: no headers", ErrInvalidHeader)
	}
	for i, h := range headers {
		if strings.TrimSpace(h) == "" {
			return RowRecord{}, fmt.Errorf("%w: column %s has no name", ErrInvalidHeader, ColumnLetter(i+1))
		}
	}

	padded := make([]string, len(headers))
	copy(padded, values)

	return RowRecord{
		Index:   index,
		headers: append([]string(nil), headers...),
		values:  padded,
	}, nil
}

// Get returns the value under a header name, or "" when the header is unknown.
func (r RowRecord) Get(name string) string {
	for i, h := range r.headers {
		if h == name {
			return r.values[i]
		}
	}
	return ""
}

// Header returns the name of a 1-based column.
func (r RowRecord) Header(column int) (string, bool) {
	if column < 1 || column > len(r.headers) {
		return "", false
	}
	return r.headers[column-1], true
}

// Value returns the value of a 1-based column, or "" when out of range.
func (r RowRecord) Value(column int) string {
	if column < 1 || column > len(r.values) {
		return ""
	}
	return r.values[column-1]
}

// Map returns the header -> value mapping. Later duplicates win.
func (r RowRecord) Map() map[string]string {
	m := make(map[string]string, len(r.headers))
	for i, h := range r.headers {
		m[h] = r.values[i]
	}
	return m
}

// ReadRowRecord snapshots the header row and one data row of a sheet.
func ReadRowRecord(ctx context.Context, wb Workbook, sheet string, row int) (RowRecord, error) {
	headers, err := readTaskHeader(ctx, wb, sheet)
	if err != nil {
		return RowRecord{}, err
	}

	dataRows, err := wb.ReadRows(ctx, sheet, row, row, TaskColumns)
	if err != nil {
		return RowRecord{}, fmt.Errorf("failed to read row %d: %w", row, err)
	}
	var values []string
	if len(dataRows) > 0 {
		values = rowText(dataRows[0])
	}

	log.Debug().
		Str("sheet", sheet).
		Int("row", row).
		Int("values", len(values)).
		Msg("Read row snapshot")

	return NewRowRecord(row, headers, values)
}

// ReadTaskRecords returns every non-blank data row of the task table.
func ReadTaskRecords(ctx context.Context, wb Workbook, sheet string) ([]RowRecord, error) {
	headers, err := readTaskHeader(ctx, wb, sheet)
	if err != nil {
		return nil, err
	}

	rows, err := wb.ReadRows(ctx, sheet, 2, 0, TaskColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	records := make([]RowRecord, 0, len(rows))
	for i, row := range rows {
		values := rowText(row)
		if strings.TrimSpace(strings.Join(values, "")) == "" {
			continue
		}
		rec, err := NewRowRecord(i+2, headers, values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	log.Debug().Str("sheet", sheet).Int("count", len(records)).Msg("Read task rows")
	return records, nil
}

func readTaskHeader(ctx context.Context, wb Workbook, sheet string) ([]string, error) {
	headerRows, err := wb.ReadRows(ctx, sheet, 1, 1, TaskColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	var headers []string
	if len(headerRows) > 0 {
		headers = rowText(headerRows[0])
	}
	if len(headers) != TaskColumns {
		return nil, fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidHeader, TaskColumns, len(headers))
	}
	return headers, nil
}

// EnsureTaskHeaders rewrites row 1 with TaskHeaders when it differs. Reports whether it wrote.
func EnsureTaskHeaders(ctx context.Context, wb Workbook, sheet string) (bool, error) {
	rows, err := wb.ReadRows(ctx, sheet, 1, 1, TaskColumns)
	if err != nil {
		return false, fmt.Errorf("failed to read header row: %w", err)
	}
	var current []string
	if len(rows) > 0 {
		current = rowText(rows[0])
	}
	if slices.Equal(current, TaskHeaders) {
		log.Debug().Str("sheet", sheet).Msg("Task headers already in place")
		return false, nil
	}

	values := make([]interface{}, len(TaskHeaders))
	for i, h := range TaskHeaders {
		values[i] = h
	}
	if err := wb.WriteRow(ctx, sheet, 1, values); err != nil {
		return false, fmt.Errorf("failed to write task headers: %w", err)
	}
	log.Info().Str("sheet", sheet).Strs("headers", TaskHeaders).Msg("Task headers updated")
	return true, nil
}

// CellText coerces a cell to text the way the sheet displays it.
func CellText(row []interface{}, index int) string {
	if len(row) > index && row[index] != nil {
		return fmt.Sprintf("%v", row[index])
	}
	return ""
}

func rowText(row []interface{}) []string {
	out := make([]string, len(row))
	for i := range row {
		out[i] = CellText(row, i)
	}
	return out
}
