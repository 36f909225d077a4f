package sheets

import (
	"context"
	"fmt"
	"sync"
)

// MemoryWorkbook is an in-process Workbook. It backs fixture runs and tests.
type MemoryWorkbook struct {
	mu     sync.Mutex
	order  []string
	sheets map[string][][]interface{}
	// Err, when set, is returned by every call.
	Err error
	// AddSheetCalls counts AddSheet invocations.
	AddSheetCalls int
}

func NewMemoryWorkbook() *MemoryWorkbook {
	return &MemoryWorkbook{sheets: make(map[string][][]interface{})}
}

// SetRows replaces the content of a sheet, creating it when missing.
func (m *MemoryWorkbook) SetRows(sheet string, rows [][]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		m.order = append(m.order, sheet)
	}
	m.sheets[sheet] = copyRows(rows)
}

// Rows returns a copy of a sheet's content.
func (m *MemoryWorkbook) Rows(sheet string) ([][]interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[sheet]
	return copyRows(rows), ok
}

func (m *MemoryWorkbook) SheetTitles(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.order...), nil
}

func (m *MemoryWorkbook) AddSheet(ctx context.Context, title string, rows, cols int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddSheetCalls++
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.sheets[title]; ok {
		return fmt.Errorf("sheet %q already exists", title)
	}
	m.order = append(m.order, title)
	m.sheets[title] = nil
	return nil
}

func (m *MemoryWorkbook) ReadRows(ctx context.Context, sheet string, first, last, width int) ([][]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("unable to parse range: sheet %q not found", sheet)
	}

	end := len(rows)
	if last > 0 && last < end {
		end = last
	}
	var out [][]interface{}
	for i := first - 1; i < end; i++ {
		if i < 0 {
			continue
		}
		row := rows[i]
		if len(row) > width {
			row = row[:width]
		}
		out = append(out, append([]interface{}(nil), row...))
	}
	return out, nil
}

func (m *MemoryWorkbook) WriteRow(ctx context.Context, sheet string, row int, values []interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("unable to parse range: sheet %q not found", sheet)
	}
	for len(rows) < row {
		rows = append(rows, nil)
	}
	rows[row-1] = append([]interface{}(nil), values...)
	m.sheets[sheet] = rows
	return nil
}

func (m *MemoryWorkbook) AppendRow(ctx context.Context, sheet string, values []interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("unable to parse range: sheet %q not found", sheet)
	}
	m.sheets[sheet] = append(rows, append([]interface{}(nil), values...))
	return nil
}

func copyRows(rows [][]interface{}) [][]interface{} {
	if rows == nil {
		return nil
	}
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = append([]interface{}(nil), row...)
	}
	return out
}
