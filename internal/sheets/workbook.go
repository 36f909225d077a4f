package sheets

import (
	"context"
	"fmt"
	"strings"

	"sheet_notify/internal/config"
	"sheet_notify/internal/retry"

	"github.com/rs/zerolog/log"
)

// Workbook is the row-oriented view of a spreadsheet used by the notifier.
// Rows and columns are 1-based, as in the sheet UI.
type Workbook interface {
	SheetTitles(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string, rows, cols int) error
	// ReadRows returns rows first..last limited to width columns.
	// last == 0 reads to the end of the sheet.
	ReadRows(ctx context.Context, sheet string, first, last, width int) ([][]interface{}, error)
	WriteRow(ctx context.Context, sheet string, row int, values []interface{}) error
	AppendRow(ctx context.Context, sheet string, values []interface{}) error
}

// Spreadsheet binds a Client to one spreadsheet ID and retries transient API failures.
type Spreadsheet struct {
	client *Client
	id     string
	read   retry.Config
	write  retry.Config
}

func NewSpreadsheet(client *Client, spreadsheetID string, resilience config.ResilienceConfig) *Spreadsheet {
	read := resilience.SheetRead
	read.Retryable = IsRetryableError
	write := resilience.SheetWrite
	write.Retryable = IsRetryableError

	return &Spreadsheet{
		client: client,
		id:     spreadsheetID,
		read:   read,
		write:  write,
	}
}

func (s *Spreadsheet) SheetTitles(ctx context.Context) ([]string, error) {
	return retry.WithRetry(ctx, s.read, func(ctx context.Context) ([]string, error) {
		return s.client.SheetTitles(ctx, s.id)
	})
}

func (s *Spreadsheet) AddSheet(ctx context.Context, title string, rows, cols int) error {
	// Not retried: a lost response followed by a retry would fail on the duplicate title.
	return s.client.AddSheet(ctx, s.id, title, int64(rows), int64(cols))
}

func (s *Spreadsheet) ReadRows(ctx context.Context, sheet string, first, last, width int) ([][]interface{}, error) {
	rng := RowsRange(sheet, first, last, width)
	log.Debug().Str("range", rng).Msg("Reading sheet rows")
	return retry.WithRetry(ctx, s.read, func(ctx context.Context) ([][]interface{}, error) {
		return s.client.ReadSheet(ctx, s.id, rng)
	})
}

func (s *Spreadsheet) WriteRow(ctx context.Context, sheet string, row int, values []interface{}) error {
	rng := RowsRange(sheet, row, row, len(values))
	_, err := retry.WithRetry(ctx, s.write, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.client.UpdateRange(ctx, s.id, rng, [][]interface{}{values})
	})
	return err
}

func (s *Spreadsheet) AppendRow(ctx context.Context, sheet string, values []interface{}) error {
	// Appends are not idempotent, so they run once.
	return s.client.AppendRows(ctx, s.id, quoteSheetName(sheet)+"!A1", [][]interface{}{values})
}

// RowsRange renders an A1 range such as 'tasks'!A1:M1 or 'threads'!A2:C.
func RowsRange(sheet string, first, last, width int) string {
	lastCol := ColumnLetter(width)
	if last <= 0 {
		return fmt.Sprintf("%s!A%d:%s", quoteSheetName(sheet), first, lastCol)
	}
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheetName(sheet), first, lastCol, last)
}

// ColumnLetter converts a 1-based column index to its A1 letters (1 -> A, 27 -> AA).
func ColumnLetter(col int) string {
	if col < 1 {
		return "A"
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
