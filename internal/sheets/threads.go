package sheets

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// ThreadHeaders is the header row written when the lookup table is created.
var ThreadHeaders = []interface{}{"Label", "ThreadID", "CreatedAt"}

const (
	threadColumns     = 3
	threadSheetRows   = 100
	threadCreatedAtTS = time.RFC3339
)

// ThreadBinding is one row of the lookup table.
type ThreadBinding struct {
	Row       int
	Label     string
	ThreadID  string
	CreatedAt string
}

// ThreadDirectory maps labels to Telegram forum thread IDs through a sheet.
type ThreadDirectory struct {
	wb    Workbook
	sheet string
	now   func() time.Time
	// OnCreate, when set, runs after the lookup sheet has been created.
	OnCreate func()
}

func NewThreadDirectory(wb Workbook, sheet string) *ThreadDirectory {
	return &ThreadDirectory{wb: wb, sheet: sheet, now: time.Now}
}

// Sheet returns the lookup table's sheet name.
func (d *ThreadDirectory) Sheet() string { return d.sheet }

// Ensure creates the lookup sheet with only the header row when it is missing.
// An existing sheet whose first row is blank gets the header written again,
// so later appends never land in row 1.
func (d *ThreadDirectory) Ensure(ctx context.Context) (bool, error) {
	titles, err := d.wb.SheetTitles(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list sheets: %w", err)
	}
	if slices.Contains(titles, d.sheet) {
		return false, d.repairHeader(ctx)
	}

	if err := d.wb.AddSheet(ctx, d.sheet, threadSheetRows, threadColumns); err != nil {
		return false, fmt.Errorf("failed to create threads sheet: %w", err)
	}
	if err := d.wb.WriteRow(ctx, d.sheet, 1, ThreadHeaders); err != nil {
		return true, fmt.Errorf("failed to write threads header: %w", err)
	}
	log.Info().Str("sheet", d.sheet).Msg("Threads sheet created")
	if d.OnCreate != nil {
		d.OnCreate()
	}
	return true, nil
}

func (d *ThreadDirectory) repairHeader(ctx context.Context) error {
	rows, err := d.wb.ReadRows(ctx, d.sheet, 1, 1, threadColumns)
	if err != nil {
		return fmt.Errorf("failed to read threads header: %w", err)
	}
	if len(rows) > 0 && strings.TrimSpace(strings.Join(rowText(rows[0]), "")) != "" {
		return nil
	}
	if err := d.wb.WriteRow(ctx, d.sheet, 1, ThreadHeaders); err != nil {
		return fmt.Errorf("failed to write threads header: %w", err)
	}
	log.Warn().Str("sheet", d.sheet).Msg("Threads sheet had no header, rewrote it")
	return nil
}

// List returns all bindings in sheet order, header excluded.
func (d *ThreadDirectory) List(ctx context.Context) ([]ThreadBinding, error) {
	if _, err := d.Ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := d.wb.ReadRows(ctx, d.sheet, 2, 0, threadColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to read threads sheet: %w", err)
	}

	bindings := make([]ThreadBinding, 0, len(rows))
	for i, row := range rows {
		bindings = append(bindings, ThreadBinding{
			Row:       i + 2,
			Label:     CellText(row, 0),
			ThreadID:  CellText(row, 1),
			CreatedAt: CellText(row, 2),
		})
	}
	log.Debug().Str("sheet", d.sheet).Int("count", len(bindings)).Msg("Listed thread bindings")
	return bindings, nil
}

// Lookup returns the thread ID of the first row whose Label equals label.
// Later rows with the same label are never consulted. The ThreadID cell may
// hold a whole number in decimal form such as 15.00. A matching row with a
// blank, fractional or non-numeric ThreadID yields None.
func (d *ThreadDirectory) Lookup(ctx context.Context, label string) (mo.Option[int64], error) {
	if label == "" {
		return mo.None[int64](), nil
	}

	bindings, err := d.List(ctx)
	if err != nil {
		return mo.None[int64](), err
	}

	for _, b := range bindings {
		if b.Label != label {
			continue
		}
		raw := strings.TrimSpace(b.ThreadID)
		id, ok := parseThreadID(raw)
		if !ok {
			log.Warn().
				Str("label", label).
				Int("row", b.Row).
				Str("thread_id", raw).
				Msg("Thread ID is not numeric, sending without thread")
			return mo.None[int64](), nil
		}
		log.Debug().Str("label", label).Int64("thread_id", id).Msg("Resolved thread for label")
		return mo.Some(id), nil
	}

	log.Debug().Str("label", label).Msg("No thread bound to label")
	return mo.None[int64](), nil
}

func parseThreadID(raw string) (int64, bool) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// Bind points label at threadID, rewriting the first existing binding or
// appending a new one. Reports whether an existing row was rebound.
func (d *ThreadDirectory) Bind(ctx context.Context, label string, threadID int64) (bool, error) {
	if strings.TrimSpace(label) == "" {
		return false, fmt.Errorf("label must not be empty")
	}

	bindings, err := d.List(ctx)
	if err != nil {
		return false, err
	}

	id := strconv.FormatInt(threadID, 10)
	for _, b := range bindings {
		if b.Label != label {
			continue
		}
		createdAt := b.CreatedAt
		if createdAt == "" {
			createdAt = d.timestamp()
		}
		if err := d.wb.WriteRow(ctx, d.sheet, b.Row, []interface{}{label, id, createdAt}); err != nil {
			return false, fmt.Errorf("failed to rebind label %q: %w", label, err)
		}
		log.Info().Str("label", label).Int64("thread_id", threadID).Msg("Thread rebound")
		return true, nil
	}

	if err := d.wb.AppendRow(ctx, d.sheet, []interface{}{label, id, d.timestamp()}); err != nil {
		return false, fmt.Errorf("failed to bind label %q: %w", label, err)
	}
	log.Info().Str("label", label).Int64("thread_id", threadID).Msg("Thread bound")
	return false, nil
}

func (d *ThreadDirectory) timestamp() string {
	return d.now().UTC().Truncate(time.Second).Format(threadCreatedAtTS)
}
