package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"sheet_notify/internal/app"
	"sheet_notify/internal/sheets"

	"gopkg.in/yaml.v3"
)

var setupOnce sync.Once

// setupEnvironment loads .env and configures zerolog once per process.
func setupEnvironment() {
	setupOnce.Do(app.SetupEnvironment)
}

// workbook returns the live spreadsheet, or an in-memory one loaded from a
// fixture file when fixture is set.
func (c *cli) workbook(ctx context.Context, fixture string) (sheets.Workbook, error) {
	if fixture != "" {
		return loadFixture(fixture)
	}
	if err := c.cfg.ValidateSheets(); err != nil {
		return nil, err
	}
	return app.InitializeWorkbook(ctx, c.cfg)
}

// sheetFixture is an offline copy of the spreadsheet:
//
//	sheets:
//	  tasks:
//	    - [ID, Title, ...]
//	    - ["42", "Fix bug", ...]
type sheetFixture struct {
	Sheets map[string][][]string `yaml:"sheets"`
}

func loadFixture(path string) (*sheets.MemoryWorkbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var fx sheetFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	wb := sheets.NewMemoryWorkbook()
	for name, rows := range fx.Sheets {
		cells := make([][]interface{}, len(rows))
		for i, row := range rows {
			cells[i] = make([]interface{}, len(row))
			for j, v := range row {
				cells[i][j] = v
			}
		}
		wb.SetRows(name, cells)
	}
	return wb, nil
}
