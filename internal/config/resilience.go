package config

import (
	"time"

	"sheet_notify/internal/retry"
)

// ResilienceConfig groups retry presets for the spreadsheet side.
// Telegram delivery is single-shot and has no preset here.
type ResilienceConfig struct {
	SheetRead  retry.Config
	SheetWrite retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	SheetRead: retry.Config{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetWrite: retry.Config{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   5 * time.Second,
		Timeout:    15 * time.Second,
	},
}

// NoRetryResilienceConfig runs every sheet call exactly once.
var NoRetryResilienceConfig = ResilienceConfig{
	SheetRead:  retry.Config{Timeout: 15 * time.Second},
	SheetWrite: retry.Config{Timeout: 15 * time.Second},
}
