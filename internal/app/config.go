package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sheet_notify/internal/config"
	"sheet_notify/internal/notifications"
	"sheet_notify/internal/notifier"
	"sheet_notify/internal/sheets"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataTable       = "tasks"
	DefaultLookupTable     = "threads"
	DefaultCredentialsFile = "sa.json"
	DefaultListenAddr      = ":8080"
	DefaultSummaryLabel    = "summary"
	DefaultTimezone        = "Europe/Moscow"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	if os.Getenv("ENV") == "production" {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	zerolog.SetGlobalLevel(parseLogLevel(os.Getenv("LOGLEVEL"), os.Getenv("ENV") == "production"))

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

func parseLogLevel(raw string, production bool) zerolog.Level {
	levelStr := strings.ToLower(strings.TrimSpace(raw))
	switch levelStr {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	case "":
		if production {
			return zerolog.WarnLevel
		}
		return zerolog.InfoLevel
	default:
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", levelStr)
		return zerolog.InfoLevel
	}
}

// DefaultConfig returns the built-in defaults. Secrets have none.
func DefaultConfig() Config {
	return Config{
		DataTableName:   DefaultDataTable,
		LookupTableName: DefaultLookupTable,
		CredentialsFile: DefaultCredentialsFile,
		ListenAddr:      DefaultListenAddr,
		TelegramAPIBase: notifications.DefaultAPIBase,
		SummaryLabel:    DefaultSummaryLabel,
		Timezone:        DefaultTimezone,
	}
}

// LoadConfig resolves defaults, then the YAML file at path (a missing file is
// fine), then environment variables. An empty path falls back to CONFIG_FILE.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Debug().Str("path", path).Msg("Config file not found, using defaults and environment")
		case err != nil:
			return cfg, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		key    string
		target *string
	}{
		{"TELEGRAM_BOT_TOKEN", &c.BotToken},
		{"TELEGRAM_CHAT_ID", &c.ChatID},
		{"GSHEET_ID", &c.SpreadsheetID},
		{"GSHEET_WORKSHEET", &c.DataTableName},
		{"GSHEET_THREADS_SHEET", &c.LookupTableName},
		{"GOOGLE_SA_JSON_PATH", &c.CredentialsFile},
		{"WEBHOOK_SECRET", &c.WebhookSecret},
		{"TELEGRAM_API_BASE", &c.TelegramAPIBase},
		{"SUMMARY_LABEL", &c.SummaryLabel},
		{"TZ", &c.Timezone},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.key)); v != "" {
			*o.target = v
		}
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		c.ListenAddr = ":" + port
	}
	if addr := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); addr != "" {
		c.ListenAddr = addr
	}
}

// Validate reports every missing required option at once.
func (c Config) Validate() error {
	return errors.Join(c.ValidateSheets(), c.ValidateTelegram())
}

// ValidateSheets checks the options needed to reach the spreadsheet.
func (c Config) ValidateSheets() error {
	var errs []error
	errs = append(errs,
		requireOption("GSHEET_ID", c.SpreadsheetID),
		requireOption("GSHEET_WORKSHEET", c.DataTableName),
		requireOption("GSHEET_THREADS_SHEET", c.LookupTableName),
	)
	if c.DataTableName != "" && c.DataTableName == c.LookupTableName {
		errs = append(errs, fmt.Errorf("data table and lookup table must differ (both %q)", c.DataTableName))
	}
	return errors.Join(errs...)
}

// ValidateTelegram checks the options needed to deliver messages.
func (c Config) ValidateTelegram() error {
	return errors.Join(
		requireOption("TELEGRAM_BOT_TOKEN", c.BotToken),
		requireOption("TELEGRAM_CHAT_ID", c.ChatID),
	)
}

// Location resolves Timezone, the zone that decides which tasks are overdue.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TZ %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func requireOption(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// InitializeWorkbook connects to the configured spreadsheet.
func InitializeWorkbook(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	log.Debug().Str("credentials", cfg.CredentialsFile).Msg("Initializing sheets client")
	client, err := sheets.NewClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}
	return sheets.NewSpreadsheet(client, cfg.SpreadsheetID, config.DefaultResilienceConfig), nil
}

// InitializeNotificationClient creates the Telegram client.
func InitializeNotificationClient(cfg Config) *notifications.Client {
	log.Debug().
		Str("api_base", cfg.TelegramAPIBase).
		Str("chat_id", cfg.ChatID).
		Msg("Initializing Telegram client")
	return notifications.NewClient(cfg.TelegramAPIBase, cfg.BotToken)
}

// NewNotifier wires a Notifier and its thread directory over wb.
func NewNotifier(cfg Config, wb sheets.Workbook, sender notifier.Sender) (*notifier.Notifier, *sheets.ThreadDirectory) {
	threads := sheets.NewThreadDirectory(wb, cfg.LookupTableName)
	return notifier.New(wb, threads, sender, cfg.ChatID, cfg.DataTableName), threads
}
