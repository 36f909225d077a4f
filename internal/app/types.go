package app

// Config is resolved once at startup and injected everywhere else.
type Config struct {
	BotToken        string `yaml:"bot_token"`
	ChatID          string `yaml:"chat_id"`
	DataTableName   string `yaml:"data_table"`
	LookupTableName string `yaml:"lookup_table"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsFile string `yaml:"credentials_file"`
	ListenAddr      string `yaml:"listen_addr"`
	WebhookSecret   string `yaml:"webhook_secret"`
	TelegramAPIBase string `yaml:"telegram_api_base"`
	SummaryLabel    string `yaml:"summary_label"`
	Timezone        string `yaml:"timezone"`
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.BotToken != "" {
		c.BotToken = "<redacted>"
	}
	if c.WebhookSecret != "" {
		c.WebhookSecret = "<redacted>"
	}
	return c
}
