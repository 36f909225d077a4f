package main

import (
	"os"
	_ "time/tzdata"

	"sheet_notify/internal/app"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	cfg        app.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "sheetnotify",
		Short: "Forward task sheet edits to Telegram forum threads",
		Long: `sheetnotify turns edits of the task spreadsheet into Telegram messages.

Each edit is routed to the forum thread bound to the row's first label in
the threads sheet, or to the chat itself when no thread is bound.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupEnvironment()
			cfg, err := app.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			log.Debug().Interface("config", cfg.Redacted()).Msg("Configuration resolved")
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $CONFIG_FILE)")

	rootCmd.AddCommand(
		c.serveCmd(),
		c.replayCmd(),
		c.bindCmd(),
		c.threadsCmd(),
		c.initCmd(),
		c.summaryCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
