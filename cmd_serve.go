package main

import (
	"os"
	"os/signal"
	"syscall"

	"sheet_notify/internal/app"
	"sheet_notify/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the edit webhook server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wb, err := app.InitializeWorkbook(ctx, c.cfg)
			if err != nil {
				return err
			}
			n, _ := app.NewNotifier(c.cfg, wb, app.InitializeNotificationClient(c.cfg))

			log.Info().
				Str("data_table", c.cfg.DataTableName).
				Str("lookup_table", c.cfg.LookupTableName).
				Bool("secret", c.cfg.WebhookSecret != "").
				Msg("Starting sheet edit notifier")

			srv := server.New(n, c.cfg.WebhookSecret)
			return server.ListenAndServe(ctx, c.cfg.ListenAddr, srv.Router())
		},
	}
}
