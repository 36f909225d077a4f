package main

import (
	"context"
	"fmt"
	"io"

	"sheet_notify/internal/app"
	"sheet_notify/internal/notifications"
	"sheet_notify/internal/notifier"

	"github.com/samber/mo"
	"github.com/spf13/cobra"
)

// printSender writes messages instead of delivering them.
type printSender struct {
	out io.Writer
}

func (p printSender) SendMessage(_ context.Context, msg notifications.OutboundMessage) error {
	thread := "none"
	if id, ok := msg.ThreadID.Get(); ok {
		thread = fmt.Sprintf("%d", id)
	}
	_, err := fmt.Fprintf(p.out, "chat_id: %s\nthread_id: %s\nparse_mode: %s\n\n%s\n", msg.ChatID, thread, msg.ParseMode, msg.Text)
	return err
}

func (c *cli) replayCmd() *cobra.Command {
	var (
		sheet    string
		row      int
		column   int
		oldValue string
		newValue string
		dryRun   bool
		fixture  string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a single edit through the notifier",
		Long: `Replay builds an edit event from flags and handles it exactly like the
webhook would. --dry-run prints the message instead of sending it;
--fixture reads the spreadsheet from a YAML file instead of Google Sheets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			wb, err := c.workbook(ctx, fixture)
			if err != nil {
				return err
			}

			var sender notifier.Sender = printSender{out: cmd.OutOrStdout()}
			if !dryRun {
				if err := c.cfg.ValidateTelegram(); err != nil {
					return err
				}
				sender = app.InitializeNotificationClient(c.cfg)
			}

			ev := notifier.EditEvent{Sheet: sheet, Row: row, Column: column}
			if ev.Sheet == "" {
				ev.Sheet = c.cfg.DataTableName
			}
			if cmd.Flags().Changed("old") {
				ev.OldValue = mo.Some(oldValue)
			}
			if cmd.Flags().Changed("new") {
				ev.Value = mo.Some(newValue)
			}

			n, _ := app.NewNotifier(c.cfg, wb, sender)
			res := n.HandleEdit(ctx, ev)

			fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s", res.Outcome)
			if res.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", res.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if res.Outcome == notifier.OutcomeFailed {
				return fmt.Errorf("edit not delivered (retryable=%t): %w", res.Retryable(), res.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "edited sheet (default: the data table)")
	cmd.Flags().IntVar(&row, "row", 0, "edited row, 1-based")
	cmd.Flags().IntVar(&column, "column", 0, "edited column, 1-based")
	cmd.Flags().StringVar(&oldValue, "old", "", "previous cell value")
	cmd.Flags().StringVar(&newValue, "new", "", "new cell value (default: read from the row)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the message instead of sending it")
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML file with sheet contents to use instead of Google Sheets")
	_ = cmd.MarkFlagRequired("row")
	_ = cmd.MarkFlagRequired("column")

	return cmd
}
