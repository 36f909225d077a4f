package main

import (
	"fmt"
	"time"

	"sheet_notify/internal/app"
	"sheet_notify/internal/notifier"

	"github.com/spf13/cobra"
)

func (c *cli) summaryCmd() *cobra.Command {
	var (
		label   string
		dryRun  bool
		fixture string
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Send the daily summary of open tasks",
		Long: `Summary counts open tasks per assignee and the overdue ones, then posts
the digest to the thread bound to the summary label (SUMMARY_LABEL), or to
the chat when that label has no thread. Due dates are compared with today
in TZ. Run it from cron for a daily digest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			loc, err := c.cfg.Location()
			if err != nil {
				return err
			}

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

			if !cmd.Flags().Changed("label") {
				label = c.cfg.SummaryLabel
			}

			n, _ := app.NewNotifier(c.cfg, wb, sender)
			res := n.SendSummary(ctx, label, time.Now().In(loc))

			fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s (%s)\n", res.Outcome, res.Reason)
			if res.Outcome == notifier.OutcomeFailed {
				return fmt.Errorf("summary not delivered (retryable=%t): %w", res.Retryable(), res.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "label whose thread receives the summary (default $SUMMARY_LABEL)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the message instead of sending it")
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML file with sheet contents to use instead of Google Sheets")

	return cmd
}
