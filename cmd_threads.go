package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"sheet_notify/internal/sheets"

	"github.com/spf13/cobra"
)

func (c *cli) bindCmd() *cobra.Command {
	var fixture string
	cmd := &cobra.Command{
		Use:   "bind <label> <thread-id>",
		Short: "Bind a label to a Telegram forum thread",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[0]
			threadID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("thread id must be an integer: %w", err)
			}

			wb, err := c.workbook(cmd.Context(), fixture)
			if err != nil {
				return err
			}
			dir := sheets.NewThreadDirectory(wb, c.cfg.LookupTableName)
			rebound, err := dir.Bind(cmd.Context(), label, threadID)
			if err != nil {
				return err
			}

			verb := "bound"
			if rebound {
				verb = "rebound"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%s %s to thread %d\n", label, verb, threadID)
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML file with sheet contents to use instead of Google Sheets")
	return cmd
}

func (c *cli) threadsCmd() *cobra.Command {
	var fixture string
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List label to thread bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := c.workbook(cmd.Context(), fixture)
			if err != nil {
				return err
			}
			bindings, err := sheets.NewThreadDirectory(wb, c.cfg.LookupTableName).List(cmd.Context())
			if err != nil {
				return err
			}

			if len(bindings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no bindings")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROW\tLABEL\tTHREAD\tCREATED")
			for _, b := range bindings {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.Row, b.Label, b.ThreadID, b.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML file with sheet contents to use instead of Google Sheets")
	return cmd
}

func (c *cli) initCmd() *cobra.Command {
	var fixture string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write task headers and create the threads sheet when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			wb, err := c.workbook(ctx, fixture)
			if err != nil {
				return err
			}

			wrote, err := sheets.EnsureTaskHeaders(ctx, wb, c.cfg.DataTableName)
			if err != nil {
				return err
			}
			created, err := sheets.NewThreadDirectory(wb, c.cfg.LookupTableName).Ensure(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: headers %s\n", c.cfg.DataTableName, changed(wrote, "written", "ok"))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: sheet %s\n", c.cfg.LookupTableName, changed(created, "created", "ok"))
			return nil
		},
	}
	cmd.Flags().StringVar(&fixture, "fixture", "", "YAML file with sheet contents to use instead of Google Sheets")
	return cmd
}

func changed(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
