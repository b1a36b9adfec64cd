package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"noticeboard-notifier/app"
	"noticeboard-notifier/board"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Runs one change check against the stored snapshot and notifies on new notices.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		snapshots, cleanup, err := app.NewSnapshots(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		sender, err := app.NewNotifier(ctx, cfg, logger)
		if err != nil {
			return err
		}

		c := app.NewController(cfg, app.NewScraper(cfg, logger), snapshots, sender, logger)
		if _, err := c.Refresh(ctx); err != nil {
			return err
		}

		st := c.Status()
		renderStatus(cmd.OutOrStdout(), st)
		if st.CheckError != "" {
			return fmt.Errorf("check failed: %s", st.CheckError)
		}
		return nil
	},
}

func renderStatus(w io.Writer, st board.Status) {
	t := newTable(w)
	t.AppendRows([]table.Row{
		{"Phase", st.Phase.String()},
		{"Pinned", len(st.Collection.Pinned)},
		{"Regular", len(st.Collection.Regular)},
		{"Offset", st.Pagination.Offset},
		{"Exhausted", st.Pagination.Exhausted},
	})
	if !st.LastCheck.IsZero() {
		t.AppendRow(table.Row{"Checked", st.LastCheck.Format(time.RFC3339)})
	}
	if st.CheckError != "" {
		t.AppendRow(table.Row{"Check error", st.CheckError})
	}
	if st.Reason != "" {
		t.AppendRow(table.Row{"Failure", st.Reason})
	}
	t.Render()
}
