package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"noticeboard-notifier/app"
	"noticeboard-notifier/board"
	"noticeboard-notifier/pkg/notice"
)

var listPages int

func init() {
	listCmd.Flags().IntVarP(&listPages, "pages", "p", 1, "number of listing pages to load")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [--pages N]",
	Short: "Prints pinned and regular notices, loading more pages on request.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listPages < 1 {
			return fmt.Errorf("--pages must be at least 1, got %d", listPages)
		}

		// No snapshots or notifier: listing never counts as a check.
		c := app.NewController(cfg, app.NewScraper(cfg, logger), nil, nil, logger)
		st, err := loadPages(cmd, c, listPages)
		if err != nil {
			return err
		}

		renderCollection(cmd.OutOrStdout(), st.Collection)
		fmt.Fprintf(cmd.OutOrStdout(), "%d pinned, %d regular, offset %d, exhausted %t\n",
			len(st.Collection.Pinned), len(st.Collection.Regular), st.Pagination.Offset, st.Pagination.Exhausted)
		return nil
	},
}

func loadPages(cmd *cobra.Command, c *board.Controller, pages int) (board.Status, error) {
	if _, err := c.Refresh(cmd.Context()); err != nil {
		return board.Status{}, err
	}
	for range pages - 1 {
		if c.Status().Phase == board.PhaseExhausted {
			break
		}
		if _, err := c.LoadMore(cmd.Context()); err != nil {
			return board.Status{}, err
		}
	}
	return c.Status(), nil
}

func renderCollection(w io.Writer, coll notice.Collection) {
	t := newTable(w)
	t.AppendHeader(table.Row{"No.", "Title", "Link"})
	for _, r := range coll.Pinned {
		t.AppendRow(table.Row{"공지", r.Title, r.Link})
	}
	if len(coll.Pinned) > 0 && len(coll.Regular) > 0 {
		t.AppendSeparator()
	}
	for _, r := range coll.Regular {
		t.AppendRow(table.Row{r.Number, r.Title, r.Link})
	}
	t.Render()
}
