package commands

import (
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"noticeboard-notifier/app"
)

func init() {
	snapshotCmd.AddCommand(snapshotListCmd, snapshotShowCmd, snapshotResetCmd)
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspects or resets the stored title snapshot.",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints the board keys that have a stored snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, cleanup, err := app.NewSnapshots(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		if snapshots == nil {
			return fmt.Errorf("storage backend %q keeps no snapshot", cfg.Storage.Backend)
		}

		keys, err := snapshots.Keys(cmd.Context())
		if err != nil {
			return err
		}
		slices.Sort(keys)

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Key", "Active"})
		for _, key := range keys {
			active := ""
			if key == cfg.Storage.Key {
				active = "*"
			}
			t.AppendRow(table.Row{key, active})
		}
		t.Render()
		return nil
	},
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the titles seen at the last completed check.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, cleanup, err := app.NewSnapshots(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		if snapshots == nil {
			return fmt.Errorf("storage backend %q keeps no snapshot", cfg.Storage.Backend)
		}

		titles, err := snapshots.Load(cmd.Context())
		if err != nil {
			return err
		}
		renderTitles(cmd.OutOrStdout(), titles)
		return nil
	},
}

var snapshotResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Deletes the snapshot so the next check treats every title as new.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, cleanup, err := app.NewSnapshots(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()
		if snapshots == nil {
			return fmt.Errorf("storage backend %q keeps no snapshot", cfg.Storage.Backend)
		}

		if err := snapshots.Delete(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot %q deleted\n", cfg.Storage.Key)
		return nil
	},
}

func renderTitles(w io.Writer, titles []string) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Title"})
	for i, title := range titles {
		t.AppendRow(table.Row{i + 1, title})
	}
	t.Render()
}
