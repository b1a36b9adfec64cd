package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"noticeboard-notifier/app"
	"noticeboard-notifier/pkg/notice"
)

func init() {
	rootCmd.AddCommand(detailCmd)
}

var detailCmd = &cobra.Command{
	Use:   "detail <link>",
	Short: "Prints the content, metadata and attachments of one notice.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := app.NewScraper(cfg, logger).FetchDetail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		renderDetail(cmd.OutOrStdout(), d)
		return nil
	},
}

func renderDetail(w io.Writer, d *notice.Detail) {
	meta := newTable(w)
	meta.AppendRows([]table.Row{
		{"작성자", d.Meta.Author},
		{"등록일", d.Meta.Date},
		{"조회수", d.Meta.Views},
		{"URL", d.URL},
	})
	meta.Render()

	for _, b := range d.Blocks {
		switch b := b.(type) {
		case notice.TextBlock:
			if b.Alignment == notice.AlignCenter {
				fmt.Fprintln(w, text.AlignCenter.Apply(b.Content, 80))
			} else {
				fmt.Fprintln(w, b.Content)
			}
		case notice.ImageBlock:
			fmt.Fprintf(w, "[image] %s\n", b.URL)
		case notice.TableBlock:
			renderTableBlock(w, b)
		}
	}

	if len(d.Attachments) == 0 {
		return
	}
	files := newTable(w)
	files.SetTitle("첨부파일")
	files.AppendHeader(table.Row{"Name", "Kind", "Size", "URL"})
	for _, a := range d.Attachments {
		files.AppendRow(table.Row{a.Name, a.Kind, a.Size, a.URL})
	}
	files.Render()
}

func renderTableBlock(w io.Writer, b notice.TableBlock) {
	t := newTable(w)
	t.AppendHeader(toRow(b.Headers))
	for _, r := range b.Rows {
		t.AppendRow(toRow(r))
	}
	t.Render()
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = strings.TrimSpace(c)
	}
	return row
}
