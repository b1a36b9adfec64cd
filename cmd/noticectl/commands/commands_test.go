package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"noticeboard-notifier/board"
	"noticeboard-notifier/pkg/notice"
)

// boardServer serves a listing of regular notices numbered from top down to 1,
// paged by article.offset and articleLimit.
func boardServer(t *testing.T, top int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var offset, limit int
		fmt.Sscan(r.URL.Query().Get("article.offset"), &offset)
		fmt.Sscan(r.URL.Query().Get("articleLimit"), &limit)

		var b strings.Builder
		b.WriteString(`<html><body><table class="board-table"><tbody>`)
		if offset == 0 {
			b.WriteString(`<tr class="b-top-box"><td class="b-num-box">공지</td><td class="b-td-left"><a href="?mode=view&articleNo=9000">고정 공지</a></td></tr>`)
		}
		for n := top - offset; n > top-offset-limit && n > 0; n-- {
			fmt.Fprintf(&b, `<tr><td class="b-num-box">%d</td><td class="b-td-left"><a href="?mode=view&articleNo=%d">공지 %d</a></td></tr>`, n, 1000+n, n)
		}
		b.WriteString(`</tbody></table></body></html>`)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, b.String())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		listPages = 1
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListLoadsRequestedPages(t *testing.T) {
	srv := boardServer(t, 5)
	t.Setenv("NOTICEBOARD_SITE_ORIGIN", srv.URL)
	t.Setenv("NOTICEBOARD_FETCH_PAGE_SIZE", "2")
	t.Setenv("NOTICEBOARD_STORAGE_BACKEND", "none")

	out, err := execute(t, "list", "--pages", "2")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}

	for _, want := range []string{"고정 공지", "공지 5", "공지 4", "공지 3", "공지 2", "1 pinned, 4 regular", "offset 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "공지 1 ") {
		t.Errorf("output contains a third page:\n%s", out)
	}
}

func TestCheckThenSnapshotCommands(t *testing.T) {
	srv := boardServer(t, 3)
	t.Setenv("NOTICEBOARD_SITE_ORIGIN", srv.URL)
	t.Setenv("NOTICEBOARD_STORAGE_BACKEND", "local")
	t.Setenv("NOTICEBOARD_STORAGE_LOCAL_PATH", t.TempDir())
	t.Setenv("NOTICEBOARD_NOTIFY_PROVIDER", "mock")

	out, err := execute(t, "check")
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "Checked") {
		t.Errorf("check output missing check time:\n%s", out)
	}

	out, err = execute(t, "snapshot", "show")
	if err != nil {
		t.Fatalf("snapshot show error = %v", err)
	}
	for _, want := range []string{"고정 공지", "공지 3", "공지 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("snapshot missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "snapshot", "list")
	if err != nil {
		t.Fatalf("snapshot list error = %v", err)
	}
	if !strings.Contains(out, "hallym-notice") {
		t.Errorf("snapshot list missing the configured key:\n%s", out)
	}

	if _, err := execute(t, "snapshot", "reset"); err != nil {
		t.Fatalf("snapshot reset error = %v", err)
	}
	out, err = execute(t, "snapshot", "show")
	if err != nil {
		t.Fatalf("snapshot show error = %v", err)
	}
	if strings.Contains(out, "공지 3") {
		t.Errorf("snapshot still has titles after reset:\n%s", out)
	}

	out, err = execute(t, "snapshot", "list")
	if err != nil {
		t.Fatalf("snapshot list error = %v", err)
	}
	if strings.Contains(out, "hallym-notice") {
		t.Errorf("snapshot list still shows the reset key:\n%s", out)
	}
}

func TestListRejectsZeroPages(t *testing.T) {
	t.Setenv("NOTICEBOARD_STORAGE_BACKEND", "none")
	if _, err := execute(t, "list", "--pages", "0"); err == nil {
		t.Error("list --pages 0 succeeded")
	}
}

func TestRenderDetail(t *testing.T) {
	d := &notice.Detail{
		URL:  "https://data.hallym.ac.kr/data/community/notice02.do?mode=view&articleNo=1",
		Meta: notice.Meta{Author: "학생지원팀", Date: "2025-03-04", Views: "12"},
		Blocks: []notice.Block{
			notice.TextBlock{Content: "본문", Alignment: notice.AlignLeading},
			notice.ImageBlock{URL: "https://cdn.example.com/a.png"},
			notice.TableBlock{Headers: []string{"일시", "장소"}, Rows: [][]string{{"3월 5일", "대강당"}}},
		},
		Attachments: []notice.Attachment{{Name: "안내문.hwp", URL: "https://example.com/f", Kind: notice.AttachmentDocument}},
	}

	var buf bytes.Buffer
	renderDetail(&buf, d)
	out := buf.String()

	for _, want := range []string{"학생지원팀", "본문", "[image] https://cdn.example.com/a.png", "대강당", "안내문.hwp", "document"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, board.Status{Phase: board.PhaseFailed, Reason: "fetch first page: boom"})
	out := buf.String()
	for _, want := range []string{"failed", "fetch first page: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
