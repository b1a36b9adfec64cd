package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestScraper(t *testing.T, handler http.HandlerFunc) *Scraper {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	site := DefaultSite()
	site.Origin = srv.URL
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(srv.Client(), NewParser(site, logger), Options{}, logger)
}

func serveFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return b
}

func TestFetchListing(t *testing.T) {
	body := serveFixture(t, "listing_first.html")
	var gotQuery atomic.Value
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Errorf("request missing User-Agent")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	})

	page, err := s.FetchListing(context.Background(), 10, 10)
	if err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if len(page.Pinned) != 1 || len(page.Regular) != 3 {
		t.Errorf("FetchListing() = %d pinned, %d regular; want 1, 3", len(page.Pinned), len(page.Regular))
	}

	q, _ := gotQuery.Load().(string)
	for _, want := range []string{"mode=list", "article.offset=10", "articleLimit=10"} {
		if !strings.Contains(q, want) {
			t.Errorf("query %q missing %q", q, want)
		}
	}
}

func TestFetchListingWithoutTableIsEmpty(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>점검 중</body></html>"))
	})

	page, err := s.FetchListing(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if page.Len() != 0 {
		t.Errorf("FetchListing() returned %d records, want 0", page.Len())
	}
}

func TestFetchListingServerError(t *testing.T) {
	var hits atomic.Int32
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := s.FetchListing(context.Background(), 0, 10)
	if !IsNetworkError(err) {
		t.Fatalf("FetchListing() error = %v, want NetworkError", err)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", netErr.StatusCode, http.StatusServiceUnavailable)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1 with retries disabled", n)
	}
}

func TestFetchListingNonTextBody(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	_, err := s.FetchListing(context.Background(), 0, 10)
	if !IsDecodeError(err) {
		t.Fatalf("FetchListing() error = %v, want DecodeError", err)
	}
}

func TestFetchListingDecodesLegacyCharset(t *testing.T) {
	// "공지" in EUC-KR.
	eucKR := []byte{0xb0, 0xf8, 0xc1, 0xf6}
	page := "<table class=\"board-table\"><tbody><tr><td class=\"b-num-box\">7</td><td class=\"b-td-left\"><a href=\"?articleNo=7\">" +
		string(eucKR) + "</a></td></tr></tbody></table>"
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = w.Write([]byte(page))
	})

	got, err := s.FetchListing(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if len(got.Regular) != 1 || got.Regular[0].Title != "공지" {
		t.Errorf("FetchListing() regular = %+v, want one record titled 공지", got.Regular)
	}
}

func TestFetchDetail(t *testing.T) {
	body := serveFixture(t, "detail.html")
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("mode") != "view" || q.Get("articleNo") != "1045" || q.Get("article.offset") != "0" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	})

	d, err := s.FetchDetail(context.Background(), "https://data.hallym.ac.kr/data/community/notice02.do?mode=view&articleNo=1045&article.offset=0")
	if err != nil {
		t.Fatalf("FetchDetail() error = %v", err)
	}
	if d.ArticleID != "1045" {
		t.Errorf("ArticleID = %q, want 1045", d.ArticleID)
	}
	if len(d.Blocks) != 3 || len(d.Attachments) != 3 {
		t.Errorf("FetchDetail() = %d blocks, %d attachments; want 3, 3", len(d.Blocks), len(d.Attachments))
	}
	if !strings.Contains(d.URL, "articleNo=1045") {
		t.Errorf("URL = %q, want articleNo=1045", d.URL)
	}
}

func TestFetchDetailInvalidLink(t *testing.T) {
	var hits atomic.Int32
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := s.FetchDetail(context.Background(), "https://data.hallym.ac.kr/data/community/notice02.do?mode=list")
	if !errors.Is(err, ErrInvalidArticleID) {
		t.Fatalf("FetchDetail() error = %v, want ErrInvalidArticleID", err)
	}
	if hits.Load() != 0 {
		t.Errorf("invalid link reached the network")
	}
}

func TestFetchDetailWithoutContentBox(t *testing.T) {
	s := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>삭제된 게시물입니다</p></body></html>"))
	})

	d, err := s.FetchDetail(context.Background(), "?articleNo=9")
	if err != nil {
		t.Fatalf("FetchDetail() error = %v", err)
	}
	if len(d.Blocks) != 0 || d.ArticleID != "9" {
		t.Errorf("FetchDetail() = %+v, want empty detail for article 9", d)
	}
}

func TestFetchRetriesNetworkErrors(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping retry test in short mode")
	}

	body := serveFixture(t, "listing_first.html")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	site := DefaultSite()
	site.Origin = srv.URL
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := New(srv.Client(), NewParser(site, logger), Options{Attempts: 2}, logger)

	page, err := s.FetchListing(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("FetchListing() error = %v", err)
	}
	if page.Len() != 4 || hits.Load() != 2 {
		t.Errorf("got %d records after %d hits, want 4 after 2", page.Len(), hits.Load())
	}
}
