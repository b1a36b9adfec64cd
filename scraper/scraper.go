// Package scraper handles fetching and parsing notice board pages.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"noticeboard-notifier/pkg/notice"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/net/html/charset"
)

const defaultUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"

// Options tunes the scraper's network behavior.
type Options struct {
	UserAgent string
	PageSize  int  // Used for the detail page query
	Attempts  uint // Total attempts per page; 1 disables retries
}

// Scraper fetches and parses notice board pages.
type Scraper struct {
	client *http.Client
	parser *Parser
	logger *slog.Logger
	opts   Options
}

// New creates a new scraper.
func New(client *http.Client, parser *Parser, opts Options, logger *slog.Logger) *Scraper {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &Scraper{
		client: client,
		parser: parser,
		logger: logger,
		opts:   opts,
	}
}

// FetchListing fetches and parses the listing page at offset.
// A page that cannot be parsed is logged and reported as having no rows.
func (s *Scraper) FetchListing(ctx context.Context, offset, limit int) (*notice.Page, error) {
	site := s.parser.Site()
	pageURL, err := site.ListingURL(offset, limit)
	if err != nil {
		return nil, err
	}

	doc, err := s.fetchDocument(ctx, pageURL, "fetch_listing_page")
	if err != nil {
		if IsParseError(err) {
			s.logger.Warn("Listing page unparseable, treating as empty", "url", pageURL, "error", err)
			return &notice.Page{}, nil
		}
		return nil, err
	}

	page, err := s.parser.ListingFromDocument(doc)
	if err != nil {
		s.logger.Warn("No listing rows found", "url", pageURL, "offset", offset, "error", err)
	}

	s.logger.Info("Listing page parsed",
		"url", pageURL,
		"offset", offset,
		"pinned", len(page.Pinned),
		"regular", len(page.Regular))

	return page, nil
}

// FetchDetail fetches and assembles the detail page behind a listing link.
func (s *Scraper) FetchDetail(ctx context.Context, link string) (*notice.Detail, error) {
	id, err := ArticleID(link)
	if err != nil {
		return nil, fmt.Errorf("detail link %q: %w", link, err)
	}

	site := s.parser.Site()
	pageURL, err := site.DetailURL(id, s.opts.PageSize)
	if err != nil {
		return nil, err
	}

	detail := &notice.Detail{}
	doc, err := s.fetchDocument(ctx, pageURL, "fetch_detail_page")
	switch {
	case err == nil:
		detail, err = s.parser.DetailFromDocument(doc)
		if err != nil {
			s.logger.Warn("Detail content box not found", "url", pageURL, "error", err)
		}
	case IsParseError(err):
		s.logger.Warn("Detail page unparseable, treating as empty", "url", pageURL, "error", err)
	default:
		return nil, err
	}

	detail.ArticleID = id
	detail.URL = pageURL

	s.logger.Info("Detail page parsed",
		"url", pageURL,
		"article_id", id,
		"blocks", len(detail.Blocks),
		"attachments", len(detail.Attachments))

	return detail, nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL, purpose string) (*goquery.Document, error) {
	var (
		doc     *goquery.Document
		lastErr error
	)

	err := retry.Do(
		func() error {
			var err error
			doc, err = s.fetchOnce(ctx, pageURL, purpose)
			lastErr = err
			return err
		},
		retry.Attempts(s.opts.Attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying fetch after error", "attempt", n, "url", pageURL, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return IsNetworkError(err)
		}),
	)
	if err != nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &NetworkError{URL: pageURL, Err: err}
	}

	return doc, nil
}

func (s *Scraper) fetchOnce(ctx context.Context, pageURL, purpose string) (*goquery.Document, error) {
	s.logger.Info("HTTP request starting",
		"method", "GET",
		"url", pageURL,
		"purpose", purpose)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, &InvalidURLError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	startTime := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Warn("HTTP request failed",
			"url", pageURL,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, &NetworkError{URL: pageURL, Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	s.logger.Info("HTTP request completed",
		"url", pageURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"content_length", resp.ContentLength)

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextContent(contentType) {
		return nil, &DecodeError{URL: pageURL, ContentType: contentType}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: pageURL, Err: fmt.Errorf("read body: %w", err)}
	}

	body, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, &DecodeError{URL: pageURL, ContentType: contentType, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return doc, nil
}

// isTextContent reports whether a Content-Type header names an HTML or text body.
// A missing header is accepted and left to charset sniffing.
func isTextContent(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") || mediaType == "application/xhtml+xml"
}
