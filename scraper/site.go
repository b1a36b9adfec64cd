package scraper

import (
	"errors"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Role selects the structural selector a page is walked with.
type Role int

const (
	// RoleListing walks the rows of the notice table.
	RoleListing Role = iota
	// RoleDetail walks the direct children of the content container.
	RoleDetail
)

func (r Role) String() string {
	switch r {
	case RoleListing:
		return "listing"
	case RoleDetail:
		return "detail"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// Site describes the fixed structure of the notice board.
type Site struct {
	Origin   string // Scheme and host, e.g. https://data.hallym.ac.kr
	ListPath string // Path of both listing and detail pages

	// Listing page.
	RowSelector    string
	PinnedClass    string
	NumberSelector string
	TitleSelector  string
	HeaderLabel    string // Number cell text of a repeated header row

	// Detail page.
	MetaSelector        string
	MetaItemSelector    string
	AuthorLabel         string
	DateLabel           string
	ViewsLabel          string
	ContentBoxSelector  string
	ContentSelector     string // Container inside the content box
	CenterStyleMarker   string
	FileBoxSelector     string
	FileSizeSelector    string
	DocumentClassMarker string
	PDFClassMarker      string
}

// DefaultSite returns the layout of the Hallym University notice board.
func DefaultSite() Site {
	return Site{
		Origin:   "https://data.hallym.ac.kr",
		ListPath: "/data/community/notice02.do",

		RowSelector:    "table.board-table tbody tr",
		PinnedClass:    "b-top-box",
		NumberSelector: "td.b-num-box",
		TitleSelector:  "td.b-td-left a",
		HeaderLabel:    "번호",

		MetaSelector:        "div.b-etc-box",
		MetaItemSelector:    "span",
		AuthorLabel:         "작성자",
		DateLabel:           "등록일",
		ViewsLabel:          "조회수",
		ContentBoxSelector:  "div.b-content-box",
		ContentSelector:     "div.fr-view",
		CenterStyleMarker:   "text-align: center",
		FileBoxSelector:     "div.b-file-box",
		FileSizeSelector:    "span.file-size",
		DocumentClassMarker: "hwp",
		PDFClassMarker:      "pdf",
	}
}

// BaseURL returns the absolute URL of the board page that links resolve against.
func (s *Site) BaseURL() (*url.URL, error) {
	raw := strings.TrimSuffix(s.Origin, "/") + s.ListPath
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidURLError{URL: raw, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &InvalidURLError{URL: raw, Err: errors.New("origin must include scheme and host")}
	}
	return u, nil
}

// ListingURL builds the URL of the listing page at offset.
func (s *Site) ListingURL(offset, limit int) (string, error) {
	u, err := s.BaseURL()
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("mode", "list")
	q.Set("articleLimit", strconv.Itoa(limit))
	q.Set("article.offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DetailURL builds the URL of the detail page for articleID.
func (s *Site) DetailURL(articleID string, limit int) (string, error) {
	if articleID == "" {
		return "", ErrInvalidArticleID
	}
	u, err := s.BaseURL()
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("mode", "view")
	q.Set("articleNo", articleID)
	q.Set("article.offset", "0")
	q.Set("articleLimit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Resolve turns an href or src found on the board into an absolute URL.
// Unparseable references are returned unchanged.
func (s *Site) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	base, err := s.BaseURL()
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// Nodes returns the elements matched by role's structural selector, in document order.
func (s *Site) Nodes(doc *goquery.Document, role Role) iter.Seq[*goquery.Selection] {
	var sel *goquery.Selection
	switch role {
	case RoleListing:
		sel = doc.Find(s.RowSelector)
	case RoleDetail:
		sel = s.content(doc).Children()
	default:
		sel = doc.Selection.Slice(0, 0)
	}

	return func(yield func(*goquery.Selection) bool) {
		for _, node := range sel.EachIter() {
			if !yield(node) {
				return
			}
		}
	}
}

func (s *Site) content(doc *goquery.Document) *goquery.Selection {
	return doc.Find(s.ContentBoxSelector).First().Find(s.ContentSelector).First()
}
