package scraper

import (
	"io"
	"iter"
	"log/slog"
	"strconv"

	"noticeboard-notifier/pkg/notice"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// Parser turns board HTML into records and detail content.
type Parser struct {
	site   Site
	logger *slog.Logger
	newID  func() string
}

// NewParser creates a parser for site.
func NewParser(site Site, logger *slog.Logger) *Parser {
	return &Parser{
		site:   site,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Site returns the site layout the parser was built for.
func (p *Parser) Site() Site {
	return p.site
}

// ParseListing parses one listing page.
// A page whose rows cannot be selected yields an empty page and a *ParseError.
func (p *Parser) ParseListing(r io.Reader) (*notice.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return &notice.Page{}, &ParseError{Err: err}
	}
	return p.ListingFromDocument(doc)
}

// ListingFromDocument splits the rows of doc into pinned and regular records.
func (p *Parser) ListingFromDocument(doc *goquery.Document) (*notice.Page, error) {
	page := &notice.Page{}
	if doc.Find(p.site.RowSelector).Length() == 0 {
		return page, &ParseError{Selector: p.site.RowSelector}
	}

	for rec := range p.Records(doc) {
		if rec.Pinned {
			page.Pinned = append(page.Pinned, rec)
		} else {
			page.Regular = append(page.Regular, rec)
		}
	}
	return page, nil
}

// Records lazily yields the classified rows of a listing document.
// Header rows, unnumbered rows and rows missing a field are skipped.
func (p *Parser) Records(doc *goquery.Document) iter.Seq[notice.Record] {
	return func(yield func(notice.Record) bool) {
		for row := range p.site.Nodes(doc, RoleListing) {
			rec, ok := p.classify(row)
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}
	}
}

func (p *Parser) classify(row *goquery.Selection) (notice.Record, bool) {
	numberCell := row.Find(p.site.NumberSelector).First()
	titleLink := row.Find(p.site.TitleSelector).First()
	if numberCell.Length() == 0 || titleLink.Length() == 0 {
		p.logger.Debug("Skipping row without number or title", "has_number", numberCell.Length() > 0, "has_title", titleLink.Length() > 0)
		return notice.Record{}, false
	}

	number := text(numberCell)
	href, _ := titleLink.Attr("href")
	rec := notice.Record{
		Title: text(titleLink),
		Link:  p.site.Resolve(href),
	}

	if p.site.PinnedClass != "" && row.HasClass(p.site.PinnedClass) {
		rec.ID = p.newID()
		rec.Number = notice.PinnedNumber
		rec.Pinned = true
		return rec, true
	}

	if number == p.site.HeaderLabel {
		return notice.Record{}, false
	}
	n, err := strconv.Atoi(number)
	if err != nil || n < 0 {
		p.logger.Debug("Skipping row with unparseable number", "number", number, "title", rec.Title)
		return notice.Record{}, false
	}

	rec.ID = p.newID()
	rec.Number = strconv.Itoa(n)
	return rec, true
}
