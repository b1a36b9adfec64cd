package scraper

import (
	"io"
	"strings"

	"noticeboard-notifier/pkg/notice"

	"github.com/PuerkitoBio/goquery"
)

// ParseDetail assembles the metadata, content blocks and attachments of a detail page.
// A page without a content box yields a detail with no blocks and a *ParseError.
func (p *Parser) ParseDetail(r io.Reader) (*notice.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return &notice.Detail{}, &ParseError{Err: err}
	}
	return p.DetailFromDocument(doc)
}

// DetailFromDocument assembles a detail from an already parsed document.
//
// Only the direct children of the content container are visited. Wrapper
// elements that hold nested tables or images are skipped rather than
// recursed into.
func (p *Parser) DetailFromDocument(doc *goquery.Document) (*notice.Detail, error) {
	d := &notice.Detail{
		Meta:        p.meta(doc),
		Attachments: p.attachments(doc),
	}

	box := doc.Find(p.site.ContentBoxSelector).First()
	if box.Length() == 0 {
		return d, &ParseError{Selector: p.site.ContentBoxSelector}
	}

	if box.Find(p.site.ContentSelector).Length() == 0 {
		p.logger.Debug("Content container not found, using flattened content box", "selector", p.site.ContentSelector)
		if t := text(box); t != "" {
			d.Blocks = append(d.Blocks, notice.TextBlock{Content: t, Alignment: notice.AlignLeading})
		}
		return d, nil
	}

	for el := range p.site.Nodes(doc, RoleDetail) {
		d.Blocks = append(d.Blocks, p.blocks(el)...)
	}
	return d, nil
}

func (p *Parser) blocks(el *goquery.Selection) []notice.Block {
	switch tagName(el) {
	case "p":
		var out []notice.Block
		if t := text(el); t != "" {
			align := notice.AlignLeading
			if hasMarker(el, "style", p.site.CenterStyleMarker) {
				align = notice.AlignCenter
			}
			out = append(out, notice.TextBlock{Content: t, Alignment: align})
		}
		for _, img := range el.Find("img").EachIter() {
			src, _ := img.Attr("src")
			if strings.TrimSpace(src) == "" {
				continue
			}
			out = append(out, notice.ImageBlock{URL: p.site.Resolve(src)})
		}
		return out

	case "table":
		if tb, ok := tableBlock(el); ok {
			return []notice.Block{tb}
		}
		return nil

	default:
		if el.Find("table").Length() > 0 || el.Find("img").Length() > 0 {
			return nil
		}
		if t := text(el); t != "" {
			return []notice.Block{notice.TextBlock{Content: t, Alignment: notice.AlignLeading}}
		}
		return nil
	}
}

// tableBlock takes headers from the first row holding th cells, or else from
// the first row. Row-header th cells in later rows stay in their row.
func tableBlock(table *goquery.Selection) (notice.TableBlock, bool) {
	rows := table.Find("tr")

	var headers []string
	headerRow := -1
	for i, row := range rows.EachIter() {
		if th := row.Find("th"); th.Length() > 0 {
			headers = cellTexts(th)
			headerRow = i
			break
		}
	}
	if headerRow < 0 && rows.Length() > 0 {
		if headers = cellTexts(rows.First().Find("td")); len(headers) > 0 {
			headerRow = 0
		}
	}

	var data [][]string
	for i, row := range rows.EachIter() {
		if i == headerRow {
			continue
		}
		cells := cellTexts(row.Find("th, td"))
		if len(cells) == 0 {
			continue
		}
		data = append(data, cells)
	}

	if len(data) == 0 {
		return notice.TableBlock{}, false
	}
	return notice.TableBlock{Headers: headers, Rows: data}, true
}

func (p *Parser) meta(doc *goquery.Document) notice.Meta {
	var m notice.Meta
	labels := []struct {
		label string
		dst   *string
	}{
		{p.site.AuthorLabel, &m.Author},
		{p.site.DateLabel, &m.Date},
		{p.site.ViewsLabel, &m.Views},
	}
	seen := make([]bool, len(labels))

	items := doc.Find(p.site.MetaSelector).First().Find(p.site.MetaItemSelector)
	for _, item := range items.EachIter() {
		t := text(item)
		for i, l := range labels {
			if l.label == "" || !strings.Contains(t, l.label) {
				continue
			}
			if !seen[i] {
				*l.dst = stripLabel(t, l.label)
				seen[i] = true
			}
			break
		}
	}
	return m
}

// stripLabel returns the value following label, e.g. "Author : Kim" -> "Kim".
func stripLabel(s, label string) string {
	_, rest, _ := strings.Cut(s, label)
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest)
}

func (p *Parser) attachments(doc *goquery.Document) []notice.Attachment {
	var out []notice.Attachment
	links := doc.Find(p.site.FileBoxSelector).First().Find("a")
	for _, link := range links.EachIter() {
		href, _ := link.Attr("href")
		if strings.TrimSpace(href) == "" {
			continue
		}

		size := ""
		if li := link.Closest("li"); li.Length() > 0 && p.site.FileSizeSelector != "" {
			size = text(li.Find(p.site.FileSizeSelector).First())
		}

		out = append(out, notice.Attachment{
			Name: text(link),
			URL:  p.site.Resolve(href),
			Size: size,
			Kind: p.attachmentKind(link),
		})
	}
	return out
}

func (p *Parser) attachmentKind(link *goquery.Selection) notice.AttachmentKind {
	switch {
	case hasMarker(link, "class", p.site.DocumentClassMarker):
		return notice.AttachmentDocument
	case hasMarker(link, "class", p.site.PDFClassMarker):
		return notice.AttachmentPDF
	default:
		return notice.AttachmentOther
	}
}
