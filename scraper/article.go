package scraper

import "strings"

const articleMarker = "articleNo="

// ArticleID extracts the articleNo query value from a detail link.
// The value runs up to the next '&' or the end of the link.
func ArticleID(link string) (string, error) {
	_, rest, ok := strings.Cut(link, articleMarker)
	if !ok {
		return "", ErrInvalidArticleID
	}
	id, _, _ := strings.Cut(rest, "&")
	if id == "" {
		return "", ErrInvalidArticleID
	}
	return id, nil
}
