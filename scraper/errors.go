package scraper

import (
	"errors"
	"fmt"
)

// ErrInvalidArticleID indicates a detail link without an articleNo parameter.
var ErrInvalidArticleID = errors.New("invalid article id")

// NetworkError indicates a transport failure or a non-OK HTTP response.
type NetworkError struct {
	URL        string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError indicates a response body that is not decodable HTML text.
type DecodeError struct {
	URL         string
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s (%s): %v", e.URL, e.ContentType, e.Err)
	}
	return fmt.Sprintf("decode %s: unsupported content type %q", e.URL, e.ContentType)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ParseError indicates a page whose expected structure could not be selected.
type ParseError struct {
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse html: %v", e.Err)
	}
	return fmt.Sprintf("parse html: selector %q matched nothing", e.Selector)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InvalidURLError indicates a constructed URL that failed to parse.
type InvalidURLError struct {
	URL string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid url %q: %v", e.URL, e.Err)
}

func (e *InvalidURLError) Unwrap() error { return e.Err }

// IsNetworkError checks if an error is a network error.
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsDecodeError checks if an error is a decode error.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsParseError checks if an error is a parse error.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsInvalidURL checks if an error is an invalid URL error.
func IsInvalidURL(err error) bool {
	var target *InvalidURLError
	return errors.As(err, &target)
}
