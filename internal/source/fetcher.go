// Package source reads paginated listings from the Open edX APIs.
package source

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	dserrors "github.com/systmms/landdsync/internal/errors"
	"github.com/systmms/landdsync/internal/logging"
	"github.com/systmms/landdsync/internal/transport"
)

// DefaultMaxPages bounds a single listing when no limit is configured.
const DefaultMaxPages = 10000

// Page is one response of a paginated listing.
type Page struct {
	Index   int
	URL     string
	Records []gjson.Result
	Next    string
}

// Fetcher follows pagination.next links until the listing ends.
type Fetcher struct {
	Client   *http.Client
	MaxPages int
	Logger   logging.Printer
}

// Pages lazily requests one page per iteration step. Ranging again restarts
// from rawURL; a stopped range cannot be resumed. The first error ends the
// sequence.
func (f *Fetcher) Pages(ctx context.Context, rawURL string, headers http.Header) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		maxPages := f.MaxPages
		if maxPages <= 0 {
			maxPages = DefaultMaxPages
		}
		seen := make(map[string]bool)

		next := rawURL
		for index := 0; next != ""; index++ {
			if seen[next] {
				yield(Page{}, dserrors.TransportError{Op: "GET", URL: next, Err: fmt.Errorf("pagination loops back to an already fetched page")})
				return
			}
			if index >= maxPages {
				yield(Page{}, dserrors.TransportError{Op: "GET", URL: next, Err: fmt.Errorf("listing exceeds %d pages", maxPages)})
				return
			}
			seen[next] = true

			page, err := f.fetchPage(ctx, index, next, headers)
			if err != nil {
				yield(Page{}, err)
				return
			}
			if f.Logger != nil {
				f.Logger.Debug("Fetched page %d with %d records", index+1, len(page.Records))
			}
			if !yield(page, nil) {
				return
			}
			next = page.Next
		}
	}
}

// FetchAll concatenates the records of every page in request order and
// reports how many pages were read. Any failure discards everything fetched
// so far.
func (f *Fetcher) FetchAll(ctx context.Context, rawURL string, headers http.Header) ([]gjson.Result, int, error) {
	var (
		records []gjson.Result
		pages   int
	)
	for page, err := range f.Pages(ctx, rawURL, headers) {
		if err != nil {
			return nil, 0, err
		}
		pages++
		records = append(records, page.Records...)
	}
	return records, pages, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, index int, pageURL string, headers http.Header) (Page, error) {
	var body bytes.Buffer
	err := transport.Request(f.Client, pageURL, headers).
		ToBytesBuffer(&body).
		Fetch(ctx)
	if err != nil {
		transportErr := dserrors.TransportError{Op: "GET", URL: pageURL, Err: err}
		if statusErr, ok := transport.AsStatus(err); ok {
			transportErr.StatusCode = statusErr.Code
		}
		return Page{}, transportErr
	}

	if err := validatePage(body.Bytes()); err != nil {
		return Page{}, dserrors.TransportError{Op: "GET", URL: pageURL, Err: err}
	}

	doc := gjson.ParseBytes(body.Bytes())
	return Page{
		Index:   index,
		URL:     pageURL,
		Records: doc.Get("results").Array(),
		Next:    doc.Get("pagination.next").String(),
	}, nil
}

// WindowURL adds the start_date and end_date filters to base, keeping its
// other query parameters. An empty start is sent as an empty filter, which
// the source treats as unbounded.
func WindowURL(base, start, end string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid source url %q: %w", base, err)
	}
	q := u.Query()
	q.Set("start_date", start)
	q.Set("end_date", end)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
