// Package pagination drives offset and cursor paginated upstream endpoints.
// Pages are fetched lazily as the returned iterator is consumed.
package pagination

import (
	"context"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/metrics"
	"github.com/chain-ledger/internal/stream"
)

// Style selects how the next page is addressed
type Style int

const (
	// Offset pages are addressed by an increasing page number
	Offset Style = iota
	// Cursor pages are addressed by a token returned with the previous page
	Cursor
)

// Config describes one paginated endpoint
type Config struct {
	Style     Style
	PageSize  int
	FirstPage int // Offset only; 0 or 1 depending on the provider
	MaxPages  int // fetching more pages than this is a runaway error, 0 means unbounded

	// StopOnShortPage ends cursor pagination when a page holds fewer than
	// PageSize items, even if a cursor was returned. Offset style always stops.
	StopOnShortPage bool

	// Endpoint labels metrics and runaway errors
	Endpoint string
}

// Request addresses a single page
type Request struct {
	Page     int
	Cursor   string
	PageSize int
}

// Page is one fetched page. Next and HasMore are only consulted in cursor style.
type Page[T any] struct {
	Items   []T
	Next    string
	HasMore bool
}

// FetchFunc fetches one page
type FetchFunc[T any] func(ctx context.Context, req Request) (Page[T], error)

type pager[T any] struct {
	cfg   Config
	fetch FetchFunc[T]

	req     Request
	fetched int
	buf     []T
	done    bool
}

// Iterate returns an iterator over every item of every page
func Iterate[T any](cfg Config, fetch FetchFunc[T]) stream.Iterator[T] {
	return &pager[T]{
		cfg:   cfg,
		fetch: fetch,
		req:   Request{Page: cfg.FirstPage, PageSize: cfg.PageSize},
	}
}

// Collect fetches every page and returns all items in page order
func Collect[T any](ctx context.Context, cfg Config, fetch FetchFunc[T]) ([]T, error) {
	return stream.Collect(ctx, Iterate(cfg, fetch))
}

func (p *pager[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for len(p.buf) == 0 {
		if p.done {
			return zero, false, nil
		}
		if err := p.nextPage(ctx); err != nil {
			p.done = true
			return zero, false, err
		}
	}
	v := p.buf[0]
	p.buf = p.buf[1:]
	return v, true, nil
}

func (p *pager[T]) nextPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.cfg.MaxPages > 0 && p.fetched >= p.cfg.MaxPages {
		return errors.NewRunawayPaginationError(p.cfg.Endpoint, p.cfg.MaxPages)
	}

	page, err := p.fetch(ctx, p.req)
	if err != nil {
		return err
	}
	p.fetched++
	metrics.PagesFetched.WithLabelValues(p.cfg.Endpoint).Inc()

	p.buf = page.Items
	short := p.cfg.PageSize > 0 && len(page.Items) < p.cfg.PageSize

	switch p.cfg.Style {
	case Cursor:
		if len(page.Items) == 0 || page.Next == "" || !page.HasMore || (p.cfg.StopOnShortPage && short) {
			p.done = true
		}
		p.req.Cursor = page.Next
	default:
		if len(page.Items) == 0 || short {
			p.done = true
		}
		p.req.Page++
	}
	return nil
}
