package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUserAgent = "Mozilla/5.0"
	DefaultTimeout   = 15 * time.Second

	// pages larger than this are truncated before parsing
	maxBodyBytes = 2 << 20
)

// Fetcher retrieves metadata for a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Meta, error)
}

// HTTPFetcher downloads pages over HTTP and parses them.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// HTTPFetcherParams configures an HTTPFetcher.
type HTTPFetcherParams struct {
	Client    *http.Client  // optional
	Timeout   time.Duration // used when Client is nil, default 15s
	UserAgent string        // default "Mozilla/5.0"
}

func NewHTTPFetcher(params HTTPFetcherParams) *HTTPFetcher {
	client := params.Client
	if client == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	ua := params.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	return &HTTPFetcher{client: client, userAgent: ua}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Meta{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Meta{}, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	meta, err := Parse(io.LimitReader(resp.Body, maxBodyBytes), resp.Request.URL.String())
	if err != nil {
		return Meta{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return meta, nil
}
