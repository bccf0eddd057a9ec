package metadata_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"gotest.tools/v3/assert"

	"github.com/ifmain/pinny/internal/metadata"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><head><title>Hello</title><meta property="og:image" content="/cover.png"></head></html>`)
	}))
	defer srv.Close()

	f := metadata.NewHTTPFetcher(metadata.HTTPFetcherParams{})
	meta, err := f.Fetch(context.Background(), srv.URL+"/page")
	assert.NilError(t, err)

	assert.Equal(t, gotUA, metadata.DefaultUserAgent)
	assert.Equal(t, *meta.Title, "Hello")
	assert.Equal(t, *meta.ImageURL, srv.URL+"/cover.png")
}

func TestHTTPFetcher_ResolvesAgainstFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<meta property="og:image" content="img.png">`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := metadata.NewHTTPFetcher(metadata.HTTPFetcherParams{UserAgent: "pinny-test"})
	meta, err := f.Fetch(context.Background(), srv.URL+"/old")
	assert.NilError(t, err)
	assert.Equal(t, *meta.ImageURL, srv.URL+"/new/img.png")
}

func TestHTTPFetcher_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := metadata.NewHTTPFetcher(metadata.HTTPFetcherParams{})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status 410")
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f := metadata.NewHTTPFetcher(metadata.HTTPFetcherParams{Timeout: 50 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Assert(t, err != nil)
}

// memoryCache is a Cache backed by a map.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]metadata.Meta
	getErr  error
}

func (c *memoryCache) Get(_ context.Context, pageURL string) (metadata.Meta, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return metadata.Meta{}, false, c.getErr
	}
	meta, ok := c.entries[pageURL]
	return meta, ok, nil
}

func (c *memoryCache) Set(_ context.Context, pageURL string, meta metadata.Meta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pageURL] = meta
	return nil
}

// countingFetcher returns a fixed title and counts calls.
type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Fetch(_ context.Context, pageURL string) (metadata.Meta, error) {
	f.calls++
	if f.err != nil {
		return metadata.Meta{}, f.err
	}
	title := "Title of " + pageURL
	return metadata.Meta{Title: &title}, nil
}

func TestCachedFetcher(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{entries: map[string]metadata.Meta{}}
	next := &countingFetcher{}
	f := metadata.NewCachedFetcher(next, cache, nil)

	first, err := f.Fetch(ctx, "https://example.com")
	assert.NilError(t, err)
	second, err := f.Fetch(ctx, "https://example.com")
	assert.NilError(t, err)

	assert.Equal(t, next.calls, 1)
	assert.Equal(t, *first.Title, "Title of https://example.com")
	assert.DeepEqual(t, first, second)
}

func TestCachedFetcher_CacheErrorFallsThrough(t *testing.T) {
	cache := &memoryCache{entries: map[string]metadata.Meta{}, getErr: errors.New("redis down")}
	next := &countingFetcher{}
	f := metadata.NewCachedFetcher(next, cache, nil)

	meta, err := f.Fetch(context.Background(), "https://example.com")
	assert.NilError(t, err)
	assert.Equal(t, *meta.Title, "Title of https://example.com")
	assert.Equal(t, next.calls, 1)
}

func TestCachedFetcher_FetchErrorNotCached(t *testing.T) {
	cache := &memoryCache{entries: map[string]metadata.Meta{}}
	next := &countingFetcher{err: errors.New("offline")}
	f := metadata.NewCachedFetcher(next, cache, nil)

	_, err := f.Fetch(context.Background(), "https://example.com")
	assert.ErrorContains(t, err, "offline")
	assert.Equal(t, len(cache.entries), 0)
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := metadata.NewRedisCache(client, time.Minute)

	_, ok, err := cache.Get(context.Background(), "https://example.com")
	assert.Assert(t, !ok)
	assert.ErrorContains(t, err, "failed to get cached metadata")

	err = cache.Set(context.Background(), "https://example.com", metadata.Meta{})
	assert.ErrorContains(t, err, "failed to cache metadata")
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, metadata.CacheKey("https://example.com"), "pinny:meta:https://example.com")
}
