// Package thumbnail downloads preview images and stores them as local JPEG files.
package thumbnail

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	// favicons and some og:image links use formats outside the standard library
	_ "github.com/biessek/golang-ico"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// Quality is the JPEG quality thumbnails are written with.
	Quality = 90

	maxImageBytes = 10 << 20
)

// Store saves thumbnails under a directory, one file per bookmark.
type Store struct {
	dir       string
	client    *http.Client
	userAgent string
}

// StoreParams configures a Store.
type StoreParams struct {
	Dir       string
	Client    *http.Client // optional
	UserAgent string       // optional
}

func NewStore(params StoreParams) *Store {
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Store{dir: params.Dir, client: client, userAgent: params.UserAgent}
}

// Path returns where the thumbnail for bookmarkID is stored.
func (s *Store) Path(bookmarkID string) (string, error) {
	return filepath.Abs(filepath.Join(s.dir, bookmarkID+".jpg"))
}

// Save downloads imageURL, re-encodes it as JPEG and writes <dir>/<id>.jpg.
// It returns the absolute path of the written file.
func (s *Store) Save(ctx context.Context, imageURL, bookmarkID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download %s: unexpected status %d", imageURL, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", imageURL, err)
	}

	return s.write(bookmarkID, img)
}

func (s *Store) write(bookmarkID string, img image.Image) (string, error) {
	path, err := s.Path(bookmarkID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create thumbnail directory: %w", err)
	}

	// write to a temp file first so readers never see a partial image
	tmp, err := os.CreateTemp(filepath.Dir(path), bookmarkID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create thumbnail: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: Quality}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return path, nil
}
