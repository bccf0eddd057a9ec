// Package worker runs metadata sync jobs in the background, either in process
// or through a RabbitMQ queue drained by `pinny worker`.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ifmain/pinny/internal/logger"
	"github.com/ifmain/pinny/internal/metadata"
	"github.com/ifmain/pinny/internal/storage"
)

// ErrInvalidJob is returned for jobs that can never succeed.
var ErrInvalidJob = errors.New("invalid metadata job")

// Job asks for the metadata of one bookmark to be refreshed.
type Job struct {
	BookmarkID string `json:"bookmarkId"`
	URL        string `json:"url"`
	Attempt    int    `json:"attempt"` // attempts already made
}

// MetadataSync accepts metadata sync requests. It doesn't report the outcome.
type MetadataSync interface {
	Schedule(bookmarkID, url string)
}

// Handler processes a single job.
type Handler interface {
	Sync(ctx context.Context, job Job) error
}

// MetaStore persists fetched metadata.
type MetaStore interface {
	UpdateMeta(ctx context.Context, id string, title, thumbnailPath *string) error
}

// ThumbnailSaver stores a bookmark's preview image and returns its local path.
type ThumbnailSaver interface {
	Save(ctx context.Context, imageURL, bookmarkID string) (string, error)
}

// Syncer fetches a page's metadata, saves its thumbnail and stores the result.
type Syncer struct {
	fetcher metadata.Fetcher
	thumbs  ThumbnailSaver
	store   MetaStore
	log     logger.Logger
}

// SyncerParams holds dependencies for a Syncer.
type SyncerParams struct {
	Fetcher    metadata.Fetcher
	Thumbnails ThumbnailSaver // optional, thumbnails are skipped if nil
	Store      MetaStore
	Logger     logger.Logger
}

func NewSyncer(params SyncerParams) *Syncer {
	log := params.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{
		fetcher: params.Fetcher,
		thumbs:  params.Thumbnails,
		store:   params.Store,
		log:     log,
	}
}

// Sync runs one job. A missing thumbnail doesn't fail the job; the title
// falls back to the URL's host.
func (s *Syncer) Sync(ctx context.Context, job Job) error {
	if job.BookmarkID == "" || job.URL == "" {
		return fmt.Errorf("%w: bookmark id and url are required", ErrInvalidJob)
	}

	log := s.log.With(logger.String("bookmark", job.BookmarkID), logger.String("url", job.URL))
	log.Debug("starting metadata sync")

	meta, err := s.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}

	var thumbPath *string
	if meta.ImageURL != nil && s.thumbs != nil {
		path, err := s.thumbs.Save(ctx, *meta.ImageURL, job.BookmarkID)
		if err != nil {
			log.Warn("failed to save thumbnail", logger.String("image", *meta.ImageURL), logger.Error(err))
		} else {
			thumbPath = &path
		}
	}

	title := meta.Title
	if title == nil {
		host := hostOf(job.URL)
		title = &host
	}

	if err := s.store.UpdateMeta(ctx, job.BookmarkID, title, thumbPath); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}

	log.Info("metadata updated", logger.String("title", *title), logger.Bool("thumbnail", thumbPath != nil))
	return nil
}

// IsPermanent reports whether retrying err is pointless.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalidJob) || errors.Is(err, storage.ErrNotFound)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
