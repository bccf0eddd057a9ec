// Package usecase holds the bookmark operations used by the home screen and CLI.
package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/storage"
)

// Bookmarks adapts a storage.Repository to the operations the app performs.
type Bookmarks struct {
	repo  storage.Repository
	clock model.Clock
	ids   model.IDGenerator
}

// Params holds dependencies for Bookmarks.
type Params struct {
	Repo  storage.Repository
	Clock model.Clock       // optional, RealClock if nil
	IDs   model.IDGenerator // optional, UUIDGenerator if nil
}

// New creates Bookmarks use cases.
func New(params Params) *Bookmarks {
	clock := params.Clock
	if clock == nil {
		clock = model.RealClock{}
	}
	ids := params.IDs
	if ids == nil {
		ids = model.UUIDGenerator{}
	}
	return &Bookmarks{repo: params.Repo, clock: clock, ids: ids}
}

// AddBookmark creates a bookmark with a fresh id and timestamps and stores it.
func (u *Bookmarks) AddBookmark(ctx context.Context, url string, note, category *string, tags []string) (model.Bookmark, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return model.Bookmark{}, errors.New("url is required")
	}

	b := model.NewBookmark(model.NewBookmarkParams{
		URL:      url,
		Note:     note,
		Category: category,
		Tags:     tags,
		Clock:    u.clock,
		IDs:      u.ids,
	})
	if err := u.repo.Upsert(ctx, b); err != nil {
		return model.Bookmark{}, err
	}
	return b, nil
}

func (u *Bookmarks) ArchiveBookmark(ctx context.Context, id string, archived bool) error {
	return u.repo.Archive(ctx, id, archived)
}

func (u *Bookmarks) DeleteBookmark(ctx context.Context, id string) error {
	return u.repo.Delete(ctx, id)
}

func (u *Bookmarks) GetAllBookmarks(ctx context.Context) <-chan storage.Snapshot {
	return u.repo.All(ctx)
}

func (u *Bookmarks) SearchBookmarks(ctx context.Context, keyword string) <-chan storage.Snapshot {
	return u.repo.Search(ctx, keyword)
}
