package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/storage"
	"github.com/ifmain/pinny/internal/testutil"
)

func strPtr(s string) *string { return &s }

type repoFactory func(t *testing.T, clock model.Clock) storage.Repository

func factories() map[string]repoFactory {
	return map[string]repoFactory{
		"sqlite": func(t *testing.T, clock model.Clock) storage.Repository {
			repo, err := storage.NewSQLiteRepository(storage.SQLiteParams{
				Path:  filepath.Join(t.TempDir(), "pinny.db"),
				Clock: clock,
			})
			assert.NilError(t, err)
			t.Cleanup(func() { repo.Close() })
			return repo
		},
		"memory": func(t *testing.T, clock model.Clock) storage.Repository {
			return storage.NewMemoryRepository(clock)
		},
	}
}

// forEachRepo runs fn against every Repository implementation.
func forEachRepo(t *testing.T, fn func(t *testing.T, repo storage.Repository, clock *testutil.StubClock)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			clock := testutil.FixedClock()
			fn(t, factory(t, clock), clock)
		})
	}
}

func newBookmark(id, url string, updated time.Time) model.Bookmark {
	return model.Bookmark{
		ID:        id,
		URL:       url,
		Tags:      []string{},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

// next reads one snapshot or fails the test after a timeout.
func next(t *testing.T, ch <-chan storage.Snapshot) storage.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		assert.Assert(t, ok, "stream closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return storage.Snapshot{}
	}
}

func ids(bookmarks []model.Bookmark) []string {
	out := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		out[i] = b.ID
	}
	return out
}

func TestRepository_UpsertAndAll(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		now := clock.Now().Truncate(time.Millisecond)

		b := newBookmark("b1", "https://example.com", now)
		b.Description = strPtr("a note")
		b.Category = strPtr("reading")
		b.Tags = []string{"go", "cli", "go"}
		assert.NilError(t, repo.Upsert(ctx, b))

		got, err := storage.First(ctx, repo.All)
		assert.NilError(t, err)
		assert.Assert(t, is.Len(got, 1))

		loaded := got[0]
		assert.Equal(t, loaded.ID, "b1")
		assert.Equal(t, loaded.URL, "https://example.com")
		assert.Assert(t, loaded.Title == nil)
		assert.Assert(t, loaded.ThumbnailURL == nil)
		assert.Equal(t, model.Deref(loaded.Description), "a note")
		assert.Equal(t, model.Deref(loaded.Category), "reading")
		assert.DeepEqual(t, loaded.Tags, []string{"go", "cli", "go"})
		assert.Assert(t, loaded.CreatedAt.Equal(now))
		assert.Assert(t, loaded.UpdatedAt.Equal(now))
		assert.Assert(t, !loaded.Archived)
	})
}

func TestRepository_AllOrdersByUpdatedAtDesc(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		base := clock.Now()

		assert.NilError(t, repo.Upsert(ctx, newBookmark("old", "https://old.dev", base.Add(-time.Hour))))
		assert.NilError(t, repo.Upsert(ctx, newBookmark("new", "https://new.dev", base)))
		assert.NilError(t, repo.Upsert(ctx, newBookmark("mid", "https://mid.dev", base.Add(-time.Minute))))

		got, err := storage.First(ctx, repo.All)
		assert.NilError(t, err)
		assert.DeepEqual(t, ids(got), []string{"new", "mid", "old"})
	})
}

func TestRepository_ArchiveBumpsUpdatedAt(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		created := clock.Now()
		assert.NilError(t, repo.Upsert(ctx, newBookmark("b1", "https://example.com", created)))

		clock.Advance(time.Hour)
		assert.NilError(t, repo.Archive(ctx, "b1", true))

		got, err := storage.First(ctx, repo.All)
		assert.NilError(t, err)
		assert.Assert(t, got[0].Archived)
		assert.Assert(t, got[0].UpdatedAt.Equal(created.Add(time.Hour)))
	})
}

func TestRepository_UpdatedAtNeverDecreases(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		future := clock.Now().Add(24 * time.Hour)
		assert.NilError(t, repo.Upsert(ctx, newBookmark("b1", "https://example.com", future)))

		// clock is behind the stored updatedAt
		assert.NilError(t, repo.UpdateMeta(ctx, "b1", strPtr("Example"), nil))

		got, err := storage.First(ctx, repo.All)
		assert.NilError(t, err)
		assert.Assert(t, got[0].UpdatedAt.Equal(future))
		assert.Equal(t, model.Deref(got[0].Title), "Example")
	})
}

func TestRepository_UpdateMeta(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		assert.NilError(t, repo.Upsert(ctx, newBookmark("b1", "https://example.com", clock.Now())))

		assert.NilError(t, repo.UpdateMeta(ctx, "b1", strPtr("Example Domain"), strPtr("/thumbs/b1.jpg")))

		got, err := storage.First(ctx, repo.All)
		assert.NilError(t, err)
		assert.Equal(t, model.Deref(got[0].Title), "Example Domain")
		assert.Equal(t, model.Deref(got[0].ThumbnailURL), "/thumbs/b1.jpg")
	})
}

func TestRepository_WritesToMissingIDFail(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, _ *testutil.StubClock) {
		ctx := context.Background()

		assert.Assert(t, errors.Is(repo.Delete(ctx, "nope"), storage.ErrNotFound))
		assert.Assert(t, errors.Is(repo.Archive(ctx, "nope", true), storage.ErrNotFound))
		assert.Assert(t, errors.Is(repo.UpdateMeta(ctx, "nope", nil, nil), storage.ErrNotFound))
	})
}

func TestRepository_Delete(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		assert.NilError(t, repo.Upsert(ctx, newBookmark("b1", "https://a.dev", clock.Now())))
		assert.NilError(t, repo.Upsert(ctx, newBookmark("b2", "https://b.dev", clock.Now())))

		assert.NilError(t, repo.Delete(ctx, "b1"))

		got, err := storage.First(ctx, repo.All)
		assert.NilError(t, err)
		assert.DeepEqual(t, ids(got), []string{"b2"})
	})
}

func TestRepository_Search(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		now := clock.Now()

		withTitle := newBookmark("title", "https://a.dev", now)
		withTitle.Title = strPtr("Go Concurrency Patterns")

		withNote := newBookmark("note", "https://b.dev", now.Add(-time.Minute))
		withNote.Description = strPtr("read about goroutines")

		withTag := newBookmark("tag", "https://c.dev", now.Add(-2*time.Minute))
		withTag.Tags = []string{"golang"}

		withURL := newBookmark("url", "https://go.dev/blog", now.Add(-3*time.Minute))

		withCategory := newBookmark("category", "https://d.dev", now.Add(-4*time.Minute))
		withCategory.Category = strPtr("GOODS")

		other := newBookmark("other", "https://example.com", now)
		other.Title = strPtr("Rust book")

		for _, b := range []model.Bookmark{withTitle, withNote, withTag, withURL, withCategory, other} {
			assert.NilError(t, repo.Upsert(ctx, b))
		}

		got, err := storage.First(ctx, func(ctx context.Context) <-chan storage.Snapshot {
			return repo.Search(ctx, "go")
		})
		assert.NilError(t, err)
		assert.DeepEqual(t, ids(got), []string{"title", "note", "tag", "url", "category"})
	})
}

func TestRepository_SearchEscapesWildcards(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx := context.Background()
		plain := newBookmark("plain", "https://example.com/abc", clock.Now())
		percent := newBookmark("percent", "https://example.com/100%", clock.Now())
		assert.NilError(t, repo.Upsert(ctx, plain))
		assert.NilError(t, repo.Upsert(ctx, percent))

		got, err := storage.First(ctx, func(ctx context.Context) <-chan storage.Snapshot {
			return repo.Search(ctx, "0%")
		})
		assert.NilError(t, err)
		assert.DeepEqual(t, ids(got), []string{"percent"})
	})
}

func TestRepository_StreamReemitsOnWrite(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, clock *testutil.StubClock) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		stream := repo.All(ctx)
		first := next(t, stream)
		assert.NilError(t, first.Err)
		assert.Assert(t, is.Len(first.Bookmarks, 0))

		assert.NilError(t, repo.Upsert(ctx, newBookmark("b1", "https://example.com", clock.Now())))

		second := next(t, stream)
		assert.NilError(t, second.Err)
		assert.DeepEqual(t, ids(second.Bookmarks), []string{"b1"})
	})
}

func TestRepository_StreamClosesOnCancel(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo storage.Repository, _ *testutil.StubClock) {
		ctx, cancel := context.WithCancel(context.Background())
		stream := repo.All(ctx)
		next(t, stream)

		cancel()

		select {
		case _, ok := <-stream:
			assert.Assert(t, !ok, "expected closed stream")
		case <-time.After(2 * time.Second):
			t.Fatal("stream did not close after cancel")
		}
	})
}

func TestSQLiteRepository_SchemaVersion(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(storage.SQLiteParams{Path: filepath.Join(t.TempDir(), "pinny.db")})
	assert.NilError(t, err)
	defer repo.Close()

	assert.Equal(t, repo.SchemaVersion(), uint(1))
}

func TestSQLiteRepository_RefusesDirtySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pinny.db")
	repo, err := storage.NewSQLiteRepository(storage.SQLiteParams{Path: path})
	assert.NilError(t, err)
	assert.NilError(t, repo.Close())

	db, err := sql.Open("sqlite", path)
	assert.NilError(t, err)
	_, err = db.Exec("UPDATE schema_migrations SET dirty = 1")
	assert.NilError(t, err)
	assert.NilError(t, db.Close())

	_, err = storage.NewSQLiteRepository(storage.SQLiteParams{Path: path})
	assert.ErrorIs(t, err, storage.ErrDirtySchema)
}
