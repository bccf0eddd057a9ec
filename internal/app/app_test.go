package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/poll"

	"github.com/ifmain/pinny/internal/app"
	"github.com/ifmain/pinny/internal/culler"
	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/logger"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/storage"
	"github.com/ifmain/pinny/internal/testutil"
)

type fixture struct {
	app   *app.App
	sync  *testutil.RecordingScheduler
	clock *testutil.StubClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		sync:  testutil.NewRecordingScheduler(),
		clock: testutil.FixedClock(),
	}
	a, err := app.New(context.Background(), app.Options{
		ConfigPath:   filepath.Join(t.TempDir(), "config.yaml"),
		Memory:       true,
		Logger:       logger.Nop(),
		MetadataSync: f.sync,
		Clock:        f.clock,
		IDs:          testutil.NewStubIDGenerator(),
	})
	assert.NilError(t, err)
	t.Cleanup(func() { assert.NilError(t, a.Close()) })
	f.app = a
	return f
}

func TestNew_UsesOverrideSync(t *testing.T) {
	f := newFixture(t)
	assert.Assert(t, !f.app.UsesLocalPool())
	assert.Equal(t, f.app.Config.Queue.Backend, "local")
}

func TestNew_DefaultsToLocalPool(t *testing.T) {
	dir := t.TempDir()
	a, err := app.New(context.Background(), app.Options{
		ConfigPath: filepath.Join(dir, "config.yaml"),
		Logger:     logger.Nop(),
	})
	assert.NilError(t, err)
	defer a.Close()

	assert.Assert(t, a.UsesLocalPool())
	_, ok := a.Repo.(*storage.SQLiteRepository)
	assert.Assert(t, ok)
}

func TestAdd_SchedulesMetadataSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.app.Add(ctx, "https://go.dev", model.StringPtr("docs"), nil, []string{"go"})
	assert.NilError(t, err)
	assert.Equal(t, b.ID, "id-1")

	assert.DeepEqual(t, f.sync.Jobs(), []testutil.ScheduledJob{{BookmarkID: "id-1", URL: "https://go.dev"}})
}

func TestList_HidesArchivedByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kept, err := f.app.Add(ctx, "https://go.dev", nil, nil, nil)
	assert.NilError(t, err)
	gone, err := f.app.Add(ctx, "https://old.example.com", nil, nil, nil)
	assert.NilError(t, err)
	assert.NilError(t, f.app.Bookmarks.ArchiveBookmark(ctx, gone.ID, true))

	active, err := f.app.List(ctx, false)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(active, 1))
	assert.Equal(t, active[0].ID, kept.ID)

	all, err := f.app.List(ctx, true)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(all, 2))
}

func TestSearch_MatchesURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.Add(ctx, "https://go.dev", nil, nil, nil)
	assert.NilError(t, err)
	_, err = f.app.Add(ctx, "https://rust-lang.org", nil, nil, nil)
	assert.NilError(t, err)

	got, err := f.app.Search(ctx, "  rust ")
	assert.NilError(t, err)
	assert.Assert(t, is.Len(got, 1))
	assert.Equal(t, got[0].URL, "https://rust-lang.org")
}

func TestSyncStale_SchedulesOnlyStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.app.Add(ctx, "https://old.example.com", nil, nil, nil)
	assert.NilError(t, err)
	f.clock.Advance(7 * 24 * time.Hour)
	fresh, err := f.app.Add(ctx, "https://fresh.example.com", nil, nil, nil)
	assert.NilError(t, err)
	assert.NilError(t, f.app.Repo.UpdateMeta(ctx, fresh.ID, model.StringPtr("Fresh"), model.StringPtr("/tmp/fresh.jpg")))

	n, err := f.app.SyncStale(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, 1)

	jobs := f.sync.Jobs()
	assert.Equal(t, jobs[len(jobs)-1].BookmarkID, old.ID)
}

const importFile = `<!DOCTYPE NETSCAPE-Bookmark-file-1>
<DL><p>
    <DT><A HREF="https://go.dev" ADD_DATE="1234567890">Go</A>
    <DT><A HREF="https://example.com" ADD_DATE="1234567890">Example</A>
    <DT><A HREF="https://example.com" ADD_DATE="1234567890">Example again</A>
</DL><p>
`

func TestImport_SkipsKnownAndRepeatedURLs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.Add(ctx, "https://go.dev", nil, nil, nil)
	assert.NilError(t, err)

	result, err := f.app.Import(ctx, strings.NewReader(importFile))
	assert.NilError(t, err)
	assert.Equal(t, result, app.ImportResult{Added: 1, Skipped: 2})

	all, err := f.app.List(ctx, true)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(all, 2))

	jobs := f.sync.Jobs()
	assert.Assert(t, is.Len(jobs, 2))
	assert.Equal(t, jobs[1].URL, "https://example.com")
}

func TestExport_WritesEveryBookmark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.app.Add(ctx, "https://go.dev", nil, nil, nil)
	assert.NilError(t, err)
	archived, err := f.app.Add(ctx, "https://old.example.com", nil, nil, nil)
	assert.NilError(t, err)
	assert.NilError(t, f.app.Bookmarks.ArchiveBookmark(ctx, archived.ID, true))

	html, n, err := f.app.Export(ctx)
	assert.NilError(t, err)
	assert.Equal(t, n, 2)
	assert.Assert(t, is.Contains(html, "https://go.dev"))
	assert.Assert(t, is.Contains(html, "https://old.example.com"))
}

func TestCheck_ArchivesDeadLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := newFixture(t)
	ctx := context.Background()

	alive, err := f.app.Add(ctx, server.URL+"/ok", nil, nil, nil)
	assert.NilError(t, err)
	dead, err := f.app.Add(ctx, server.URL+"/missing", nil, nil, nil)
	assert.NilError(t, err)

	var progress int
	results, err := f.app.Check(ctx, app.CheckParams{
		ArchiveDead: true,
		OnProgress:  func(completed, total int) { progress = completed },
	})
	assert.NilError(t, err)
	assert.Equal(t, progress, 2)
	assert.Assert(t, is.Len(culler.DeadLinks(results), 1))

	active, err := f.app.List(ctx, false)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(active, 1))
	assert.Equal(t, active[0].ID, alive.ID)

	all, err := f.app.List(ctx, true)
	assert.NilError(t, err)
	for _, b := range all {
		if b.ID == dead.ID {
			assert.Assert(t, b.Archived)
		}
	}
}

func TestNewCoordinator_RefreshUsesConfiguredSync(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.app.Add(ctx, "https://go.dev", nil, nil, nil)
	assert.NilError(t, err)

	c := f.app.NewCoordinator()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	c.Dispatch(home.Refresh{})
	poll.WaitOn(t, func(poll.LogT) poll.Result {
		if len(f.sync.Jobs()) >= 2 {
			return poll.Success()
		}
		return poll.Continue("waiting for refresh to schedule")
	}, poll.WithTimeout(2*time.Second), poll.WithDelay(10*time.Millisecond))

	cancel()
	<-done
}
