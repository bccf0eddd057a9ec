// Package home coordinates the bookmark list screen: it turns user intents into
// repository calls and publishes the resulting view state.
package home

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ifmain/pinny/internal/logger"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/storage"
)

const (
	DefaultDebounce        = 200 * time.Millisecond
	DefaultStaleWindow     = 3 * 24 * time.Hour
	DefaultMaxMetadataJobs = 10
	defaultEffectBuffer    = 16
	defaultIntentBuffer    = 64
)

// Bookmarks is the set of bookmark operations the coordinator needs.
type Bookmarks interface {
	AddBookmark(ctx context.Context, url string, note, category *string, tags []string) (model.Bookmark, error)
	ArchiveBookmark(ctx context.Context, id string, archived bool) error
	DeleteBookmark(ctx context.Context, id string) error
	GetAllBookmarks(ctx context.Context) <-chan storage.Snapshot
	SearchBookmarks(ctx context.Context, keyword string) <-chan storage.Snapshot
}

// MetadataSync requests a background metadata fetch. It doesn't report the outcome.
type MetadataSync interface {
	Schedule(bookmarkID, url string)
}

// Params holds dependencies and tuning for a Coordinator.
type Params struct {
	Bookmarks    Bookmarks
	MetadataSync MetadataSync
	Clock        model.Clock   // optional, RealClock if nil
	Logger       logger.Logger // optional, Nop if nil

	Debounce        time.Duration // default 200ms
	StaleWindow     time.Duration // default 3 days
	MaxMetadataJobs int           // default 10
	EffectBuffer    int           // default 16
}

// Coordinator owns the home screen state. Intents are processed by Run in a
// single loop; writes run concurrently and report back through effects.
type Coordinator struct {
	bookmarks Bookmarks
	sync      MetadataSync
	clock     model.Clock
	log       logger.Logger

	debounce    time.Duration
	staleWindow time.Duration
	maxJobs     int

	intents chan Intent
	done    chan struct{}
	effects chan Effect
	updates chan State

	mu    sync.Mutex
	state State
}

// New creates a Coordinator. Call Run to start processing intents.
func New(params Params) *Coordinator {
	c := &Coordinator{
		bookmarks:   params.Bookmarks,
		sync:        params.MetadataSync,
		clock:       params.Clock,
		log:         params.Logger,
		debounce:    params.Debounce,
		staleWindow: params.StaleWindow,
		maxJobs:     params.MaxMetadataJobs,
		intents:     make(chan Intent, defaultIntentBuffer),
		done:        make(chan struct{}),
		updates:     make(chan State, 1),
		state:       initialState(),
	}
	if c.clock == nil {
		c.clock = model.RealClock{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	if c.staleWindow <= 0 {
		c.staleWindow = DefaultStaleWindow
	}
	if c.maxJobs <= 0 {
		c.maxJobs = DefaultMaxMetadataJobs
	}
	buf := params.EffectBuffer
	if buf <= 0 {
		buf = defaultEffectBuffer
	}
	c.effects = make(chan Effect, buf)
	return c
}

// State returns a copy of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Updates delivers the latest state after each change. Intermediate states
// are skipped if the reader falls behind.
func (c *Coordinator) Updates() <-chan State {
	return c.updates
}

// Effects delivers one-shot events such as messages and URLs to open.
func (c *Coordinator) Effects() <-chan Effect {
	return c.effects
}

// Dispatch queues an intent. It returns without effect once Run has exited.
func (c *Coordinator) Dispatch(intent Intent) {
	select {
	case c.intents <- intent:
	case <-c.done:
	}
}

// readResult is a snapshot tagged with the generation of the read that produced it.
type readResult struct {
	gen     uint64
	keyword string
	snap    storage.Snapshot
}

// Run processes intents until ctx is cancelled. Reads and writes started by
// Run are cancelled with ctx and waited for before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	var (
		workers sync.WaitGroup
		results = make(chan readResult)

		liveQuery      string
		debouncedQuery string
		haveQuery      bool
		// the refresh signal starts out delivered
		haveRefresh = true

		gen        uint64
		cancelRead context.CancelFunc = func() {}
	)

	debounce := time.NewTimer(c.debounce)
	defer debounce.Stop()

	startRead := func() {
		gen++
		cancelRead()
		var readCtx context.Context
		readCtx, cancelRead = context.WithCancel(ctx)

		keyword := strings.TrimSpace(debouncedQuery)
		c.update(func(s *State) {
			s.Loading = true
			s.Query = keyword
		})

		workers.Add(1)
		go func(gen uint64) {
			defer workers.Done()
			c.read(readCtx, gen, keyword, results)
		}(gen)
	}

	tick := func() {
		if haveQuery && haveRefresh {
			startRead()
		}
	}

	spawn := func(fn func()) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			fn()
		}()
	}

	defer func() {
		cancelRead()
		workers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounce.C:
			debouncedQuery = liveQuery
			haveQuery = true
			tick()

		case r := <-results:
			if r.gen != gen {
				continue
			}
			c.applySnapshot(r.keyword, r.snap)

		case intent := <-c.intents:
			switch in := intent.(type) {
			case QueryChanged:
				if in.Value == liveQuery {
					continue
				}
				liveQuery = in.Value
				debounce.Reset(c.debounce)

			case SubmitSearch:
				haveRefresh = true
				tick()

			case ClearSearch:
				if liveQuery != "" {
					liveQuery = ""
					debounce.Reset(c.debounce)
				}
				debouncedQuery = ""
				haveQuery = true
				haveRefresh = true
				tick()

			case Refresh:
				c.update(func(s *State) {
					s.Loading = true
					s.Refreshing = true
				})
				haveRefresh = true
				tick()
				spawn(func() { c.refreshMetadata(ctx) })

			case Open:
				c.open(in.ID)

			case Add:
				spawn(func() { c.add(ctx, in) })

			case ToggleArchive:
				c.toggleArchive(in)
				spawn(func() {
					if err := c.bookmarks.ArchiveBookmark(ctx, in.ID, in.Archived); err != nil {
						c.fail("archive bookmark", err, MsgActionFailed)
					}
				})

			case UndoArchive:
				spawn(func() {
					if err := c.bookmarks.ArchiveBookmark(ctx, in.ID, in.PreviousArchived); err != nil {
						c.fail("undo archive", err, MsgUndoFailed)
					}
				})
				c.update(func(s *State) { s.UndoRequest = nil })

			case Delete:
				spawn(func() {
					if err := c.bookmarks.DeleteBookmark(ctx, in.ID); err != nil {
						c.fail("delete bookmark", err, MsgDeleteFailed)
						return
					}
					c.emit(Message{Text: MsgDeleted})
				})

			case ShowAddSheet:
				c.update(func(s *State) { s.AddSheetVisible = true })

			case HideAddSheet:
				c.update(func(s *State) { s.AddSheetVisible = false })

			case DismissUndo:
				c.update(func(s *State) { s.UndoRequest = nil })

			case CheckClipboard:
				c.checkClipboard(in.Text)

			default:
				c.log.Warnf("home: unknown intent %T", intent)
			}
		}
	}
}

// read forwards every snapshot of one read lineage until it is superseded.
func (c *Coordinator) read(ctx context.Context, gen uint64, keyword string, out chan<- readResult) {
	var stream <-chan storage.Snapshot
	if keyword == "" {
		stream = c.bookmarks.GetAllBookmarks(ctx)
	} else {
		stream = c.bookmarks.SearchBookmarks(ctx, keyword)
	}

	for snap := range stream {
		select {
		case out <- readResult{gen: gen, keyword: keyword, snap: snap}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) applySnapshot(keyword string, snap storage.Snapshot) {
	if snap.Err != nil {
		c.update(func(s *State) { s.Loading = false })
		c.fail("load bookmarks", snap.Err, MsgUnknownFailure)
		return
	}

	items := make([]ListItem, 0, len(snap.Bookmarks))
	for _, b := range snap.Bookmarks {
		if keyword == "" && b.Archived {
			continue
		}
		items = append(items, ToListItem(b))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	c.update(func(s *State) {
		s.Loading = false
		s.Items = items
	})
}

func (c *Coordinator) add(ctx context.Context, in Add) {
	b, err := c.bookmarks.AddBookmark(ctx, in.URL, in.Note, in.Category, in.Tags)
	if err != nil {
		c.fail("add bookmark", err, MsgSaveFailed)
		return
	}

	c.sync.Schedule(b.ID, b.URL)
	c.update(func(s *State) { s.AddSheetVisible = false })
	c.emit(Message{Text: MsgSaved})
}

// toggleArchive records the undo request before the write is issued.
func (c *Coordinator) toggleArchive(in ToggleArchive) {
	c.update(func(s *State) {
		previous := false
		if item, ok := findItem(s.Items, in.ID); ok {
			previous = item.Archived
		}
		s.UndoRequest = &UndoArchiveRequest{
			ID:               in.ID,
			PreviousArchived: previous,
			TargetArchived:   in.Archived,
		}
	})
}

func (c *Coordinator) open(id string) {
	c.mu.Lock()
	item, ok := findItem(c.state.Items, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	c.emit(OpenURL{URL: item.URL})
}

// refreshMetadata schedules a metadata fetch for bookmarks whose title or
// thumbnail is missing or that haven't been updated within the stale window.
func (c *Coordinator) refreshMetadata(ctx context.Context) {
	defer c.update(func(s *State) {
		s.Refreshing = false
		s.Loading = false
	})

	all, err := storage.First(ctx, c.bookmarks.GetAllBookmarks)
	if err != nil {
		if ctx.Err() == nil {
			c.fail("refresh metadata", err, MsgUnknownFailure)
		}
		return
	}

	for _, b := range StaleCandidates(all, c.clock.Now().Add(-c.staleWindow), c.maxJobs) {
		c.sync.Schedule(b.ID, b.URL)
	}
}

// StaleCandidates returns up to limit bookmarks, in input order and unique by
// id, that lack a title or thumbnail or were last updated before cutoff.
func StaleCandidates(bookmarks []model.Bookmark, cutoff time.Time, limit int) []model.Bookmark {
	seen := make(map[string]bool)
	var out []model.Bookmark
	for _, b := range bookmarks {
		if len(out) >= limit {
			break
		}
		if seen[b.ID] {
			continue
		}
		if b.HasTitle() && b.HasThumbnail() && !b.UpdatedAt.Before(cutoff) {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out
}

func (c *Coordinator) checkClipboard(text string) {
	candidate := strings.TrimSpace(text)
	u, err := url.Parse(candidate)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return
	}

	c.mu.Lock()
	saved := false
	for _, item := range c.state.Items {
		if item.URL == candidate {
			saved = true
			break
		}
	}
	c.mu.Unlock()

	if !saved {
		c.emit(ClipboardSuggest{URL: candidate})
	}
}

// update applies fn to the state and publishes the result.
func (c *Coordinator) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
	snapshot := c.state.clone()

	// Publishing under mu keeps the slot holding the newest state; both
	// channel operations are non-blocking.
	for {
		select {
		case c.updates <- snapshot:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

func (c *Coordinator) emit(e Effect) {
	select {
	case c.effects <- e:
	default:
		c.log.Warn("home: effect dropped, buffer full", logger.String("effect", effectName(e)))
	}
}

// fail logs err and reports it to the user.
func (c *Coordinator) fail(action string, err error, fallback string) {
	c.log.Error("home: "+action+" failed", logger.Error(err))
	text := err.Error()
	if strings.TrimSpace(text) == "" {
		text = fallback
	}
	c.emit(Message{Text: text})
}

func findItem(items []ListItem, id string) (ListItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return ListItem{}, false
}

func effectName(e Effect) string {
	switch e.(type) {
	case OpenURL:
		return "open_url"
	case Message:
		return "message"
	case ClipboardSuggest:
		return "clipboard_suggest"
	default:
		return "unknown"
	}
}
