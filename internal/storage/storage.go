package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ifmain/pinny/internal/model"
)

// ErrNotFound is returned by writes that target a bookmark id that doesn't exist.
var ErrNotFound = errors.New("bookmark not found")

// ErrDirtySchema is returned when a previous migration was interrupted.
var ErrDirtySchema = errors.New("database schema is dirty")

// Snapshot is one emission of a bookmark stream: the full list, or the error
// that ended the stream.
type Snapshot struct {
	Bookmarks []model.Bookmark
	Err       error
}

// Repository defines persistence for bookmarks.
//
// All and Search return push streams: the current list is sent immediately and
// again after every write. A slow reader only ever sees the latest list. The
// channel is closed when ctx ends or after a Snapshot carrying an error.
type Repository interface {
	Upsert(ctx context.Context, b model.Bookmark) error
	Archive(ctx context.Context, id string, archived bool) error
	UpdateMeta(ctx context.Context, id string, title, thumbnailPath *string) error
	Delete(ctx context.Context, id string) error
	All(ctx context.Context) <-chan Snapshot
	Search(ctx context.Context, keyword string) <-chan Snapshot
}

// notifier fans out change ticks to stream subscribers. Each subscriber has a
// one-slot channel, so bursts of writes collapse into a single re-query.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan struct{})}
}

func (n *notifier) subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// watch runs query now and after every change tick until ctx ends or the query fails.
func watch(ctx context.Context, n *notifier, query func(context.Context) ([]model.Bookmark, error)) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	ticks, unsubscribe := n.subscribe()

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			bookmarks, err := query(ctx)
			if ctx.Err() != nil {
				return
			}

			select {
			case out <- Snapshot{Bookmarks: bookmarks, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}

			select {
			case <-ticks:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// First returns the first snapshot of a stream and stops reading it.
func First(ctx context.Context, stream func(context.Context) <-chan Snapshot) ([]model.Bookmark, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	select {
	case snap, ok := <-stream(ctx):
		if !ok {
			return nil, ctx.Err()
		}
		return snap.Bookmarks, snap.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// matches reports whether keyword is a case-insensitive substring of any
// searchable field. Mirrors the SQL LIKE search.
func matches(b model.Bookmark, keyword string) bool {
	kw := strings.ToLower(keyword)
	fields := []string{
		b.URL,
		model.Deref(b.Title),
		model.Deref(b.Description),
		model.Deref(b.Category),
	}
	fields = append(fields, b.Tags...)

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), kw) {
			return true
		}
	}
	return false
}
