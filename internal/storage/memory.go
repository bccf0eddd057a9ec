package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ifmain/pinny/internal/model"
)

// MemoryRepository implements Repository in memory. Used for --memory runs
// and tests.
type MemoryRepository struct {
	mu        sync.Mutex
	bookmarks []model.Bookmark
	clock     model.Clock
	notifier  *notifier

	// failures injected by tests, keyed by operation name
	failures map[string]error
}

// NewMemoryRepository creates an empty MemoryRepository. clock may be nil.
func NewMemoryRepository(clock model.Clock) *MemoryRepository {
	if clock == nil {
		clock = model.RealClock{}
	}
	return &MemoryRepository{
		bookmarks: []model.Bookmark{},
		clock:     clock,
		notifier:  newNotifier(),
		failures:  make(map[string]error),
	}
}

// FailOp makes the given operation ("upsert", "archive", "updateMeta",
// "delete", "all", "search") fail with err until cleared with a nil err.
func (m *MemoryRepository) FailOp(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *MemoryRepository) Upsert(_ context.Context, b model.Bookmark) error {
	m.mu.Lock()
	if err := m.failures["upsert"]; err != nil {
		m.mu.Unlock()
		return err
	}

	b = cloneBookmark(b)
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if i := m.indexOf(b.ID); i >= 0 {
		if m.bookmarks[i].UpdatedAt.After(b.UpdatedAt) {
			b.UpdatedAt = m.bookmarks[i].UpdatedAt
		}
		b.CreatedAt = m.bookmarks[i].CreatedAt
		m.bookmarks[i] = b
	} else {
		m.bookmarks = append(m.bookmarks, b)
	}
	m.mu.Unlock()

	m.notifier.notify()
	return nil
}

func (m *MemoryRepository) Archive(_ context.Context, id string, archived bool) error {
	return m.update("archive", id, func(b *model.Bookmark) {
		b.Archived = archived
	})
}

func (m *MemoryRepository) UpdateMeta(_ context.Context, id string, title, thumbnailPath *string) error {
	return m.update("updateMeta", id, func(b *model.Bookmark) {
		b.Title = copyString(title)
		b.ThumbnailURL = copyString(thumbnailPath)
	})
}

func (m *MemoryRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	if err := m.failures["delete"]; err != nil {
		m.mu.Unlock()
		return err
	}
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m.bookmarks = append(m.bookmarks[:i], m.bookmarks[i+1:]...)
	m.mu.Unlock()

	m.notifier.notify()
	return nil
}

func (m *MemoryRepository) All(ctx context.Context) <-chan Snapshot {
	return watch(ctx, m.notifier, func(context.Context) ([]model.Bookmark, error) {
		return m.list("all", func(model.Bookmark) bool { return true })
	})
}

func (m *MemoryRepository) Search(ctx context.Context, keyword string) <-chan Snapshot {
	return watch(ctx, m.notifier, func(context.Context) ([]model.Bookmark, error) {
		return m.list("search", func(b model.Bookmark) bool { return matches(b, keyword) })
	})
}

func (m *MemoryRepository) update(op, id string, fn func(*model.Bookmark)) error {
	m.mu.Lock()
	if err := m.failures[op]; err != nil {
		m.mu.Unlock()
		return err
	}
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	b := &m.bookmarks[i]
	fn(b)
	if now := m.clock.Now(); now.After(b.UpdatedAt) {
		b.UpdatedAt = now
	}
	m.mu.Unlock()

	m.notifier.notify()
	return nil
}

func (m *MemoryRepository) list(op string, keep func(model.Bookmark) bool) ([]model.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[op]; err != nil {
		return nil, err
	}

	result := []model.Bookmark{}
	for _, b := range m.bookmarks {
		if keep(b) {
			result = append(result, cloneBookmark(b))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryRepository) indexOf(id string) int {
	for i := range m.bookmarks {
		if m.bookmarks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneBookmark(b model.Bookmark) model.Bookmark {
	b.Title = copyString(b.Title)
	b.Description = copyString(b.Description)
	b.ThumbnailURL = copyString(b.ThumbnailURL)
	b.Category = copyString(b.Category)
	if b.Tags != nil {
		b.Tags = append([]string{}, b.Tags...)
	}
	return b
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
