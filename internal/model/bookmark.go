package model

import (
	"strings"
	"time"
)

// Bookmark represents a saved URL with user and fetched metadata.
type Bookmark struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        *string   `json:"title"`        // nil until metadata sync
	Description  *string   `json:"description"`  // user note
	ThumbnailURL *string   `json:"thumbnailUrl"` // local thumbnail path
	Category     *string   `json:"category"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Archived     bool      `json:"archived"`
}

// NewBookmarkParams holds parameters for creating a new Bookmark.
type NewBookmarkParams struct {
	URL      string
	Note     *string
	Category *string
	Tags     []string

	Clock Clock       // optional, RealClock if nil
	IDs   IDGenerator // optional, UUIDGenerator if nil
}

// NewBookmark creates a Bookmark with generated ID and timestamps.
func NewBookmark(params NewBookmarkParams) Bookmark {
	clock := params.Clock
	if clock == nil {
		clock = RealClock{}
	}
	ids := params.IDs
	if ids == nil {
		ids = UUIDGenerator{}
	}

	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	now := clock.Now()
	return Bookmark{
		ID:          ids.New(),
		URL:         params.URL,
		Description: params.Note,
		Category:    params.Category,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasTitle reports whether the bookmark has a non-blank title.
func (b Bookmark) HasTitle() bool {
	return !IsBlank(b.Title)
}

// HasThumbnail reports whether the bookmark has a non-blank thumbnail reference.
func (b Bookmark) HasThumbnail() bool {
	return !IsBlank(b.ThumbnailURL)
}

// IsBlank reports whether s is nil or only whitespace.
func IsBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// StringPtr returns nil for blank input, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
