package home

import (
	"regexp"
	"strings"
	"time"

	"github.com/ifmain/pinny/internal/model"
)

// State is the home screen's view state.
type State struct {
	Query           string
	Loading         bool
	Items           []ListItem
	AddSheetVisible bool
	Offline         bool
	UndoRequest     *UndoArchiveRequest
	Refreshing      bool
}

func initialState() State {
	return State{Loading: true, Items: []ListItem{}}
}

func (s State) clone() State {
	s.Items = append([]ListItem(nil), s.Items...)
	if s.UndoRequest != nil {
		undo := *s.UndoRequest
		s.UndoRequest = &undo
	}
	return s
}

// UndoArchiveRequest records an archive toggle that can still be reverted.
type UndoArchiveRequest struct {
	ID               string
	PreviousArchived bool
	TargetArchived   bool
}

// ListItem is a bookmark prepared for display.
type ListItem struct {
	ID           string
	Title        string // bookmark title, or the domain when it has none
	URL          string
	Domain       string
	Note         *string
	Tags         []string
	Category     *string
	ThumbnailURL *string
	Archived     bool
	UpdatedAt    time.Time
}

// ToListItem converts a bookmark into a ListItem.
func ToListItem(b model.Bookmark) ListItem {
	domain := PrettifyHost(b.URL)
	title := domain
	if b.HasTitle() {
		title = *b.Title
	}
	return ListItem{
		ID:           b.ID,
		Title:        title,
		URL:          b.URL,
		Domain:       domain,
		Note:         b.Description,
		Tags:         b.Tags,
		Category:     b.Category,
		ThumbnailURL: b.ThumbnailURL,
		Archived:     b.Archived,
		UpdatedAt:    b.UpdatedAt,
	}
}

var hostPattern = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.-]*://)?([^/?#]+)`)

// PrettifyHost returns the authority part of url without a leading "www.".
// Input that doesn't look like a URL is returned as is.
func PrettifyHost(url string) string {
	host := url
	if m := hostPattern.FindStringSubmatch(url); m != nil {
		host = m[1]
	}
	return strings.TrimPrefix(host, "www.")
}

// Intent is a user action sent to the Coordinator.
type Intent interface {
	isIntent()
}

type (
	QueryChanged struct{ Value string }
	SubmitSearch struct{}
	ClearSearch  struct{}
	Open         struct{ ID string }
	Add          struct {
		URL      string
		Note     *string
		Category *string
		Tags     []string
	}
	ToggleArchive struct {
		ID       string
		Archived bool
	}
	UndoArchive struct {
		ID               string
		PreviousArchived bool
	}
	Delete       struct{ ID string }
	ShowAddSheet struct{}
	HideAddSheet struct{}
	Refresh      struct{}
	DismissUndo  struct{}

	// CheckClipboard offers Text as a new bookmark if it is an unsaved http(s) URL.
	CheckClipboard struct{ Text string }
)

func (QueryChanged) isIntent()   {}
func (SubmitSearch) isIntent()   {}
func (ClearSearch) isIntent()    {}
func (Open) isIntent()           {}
func (Add) isIntent()            {}
func (ToggleArchive) isIntent()  {}
func (UndoArchive) isIntent()    {}
func (Delete) isIntent()         {}
func (ShowAddSheet) isIntent()   {}
func (HideAddSheet) isIntent()   {}
func (Refresh) isIntent()        {}
func (DismissUndo) isIntent()    {}
func (CheckClipboard) isIntent() {}

// Effect is a one-shot event for the presentation layer.
type Effect interface {
	isEffect()
}

type (
	OpenURL          struct{ URL string }
	Message          struct{ Text string }
	ClipboardSuggest struct{ URL string }
)

func (OpenURL) isEffect()          {}
func (Message) isEffect()          {}
func (ClipboardSuggest) isEffect() {}

// User-facing messages.
const (
	MsgSaved          = "Saved! Metadata will update shortly."
	MsgDeleted        = "Deleted"
	MsgSaveFailed     = "Could not save bookmark"
	MsgActionFailed   = "Could not complete the action"
	MsgUndoFailed     = "Could not undo"
	MsgDeleteFailed   = "Could not delete bookmark"
	MsgUnknownFailure = "Something went wrong"
)
