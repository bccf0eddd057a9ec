package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/tui/layout"
)

// Mode is the local interaction mode. The add sheet is not a mode: its
// visibility comes from the coordinator state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeConfirmDelete
	ModeHelp
)

// MessageType selects how the message line is styled.
type MessageType int

const (
	MessageInfo MessageType = iota
	MessageSuccess
	MessageError
)

// Add sheet fields in tab order.
const (
	fieldURL = iota
	fieldNote
	fieldCategory
	fieldTags
	fieldCount
)

// AddForm holds the add sheet inputs.
type AddForm struct {
	URL      textinput.Model
	Note     textinput.Model
	Category textinput.Model
	Tags     textinput.Model
	focus    int
}

// NewAddForm creates an AddForm with initialized inputs.
func NewAddForm(cfg layout.LayoutConfig) AddForm {
	newInput := func(placeholder string, limit int) textinput.Model {
		input := textinput.New()
		input.Placeholder = placeholder
		input.CharLimit = limit
		input.Width = cfg.Input.StandardWidth
		return input
	}

	return AddForm{
		URL:      newInput("https://...", cfg.Input.URLCharLimit),
		Note:     newInput("Why is this worth keeping?", cfg.Input.NoteCharLimit),
		Category: newInput("reading", cfg.Input.CategoryCharLimit),
		Tags:     newInput("go, tools", cfg.Input.TagsCharLimit),
	}
}

func (f *AddForm) inputs() []*textinput.Model {
	return []*textinput.Model{&f.URL, &f.Note, &f.Category, &f.Tags}
}

// Reset clears the form, pre-fills url and focuses the URL field.
func (f *AddForm) Reset(url string) tea.Cmd {
	for _, input := range f.inputs() {
		input.Reset()
		input.Blur()
	}
	f.URL.SetValue(url)
	f.focus = fieldURL
	return f.URL.Focus()
}

// Focused returns the index of the focused field.
func (f AddForm) Focused() int {
	return f.focus
}

// Next moves focus to the next field, wrapping around.
func (f *AddForm) Next() tea.Cmd {
	return f.setFocus((f.focus + 1) % fieldCount)
}

// Prev moves focus to the previous field, wrapping around.
func (f *AddForm) Prev() tea.Cmd {
	return f.setFocus((f.focus + fieldCount - 1) % fieldCount)
}

func (f *AddForm) setFocus(i int) tea.Cmd {
	inputs := f.inputs()
	inputs[f.focus].Blur()
	f.focus = i
	return inputs[i].Focus()
}

// Update forwards msg to the focused input.
func (f *AddForm) Update(msg tea.Msg) tea.Cmd {
	input := f.inputs()[f.focus]
	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	return cmd
}

// Intent builds the Add intent from the current field values.
func (f AddForm) Intent() home.Add {
	return home.Add{
		URL:      strings.TrimSpace(f.URL.Value()),
		Note:     model.StringPtr(f.Note.Value()),
		Category: model.StringPtr(f.Category.Value()),
		Tags:     ParseTags(f.Tags.Value()),
	}
}

// ParseTags splits comma-separated input into trimmed, non-empty tags.
func ParseTags(input string) []string {
	tags := []string{}
	for _, part := range strings.Split(input, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
