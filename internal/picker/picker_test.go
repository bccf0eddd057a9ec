package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/search"
)

func twoResults() []search.Result {
	return []search.Result{
		{Item: home.ListItem{ID: "b1", Title: "GitHub", URL: "https://github.com"}},
		{Item: home.ListItem{ID: "b2", Title: "GitLab", URL: "https://gitlab.com"}},
	}
}

func update(t *testing.T, p Picker, msg tea.Msg) (Picker, tea.Cmd) {
	t.Helper()
	m, cmd := p.Update(msg)
	return m.(Picker), cmd
}

func TestPicker_InitialState(t *testing.T) {
	p := New(twoResults(), "git")

	if p.cursor != 0 {
		t.Errorf("expected cursor at 0, got %d", p.cursor)
	}
	if len(p.results) != 2 {
		t.Errorf("expected 2 results, got %d", len(p.results))
	}
}

func TestPicker_Navigate(t *testing.T) {
	p := New(twoResults(), "git")

	p, _ = update(t, p, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if p.cursor != 1 {
		t.Errorf("expected cursor at 1 after j, got %d", p.cursor)
	}

	// at the last item, j does nothing
	p, _ = update(t, p, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	if p.cursor != 1 {
		t.Errorf("expected cursor to stay at 1, got %d", p.cursor)
	}

	p, _ = update(t, p, tea.KeyMsg{Type: tea.KeyUp})
	if p.cursor != 0 {
		t.Errorf("expected cursor at 0 after up arrow, got %d", p.cursor)
	}

	p, _ = update(t, p, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	if p.cursor != 0 {
		t.Errorf("expected cursor to stay at 0, got %d", p.cursor)
	}
}

func TestPicker_SelectItem(t *testing.T) {
	p := New(twoResults(), "git")
	p.cursor = 1

	p, cmd := update(t, p, tea.KeyMsg{Type: tea.KeyEnter})

	if !p.selected {
		t.Error("expected selected to be true after Enter")
	}
	if cmd == nil {
		t.Error("expected quit command after selection")
	}
	got := p.SelectedItem()
	if got == nil || got.ID != "b2" {
		t.Errorf("expected b2 to be selected, got %+v", got)
	}
}

func TestPicker_EnterWithNoResultsCancels(t *testing.T) {
	p := New(nil, "nothing")

	p, _ = update(t, p, tea.KeyMsg{Type: tea.KeyEnter})

	if !p.Cancelled() {
		t.Error("expected cancel when there is nothing to pick")
	}
	if p.SelectedItem() != nil {
		t.Error("expected no selection")
	}
}

func TestPicker_Cancel(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	} {
		p := New(twoResults(), "git")
		p, cmd := update(t, p, msg)

		if !p.Cancelled() {
			t.Errorf("expected cancelled after %q", msg.String())
		}
		if cmd == nil {
			t.Errorf("expected quit command after %q", msg.String())
		}
		if p.SelectedItem() != nil {
			t.Error("expected nil when cancelled")
		}
	}
}

func TestPicker_ScrollsWithCursor(t *testing.T) {
	var results []search.Result
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		results = append(results, search.Result{Item: home.ListItem{ID: id, Title: "Title " + id, URL: "https://" + id}})
	}
	p := New(results, "")
	p, _ = update(t, p, tea.WindowSizeMsg{Width: 80, Height: 8}) // two rows

	for i := 0; i < 4; i++ {
		p, _ = update(t, p, tea.KeyMsg{Type: tea.KeyDown})
	}

	view := p.View()
	if !strings.Contains(view, "https://e") {
		t.Errorf("expected cursor row to be visible, got:\n%s", view)
	}
	if strings.Contains(view, "https://a") {
		t.Errorf("expected first row to be scrolled out, got:\n%s", view)
	}
}

func TestPicker_ViewShowsArchived(t *testing.T) {
	results := []search.Result{
		{Item: home.ListItem{ID: "b1", Title: "Old post", URL: "https://old.dev", Archived: true}},
	}
	view := New(results, "old").View()

	if !strings.Contains(view, "[archived]") {
		t.Errorf("expected archived marker in view:\n%s", view)
	}
	if !strings.Contains(view, "(1 results)") {
		t.Errorf("expected result count in header:\n%s", view)
	}
}
