package tui

import "strings"

// Hint represents a single keybind hint for display.
type Hint struct {
	Key  string // Display key (e.g., "j/k", "enter")
	Desc string // Short description (e.g., "move", "open")
}

// HintSet is an ordered collection of hints by group.
type HintSet struct {
	Nav    []Hint
	Action []Hint
	Edit   []Hint
	System []Hint
}

// All returns all hints flattened in display order: Nav + Action + Edit + System.
func (h HintSet) All() []Hint {
	result := make([]Hint, 0, len(h.Nav)+len(h.Action)+len(h.Edit)+len(h.System))
	result = append(result, h.Nav...)
	result = append(result, h.Action...)
	result = append(result, h.Edit...)
	result = append(result, h.System...)
	return result
}

// renderHints renders hints in horizontal format: "j/k:move o:open"
func (a App) renderHints(hints HintSet) string {
	all := hints.All()
	if len(all) == 0 {
		return ""
	}

	parts := make([]string, len(all))
	for i, h := range all {
		parts[i] = a.styles.HintKey.Render(h.Key) + ":" + a.styles.HintDesc.Render(h.Desc)
	}
	return strings.Join(parts, " ")
}

// renderHintsInline renders hints in inline format for modals: "enter save  esc cancel"
func (a App) renderHintsInline(hints []Hint) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = a.styles.HintKey.Render(h.Key) + " " + a.styles.HintDesc.Render(h.Desc)
	}
	return strings.Join(parts, "  ")
}

// contextualHints returns the hints for what currently has focus.
func (a App) contextualHints() HintSet {
	if a.state.AddSheetVisible {
		return HintSet{
			Nav:    []Hint{{Key: "tab", Desc: "next"}},
			Action: []Hint{{Key: "enter", Desc: "save"}},
			System: []Hint{{Key: "esc", Desc: "cancel"}},
		}
	}

	switch a.mode {
	case ModeSearch:
		return HintSet{
			Nav:    []Hint{{Key: "type", Desc: "search"}},
			Action: []Hint{{Key: "enter", Desc: "apply"}},
			System: []Hint{{Key: "esc", Desc: "clear"}},
		}
	case ModeConfirmDelete:
		return HintSet{}
	case ModeHelp:
		return HintSet{
			System: []Hint{{Key: "?/q/esc", Desc: "close"}},
		}
	default:
		return a.normalHints()
	}
}

func (a App) normalHints() HintSet {
	hints := HintSet{
		Nav: []Hint{
			{Key: "j/k", Desc: "move"},
			{Key: "o", Desc: "open"},
		},
		Action: []Hint{
			{Key: "/", Desc: "search"},
			{Key: "r", Desc: "refresh"},
		},
		Edit: []Hint{
			{Key: "a", Desc: "add"},
			{Key: "x", Desc: "archive"},
			{Key: "d", Desc: "del"},
		},
		System: []Hint{
			{Key: "?", Desc: "help"},
			{Key: "q", Desc: "quit"},
		},
	}
	if a.state.UndoRequest != nil {
		hints.Edit = append(hints.Edit, Hint{Key: "u", Desc: "undo"})
	}
	return hints
}
