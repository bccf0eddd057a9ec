package layout

// LayoutConfig holds all layout-related configuration values.
type LayoutConfig struct {
	Pane  PaneConfig
	Modal ModalConfig
	Input InputConfig
	Text  TextConfig
}

// PaneConfig holds list and preview pane dimensions.
type PaneConfig struct {
	// HeightReduction is subtracted from terminal height for pane content.
	// Accounts for: app padding (1) + header (1) + search (1) + pane borders (2) + footer (3) = 8
	HeightReduction int

	// MinHeight is the minimum pane height.
	MinHeight int

	// LinesPerItem is how many lines one bookmark takes in the list.
	LinesPerItem int

	// PreviewMinTerminalWidth hides the preview pane on narrower terminals.
	PreviewMinTerminalWidth int

	// ListWidthPercent is the list's share of the width when the preview is shown.
	ListWidthPercent int

	// SinglePaneWidthOffset accounts for app padding and one pane border.
	SinglePaneWidthOffset int

	// DualPaneWidthOffset accounts for app padding and two pane borders.
	DualPaneWidthOffset int

	// ContentPadding is subtracted from pane width for item rendering.
	ContentPadding int
}

// ModalConfig holds modal dialog configuration.
type ModalConfig struct {
	// DefaultWidthPercent is the standard modal width as percentage of terminal width.
	DefaultWidthPercent int

	// MinWidth is the minimum modal width in characters.
	MinWidth int

	// MaxWidth is the maximum modal width in characters.
	MaxWidth int

	// HelpLeftColumnWidth: width for help overlay left column.
	HelpLeftColumnWidth int

	// HelpRightColumnWidth: width for help overlay right column.
	HelpRightColumnWidth int
}

// InputConfig holds text input configuration.
type InputConfig struct {
	// Character limits
	URLCharLimit      int
	NoteCharLimit     int
	CategoryCharLimit int
	TagsCharLimit     int
	SearchCharLimit   int

	// Display widths
	StandardWidth int // add sheet fields
	SearchWidth   int
}

// TextConfig holds text truncation configuration.
type TextConfig struct {
	// Ellipsis is the string used to indicate truncation.
	Ellipsis string
}

// DefaultConfig returns the default layout configuration.
func DefaultConfig() LayoutConfig {
	return LayoutConfig{
		Pane: PaneConfig{
			HeightReduction:         8,
			MinHeight:               4,
			LinesPerItem:            2,
			PreviewMinTerminalWidth: 100,
			ListWidthPercent:        60,
			SinglePaneWidthOffset:   6,
			DualPaneWidthOffset:     8,
			ContentPadding:          2,
		},
		Modal: ModalConfig{
			DefaultWidthPercent:  50,
			MinWidth:             50,
			MaxWidth:             80,
			HelpLeftColumnWidth:  18,
			HelpRightColumnWidth: 24,
		},
		Input: InputConfig{
			URLCharLimit:      500,
			NoteCharLimit:     300,
			CategoryCharLimit: 50,
			TagsCharLimit:     200,
			SearchCharLimit:   100,
			StandardWidth:     40,
			SearchWidth:       30,
		},
		Text: TextConfig{
			Ellipsis: "...",
		},
	}
}
