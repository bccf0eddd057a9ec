package layout

// PaneLayout holds calculated pane widths.
type PaneLayout struct {
	ListWidth    int
	PreviewWidth int // 0 when the preview pane is hidden
}

// HasPreview reports whether the preview pane fits.
func (p PaneLayout) HasPreview() bool {
	return p.PreviewWidth > 0
}

// CalculatePaneHeight computes the content height for panes.
// Returns at least MinHeight.
func CalculatePaneHeight(terminalHeight int, cfg PaneConfig) int {
	height := terminalHeight - cfg.HeightReduction
	if height < cfg.MinHeight {
		return cfg.MinHeight
	}
	return height
}

// CalculatePaneWidths splits the terminal width between list and preview.
// Terminals narrower than PreviewMinTerminalWidth get the list only.
func CalculatePaneWidths(terminalWidth int, cfg PaneConfig) PaneLayout {
	if terminalWidth < cfg.PreviewMinTerminalWidth {
		width := terminalWidth - cfg.SinglePaneWidthOffset
		if width < 1 {
			width = 1
		}
		return PaneLayout{ListWidth: width}
	}

	available := terminalWidth - cfg.DualPaneWidthOffset
	list := available * cfg.ListWidthPercent / 100
	return PaneLayout{
		ListWidth:    list,
		PreviewWidth: available - list,
	}
}

// CalculateItemWidth computes the width available for item content.
func CalculateItemWidth(paneWidth int, cfg PaneConfig) int {
	return paneWidth - cfg.ContentPadding
}

// CalculateVisibleItems computes how many list items fit in a pane.
func CalculateVisibleItems(paneHeight int, cfg PaneConfig) int {
	lines := cfg.LinesPerItem
	if lines < 1 {
		lines = 1
	}
	n := paneHeight / lines
	if n < 1 {
		return 1
	}
	return n
}

// CalculateViewportOffset calculates the scroll offset needed to keep the
// selected item visible within the viewport.
func CalculateViewportOffset(selected, total, viewportHeight int) int {
	if total <= viewportHeight {
		return 0
	}

	// Keep selection roughly centered, but clamp to valid range
	offset := selected - viewportHeight/2
	if offset < 0 {
		offset = 0
	}

	maxOffset := total - viewportHeight
	if offset > maxOffset {
		offset = maxOffset
	}

	return offset
}

// CalculateModalWidth computes responsive modal width based on percentage of terminal width.
// Uses widthPercent of terminal width, clamped between MinWidth and MaxWidth.
func CalculateModalWidth(terminalWidth, widthPercent int, cfg ModalConfig) int {
	width := terminalWidth * widthPercent / 100

	if width < cfg.MinWidth {
		width = cfg.MinWidth
	}
	if width > cfg.MaxWidth {
		width = cfg.MaxWidth
	}

	// Don't exceed terminal width
	if width > terminalWidth-4 {
		width = terminalWidth - 4
	}
	if width < 1 {
		return 1
	}

	return width
}
