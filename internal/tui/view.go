package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/model"
	"github.com/ifmain/pinny/internal/tui/layout"
)

// renderView creates the complete home screen.
func (a App) renderView() string {
	switch {
	case a.mode == ModeHelp:
		return a.renderHelpOverlay()
	case a.state.AddSheetVisible:
		return a.renderAddSheet()
	case a.mode == ModeConfirmDelete:
		return a.renderConfirmDelete()
	}

	paneHeight := layout.CalculatePaneHeight(a.height, a.layoutConfig.Pane)
	panes := layout.CalculatePaneWidths(a.width, a.layoutConfig.Pane)

	columns := a.renderListPane(panes.ListWidth, paneHeight)
	if panes.HasPreview() {
		columns = lipgloss.JoinHorizontal(
			lipgloss.Top,
			columns,
			a.renderPreviewPane(panes.PreviewWidth, paneHeight),
		)
	}

	content := a.styles.App.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			a.renderHeader(),
			a.renderSearchBar(),
			columns,
			a.renderFooter(),
		),
	)

	// Use Place to ensure exact terminal dimensions and prevent overflow
	return lipgloss.Place(a.width, a.height, lipgloss.Left, lipgloss.Top, content)
}

// renderHeader renders the app name, item count and loading status.
func (a App) renderHeader() string {
	header := a.styles.Header.Render("pinny")
	header += a.styles.Help.Render(fmt.Sprintf("  %d bookmarks", len(a.state.Items)))

	switch {
	case a.state.Refreshing:
		header += a.styles.Status.Render("  refreshing metadata...")
	case a.state.Loading:
		header += a.styles.Status.Render("  loading...")
	}
	if a.state.Offline {
		header += a.styles.MsgError.Render("  offline")
	}
	return header
}

func (a App) renderSearchBar() string {
	if a.mode == ModeSearch {
		return " " + a.search.View()
	}
	if q := a.search.Value(); q != "" {
		return a.styles.Help.Render(" / " + q)
	}
	return a.styles.Help.Render(" / to search")
}

// renderListPane renders the bookmark list with the cursor kept in view.
func (a App) renderListPane(width, height int) string {
	itemWidth := layout.CalculateItemWidth(width, a.layoutConfig.Pane)

	var body string
	if len(a.state.Items) == 0 {
		body = a.styles.Empty.Render(a.emptyText())
	} else {
		visible := layout.CalculateVisibleItems(height, a.layoutConfig.Pane)
		offset := layout.CalculateViewportOffset(a.cursor, len(a.state.Items), visible)
		end := offset + visible
		if end > len(a.state.Items) {
			end = len(a.state.Items)
		}

		lines := make([]string, 0, (end-offset)*2)
		for i := offset; i < end; i++ {
			lines = append(lines, a.renderItem(a.state.Items[i], i == a.cursor, itemWidth)...)
		}
		body = strings.Join(lines, "\n")
	}

	style := a.styles.PaneActive
	if a.mode != ModeNormal {
		style = a.styles.Pane
	}
	return style.Width(width).Height(height).Render(body)
}

func (a App) emptyText() string {
	switch {
	case a.state.Loading:
		return "Loading..."
	case a.state.Query != "":
		return fmt.Sprintf("No bookmarks match %q", a.state.Query)
	default:
		return "No bookmarks yet. Press a to add one."
	}
}

// renderItem renders one bookmark as a title line and a detail line.
func (a App) renderItem(item home.ListItem, isCursor bool, maxWidth int) []string {
	marker := ""
	if item.Archived {
		marker = " [archived]"
	}
	title := layout.TruncateWithMarker(item.Title, marker, maxWidth, a.layoutConfig.Text)

	age := ""
	if !item.UpdatedAt.IsZero() {
		age = formatTimeAgo(a.clock.Now(), item.UpdatedAt)
	}
	detail := layout.DetailLine(item.Domain, item.Tags, age, maxWidth, a.layoutConfig.Text)

	if isCursor {
		return []string{
			a.styles.ItemSelected.Render(layout.PadRight(title, maxWidth)),
			a.styles.URL.Render(detail),
		}
	}

	titleStyle := a.styles.Item
	if item.Archived {
		titleStyle = a.styles.Archived
	}
	return []string{titleStyle.Render(title), a.styles.URL.Render(detail)}
}

// renderPreviewPane renders the details of the selected bookmark.
func (a App) renderPreviewPane(width, height int) string {
	item, ok := a.Selected()
	if !ok {
		return a.styles.Pane.Width(width).Height(height).Render("")
	}

	contentWidth := layout.CalculateItemWidth(width, a.layoutConfig.Pane)
	field := func(label, value string) string {
		return a.styles.Label.Render(label) + layout.Truncate(value, contentWidth-10, a.layoutConfig.Text)
	}

	var b strings.Builder
	title := layout.Truncate(item.Title, contentWidth, a.layoutConfig.Text)
	b.WriteString(a.styles.Title.Render(title))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Label.Render("url") + a.styles.URL.Render(layout.Truncate(item.URL, contentWidth-10, a.layoutConfig.Text)))
	b.WriteString("\n")
	if note := model.Deref(item.Note); note != "" {
		b.WriteString(field("note", note))
		b.WriteString("\n")
	}
	if category := model.Deref(item.Category); category != "" {
		b.WriteString(field("category", category))
		b.WriteString("\n")
	}
	if len(item.Tags) > 0 {
		b.WriteString(field("tags", a.styles.Tag.Render(strings.Join(item.Tags, ", "))))
		b.WriteString("\n")
	}
	if !item.UpdatedAt.IsZero() {
		b.WriteString(field("updated", a.styles.Date.Render(item.UpdatedAt.Local().Format("2006-01-02 15:04"))))
		b.WriteString("\n")
	}
	if thumb := model.Deref(item.ThumbnailURL); thumb != "" {
		b.WriteString(field("thumbnail", a.styles.URL.Render(thumb)))
		b.WriteString("\n")
	}
	if item.Archived {
		b.WriteString("\n")
		b.WriteString(a.styles.Archived.Render("archived"))
	}

	return a.styles.Pane.Width(width).Height(height).Render(b.String())
}

// renderFooter renders the undo banner, message line and hints (3 lines).
func (a App) renderFooter() string {
	lines := []string{"", "", ""}

	if undo := a.state.UndoRequest; undo != nil {
		verb := "Archived"
		if !undo.TargetArchived {
			verb = "Unarchived"
		}
		lines[0] = a.styles.Banner.Render(verb+" "+a.titleOf(undo.ID)) + "  " +
			a.renderHintsInline([]Hint{{Key: "u", Desc: "undo"}, {Key: "esc", Desc: "dismiss"}})
	}

	if a.messageText != "" {
		lines[1] = a.renderMessageLine()
	}

	lines[2] = " " + a.renderHints(a.contextualHints())
	return strings.Join(lines, "\n")
}

func (a App) titleOf(id string) string {
	for _, item := range a.state.Items {
		if item.ID == id {
			return item.Title
		}
	}
	return "bookmark"
}

// renderMessageLine renders the styled message with prefix icon based on type.
func (a App) renderMessageLine() string {
	switch a.messageType {
	case MessageError:
		return a.styles.MsgError.Render("✗ " + a.messageText)
	case MessageSuccess:
		return a.styles.MsgSuccess.Render("✓ " + a.messageText)
	default:
		return a.styles.MsgInfo.Render(a.messageText)
	}
}

func (a App) renderModal(content string) string {
	modalWidth := layout.CalculateModalWidth(a.width, a.layoutConfig.Modal.DefaultWidthPercent, a.layoutConfig.Modal)
	modal := a.styles.Modal.Width(modalWidth).Render(content)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, modal)
}

// renderAddSheet renders the add bookmark form.
func (a App) renderAddSheet() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Add Bookmark"))
	b.WriteString("\n\n")

	fields := []struct {
		label string
		view  string
	}{
		{"URL", a.form.URL.View()},
		{"Note", a.form.Note.View()},
		{"Category", a.form.Category.View()},
		{"Tags (comma-separated)", a.form.Tags.View()},
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(f.label + ":\n")
		b.WriteString(f.view)
	}

	if a.messageText != "" {
		b.WriteString("\n\n")
		b.WriteString(a.renderMessageLine())
	}

	b.WriteString("\n\n")
	b.WriteString(a.renderHintsInline([]Hint{
		{Key: "tab", Desc: "next"},
		{Key: "enter", Desc: "save"},
		{Key: "esc", Desc: "cancel"},
	}))
	return a.renderModal(b.String())
}

// renderConfirmDelete renders the delete confirmation.
func (a App) renderConfirmDelete() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Delete Bookmark"))
	b.WriteString("\n\n")
	if a.pendingDelete != nil {
		b.WriteString(fmt.Sprintf("Delete %q?\n", a.pendingDelete.Title))
		b.WriteString(a.styles.URL.Render(a.pendingDelete.URL))
	}
	b.WriteString("\n\n")
	b.WriteString(a.renderHintsInline([]Hint{
		{Key: "y/enter", Desc: "delete"},
		{Key: "n/esc", Desc: "cancel"},
	}))
	return a.renderModal(b.String())
}

// renderHelpOverlay renders the key reference.
func (a App) renderHelpOverlay() string {
	var left strings.Builder
	left.WriteString(a.styles.Title.Render("nav") + "\n")
	left.WriteString("j/k  move\n")
	left.WriteString("gg   top\n")
	left.WriteString("G    bottom\n")
	left.WriteString("\n")
	left.WriteString(a.styles.Title.Render("act") + "\n")
	left.WriteString("o    open url\n")
	left.WriteString("Y    yank url\n")
	left.WriteString("/    search\n")
	left.WriteString("r    refresh\n")

	var right strings.Builder
	right.WriteString(a.styles.Title.Render("edit") + "\n")
	right.WriteString("a    add bookmark\n")
	right.WriteString("x    archive/unarchive\n")
	right.WriteString("u    undo archive\n")
	right.WriteString("d    delete\n")
	right.WriteString("esc  clear search\n")
	right.WriteString("\n")
	right.WriteString(a.styles.Help.Render("[?/esc] close  [q] quit"))

	leftCol := lipgloss.NewStyle().Width(a.layoutConfig.Modal.HelpLeftColumnWidth).Render(left.String())
	rightCol := lipgloss.NewStyle().Width(a.layoutConfig.Modal.HelpRightColumnWidth).Render(right.String())
	cols := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, "  ", rightCol)

	return lipgloss.Place(
		a.width,
		a.height,
		lipgloss.Left,
		lipgloss.Top,
		lipgloss.NewStyle().Padding(1, 2).Render(cols),
	)
}

func formatTimeAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
