package layout

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// StripANSI removes terminal escape sequences, leaving the printable text.
func StripANSI(s string) string {
	return ansi.Strip(s)
}

// VisibleLength returns the number of terminal cells s occupies.
func VisibleLength(s string) int {
	return ansi.StringWidth(s)
}

// Truncate shortens plain text to maxWidth cells, ending it with the
// configured ellipsis when anything was cut.
func Truncate(text string, maxWidth int, cfg TextConfig) string {
	if maxWidth <= 0 {
		return ""
	}
	if ansi.StringWidth(text) <= maxWidth {
		return text
	}
	if ansi.StringWidth(cfg.Ellipsis) >= maxWidth {
		return ansi.Truncate(cfg.Ellipsis, maxWidth, "")
	}
	return ansi.Truncate(text, maxWidth, cfg.Ellipsis)
}

// TruncateStyled is Truncate for text that already carries styling. A cut
// line is closed with a reset so the style does not leak into the border.
func TruncateStyled(styled string, maxWidth int, cfg TextConfig) string {
	if ansi.StringWidth(styled) <= maxWidth {
		return styled
	}
	return Truncate(styled, maxWidth, cfg) + "\x1b[0m"
}

// TruncateWithMarker shortens a title so that marker (e.g. " [archived]")
// always stays visible after it.
func TruncateWithMarker(title, marker string, maxWidth int, cfg TextConfig) string {
	if marker == "" {
		return Truncate(title, maxWidth, cfg)
	}
	room := maxWidth - ansi.StringWidth(marker)
	if room <= ansi.StringWidth(cfg.Ellipsis) {
		return Truncate(title+marker, maxWidth, cfg)
	}
	return Truncate(title, room, cfg) + marker
}

// DetailLine renders the "domain  #tag #tag  age" line of a list item within
// maxWidth. The age is kept whole; tags that do not fit are dropped from the
// end and counted as "+N"; the domain is shortened only when no tag fits.
func DetailLine(domain string, tags []string, age string, maxWidth int, cfg TextConfig) string {
	if maxWidth <= 0 {
		return ""
	}
	tail := ""
	if age != "" {
		tail = "  " + age
	}
	room := maxWidth - ansi.StringWidth(tail)
	if room <= 0 {
		return Truncate(age, maxWidth, cfg)
	}

	for shown := len(tags); shown >= 0; shown-- {
		line := domain + tagList(tags, shown)
		if ansi.StringWidth(line) <= room {
			return line + tail
		}
	}
	return Truncate(domain, room, cfg) + tail
}

// tagList renders the first shown tags followed by a count of the rest.
func tagList(tags []string, shown int) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, shown+1)
	for _, tag := range tags[:shown] {
		parts = append(parts, "#"+tag)
	}
	if hidden := len(tags) - shown; hidden > 0 {
		parts = append(parts, fmt.Sprintf("+%d", hidden))
	}
	return "  " + strings.Join(parts, " ")
}

// PadRight pads s with spaces to width visible cells.
func PadRight(s string, width int) string {
	if gap := width - ansi.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
