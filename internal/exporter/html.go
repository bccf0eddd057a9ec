// Package exporter writes bookmarks as Netscape bookmark HTML.
package exporter

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ifmain/pinny/internal/model"
)

// DefaultExportPath returns the default export file path.
// Format: ~/Downloads/pinny-export-YYYY-MM-DD.html
func DefaultExportPath(now time.Time) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("pinny-export-%s.html", now.Format("2006-01-02"))
	return filepath.Join(home, "Downloads", filename), nil
}

// ExportHTML renders bookmarks in Netscape bookmark HTML format. Each category
// becomes a folder; uncategorised bookmarks sit at the root.
func ExportHTML(bookmarks []model.Bookmark) string {
	var b strings.Builder

	// Header
	b.WriteString("<!DOCTYPE NETSCAPE-Bookmark-file-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Bookmarks</TITLE>\n")
	b.WriteString("<H1>Bookmarks</H1>\n")
	b.WriteString("<DL><p>\n")

	var root []model.Bookmark
	byCategory := make(map[string][]model.Bookmark)
	for _, bm := range bookmarks {
		if model.IsBlank(bm.Category) {
			root = append(root, bm)
			continue
		}
		name := strings.TrimSpace(*bm.Category)
		byCategory[name] = append(byCategory[name], bm)
	}

	categories := make([]string, 0, len(byCategory))
	for name := range byCategory {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	for _, name := range categories {
		fmt.Fprintf(&b, "    <DT><H3>%s</H3>\n", html.EscapeString(name))
		b.WriteString("    <DL><p>\n")
		for _, bm := range byCategory[name] {
			writeBookmark(&b, bm, 2)
		}
		b.WriteString("    </DL><p>\n")
	}

	for _, bm := range root {
		writeBookmark(&b, bm, 1)
	}

	// Footer
	b.WriteString("</DL><p>\n")

	return b.String()
}

func writeBookmark(b *strings.Builder, bm model.Bookmark, indent int) {
	prefix := strings.Repeat("    ", indent)

	title := bm.URL
	if bm.HasTitle() {
		title = *bm.Title
	}

	fmt.Fprintf(b, "%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\" LAST_MODIFIED=\"%d\"",
		prefix,
		html.EscapeString(bm.URL),
		bm.CreatedAt.Unix(),
		bm.UpdatedAt.Unix(),
	)
	if len(bm.Tags) > 0 {
		fmt.Fprintf(b, " TAGS=\"%s\"", html.EscapeString(strings.Join(bm.Tags, ",")))
	}
	fmt.Fprintf(b, ">%s</A>\n", html.EscapeString(title))

	if !model.IsBlank(bm.Description) {
		fmt.Fprintf(b, "%s<DD>%s\n", prefix, html.EscapeString(strings.TrimSpace(*bm.Description)))
	}
}
