// Package importer reads Netscape bookmark HTML files as exported by browsers.
package importer

import (
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ifmain/pinny/internal/model"
)

// Params controls how imported bookmarks are created.
type Params struct {
	Clock model.Clock       // optional, used when ADD_DATE is missing
	IDs   model.IDGenerator // optional
}

// ParseHTMLBookmarks parses Netscape bookmark HTML.
//
// The innermost enclosing folder becomes the bookmark's category, the TAGS
// attribute its tags and a following <DD> its note. A link whose text is
// empty or just repeats the URL gets no title, so metadata sync fills it in.
func ParseHTMLBookmarks(r io.Reader, params Params) ([]model.Bookmark, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	clock := params.Clock
	if clock == nil {
		clock = model.RealClock{}
	}
	ids := params.IDs
	if ids == nil {
		ids = model.UUIDGenerator{}
	}

	var bookmarks []model.Bookmark

	// Track current folder stack for the category
	var folderStack []string
	var pendingFolder *string // folder waiting to be pushed on next DL
	noteTarget := -1         // bookmark a following DD describes

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				name := getTextContent(n)
				if name != "" {
					pendingFolder = &name
				}
				noteTarget = -1
				return // Don't recurse into H3

			case "a":
				href := strings.TrimSpace(getAttr(n, "href"))
				if href == "" {
					return
				}

				var category *string
				if len(folderStack) > 0 {
					category = model.StringPtr(folderStack[len(folderStack)-1])
				}

				b := model.NewBookmark(model.NewBookmarkParams{
					URL:      href,
					Category: category,
					Tags:     parseTags(getAttr(n, "tags")),
					Clock:    clock,
					IDs:      ids,
				})
				if title := getTextContent(n); title != "" && title != href {
					b.Title = &title
				}
				if ts, ok := parseUnix(getAttr(n, "add_date")); ok {
					b.CreatedAt = ts
					b.UpdatedAt = ts
				}
				if ts, ok := parseUnix(getAttr(n, "last_modified")); ok && ts.After(b.CreatedAt) {
					b.UpdatedAt = ts
				}

				bookmarks = append(bookmarks, b)
				noteTarget = len(bookmarks) - 1
				return // Don't recurse into A

			case "dd":
				if noteTarget >= 0 {
					bookmarks[noteTarget].Description = model.StringPtr(getDirectText(n))
					noteTarget = -1
				}

			case "dl":
				noteTarget = -1
				// If we have a pending folder, push it now
				pushedFolder := false
				if pendingFolder != nil {
					folderStack = append(folderStack, *pendingFolder)
					pendingFolder = nil
					pushedFolder = true
				}

				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				if pushedFolder {
					folderStack = folderStack[:len(folderStack)-1]
				}
				noteTarget = -1
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return bookmarks, nil
}

func parseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func parseUnix(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getDirectText returns the text of n's own text children, skipping nested elements.
// A DD may swallow the following list when the markup is sloppy.
func getDirectText(n *html.Node) string {
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}
