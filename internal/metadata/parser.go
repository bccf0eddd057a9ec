// Package metadata fetches page titles and preview images for bookmarks.
package metadata

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Meta is what a page says about itself.
type Meta struct {
	Title    *string `json:"title"`
	ImageURL *string `json:"imageUrl"`
}

// Parse reads an HTML document and extracts its title and preview image.
//
// The title is og:title, then <title>. The image is og:image, then
// twitter:image, then the site's /favicon.ico. Relative image URLs are
// resolved against pageURL.
func Parse(r io.Reader, pageURL string) (Meta, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Meta{}, err
	}

	var ogTitle, docTitle, ogImage, twitterImage string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "meta":
				content := strings.TrimSpace(getAttr(n, "content"))
				switch {
				case getAttr(n, "property") == "og:title" && ogTitle == "":
					ogTitle = content
				case getAttr(n, "property") == "og:image" && ogImage == "":
					ogImage = content
				case getAttr(n, "name") == "twitter:image" && twitterImage == "":
					twitterImage = content
				}
			case "title":
				if docTitle == "" {
					docTitle = getTextContent(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var meta Meta
	switch {
	case ogTitle != "":
		meta.Title = &ogTitle
	case docTitle != "":
		meta.Title = &docTitle
	}

	image := ogImage
	if image == "" {
		image = twitterImage
	}
	if image != "" {
		image = resolve(pageURL, image)
	} else {
		image = faviconURL(pageURL)
	}
	if image != "" {
		meta.ImageURL = &image
	}

	return meta, nil
}

func resolve(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}

func faviconURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return "https://" + u.Host + "/favicon.ico"
}

// getTextContent returns the trimmed text content of a node.
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
	return strings.Join(strings.Fields(text.String()), " ")
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}
