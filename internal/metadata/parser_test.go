package metadata_test

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/ifmain/pinny/internal/metadata"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		pageURL   string
		wantTitle string
		wantImage string
	}{
		{
			name: "open graph wins",
			html: `<html><head>
				<title>Document Title</title>
				<meta property="og:title" content="OG Title">
				<meta property="og:image" content="https://cdn.example.com/og.png">
				<meta name="twitter:image" content="https://cdn.example.com/tw.png">
			</head></html>`,
			pageURL:   "https://example.com/post",
			wantTitle: "OG Title",
			wantImage: "https://cdn.example.com/og.png",
		},
		{
			name: "title element and twitter image",
			html: `<html><head>
				<title>
					Document
					Title
				</title>
				<meta name="twitter:image" content="https://cdn.example.com/tw.png">
			</head></html>`,
			pageURL:   "https://example.com/post",
			wantTitle: "Document Title",
			wantImage: "https://cdn.example.com/tw.png",
		},
		{
			name:      "favicon fallback",
			html:      `<html><head><title>Plain</title></head><body>hi</body></html>`,
			pageURL:   "https://www.example.com/a/b?c=d",
			wantTitle: "Plain",
			wantImage: "https://www.example.com/favicon.ico",
		},
		{
			name:      "relative image resolved",
			html:      `<meta property="og:image" content="/img/cover.jpg">`,
			pageURL:   "https://example.com/blog/post",
			wantImage: "https://example.com/img/cover.jpg",
		},
		{
			name:      "blank og title falls back",
			html:      `<meta property="og:title" content="  "><title>Fallback</title>`,
			pageURL:   "https://example.com",
			wantTitle: "Fallback",
			wantImage: "https://example.com/favicon.ico",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := metadata.Parse(strings.NewReader(tt.html), tt.pageURL)
			assert.NilError(t, err)

			if tt.wantTitle == "" {
				assert.Assert(t, meta.Title == nil)
			} else {
				assert.Assert(t, meta.Title != nil)
				assert.Equal(t, *meta.Title, tt.wantTitle)
			}
			assert.Assert(t, meta.ImageURL != nil)
			assert.Equal(t, *meta.ImageURL, tt.wantImage)
		})
	}
}

func TestParse_NoHostNoImage(t *testing.T) {
	meta, err := metadata.Parse(strings.NewReader(`<p>nothing</p>`), "not a url")
	assert.NilError(t, err)
	assert.Assert(t, meta.Title == nil)
	assert.Assert(t, meta.ImageURL == nil)
}
