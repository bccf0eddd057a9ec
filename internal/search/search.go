// Package search ranks bookmarks for the quick-search picker.
package search

import (
	"github.com/sahilm/fuzzy"

	"github.com/ifmain/pinny/internal/home"
)

// Result is a fuzzy match against an item's display title.
type Result struct {
	Item           home.ListItem
	MatchedIndexes []int
	Score          int
}

// itemTitles implements fuzzy.Source over list items.
type itemTitles []home.ListItem

func (it itemTitles) String(i int) string {
	return it[i].Title
}

func (it itemTitles) Len() int {
	return len(it)
}

// Fuzzy matches query against the display titles of items.
// Results are sorted by score, best first. An empty query matches nothing.
func Fuzzy(items []home.ListItem, query string) []Result {
	if query == "" {
		return nil
	}

	matches := fuzzy.FindFrom(query, itemTitles(items))

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Item:           items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Items returns every item wrapped as a Result in the given order.
// The picker uses it to list everything when no query was given.
func Items(items []home.ListItem) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{Item: item}
	}
	return results
}
