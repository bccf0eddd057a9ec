package search

import (
	"testing"

	"github.com/ifmain/pinny/internal/home"
	"github.com/ifmain/pinny/internal/model"
)

func items(titles ...string) []home.ListItem {
	out := make([]home.ListItem, len(titles))
	for i, title := range titles {
		out[i] = home.ListItem{ID: title, Title: title}
	}
	return out
}

func TestFuzzy_EmptyQuery(t *testing.T) {
	results := Fuzzy(items("GitHub"), "")

	if len(results) != 0 {
		t.Errorf("expected 0 results for empty query, got %d", len(results))
	}
}

func TestFuzzy_ExactMatch(t *testing.T) {
	results := Fuzzy(items("GitHub", "GitLab"), "GitHub")

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Item.Title != "GitHub" {
		t.Errorf("expected GitHub, got %s", results[0].Item.Title)
	}
}

func TestFuzzy_FuzzyMatch(t *testing.T) {
	// "tanrou" should fuzzy match "TanStack Router"
	results := Fuzzy(items("TanStack Router", "React Router"), "tanrou")

	if len(results) < 1 {
		t.Fatalf("expected at least 1 result for 'tanrou', got %d", len(results))
	}
	if results[0].Item.Title != "TanStack Router" {
		t.Errorf("expected TanStack Router as first result, got %s", results[0].Item.Title)
	}
}

func TestFuzzy_DomainFallbackTitle(t *testing.T) {
	item := home.ToListItem(model.Bookmark{ID: "b1", URL: "https://www.github.com/ifmain"})
	results := Fuzzy([]home.ListItem{item}, "github")

	if len(results) != 1 {
		t.Fatalf("expected 1 result for untitled bookmark, got %d", len(results))
	}
}

func TestFuzzy_NoMatch(t *testing.T) {
	results := Fuzzy(items("GitHub"), "xyz123")

	if len(results) != 0 {
		t.Errorf("expected 0 results for 'xyz123', got %d", len(results))
	}
}

func TestFuzzy_SortedByScore(t *testing.T) {
	results := Fuzzy(items("React Router Documentation", "Router"), "router")

	if len(results) < 2 {
		t.Fatalf("expected at least 2 results, got %d", len(results))
	}
	// "Router" should rank higher (exact match) than "React Router Documentation"
	if results[0].Item.Title != "Router" {
		t.Errorf("expected 'Router' as first result, got %s", results[0].Item.Title)
	}
}

func TestItems_KeepsOrder(t *testing.T) {
	results := Items(items("b", "a"))

	if len(results) != 2 || results[0].Item.Title != "b" || results[1].Item.Title != "a" {
		t.Errorf("expected items in input order, got %+v", results)
	}
}
