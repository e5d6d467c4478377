package scraper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func loadDocument(t *testing.T, name string) RawDocument {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	var doc RawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to decode fixture %s: %v", name, err)
	}
	return doc
}

func TestExtract_PrivateFirst(t *testing.T) {
	doc := loadDocument(t, "feed.json")

	listings := Extract(doc, []string{"pageProps.feed.private", "pageProps.feed.promoted"})
	if len(listings) != 3 {
		t.Fatalf("expected 3 listings, got %d", len(listings))
	}

	// Private category order is preserved and precedes promoted.
	tokens := []string{}
	for _, l := range listings {
		tokens = append(tokens, l["token"].(string))
	}
	want := []string{"x1", "x2", "p1"}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("expected token order %v, got %v", want, tokens)
		}
	}
}

func TestExtract_MissingPath(t *testing.T) {
	doc := loadDocument(t, "feed.json")

	listings := Extract(doc, []string{"pageProps.feed.business"})
	if len(listings) != 0 {
		t.Fatalf("expected no listings for absent path, got %d", len(listings))
	}
}

func TestExtract_NonArrayTerminal(t *testing.T) {
	doc := loadDocument(t, "feed.json")

	// pageProps.feed is an object, not an array; must be skipped, not panic.
	listings := Extract(doc, []string{"pageProps.feed"})
	if len(listings) != 0 {
		t.Fatalf("expected no listings for non-array terminal, got %d", len(listings))
	}
}

func TestExtract_PartialPathPresence(t *testing.T) {
	doc := loadDocument(t, "feed.json")

	listings := Extract(doc, []string{"pageProps.feed.business", "pageProps.feed.private"})
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings from the surviving path, got %d", len(listings))
	}
}
