package scraper

import (
	"log"
	"strings"
)

// Extract walks each configured dot-path into the document and concatenates
// the listing arrays it finds, in path order (the private feed is configured
// first). A missing path or a non-array terminal is logged and skipped; the
// upstream shape changes without notice and must never abort a cycle.
func Extract(doc RawDocument, paths []string) []RawListing {
	var all []RawListing
	for _, path := range paths {
		value, ok := lookupPath(doc, path)
		if !ok {
			log.Printf("Extractor: path %q not found in response", path)
			continue
		}

		items, ok := value.([]interface{})
		if !ok {
			log.Printf("Extractor: expected array at %q, got %T", path, value)
			continue
		}

		for _, item := range items {
			if m, ok := item.(map[string]interface{}); ok {
				all = append(all, RawListing(m))
			}
		}
	}
	return all
}

func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
