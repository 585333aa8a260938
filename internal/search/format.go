package search

import (
	"fmt"
	"strings"

	"github.com/young1lin/voicechat/internal/models"
)

// NoResults is the text produced for an empty result list.
const NoResults = "No search results found."

// Format renders results as a numbered, prompt-ready block. Results keep
// their input order.
func Format(results []models.SearchResult) string {
	if len(results) == 0 {
		return NoResults
	}

	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = fmt.Sprintf("%d. **%s**\nURL: %s\n%s\n---", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.Join(entries, "\n")
}
