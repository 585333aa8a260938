package search

import (
	"context"

	"github.com/young1lin/voicechat/internal/models"
)

// Provider defines the interface for search providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Search performs a search query and returns at most maxResults results
	// in the engine's relevance order.
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)

	// IsAvailable returns true if the provider is properly configured
	IsAvailable() bool
}
