package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/config"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

const firecrawlSource = "Firecrawl"

// FirecrawlProvider implements the Provider interface using Firecrawl API
type FirecrawlProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewFirecrawlProvider creates a new Firecrawl provider
func NewFirecrawlProvider(name string, cfg *config.ProviderConfig, client *http.Client) *FirecrawlProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev/v2"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &FirecrawlProvider{
		name:    name,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  client,
	}
}

// Name returns the provider name
func (p *FirecrawlProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *FirecrawlProvider) IsAvailable() bool {
	return p.apiKey != ""
}

type firecrawlSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type firecrawlSearchResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		Web []firecrawlSearchResult `json:"web,omitempty"`
	} `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type firecrawlSearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Search performs a search query using Firecrawl
func (p *FirecrawlProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	log := logger.FromContext(ctx)

	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing API key", p.name)
	}

	bodyBytes, err := json.Marshal(firecrawlSearchRequest{Query: query, Limit: maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("firecrawl response",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("firecrawl returned status %d", resp.StatusCode)
	}

	var searchResp firecrawlSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if !searchResp.Success {
		errMsg := searchResp.Error
		if errMsg == "" {
			errMsg = "unknown error"
		}
		return nil, fmt.Errorf("firecrawl search failed: %s", errMsg)
	}

	results := make([]models.SearchResult, 0, maxResults)
	if searchResp.Data != nil {
		for _, item := range searchResp.Data.Web {
			if len(results) >= maxResults {
				break
			}
			if item.Title == "" || item.URL == "" || item.Description == "" {
				continue
			}
			results = append(results, models.SearchResult{
				Title:   item.Title,
				URL:     normalizeURL(item.URL),
				Snippet: item.Description,
				Source:  firecrawlSource,
			})
		}
	}

	log.Info("firecrawl search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}
