package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/config"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

const (
	duckDuckGoSource  = "DuckDuckGo"
	duckDuckGoBaseURL = "https://duckduckgo.com/html/"
)

// DuckDuckGoProvider scrapes the server-rendered DuckDuckGo results page.
// It needs no API key but is blocked without a browser-like User-Agent.
type DuckDuckGoProvider struct {
	name      string
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewDuckDuckGoProvider creates a new DuckDuckGo provider
func NewDuckDuckGoProvider(name string, cfg *config.ProviderConfig, userAgent string, client *http.Client) *DuckDuckGoProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = duckDuckGoBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &DuckDuckGoProvider{
		name:      name,
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    client,
	}
}

// Name returns the provider name
func (p *DuckDuckGoProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *DuckDuckGoProvider) IsAvailable() bool {
	return p.baseURL != ""
}

// Search fetches the results page for query and extracts up to maxResults
// results in document order.
func (p *DuckDuckGoProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	log := logger.FromContext(ctx)

	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	results := parseResultBlocks(doc, maxResults)

	log.Info("duckduckgo search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}

// parseResultBlocks walks .result__body blocks in document order, skipping
// incomplete ones, and stops as soon as maxResults have been collected.
func parseResultBlocks(doc *goquery.Document, maxResults int) []models.SearchResult {
	results := make([]models.SearchResult, 0, maxResults)

	doc.Find(".result__body").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if len(results) >= maxResults {
			return false
		}

		link := block.Find(".result__title a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		snippet := strings.TrimSpace(block.Find(".result__snippet").First().Text())

		if title == "" || href == "" || snippet == "" {
			return true
		}

		results = append(results, models.SearchResult{
			Title:   title,
			URL:     normalizeURL(href),
			Snippet: snippet,
			Source:  duckDuckGoSource,
		})
		return len(results) < maxResults
	})

	return results
}

// normalizeURL turns protocol-relative links into explicit https ones.
func normalizeURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
