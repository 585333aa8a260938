package search

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/config"
	"github.com/young1lin/voicechat/internal/metrics"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

const (
	// FallbackURL is the link carried by the synthetic result returned when a
	// search cannot be performed.
	FallbackURL    = "https://duckduckgo.com"
	FallbackSource = "System"
	fallbackTitle  = "Search temporarily unavailable"

	defaultTimeout = 10 * time.Second
)

// Manager manages search providers and owns the degradation policy: its
// Search method never fails.
type Manager struct {
	providers       map[string]Provider
	timeouts        map[string]time.Duration
	defaultProvider string
	timeout         time.Duration
}

// NewManager creates a new search manager
func NewManager(cfg *config.WebSearchConfig, client *http.Client) *Manager {
	m := &Manager{
		providers:       make(map[string]Provider),
		timeouts:        make(map[string]time.Duration),
		defaultProvider: cfg.Provider,
		timeout:         time.Duration(cfg.Timeout) * time.Second,
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout
	}

	// Dynamically create providers based on type
	for name, providerCfg := range cfg.Providers {
		var provider Provider
		switch providerCfg.Type {
		case "duckduckgo":
			provider = NewDuckDuckGoProvider(name, &providerCfg, cfg.UserAgent, client)
		case "mcp":
			provider = NewMCPProvider(name, &providerCfg, client)
		case "firecrawl":
			provider = NewFirecrawlProvider(name, &providerCfg, client)
		default:
			logger.Warn("unknown provider type, skipping",
				zap.String("provider", name),
				zap.String("type", providerCfg.Type))
			continue
		}

		m.Register(provider)
		if providerCfg.Timeout > 0 {
			m.timeouts[name] = time.Duration(providerCfg.Timeout) * time.Second
		}
	}

	logger.Info("search manager initialized",
		zap.String("default_provider", m.defaultProvider),
		zap.Strings("available", m.Available()),
	)

	return m
}

// NewManagerWithProviders builds a manager from already constructed
// providers; the first one is the default.
func NewManagerWithProviders(timeout time.Duration, providers ...Provider) *Manager {
	m := &Manager{
		providers: make(map[string]Provider),
		timeouts:  make(map[string]time.Duration),
		timeout:   timeout,
	}
	if m.timeout <= 0 {
		m.timeout = defaultTimeout
	}
	for i, p := range providers {
		if i == 0 {
			m.defaultProvider = p.Name()
		}
		m.Register(p)
	}
	return m
}

// Register adds or replaces a provider.
func (m *Manager) Register(p Provider) {
	m.providers[p.Name()] = p
}

// Available lists the names of providers that are ready to serve, sorted.
func (m *Manager) Available() []string {
	names := make([]string, 0, len(m.providers))
	for name, p := range m.providers {
		if p.IsAvailable() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Search runs query against the default provider, or the first available
// one if the default is not configured. Any failure is converted into a
// single placeholder result.
func (m *Manager) Search(ctx context.Context, query string, maxResults int) []models.SearchResult {
	p := m.pick()
	if p == nil {
		logger.FromContext(ctx).Warn("no available search provider", zap.String("query", query))
		metrics.SearchRequests.WithLabelValues("none", "degraded").Inc()
		return Unavailable(query)
	}
	return m.run(ctx, p, query, maxResults)
}

// SearchWithProvider performs a search using a specific provider, with the
// same degradation policy as Search.
func (m *Manager) SearchWithProvider(ctx context.Context, providerName, query string, maxResults int) ([]models.SearchResult, error) {
	p, ok := m.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerName)
	}
	if !p.IsAvailable() {
		return nil, fmt.Errorf("provider not available: %s", providerName)
	}
	return m.run(ctx, p, query, maxResults), nil
}

func (m *Manager) pick() Provider {
	if p, ok := m.providers[m.defaultProvider]; ok && p.IsAvailable() {
		return p
	}
	if names := m.Available(); len(names) > 0 {
		return m.providers[names[0]]
	}
	return nil
}

func (m *Manager) run(ctx context.Context, p Provider, query string, maxResults int) []models.SearchResult {
	log := logger.FromContext(ctx).With(zap.String("provider", p.Name()))

	query = strings.TrimSpace(query)
	if query == "" {
		log.Warn("empty search query")
		metrics.SearchRequests.WithLabelValues(p.Name(), "degraded").Inc()
		return Unavailable(query)
	}
	if maxResults < 1 {
		maxResults = 1
	}

	timeout := m.timeout
	if t, ok := m.timeouts[p.Name()]; ok {
		timeout = t
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	results, err := safeSearch(ctx, p, query, maxResults)
	metrics.ObserveUpstream("search", start, err)
	if err != nil {
		log.Warn("web search failed, returning placeholder",
			zap.String("query", query),
			zap.Error(err),
		)
		metrics.SearchRequests.WithLabelValues(p.Name(), "degraded").Inc()
		return Unavailable(query)
	}

	metrics.SearchRequests.WithLabelValues(p.Name(), "ok").Inc()
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// safeSearch shields callers from a provider that panics while parsing a
// malformed page.
func safeSearch(ctx context.Context, p Provider, query string, maxResults int) (results []models.SearchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("provider %s panicked: %v", p.Name(), r)
		}
	}()
	return p.Search(ctx, query, maxResults)
}

// Unavailable returns the placeholder used when a search cannot be performed.
func Unavailable(query string) []models.SearchResult {
	return []models.SearchResult{{
		Title: fallbackTitle,
		URL:   FallbackURL,
		Snippet: fmt.Sprintf("I apologize, but I'm unable to perform a web search for %q at the moment. "+
			"This could be due to network issues or search service limitations. "+
			"I'll do my best to answer based on my existing knowledge.", query),
		Source: FallbackSource,
	}}
}
