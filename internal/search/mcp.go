package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/config"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

const mcpProtocolVersion = "2024-11-05"

var errMCPAuth = errors.New("mcp session rejected")

// MCPProvider implements a generic MCP (Model Context Protocol) provider
// This can be used with any MCP-compatible search service
type MCPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	toolName   string // The MCP tool name to call, e.g., "webSearchPrime", "search"
	queryParam string // The query parameter name, e.g., "search_query", "query"
	client     *http.Client

	sessionMu sync.Mutex
	sessionID string
	started   bool
}

// NewMCPProvider creates a new generic MCP provider
func NewMCPProvider(name string, cfg *config.ProviderConfig, client *http.Client) *MCPProvider {
	p := &MCPProvider{
		name:       name,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		toolName:   cfg.ToolName,
		queryParam: cfg.QueryParam,
		client:     client,
	}
	if p.toolName == "" {
		p.toolName = "webSearchPrime"
	}
	if p.queryParam == "" {
		p.queryParam = "search_query"
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	return p
}

// Name returns the provider name
func (p *MCPProvider) Name() string {
	return p.name
}

// IsAvailable returns true if the provider is properly configured
func (p *MCPProvider) IsAvailable() bool {
	return p.apiKey != "" && p.baseURL != ""
}

type mcpRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

type mcpResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *mcpError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

type mcpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type mcpToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

type mcpSearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Snippet string `json:"snippet,omitempty"`
}

// session returns the current session id, running the initialize handshake
// on first use. The handshake may legitimately yield an empty id.
func (p *MCPProvider) session(ctx context.Context) (string, error) {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()

	if p.started {
		return p.sessionID, nil
	}

	log := logger.FromContext(ctx)
	log.Debug("initializing new MCP session", zap.String("provider", p.name))

	req := mcpRequest{
		JSONRPC: "2.0",
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": mcpProtocolVersion,
			"capabilities":    map[string]interface{}{},
			"clientInfo": map[string]string{
				"name":    "voicechat",
				"version": "1.0.0",
			},
		},
		ID: 1,
	}

	resp, _, err := p.post(ctx, req, "")
	if err != nil {
		return "", err
	}

	p.sessionID = resp.Header.Get("Mcp-Session-Id")
	p.started = true

	if p.sessionID == "" {
		log.Warn("no mcp-session-id in response header, continuing without",
			zap.String("provider", p.name))
	}
	return p.sessionID, nil
}

func (p *MCPProvider) resetSession() {
	p.sessionMu.Lock()
	defer p.sessionMu.Unlock()
	p.sessionID = ""
	p.started = false
}

// post sends one JSON-RPC message and returns the raw HTTP response (body
// already consumed) together with the decoded JSON-RPC envelope.
func (p *MCPProvider) post(ctx context.Context, rpc mcpRequest, sessionID string) (*http.Response, *mcpResponse, error) {
	bodyBytes, err := json.Marshal(rpc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", sessionID)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil, errMCPAuth
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("mcp server returned status %d", resp.StatusCode)
	}

	if rpc.Method == "initialize" {
		return resp, nil, nil
	}

	var rpcResp mcpResponse
	if err := json.Unmarshal([]byte(sseData(string(body))), &rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp, &rpcResp, nil
}

// sseData extracts the JSON payload from an SSE-framed body
// ("id:1\nevent:message\ndata:{...}"); plain JSON bodies pass through.
func sseData(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	return body
}

// Search performs a search query using MCP. A rejected session is dropped so
// the next call performs a fresh handshake; the current call is not retried.
func (p *MCPProvider) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	log := logger.FromContext(ctx)

	if !p.IsAvailable() {
		return nil, fmt.Errorf("%s provider not configured: missing API key", p.name)
	}

	sessionID, err := p.session(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to establish MCP session: %w", err)
	}

	_, resp, err := p.post(ctx, mcpRequest{
		JSONRPC: "2.0",
		Method:  "tools/call",
		Params: mcpToolCallParams{
			Name:      p.toolName,
			Arguments: map[string]interface{}{p.queryParam: query},
		},
		ID: 2,
	}, sessionID)
	if errors.Is(err, errMCPAuth) {
		p.resetSession()
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to call search tool: %w", err)
	}

	if resp.Error != nil {
		if resp.Error.Code == -401 || strings.Contains(resp.Error.Message, "apikey") {
			p.resetSession()
		}
		return nil, fmt.Errorf("search tool error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}

	var toolResult mcpToolResult
	if err := json.Unmarshal(resp.Result, &toolResult); err != nil {
		return nil, fmt.Errorf("failed to parse content result: %w", err)
	}
	if len(toolResult.Content) == 0 {
		return nil, fmt.Errorf("no content in response")
	}
	if toolResult.IsError {
		return nil, fmt.Errorf("MCP error: %s", toolResult.Content[0].Text)
	}

	results, err := p.parseResults(toolResult.Content[0].Text, maxResults)
	if err != nil {
		return nil, err
	}

	log.Info("MCP search completed",
		zap.String("provider", p.name),
		zap.String("query", query),
		zap.Int("result_count", len(results)),
	)
	return results, nil
}

// parseResults decodes the tool's text payload, which some servers encode as
// a JSON array and others as a JSON string containing that array.
func (p *MCPProvider) parseResults(text string, maxResults int) ([]models.SearchResult, error) {
	var raw json.RawMessage = []byte(text)

	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = []byte(nested)
	}

	var items []mcpSearchResult
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	results := make([]models.SearchResult, 0, maxResults)
	for _, item := range items {
		if len(results) >= maxResults {
			break
		}
		link := item.Link
		if link == "" {
			link = item.URL
		}
		snippet := item.Snippet
		if snippet == "" {
			snippet = item.Content
		}
		if item.Title == "" || link == "" || snippet == "" {
			continue
		}
		results = append(results, models.SearchResult{
			Title:   item.Title,
			URL:     normalizeURL(link),
			Snippet: snippet,
			Source:  p.name,
		})
	}
	return results, nil
}
