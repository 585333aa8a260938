package chat

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/young1lin/voicechat/internal/llm"
)

// WebSearchTool is the only function offered to the model.
const WebSearchTool = "web_search"

const (
	defaultMaxResults = 5
	maxResultsLimit   = 10
)

var webSearchParameters = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "The search query to look up on the web",
			"minLength":   1,
		},
		"max_results": map[string]interface{}{
			"type":        "number",
			"description": "Maximum number of search results to return (default: 5)",
			"default":     defaultMaxResults,
		},
	},
	"required": []string{"query"},
}

var webSearchSchema = gojsonschema.NewGoLoader(webSearchParameters)

func webSearchDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        WebSearchTool,
		Description: "Search the web for current information, news, facts, or any topic the user asks about",
		Parameters:  webSearchParameters,
	}
}

// FunctionCallRequest is a validated web_search invocation.
type FunctionCallRequest struct {
	Name       string
	Query      string
	MaxResults int
}

// ParseFunctionCall validates a model tool call against the declared
// web_search schema. The query is never fabricated: a missing or blank query
// is an error. max_results defaults to defaultResults and is clamped to
// [1, limit].
func ParseFunctionCall(call *llm.ToolCall, defaultResults, limit int) (*FunctionCallRequest, error) {
	if call == nil || call.Name != WebSearchTool {
		return nil, fmt.Errorf("%w: unexpected function %q", ErrMalformedToolCall, nameOf(call))
	}
	if defaultResults < 1 {
		defaultResults = defaultMaxResults
	}
	if limit < 1 {
		limit = maxResultsLimit
	}

	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		return nil, fmt.Errorf("%w: empty arguments", ErrMalformedToolCall)
	}

	var parsed struct {
		Query      string   `json:"query"`
		MaxResults *float64 `json:"max_results"`
	}
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToolCall, err)
	}

	result, err := gojsonschema.Validate(webSearchSchema, gojsonschema.NewStringLoader(args))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToolCall, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedToolCall, strings.Join(msgs, "; "))
	}

	query := strings.TrimSpace(parsed.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is blank", ErrMalformedToolCall)
	}

	requested := float64(defaultResults)
	if parsed.MaxResults != nil {
		requested = math.Floor(*parsed.MaxResults)
	}
	// Clamp before converting: out-of-range float to int conversion is
	// implementation-defined.
	maxResults := int(math.Max(1, math.Min(requested, float64(limit))))

	return &FunctionCallRequest{
		Name:       call.Name,
		Query:      query,
		MaxResults: maxResults,
	}, nil
}

func nameOf(call *llm.ToolCall) string {
	if call == nil {
		return ""
	}
	return call.Name
}
