package models

import "encoding/json"

// ==================== Conversation Models ====================

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// ConversationTurn is one entry in an ordered conversation history.
type ConversationTurn struct {
	Role         Role   `json:"role"`
	Content      string `json:"content"`
	FunctionName string `json:"name,omitempty"`

	// ToolCallID links an assistant tool request to the function turn that
	// answers it. It is empty for plain user/assistant turns.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolArguments carries the raw JSON arguments of an assistant tool request.
	ToolArguments string `json:"tool_arguments,omitempty"`
}

// IsToolRequest reports whether the turn is an assistant turn asking the
// caller to execute a function.
func (t ConversationTurn) IsToolRequest() bool {
	return t.Role == RoleAssistant && t.FunctionName != ""
}

// ==================== Search Models ====================

// SearchResult represents a single search result
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// ==================== HTTP API Models ====================

// ChatRequest is the body of POST /api/chat. Messages is decoded lazily so a
// non-array value can be rejected with a precise error.
type ChatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

// ChatMessage is a client-supplied turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextResponse is returned by /api/chat and /api/transcribe.
type TextResponse struct {
	Text string `json:"text"`
}

// TTSRequest is the body of POST /api/tts.
type TTSRequest struct {
	Text string `json:"text"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ==================== Journal Models ====================

// Exchange is a completed chat round-trip as recorded by the journal.
type Exchange struct {
	ID          string             `json:"id"`
	TraceID     string             `json:"trace_id,omitempty"`
	CreatedAt   int64              `json:"created_at"`
	Messages    []ConversationTurn `json:"messages"`
	Answer      string             `json:"answer"`
	SearchQuery string             `json:"search_query,omitempty"`
}
