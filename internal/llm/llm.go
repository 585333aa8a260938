// Package llm defines the chat-completion collaborator used by the chat
// orchestrator and its OpenAI-compatible implementation.
package llm

import (
	"context"

	"github.com/young1lin/voicechat/internal/models"
)

// ToolDefinition declares a function the model may ask the caller to run.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// CompletionRequest is one chat-completion call.
type CompletionRequest struct {
	Messages    []models.ConversationTurn
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// ToolCall is a model request to execute a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Kind tags which variant a Completion holds.
type Kind int

const (
	KindDirectAnswer Kind = iota
	KindToolRequest
)

func (k Kind) String() string {
	switch k {
	case KindDirectAnswer:
		return "direct_answer"
	case KindToolRequest:
		return "tool_request"
	default:
		return "unknown"
	}
}

// Completion is the model's reply: either natural-language Text or a
// ToolCall. Text may accompany a tool call and is then informational.
type Completion struct {
	Text     string
	ToolCall *ToolCall
}

// Kind reports which variant c holds.
func (c *Completion) Kind() Kind {
	if c.ToolCall != nil {
		return KindToolRequest
	}
	return KindDirectAnswer
}

// ChatModel performs a single chat-completion call. Implementations must not
// retry.
type ChatModel interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
