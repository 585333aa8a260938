package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/metrics"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/pkg/logger"
)

// NewSDKClient builds an OpenAI SDK client. baseURL may point at any
// OpenAI-compatible backend. SDK-level retries are disabled: every upstream
// call in this service is a single attempt.
func NewSDKClient(baseURL, apiKey string, httpClient *http.Client) openai.Client {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		// Local backends (Ollama, vLLM) accept any key
		opts = append(opts, option.WithAPIKey("dummy"))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return openai.NewClient(opts...)
}

// OpenAIClient implements ChatModel using the official OpenAI Go SDK
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient wraps an SDK client for the given model.
func NewOpenAIClient(client openai.Client, model string) *OpenAIClient {
	return &OpenAIClient{client: client, model: model}
}

// Complete sends one chat-completion request. When tools are declared the
// model decides whether to call them.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	log := logger.FromContext(ctx)

	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("auto"),
		}
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	metrics.ObserveUpstream("chat_completion", start, err)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			log.Error("chat completion rejected",
				zap.Int("status", apiErr.StatusCode),
				zap.String("model", c.model),
				zap.Error(err),
			)
		}
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: no choices in response")
	}

	msg := resp.Choices[0].Message
	log.Debug("chat completion received",
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
	)

	out := &Completion{Text: msg.Content}
	if len(msg.ToolCalls) > 0 {
		tc := msg.ToolCalls[0]
		out.ToolCall = &ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return out, nil
}

// convertMessages converts conversation turns to OpenAI SDK message params.
// Function-result turns are sent as tool messages answering ToolCallID.
func convertMessages(turns []models.ConversationTurn) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleSystem:
			result = append(result, openai.SystemMessage(turn.Content))
		case models.RoleUser:
			result = append(result, openai.UserMessage(turn.Content))
		case models.RoleAssistant:
			if !turn.IsToolRequest() {
				result = append(result, openai.AssistantMessage(turn.Content))
				continue
			}
			assistantMsg := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
					ID: turn.ToolCallID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      turn.FunctionName,
						Arguments: turn.ToolArguments,
					},
				}},
			}
			if turn.Content != "" {
				assistantMsg.Content.OfString = openai.String(turn.Content)
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistantMsg})
		case models.RoleFunction:
			result = append(result, openai.ToolMessage(turn.Content, turn.ToolCallID))
		default:
			return nil, fmt.Errorf("unsupported message role: %s", turn.Role)
		}
	}
	return result, nil
}

func convertTools(tools []ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		def := shared.FunctionDefinitionParam{
			Name:       t.Name,
			Parameters: shared.FunctionParameters(t.Parameters),
		}
		if t.Description != "" {
			def.Description = openai.String(t.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: def})
	}
	return out
}
