// Package chat implements the web-search-augmented conversation flow: one
// model call, and when the model asks for web_search, a search followed by a
// second model call that sees the results.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/young1lin/voicechat/internal/llm"
	"github.com/young1lin/voicechat/internal/metrics"
	"github.com/young1lin/voicechat/internal/models"
	"github.com/young1lin/voicechat/internal/search"
	"github.com/young1lin/voicechat/pkg/logger"
)

// Persona is the system prompt injected ahead of every conversation, in both
// model calls.
const Persona = "You are ChatGPT, an advanced, friendly, and knowledgeable AI assistant. " +
	"Answer user queries in a natural, conversational manner, just like ChatGPT on openai.com. " +
	"Be helpful, concise when appropriate, and feel free to ask clarifying questions if needed. " +
	"Avoid unnecessary mentions that you're an AI unless directly asked. " +
	"When you need current information or want to search for specific topics, use the web_search function."

// Searcher runs a web search. Implementations never fail; they degrade to a
// placeholder result instead.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []models.SearchResult
}

// Options tunes the model calls.
type Options struct {
	Temperature       float64
	MaxTokens         int
	FollowUpMaxTokens int
	DefaultResults    int
	MaxResultsLimit   int
}

// DefaultOptions mirrors the production defaults.
func DefaultOptions() Options {
	return Options{
		Temperature:       0.7,
		MaxTokens:         400,
		FollowUpMaxTokens: 500,
		DefaultResults:    defaultMaxResults,
		MaxResultsLimit:   maxResultsLimit,
	}
}

// Result is the outcome of one Converse call. Turns is the message sequence
// sent on the last model call.
type Result struct {
	Text        string
	Turns       []models.ConversationTurn
	SearchQuery string
}

// Orchestrator holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	model    llm.ChatModel
	searcher Searcher
	opts     Options
}

// NewOrchestrator wires a model and a searcher together.
func NewOrchestrator(model llm.ChatModel, searcher Searcher, opts Options) *Orchestrator {
	if opts.DefaultResults < 1 {
		opts.DefaultResults = defaultMaxResults
	}
	if opts.MaxResultsLimit < 1 {
		opts.MaxResultsLimit = maxResultsLimit
	}
	return &Orchestrator{model: model, searcher: searcher, opts: opts}
}

// Converse answers the last user turn of history and returns the trimmed
// answer text, which may be empty.
func (o *Orchestrator) Converse(ctx context.Context, history []models.ConversationTurn) (string, error) {
	res, err := o.Run(ctx, history)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Run is Converse with the message trail exposed.
func (o *Orchestrator) Run(ctx context.Context, history []models.ConversationTurn) (*Result, error) {
	log := logger.FromContext(ctx)

	if err := ValidateHistory(history); err != nil {
		metrics.ChatOutcomes.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}

	// The caller's slice is never appended to or modified.
	first := make([]models.ConversationTurn, 0, len(history)+3)
	first = append(first, models.ConversationTurn{Role: models.RoleSystem, Content: Persona})
	first = append(first, history...)

	completion, err := o.model.Complete(ctx, llm.CompletionRequest{
		Messages:    first,
		Tools:       []llm.ToolDefinition{webSearchDefinition()},
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		metrics.ChatOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("%w: first completion: %w", ErrUpstreamUnavailable, err)
	}

	switch completion.Kind() {
	case llm.KindToolRequest:
		if completion.ToolCall.Name == WebSearchTool {
			return o.answerWithSearch(ctx, first, completion)
		}
		log.Warn("model requested an undeclared tool, using its text",
			zap.String("tool", completion.ToolCall.Name))
		fallthrough
	case llm.KindDirectAnswer:
		metrics.ChatOutcomes.WithLabelValues(metrics.OutcomeDirect).Inc()
		return &Result{
			Text:  strings.TrimSpace(completion.Text),
			Turns: first,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown completion kind %s", ErrUpstreamUnavailable, completion.Kind())
	}
}

func (o *Orchestrator) answerWithSearch(ctx context.Context, first []models.ConversationTurn, completion *llm.Completion) (*Result, error) {
	log := logger.FromContext(ctx)
	call := completion.ToolCall

	req, err := ParseFunctionCall(call, o.opts.DefaultResults, o.opts.MaxResultsLimit)
	if err != nil {
		log.Error("rejecting web_search call",
			zap.String("arguments", call.Arguments),
			zap.Error(err),
		)
		metrics.ChatOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}

	log.Info("executing web_search",
		zap.String("query", req.Query),
		zap.Int("max_results", req.MaxResults),
		zap.String("call_id", call.ID),
	)

	results := o.searcher.Search(ctx, req.Query, req.MaxResults)
	formatted := search.Format(results)

	second := make([]models.ConversationTurn, 0, len(first)+2)
	second = append(second, first...)
	second = append(second,
		models.ConversationTurn{
			Role:          models.RoleAssistant,
			Content:       completion.Text,
			FunctionName:  call.Name,
			ToolCallID:    call.ID,
			ToolArguments: call.Arguments,
		},
		models.ConversationTurn{
			Role:         models.RoleFunction,
			Content:      formatted,
			FunctionName: call.Name,
			ToolCallID:   call.ID,
		},
	)

	final, err := o.model.Complete(ctx, llm.CompletionRequest{
		Messages:    second,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.FollowUpMaxTokens,
	})
	if err != nil {
		metrics.ChatOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("%w: follow-up completion: %w", ErrUpstreamUnavailable, err)
	}

	metrics.ChatOutcomes.WithLabelValues(metrics.OutcomeSearched).Inc()
	return &Result{
		Text:        strings.TrimSpace(final.Text),
		Turns:       second,
		SearchQuery: req.Query,
	}, nil
}

// ValidateHistory checks caller-supplied turns. Only user and assistant
// turns are accepted; the system turn is always injected here.
func ValidateHistory(history []models.ConversationTurn) error {
	if history == nil {
		return fmt.Errorf("%w: messages array required", ErrInvalidInput)
	}
	for i, turn := range history {
		switch turn.Role {
		case models.RoleUser, models.RoleAssistant:
		default:
			return fmt.Errorf("%w: message %d has unsupported role %q", ErrInvalidInput, i, turn.Role)
		}
	}
	return nil
}
