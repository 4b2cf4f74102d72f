// Package chat drives the multi-round conversation protocol: it sends the
// message history and the flattened tool list to the model, routes every
// tool call the model issues through the registry, feeds results back into
// the history, and repeats until the model stops requesting tools.
package chat

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/pkg/llmutils"
	"github.com/effective-security/mcpchat/pkg/metricskey"
	"github.com/effective-security/mcpchat/toolset"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "chat")

// ErrRoundLimitExceeded is returned when the model keeps requesting tools
// past the configured round cap.
var ErrRoundLimitExceeded = errors.New("round limit exceeded")

// Chat answers user queries against one model and one tool registry.
// A Chat processes one query at a time; the registry it shares is read-only
// after startup, so separate Chat instances may share one registry.
type Chat struct {
	llm      llms.Model
	registry *toolset.Registry
	cfg      *Config
}

// New creates a Chat for the given model and registry.
func New(llmModel llms.Model, registry *toolset.Registry, options ...Option) *Chat {
	return &Chat{
		llm:      llmModel,
		registry: registry,
		cfg:      NewConfig(options...),
	}
}

// ProcessQuery runs one query to completion and returns the final answer.
// The message history lives only for the duration of the call; each query
// starts from a fresh system+user seed.
func (c *Chat) ProcessQuery(ctx context.Context, input string) (string, error) {
	started := time.Now()
	modelName := c.llm.GetName()
	defer metricskey.PerfQuery.MeasureSince(started, modelName)

	callback := c.cfg.CallbackHandler
	callback.OnQueryStart(ctx, input)

	answer, err := c.run(ctx, input)
	if err != nil {
		metricskey.StatsQueriesFailed.IncrCounter(1, modelName)
		callback.OnQueryError(ctx, input, err)
		return "", err
	}

	metricskey.StatsQueriesSucceeded.IncrCounter(1, modelName)
	callback.OnQueryEnd(ctx, input, answer)

	if c.cfg.Store != nil {
		err = c.cfg.Store.Add(ctx, c.cfg.ChatID,
			llms.MessageFromTextParts(llms.RoleHuman, input),
			llms.MessageFromTextParts(llms.RoleAI, answer),
		)
		if err != nil {
			// the answer is already produced, a store failure must not fail
			// the query
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "failed_to_store_messages",
				"chat_id", c.cfg.ChatID,
				"err", err.Error(),
			)
		}
	}
	return answer, nil
}

func (c *Chat) run(ctx context.Context, input string) (string, error) {
	if !c.llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) && len(c.registry.Tools()) > 0 {
		return "", errors.Errorf("model %s: the LLM does not support function calling", c.llm.GetName())
	}

	history := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, c.cfg.SystemPrompt),
		llms.MessageFromTextParts(llms.RoleHuman, input),
	}

	callOpts := c.callOptions()
	modelName := c.llm.GetName()

	for round := 0; round < c.cfg.MaxRounds; round++ {
		bytesSent := llmutils.CountMessagesContentSize(history)
		if bytesSent > c.cfg.MaxContentSize {
			return "", errors.Errorf("model %s: the content size exceeded limit", modelName)
		}

		c.cfg.CallbackHandler.OnLLMCall(ctx, modelName, history)
		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(history)), modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), modelName)

		resp, err := c.llm.GenerateContent(ctx, history, callOpts...)
		if err != nil {
			return "", errors.Wrapf(err, "failed to generate content from LLM")
		}
		if len(resp.Choices) == 0 {
			return "", errors.Errorf("model %s: LLM returned empty response", modelName)
		}

		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), modelName)
		tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), modelName)

		toolCalls := collectToolCalls(resp)
		if len(toolCalls) == 0 {
			// terminal round
			return finalContent(resp), nil
		}

		// Text produced in a tool-issuing round is not surfaced; only the
		// terminal round's content becomes the answer.
		history, err = c.dispatchToolCalls(ctx, history, toolCalls)
		if err != nil {
			return "", err
		}
	}

	return "", errors.WithMessagef(ErrRoundLimitExceeded, "model %s: no final answer after %d rounds", modelName, c.cfg.MaxRounds)
}

// dispatchToolCalls executes the calls strictly sequentially, in the order
// the model returned them, to preserve any side-effect ordering a backend
// may depend on. For every call, one AI message carrying the single call and
// one tool message carrying its result are appended to the history.
func (c *Chat) dispatchToolCalls(ctx context.Context, history []llms.Message, toolCalls []llms.ToolCall) ([]llms.Message, error) {
	for _, toolCall := range toolCalls {
		toolName := toolCall.FunctionCall.Name
		toolArgs := toolCall.FunctionCall.Arguments

		c.cfg.CallbackHandler.OnToolStart(ctx, toolName, toolArgs)

		started := time.Now()
		result, err := c.registry.Invoke(ctx, toolName, toolArgs)
		metricskey.PerfToolCall.MeasureSince(started, toolName)
		if err != nil {
			metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_call_failed",
				"tool", toolName,
				"err", err.Error(),
			)
			// No partial tool-result message is appended for a failed call;
			// the whole query fails.
			return history, errors.WithMessagef(err, "failed to call tool %s", toolName)
		}
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)

		c.cfg.CallbackHandler.OnToolEnd(ctx, toolName, toolArgs, result)

		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "tool_call_response",
			"tool_call_id", toolCall.ID,
			"tool", toolName,
			"content_length", len(result),
		)

		history = append(history,
			llms.MessageFromToolCalls(llms.RoleAI, toolCall),
			llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
				ToolCallID: toolCall.ID,
				Name:       toolName,
				Content:    result,
			}),
		)
	}
	return history, nil
}

func (c *Chat) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if c.cfg.Model != "" {
		opts = append(opts, llms.WithModel(c.cfg.Model))
	}
	if c.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.cfg.MaxTokens))
	}
	if c.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.cfg.Temperature))
	}
	if tools := c.registry.Tools(); len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools), llms.WithToolChoice("auto"))
	}
	return opts
}

func collectToolCalls(resp *llms.ContentResponse) []llms.ToolCall {
	var toolCalls []llms.ToolCall
	for _, choice := range resp.Choices {
		toolCalls = append(toolCalls, choice.ToolCalls...)
	}
	return toolCalls
}

// finalContent selects the textual content of the terminal round. Providers
// returning multiple content blocks contribute the first non-empty one.
func finalContent(resp *llms.ContentResponse) string {
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			return choice.Content
		}
	}
	return resp.Choices[0].Content
}
