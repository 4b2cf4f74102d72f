package openai

import (
	"context"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/pkg/llms"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var (
	ErrEmptyResponse = errors.New("openai: no response")
	ErrMissingToken  = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
)

// LLM is an OpenAI chat model client.
type LLM struct {
	client  openaisdk.Client
	options *Options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM using the official OpenAI SDK.
// The API key is taken from the WithToken option or the OPENAI_API_KEY
// environment variable.
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		Token:        os.Getenv(TokenEnvVarName),
		BaseURL:      DefaultBaseURL,
		ProviderType: llms.ProviderOpenAI,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, ErrMissingToken
	}
	if options.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
	}
	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}
	if options.OrgID != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(options.OrgID))
	}
	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}

	return &LLM{
		client:  openaisdk.NewClient(sdkOpts...),
		options: options,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.options.ProviderType
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.options.Model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openaisdk.Float(opts.Temperature)
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: opts.StopWords,
		}
	}

	tools, err := ToTools(opts.Tools)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		params.Tools = tools
		if choice, ok := opts.ToolChoice.(string); ok && choice != "" {
			params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openaisdk.String(choice),
			}
		}
	}

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: string(c.FinishReason),
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		choices[i] = choice
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// ProcessMessages converts generic messages to OpenAI SDK message parameters.
// OpenAI accepts the system message in-line, so no extraction is needed.
func ProcessMessages(messages []llms.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	chatMsgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llms.RoleSystem:
			chatMsgs = append(chatMsgs, openaisdk.SystemMessage(msg.GetContent()))
		case llms.RoleHuman:
			chatMsgs = append(chatMsgs, openaisdk.UserMessage(msg.GetContent()))
		case llms.RoleAI:
			chatMsg, err := handleAIMessage(msg)
			if err != nil {
				return nil, err
			}
			chatMsgs = append(chatMsgs, chatMsg)
		case llms.RoleTool:
			if len(msg.Parts) != 1 {
				return nil, errors.Errorf("openai: expected exactly one part for role %v, got %d", msg.Role, len(msg.Parts))
			}
			resp, ok := msg.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Errorf("openai: expected part of type ToolCallResponse for role %v, got %T", msg.Role, msg.Parts[0])
			}
			chatMsgs = append(chatMsgs, openaisdk.ToolMessage(resp.Content, resp.ToolCallID))
		default:
			return nil, errors.Errorf("openai: role %v not supported", msg.Role)
		}
	}
	return chatMsgs, nil
}

func handleAIMessage(msg llms.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	var text string
	var toolCalls []openaisdk.ChatCompletionMessageToolCallUnionParam
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			text += p.Text
		case llms.ToolCall:
			toolCalls = append(toolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
					ID: p.ID,
					Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      p.FunctionCall.Name,
						Arguments: p.FunctionCall.Arguments,
					},
				},
			})
		default:
			return openaisdk.ChatCompletionMessageParamUnion{}, errors.Errorf("openai: unsupported AI message part type: %T", part)
		}
	}

	if len(toolCalls) == 0 {
		return openaisdk.AssistantMessage(text), nil
	}

	assistant := openaisdk.ChatCompletionAssistantMessageParam{
		ToolCalls: toolCalls,
	}
	if text != "" {
		assistant.Content = openaisdk.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openaisdk.String(text),
		}
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}, nil
}

// ToTools converts LLM tool definitions to OpenAI SDK tool parameters.
func ToTools(tools []llms.Tool) ([]openaisdk.ChatCompletionToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	sdkTools := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("openai: tool type %q not supported", tool.Type)
		}
		params, err := toFunctionParameters(tool.Function.Parameters)
		if err != nil {
			return nil, errors.WithMessagef(err, "openai: invalid parameters for tool %s", tool.Function.Name)
		}
		sdkTools = append(sdkTools, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openaisdk.String(tool.Function.Description),
			Parameters:  params,
		}))
	}
	return sdkTools, nil
}

// toFunctionParameters converts an arbitrary schema value into the map form
// the SDK expects.
func toFunctionParameters(schema any) (shared.FunctionParameters, error) {
	if schema == nil {
		return nil, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return shared.FunctionParameters(m), nil
	}
	bs, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}
	var m map[string]any
	if err := json.Unmarshal(bs, &m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal schema")
	}
	return shared.FunctionParameters(m), nil
}
