package chat_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/backends"
	"github.com/effective-security/mcpchat/chat"
	"github.com/effective-security/mcpchat/mocks/mockbackends"
	"github.com/effective-security/mcpchat/mocks/mockllms"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/store"
	"github.com/effective-security/mcpchat/toolset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newModel(ctrl *gomock.Controller) *mockllms.MockModel {
	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetName().Return("gpt-4o").AnyTimes()
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	return model
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: content, StopReason: "stop"},
		},
	}
}

func toolCallResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				StopReason: "tool_calls",
				ToolCalls: []llms.ToolCall{
					{
						ID:   id,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      name,
							Arguments: args,
						},
					},
				},
			},
		},
	}
}

func Test_Chat_DirectAnswer(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, messages, 2)
			assert.Equal(t, llms.RoleSystem, messages[0].Role)
			assert.Equal(t, llms.RoleHuman, messages[1].Role)
			assert.Equal(t, "What is 2+2?\n", messages[1].GetContent())
			return textResponse("4"), nil
		})

	c := chat.New(model, toolset.NewRegistry())
	answer, err := c.ProcessQuery(ctx, "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", answer)
}

func Test_Chat_ToolRound(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	conn := mockbackends.NewMockConnection(ctrl)
	conn.EXPECT().ListTools(gomock.Any()).Return([]backends.ToolInfo{
		{Name: "add", Description: "Add two numbers"},
	}, nil)
	conn.EXPECT().
		CallTool(gomock.Any(), "add", map[string]any{"a": float64(2), "b": float64(2)}).
		Return("4", nil)

	registry := toolset.NewRegistry()
	require.NoError(t, registry.Register(ctx, "math", conn))

	model := newModel(ctrl)
	first := model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			// the flattened tool list is advertised to the model
			opts := &llms.CallOptions{}
			for _, opt := range options {
				opt(opts)
			}
			require.Len(t, opts.Tools, 1)
			assert.Equal(t, "math_add", opts.Tools[0].Function.Name)
			return toolCallResponse("call_1", "math_add", `{"a": 2, "b": 2}`), nil
		})
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		After(first).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// exactly two messages appended per tool call, in order,
			// correlated by the provider-assigned call ID
			require.Len(t, messages, 4)
			assert.Equal(t, llms.RoleAI, messages[2].Role)
			require.Len(t, messages[2].Parts, 1)
			call, ok := messages[2].Parts[0].(llms.ToolCall)
			require.True(t, ok)
			assert.Equal(t, "call_1", call.ID)
			assert.Equal(t, "math_add", call.FunctionCall.Name)

			assert.Equal(t, llms.RoleTool, messages[3].Role)
			require.Len(t, messages[3].Parts, 1)
			resp, ok := messages[3].Parts[0].(llms.ToolCallResponse)
			require.True(t, ok)
			assert.Equal(t, "call_1", resp.ToolCallID)
			assert.Equal(t, "math_add", resp.Name)
			assert.Equal(t, "4", resp.Content)
			return textResponse("The answer is 4"), nil
		})

	c := chat.New(model, registry)
	answer, err := c.ProcessQuery(ctx, "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4", answer)
}

func Test_Chat_ToolFailureAbortsQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	conn := mockbackends.NewMockConnection(ctrl)
	conn.EXPECT().ListTools(gomock.Any()).Return([]backends.ToolInfo{
		{Name: "add", Description: "Add two numbers"},
	}, nil)
	conn.EXPECT().
		CallTool(gomock.Any(), "add", gomock.Any()).
		Return("", errors.New("backend crashed"))

	registry := toolset.NewRegistry()
	require.NoError(t, registry.Register(ctx, "math", conn))

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse("call_1", "math_add", `{"a": 1, "b": 1}`), nil)

	c := chat.New(model, registry)
	_, err := c.ProcessQuery(ctx, "What is 1+1?")
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to call tool math_add")
	assert.ErrorContains(t, err, "backend crashed")
}

func Test_Chat_UnknownToolAbortsQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	conn := mockbackends.NewMockConnection(ctrl)
	conn.EXPECT().ListTools(gomock.Any()).Return([]backends.ToolInfo{
		{Name: "add", Description: "Add two numbers"},
	}, nil)

	registry := toolset.NewRegistry()
	require.NoError(t, registry.Register(ctx, "math", conn))

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse("call_1", "math_multiply", `{}`), nil)

	c := chat.New(model, registry)
	_, err := c.ProcessQuery(ctx, "What is 3*3?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, toolset.ErrUnknownTool))
}

func Test_Chat_RoundLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	conn := mockbackends.NewMockConnection(ctrl)
	conn.EXPECT().ListTools(gomock.Any()).Return([]backends.ToolInfo{
		{Name: "add", Description: "Add two numbers"},
	}, nil)
	conn.EXPECT().
		CallTool(gomock.Any(), "add", gomock.Any()).
		Return("2", nil).
		Times(3)

	registry := toolset.NewRegistry()
	require.NoError(t, registry.Register(ctx, "math", conn))

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse("call_1", "math_add", `{"a": 1, "b": 1}`), nil).
		Times(3)

	c := chat.New(model, registry, chat.WithMaxRounds(3))
	_, err := c.ProcessQuery(ctx, "keep adding")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chat.ErrRoundLimitExceeded))
}

func Test_Chat_NoFunctionCallingSupport(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	conn := mockbackends.NewMockConnection(ctrl)
	conn.EXPECT().ListTools(gomock.Any()).Return([]backends.ToolInfo{
		{Name: "add", Description: "Add two numbers"},
	}, nil)

	registry := toolset.NewRegistry()
	require.NoError(t, registry.Register(ctx, "math", conn))

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetName().Return("sonar").AnyTimes()
	model.EXPECT().GetProviderType().Return(llms.ProviderPerplexity).AnyTimes()

	c := chat.New(model, registry)
	_, err := c.ProcessQuery(ctx, "What is 2+2?")
	require.Error(t, err)
	assert.ErrorContains(t, err, "does not support function calling")
}

func Test_Chat_StoreReceivesFinalPair(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("blue"), nil)

	st := store.NewMemoryStore()
	c := chat.New(model, toolset.NewRegistry(), chat.WithStore(st, "chat1"))

	answer, err := c.ProcessQuery(ctx, "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "blue", answer)

	msgs := st.Messages(ctx, "chat1")
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[1].Role)
	assert.Equal(t, "blue\n", msgs[1].GetContent())
}

func Test_Config_DefaultCallback(t *testing.T) {
	cfg := chat.NewConfig()
	require.NotNil(t, cfg.CallbackHandler)
	assert.IsType(t, &chat.NoopCallback{}, cfg.CallbackHandler)
}

func Test_PrinterCallback_Verbose(t *testing.T) {
	ctx := context.Background()
	history := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant."),
		llms.MessageFromTextParts(llms.RoleHuman, "What is 2+2?"),
	}

	var quiet strings.Builder
	pc := chat.NewPrinterCallback(&quiet)
	pc.OnLLMCall(ctx, "gpt-4o", history)
	assert.Empty(t, quiet.String())

	var verbose strings.Builder
	pc = chat.NewPrinterCallback(&verbose)
	pc.Verbose = true
	pc.OnLLMCall(ctx, "gpt-4o", history)
	out := verbose.String()
	assert.Contains(t, out, "[calling gpt-4o with 2 messages]")
	assert.Contains(t, out, "HUMAN: What is 2+2?")
}

type failingStore struct {
	store.MessageStore
}

func (failingStore) Add(_ context.Context, _ string, _ ...llms.Message) error {
	return errors.New("redis: connection refused")
}

func Test_Chat_StoreFailureDoesNotFailQuery(t *testing.T) {
	ctrl := gomock.NewController(t)

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("blue"), nil)

	c := chat.New(model, toolset.NewRegistry(), chat.WithStore(failingStore{}, "chat1"))

	answer, err := c.ProcessQuery(context.Background(), "What color is the sky?")
	require.NoError(t, err)
	assert.Equal(t, "blue", answer)
}

func Test_Chat_EmptyResponse(t *testing.T) {
	ctrl := gomock.NewController(t)

	model := newModel(ctrl)
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{}, nil)

	c := chat.New(model, toolset.NewRegistry())
	_, err := c.ProcessQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorContains(t, err, "empty response")
}
