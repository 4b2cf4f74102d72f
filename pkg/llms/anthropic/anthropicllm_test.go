package anthropic_test

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/pkg/llms/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New(t *testing.T) {
	llm, err := anthropic.New(
		anthropic.WithToken("sk-ant-test"),
		anthropic.WithModel("claude-sonnet-4-20250514"),
	)
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", llm.GetName())
	assert.Equal(t, llms.ProviderAnthropic, llm.GetProviderType())

	_, err = anthropic.New(anthropic.WithToken("sk-ant-test"))
	assert.EqualError(t, err, "anthropic: model is required")
}

func Test_ProcessMessages(t *testing.T) {
	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful assistant."),
		llms.MessageFromTextParts(llms.RoleHuman, "What is 2+2?"),
		llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
			ID:   "toolu_1",
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      "math_add",
				Arguments: `{"a":2,"b":2}`,
			},
		}),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: "toolu_1",
			Name:       "math_add",
			Content:    "4",
		}),
	}

	sdkMessages, systemPrompt, err := anthropic.ProcessMessages(messages)
	require.NoError(t, err)

	// the system message is extracted, not part of the message list
	assert.Equal(t, "You are a helpful assistant.", systemPrompt)
	require.Len(t, sdkMessages, 3)

	assert.Equal(t, sdk.MessageParamRoleUser, sdkMessages[0].Role)

	assert.Equal(t, sdk.MessageParamRoleAssistant, sdkMessages[1].Role)
	require.Len(t, sdkMessages[1].Content, 1)
	toolUse := sdkMessages[1].Content[0].OfToolUse
	require.NotNil(t, toolUse)
	assert.Equal(t, "toolu_1", toolUse.ID)
	assert.Equal(t, "math_add", toolUse.Name)

	// tool results go back as user messages with a tool_result block
	assert.Equal(t, sdk.MessageParamRoleUser, sdkMessages[2].Role)
	require.Len(t, sdkMessages[2].Content, 1)
	toolResult := sdkMessages[2].Content[0].OfToolResult
	require.NotNil(t, toolResult)
	assert.Equal(t, "toolu_1", toolResult.ToolUseID)
}

func Test_ProcessMessages_MultipleSystem(t *testing.T) {
	messages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "First."),
		llms.MessageFromTextParts(llms.RoleSystem, "Second."),
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
	}
	sdkMessages, systemPrompt, err := anthropic.ProcessMessages(messages)
	require.NoError(t, err)
	assert.Equal(t, "First.\nSecond.", systemPrompt)
	assert.Len(t, sdkMessages, 1)
}

func Test_ToTools(t *testing.T) {
	sdkTools, err := anthropic.ToTools(nil)
	require.NoError(t, err)
	assert.Nil(t, sdkTools)

	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "files_read",
				Description: "[files] Read a file",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{"type": "string"},
					},
					"required": []any{"path"},
				},
			},
		},
	}
	sdkTools, err = anthropic.ToTools(tools)
	require.NoError(t, err)
	require.Len(t, sdkTools, 1)

	tool := sdkTools[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "files_read", tool.Name)
	assert.Equal(t, []string{"path"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "path")

	_, err = anthropic.ToTools([]llms.Tool{{Type: "computer"}})
	assert.ErrorContains(t, err, `tool type "computer" not supported`)
}
