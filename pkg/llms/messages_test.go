package llms_test

import (
	"testing"

	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/stretchr/testify/assert"
)

func TestTextParts(t *testing.T) {
	t.Parallel()
	mc := llms.MessageFromTextParts(llms.RoleHuman, "a", "b", "c")
	exp := llms.Message{
		Role: llms.RoleHuman,
		Parts: []llms.ContentPart{
			llms.TextContent{Text: "a"},
			llms.TextContent{Text: "b"},
			llms.TextContent{Text: "c"},
		},
	}
	assert.Equal(t, exp, mc)
	assert.Equal(t, "a\nb\nc\n", mc.GetContent())
}

func Test_MessageFromToolCalls(t *testing.T) {
	t.Parallel()
	call := llms.ToolCall{
		ID:   "call_1",
		Type: "function",
		FunctionCall: &llms.FunctionCall{
			Name:      "files_read",
			Arguments: `{"path":"a.txt"}`,
		},
	}
	mc := llms.MessageFromToolCalls(llms.RoleAI, call)
	assert.Equal(t, llms.RoleAI, mc.Role)
	assert.Equal(t, []llms.ContentPart{call}, mc.Parts)
	assert.Equal(t, `ToolCall: call_1 (files_read), input: {"path":"a.txt"}`, call.String())
}

func Test_MessageFromToolResponse(t *testing.T) {
	t.Parallel()
	resp := llms.ToolCallResponse{
		ToolCallID: "call_1",
		Name:       "files_read",
		Content:    "file contents",
	}
	mc := llms.MessageFromToolResponse(llms.RoleTool, resp)
	assert.Equal(t, llms.RoleTool, mc.Role)
	assert.Equal(t, []llms.ContentPart{resp}, mc.Parts)
	assert.Equal(t, "ToolCallResponse: call_1 (files_read), response size: 13", resp.String())
}

func Test_GetContent_Mixed(t *testing.T) {
	t.Parallel()
	mc := llms.MessageFromParts(llms.RoleAI,
		llms.TextPart("before"),
		llms.ToolCall{
			ID:           "call_1",
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "f", Arguments: "{}"},
		},
	)
	content := mc.GetContent()
	assert.Contains(t, content, "before")
	assert.Contains(t, content, "Tool Call: ")
}

func Test_ProviderCapabilities(t *testing.T) {
	t.Parallel()
	assert.True(t, llms.ProviderOpenAI.Supports(llms.CapabilityFunctionCalling))
	assert.True(t, llms.ProviderAnthropic.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderPerplexity.Supports(llms.CapabilityFunctionCalling))
	assert.True(t, llms.ProviderPerplexity.Supports(llms.CapabilityText))
}

func TestOptions(t *testing.T) {
	t.Parallel()
	tools := []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name: "test",
			},
		},
	}
	opts := []llms.CallOption{
		llms.WithModel("test"),
		llms.WithMaxTokens(100),
		llms.WithTemperature(0.5),
		llms.WithStopWords([]string{"stop"}),
		llms.WithTools(tools),
		llms.WithToolChoice("auto"),
	}

	o := &llms.CallOptions{}
	for _, opt := range opts {
		opt(o)
	}
	assert.Equal(t, "test", o.Model)
	assert.Equal(t, 100, o.MaxTokens)
	assert.Equal(t, 0.5, o.Temperature)
	assert.Equal(t, []string{"stop"}, o.StopWords)
	assert.Equal(t, tools, o.Tools)
	assert.Equal(t, "auto", o.ToolChoice)
}
