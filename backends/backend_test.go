package backends_test

import (
	"testing"

	"github.com/effective-security/mcpchat/backends"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
)

func Test_FlattenContent(t *testing.T) {
	assert.Equal(t, "", backends.FlattenContent(nil))

	text := backends.FlattenContent([]mcp.Content{
		mcp.NewTextContent("line one"),
		mcp.NewTextContent("line two"),
	})
	assert.Equal(t, "line one\nline two", text)

	mixed := backends.FlattenContent([]mcp.Content{
		mcp.NewTextContent("header"),
		mcp.NewImageContent("aGk=", "image/png"),
	})
	assert.Contains(t, mixed, "header\n")
	assert.Contains(t, mixed, "image/png")
}
