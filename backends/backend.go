// Package backends connects to tool servers running as subprocesses and
// exposes their tools over a narrow request/response contract. The wire
// protocol (MCP over stdio) is delegated to the mcp-go client; this package
// owns process launch specs and the tool-listing handshake.
package backends

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

//go:generate mockgen -source=backend.go -destination=../mocks/mockbackends/backends_mock.gen.go -package mockbackends

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "backends")

// ErrStartupFailed is returned when a tool server fails to launch or to
// complete the tool-listing handshake. Callers must treat it as fatal:
// a partially registered tool set silently changes model behavior.
var ErrStartupFailed = errors.New("backend startup failed")

// ToolInfo is one tool advertised by a server.
type ToolInfo struct {
	Name        string
	Description string
	// InputSchema is the JSON schema of the call arguments, kept as the raw
	// structure received from the server.
	InputSchema any
}

// Connection is one live connection to a tool server.
type Connection interface {
	// ListTools returns the tools the server advertises.
	ListTools(ctx context.Context) ([]ToolInfo, error)
	// CallTool invokes a tool by its native name with parsed arguments and
	// returns the result normalized to a string.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	// Close terminates the connection and the server process.
	Close() error
}

// conn wraps an mcp-go stdio client.
type conn struct {
	name   string
	client *mcpclient.Client
}

var _ Connection = (*conn)(nil)

// Dial launches the tool server described by spec, performs the initialize
// handshake and verifies the server responds to tools/list before returning.
func Dial(ctx context.Context, name string, spec *ServerSpec) (Connection, error) {
	command, args, err := spec.LaunchCommand()
	if err != nil {
		return nil, errors.WithMessagef(ErrStartupFailed, "server %s: %s", name, err.Error())
	}

	cli, err := mcpclient.NewStdioMCPClient(command, spec.Environ(), args...)
	if err != nil {
		return nil, errors.WithMessagef(ErrStartupFailed, "server %s: failed to launch %s: %s", name, command, err.Error())
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "mcpchat",
		Version: "1.0.0",
	}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, errors.WithMessagef(ErrStartupFailed, "server %s: initialize handshake failed: %s", name, err.Error())
	}

	c := &conn{
		name:   name,
		client: cli,
	}
	if _, err := c.ListTools(ctx); err != nil {
		_ = cli.Close()
		return nil, errors.WithMessagef(ErrStartupFailed, "server %s: tools/list failed: %s", name, err.Error())
	}

	logger.KV(xlog.DEBUG,
		"status", "connected",
		"server", name,
		"command", command,
	)
	return c, nil
}

func (c *conn) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to list tools on server %s", c.name)
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools = append(tools, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return tools, nil
}

func (c *conn) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		return "", errors.WithMessagef(err, "failed to call tool %s on server %s", name, c.name)
	}

	content := FlattenContent(result.Content)
	if result.IsError {
		return "", errors.Errorf("tool %s on server %s reported an error: %s", name, c.name, content)
	}
	return content, nil
}

func (c *conn) Close() error {
	logger.KV(xlog.DEBUG, "status", "closing", "server", c.name)
	return c.client.Close()
}

// FlattenContent normalizes a tool result payload to a string: text blocks
// are concatenated, anything else is serialized to JSON.
func FlattenContent(blocks []mcp.Content) string {
	var sb strings.Builder
	for _, block := range blocks {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		switch b := block.(type) {
		case mcp.TextContent:
			sb.WriteString(b.Text)
		case *mcp.TextContent:
			sb.WriteString(b.Text)
		default:
			bs, err := json.Marshal(block)
			if err != nil {
				continue
			}
			sb.Write(bs)
		}
	}
	return sb.String()
}
