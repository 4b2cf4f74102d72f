// Package toolset aggregates tools from multiple backend servers into one
// flat namespace and routes model-issued tool calls back to the owning
// server.
package toolset

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/backends"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "toolset")

var (
	// ErrDuplicateServer is returned when a server name is already registered.
	ErrDuplicateServer = errors.New("server already registered")
	// ErrUnknownTool is returned when the model requests a tool name not
	// present in the registry.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrUnknownServer is returned when a resolved server is no longer
	// registered.
	ErrUnknownServer = errors.New("unknown server")
	// ErrReservedServerName is returned when a backend tries to register
	// under the name reserved for in-process tools.
	ErrReservedServerName = errors.New("reserved server name")
	// ErrMalformedArguments is returned when tool-call arguments are not
	// parseable.
	ErrMalformedArguments = errors.New("malformed tool arguments")
)

// Separator joins the sanitized server name and tool name into a qualified
// name. Resolution never splits on it: the owner is recorded per descriptor
// at registration time, so a sanitized tool name containing the separator
// still routes correctly.
const Separator = "_"

// LocalServerName is the reserved server name for in-process tools.
const LocalServerName = "local"

// Descriptor is one tool advertised to the model.
type Descriptor struct {
	// QualifiedName is unique across the whole registry.
	QualifiedName string
	// Server is the registered name of the owning server.
	Server string
	// NativeName is the tool name as the owning server knows it.
	NativeName string
	// Description is prefixed with the owning server's name for
	// disambiguation.
	Description string
	// Parameters is the JSON schema of the call arguments.
	Parameters any
}

// binding is one registered backend with the descriptors it contributed.
type binding struct {
	name        string
	conn        backends.Connection
	descriptors []*Descriptor
}

// Registry owns the set of backend servers and the flattened, namespaced
// tool list exposed to the model. Registration happens during a one-time
// startup phase; afterwards the registry is a read-only lookup structure and
// safe for concurrent readers.
type Registry struct {
	servers    map[string]*binding
	localTools map[string]tools.ITool

	// byQualified is the descriptor-to-owner table; resolution is a lookup
	// here, not a string operation.
	byQualified map[string]*Descriptor
	flattened   []*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		servers:     make(map[string]*binding),
		localTools:  make(map[string]tools.ITool),
		byQualified: make(map[string]*Descriptor),
	}
}

// Register queries the connection for its tool list and adds the namespaced
// descriptors to the registry. The registry takes ownership of the
// connection and closes it on Close.
func (r *Registry) Register(ctx context.Context, serverName string, conn backends.Connection) error {
	// "local" routes to the in-process tool map, so a backend registered
	// under it would never receive calls.
	if serverName == LocalServerName {
		return errors.WithMessagef(ErrReservedServerName, "server %s", serverName)
	}
	if _, ok := r.servers[serverName]; ok {
		return errors.WithMessagef(ErrDuplicateServer, "server %s", serverName)
	}

	infos, err := conn.ListTools(ctx)
	if err != nil {
		return errors.WithMessagef(err, "failed to list tools on server %s", serverName)
	}

	b := &binding{
		name: serverName,
		conn: conn,
	}
	// Validate the whole batch before committing, so a collision does not
	// leave a partially registered server behind.
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		qualified := QualifiedName(serverName, info.Name)
		if seen[qualified] {
			return errors.Errorf("server %s: tool %s produces duplicate qualified name %s", serverName, info.Name, qualified)
		}
		if _, ok := r.byQualified[qualified]; ok {
			return errors.Errorf("server %s: tool %s produces duplicate qualified name %s", serverName, info.Name, qualified)
		}
		seen[qualified] = true
	}
	for _, info := range infos {
		d := r.newDescriptor(serverName, info.Name, info.Description, info.InputSchema)
		b.descriptors = append(b.descriptors, d)
	}
	r.servers[serverName] = b

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "registered",
		"server", serverName,
		"tools", len(b.descriptors),
	)
	return nil
}

// RegisterLocal adds in-process tools under the reserved "local" server
// name. Tools whose qualified name is already taken are skipped.
func (r *Registry) RegisterLocal(list ...tools.ITool) {
	for _, tool := range list {
		if _, ok := r.byQualified[QualifiedName(LocalServerName, tool.Name())]; ok {
			continue
		}
		d := r.newDescriptor(LocalServerName, tool.Name(), tool.Description(), tool.Parameters())
		r.localTools[d.NativeName] = tool
	}
}

// QualifiedName forms the globally unique tool identifier from the server
// name and the tool's native name.
func QualifiedName(serverName, toolName string) string {
	return SanitizeName(serverName) + Separator + SanitizeName(toolName)
}

func (r *Registry) newDescriptor(serverName, toolName, description string, params any) *Descriptor {
	d := &Descriptor{
		QualifiedName: QualifiedName(serverName, toolName),
		Server:        serverName,
		NativeName:    toolName,
		Description:   "[" + serverName + "] " + description,
		Parameters:    params,
	}
	r.byQualified[d.QualifiedName] = d
	r.flattened = append(r.flattened, d)
	return d
}

// Resolve returns the owning server and native tool name for a qualified
// name.
func (r *Registry) Resolve(qualifiedName string) (string, string, error) {
	d, ok := r.byQualified[qualifiedName]
	if !ok {
		return "", "", errors.WithMessagef(ErrUnknownTool, "tool %s", qualifiedName)
	}
	return d.Server, d.NativeName, nil
}

// Invoke routes a tool call to the owning server and returns its result
// normalized to a string. The arguments must be a JSON object.
func (r *Registry) Invoke(ctx context.Context, qualifiedName, argumentsJSON string) (string, error) {
	d, ok := r.byQualified[qualifiedName]
	if !ok {
		return "", errors.WithMessagef(ErrUnknownTool, "tool %s", qualifiedName)
	}

	if d.Server == LocalServerName {
		tool, ok := r.localTools[d.NativeName]
		if !ok {
			return "", errors.WithMessagef(ErrUnknownServer, "server %s for tool %s", d.Server, qualifiedName)
		}
		// local tools parse their own input
		if argumentsJSON != "" && !json.Valid([]byte(argumentsJSON)) {
			return "", errors.WithMessagef(ErrMalformedArguments, "tool %s", qualifiedName)
		}
		return tool.Call(ctx, argumentsJSON)
	}

	b, ok := r.servers[d.Server]
	if !ok {
		return "", errors.WithMessagef(ErrUnknownServer, "server %s for tool %s", d.Server, qualifiedName)
	}

	args, err := parseArguments(argumentsJSON)
	if err != nil {
		return "", errors.WithMessagef(ErrMalformedArguments, "tool %s: %s", qualifiedName, err.Error())
	}

	return b.conn.CallTool(ctx, d.NativeName, args)
}

func parseArguments(argumentsJSON string) (map[string]any, error) {
	if strings.TrimSpace(argumentsJSON) == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Descriptors returns the flattened descriptor list in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	return r.flattened
}

// Tools returns the flattened tool list advertised to the model.
func (r *Registry) Tools() []llms.Tool {
	list := make([]llms.Tool, 0, len(r.flattened))
	for _, d := range r.flattened {
		list = append(list, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.QualifiedName,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return list
}

// ServerNames returns the registered server names in registration order of
// the descriptor list.
func (r *Registry) ServerNames() []string {
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	return names
}

// Close closes every backend connection. It is safe to call more than once;
// all connections are attempted and the first error is returned.
func (r *Registry) Close() error {
	var firstErr error
	for name, b := range r.servers {
		if b.conn == nil {
			continue
		}
		if err := b.conn.Close(); err != nil && firstErr == nil {
			firstErr = errors.WithMessagef(err, "failed to close server %s", name)
		}
		b.conn = nil
	}
	return firstErr
}

// SanitizeName maps a server or tool name to an identifier-safe charset,
// replacing every character outside [A-Za-z0-9_-] with an underscore.
func SanitizeName(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z',
			c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9',
			c == '_', c == '-':
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
