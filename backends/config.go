package backends

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
)

// Config describes the set of tool servers to launch at startup,
// keyed by server name.
type Config struct {
	Servers map[string]*ServerSpec `json:"servers" yaml:"servers"`
}

// ServerSpec describes how to launch one tool server.
// Either Script or Command must be set.
type ServerSpec struct {
	// Script is a shorthand for a single executable script: .py files run
	// under python3, .js files under node, anything else is executed directly.
	Script string `json:"script,omitempty" yaml:"script,omitempty"`

	// Command, Args and Env form a full launch spec.
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServerNames returns the configured server names, sorted for deterministic
// startup order.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LaunchCommand resolves the spec to the command and arguments to execute.
func (s *ServerSpec) LaunchCommand() (string, []string, error) {
	if s.Command != "" {
		return s.Command, s.Args, nil
	}
	if s.Script == "" {
		return "", nil, errors.New("server spec requires either script or command")
	}

	switch {
	case strings.HasSuffix(s.Script, ".py"):
		return "python3", []string{s.Script}, nil
	case strings.HasSuffix(s.Script, ".js"):
		return "node", []string{s.Script}, nil
	default:
		return s.Script, nil, nil
	}
}

// Environ returns the spec's environment in "key=value" form, sorted for
// deterministic launches.
func (s *ServerSpec) Environ() []string {
	if len(s.Env) == 0 {
		return nil
	}
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)
	return env
}
