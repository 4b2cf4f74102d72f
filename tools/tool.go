package tools

import (
	"context"
)

// ITool is a tool that runs in-process, registrable alongside tools
// contributed by backend servers.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() any

	Call(context.Context, string) (string, error)
}

// Tool is a typed tool with a structured request and response.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}
