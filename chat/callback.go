package chat

import (
	"context"
	"fmt"
	"io"

	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/pkg/llmutils"
)

// Callback is notified of query, model and tool events during a query.
type Callback interface {
	OnQueryStart(ctx context.Context, input string)
	OnQueryEnd(ctx context.Context, input, answer string)
	OnQueryError(ctx context.Context, input string, err error)
	OnLLMCall(ctx context.Context, model string, messages []llms.Message)
	OnToolStart(ctx context.Context, qualifiedName, arguments string)
	OnToolEnd(ctx context.Context, qualifiedName, arguments, output string)
}

// NoopCallback does nothing.
type NoopCallback struct{}

func NewNoopCallback() *NoopCallback {
	return &NoopCallback{}
}

var _ Callback = (*NoopCallback)(nil)

func (l *NoopCallback) OnQueryStart(ctx context.Context, input string)              {}
func (l *NoopCallback) OnQueryEnd(ctx context.Context, input, answer string)        {}
func (l *NoopCallback) OnQueryError(ctx context.Context, input string, err error)   {}
func (l *NoopCallback) OnLLMCall(ctx context.Context, model string, _ []llms.Message) {
}
func (l *NoopCallback) OnToolStart(ctx context.Context, qualifiedName, arguments string) {}
func (l *NoopCallback) OnToolEnd(ctx context.Context, qualifiedName, arguments, output string) {
}

// PrinterCallback prints events to the Writer. Used by the interactive
// console to surface tool activity while a query runs. With Verbose set it
// also dumps the full message history before every model call.
type PrinterCallback struct {
	Out     io.Writer
	Verbose bool
}

func NewPrinterCallback(out io.Writer) *PrinterCallback {
	return &PrinterCallback{Out: out}
}

var _ Callback = (*PrinterCallback)(nil)

func (l *PrinterCallback) OnQueryStart(ctx context.Context, input string) {}

func (l *PrinterCallback) OnQueryEnd(ctx context.Context, input, answer string) {}

func (l *PrinterCallback) OnQueryError(ctx context.Context, input string, err error) {
	fmt.Fprintf(l.Out, "error: %s\n", err.Error())
}

func (l *PrinterCallback) OnLLMCall(ctx context.Context, model string, messages []llms.Message) {
	if l.Verbose {
		fmt.Fprintf(l.Out, "[calling %s with %d messages]\n", model, len(messages))
		llmutils.PrintMessages(l.Out, messages)
	}
}

func (l *PrinterCallback) OnToolStart(ctx context.Context, qualifiedName, arguments string) {
	fmt.Fprintf(l.Out, "[calling tool %s with args %s]\n", qualifiedName, arguments)
}

func (l *PrinterCallback) OnToolEnd(ctx context.Context, qualifiedName, arguments, output string) {
}
