package anthropic

import (
	"net/http"
)

const (
	// TokenEnvVarName is the name of the environment variable holding the API key.
	TokenEnvVarName = "ANTHROPIC_API_KEY" //nolint:gosec
)

// Options is a set of options for the Anthropic client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	HTTPClient *http.Client

	// AnthropicBetaHeader adds the Beta header to support extended options.
	AnthropicBetaHeader string
}

// Option is a function that configures Options.
type Option func(*Options)

// WithToken passes the API token.
// If not set, the token is read from the ANTHROPIC_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel passes the model to use.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL passes a custom API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithAnthropicBetaHeader adds the Anthropic Beta header.
func WithAnthropicBetaHeader(val string) Option {
	return func(opts *Options) {
		opts.AnthropicBetaHeader = val
	}
}
