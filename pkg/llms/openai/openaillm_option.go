package openai

import (
	"net/http"

	"github.com/effective-security/mcpchat/pkg/llms"
)

const (
	// TokenEnvVarName is the name of the environment variable holding the API key.
	TokenEnvVarName = "OPENAI_API_KEY" //nolint:gosec

	// DefaultBaseURL is the OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"
)

// Options is a set of options for the OpenAI client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	OrgID      string
	HTTPClient *http.Client

	// ProviderType allows OpenAI-compatible endpoints (e.g. Perplexity)
	// to report their own provider type.
	ProviderType llms.ProviderType
}

// Option is a function that configures Options.
type Option func(*Options)

// WithToken passes the API token.
// If not set, the token is read from the OPENAI_API_KEY environment variable.
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

// WithBaseURL passes a custom API endpoint, for Azure or OpenAI-compatible
// providers.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization ID.
func WithOrganization(orgID string) Option {
	return func(opts *Options) {
		opts.OrgID = orgID
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithProviderType overrides the reported provider type for
// OpenAI-compatible endpoints.
func WithProviderType(pt llms.ProviderType) Option {
	return func(opts *Options) {
		opts.ProviderType = pt
	}
}
