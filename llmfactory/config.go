package llmfactory

import (
	"github.com/effective-security/x/configloader"
)

type Config struct {
	// DefaultProvider names the provider used when the caller does not
	// specify one. Empty means the first configured provider.
	DefaultProvider string `json:"default_provider,omitempty" yaml:"default_provider,omitempty"`

	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
}

// ProviderConfig describes a single LLM provider.
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	// Provider specifies the provider type:
	// OPENAI|ANTHROPIC|PERPLEXITY
	Provider        string       `json:"provider" yaml:"provider"`
	Token           string       `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string       `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string     `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	OpenAI          OpenAIConfig `json:"open_ai" yaml:"open_ai"`
}

// OpenAIConfig specifies options for OpenAI-compatible endpoints.
type OpenAIConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
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
