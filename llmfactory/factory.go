package llmfactory

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpchat/pkg/llms"
	"github.com/effective-security/mcpchat/pkg/llms/anthropic"
	"github.com/effective-security/mcpchat/pkg/llms/openai"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpchat", "llmfactory")

type Factory interface {
	DefaultModel() (llms.Model, error)
	ModelByType(typ llms.ProviderType) (llms.Model, error)
	ModelByName(name string) (llms.Model, error)
}

// Load returns a Factory from a config file
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	byType map[llms.ProviderType]llms.Model
	byName map[string]llms.Model
	lock   sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[llms.ProviderType]llms.Model),
		byName: make(map[string]llms.Model),
	}
	return f
}

// NewLLM creates a model client from a provider config
func NewLLM(cfg *ProviderConfig) (llms.Model, error) {
	switch pt := llms.ProviderType(strings.ToUpper(cfg.Provider)); pt {
	case llms.ProviderOpenAI, llms.ProviderPerplexity:
		opts := []openai.Option{
			openai.WithProviderType(pt),
		}
		if cfg.Token != "" {
			opts = append(opts, openai.WithToken(cfg.Token))
		}
		if cfg.DefaultModel != "" {
			opts = append(opts, openai.WithModel(cfg.DefaultModel))
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		if cfg.OpenAI.OrgID != "" {
			opts = append(opts, openai.WithOrganization(cfg.OpenAI.OrgID))
		}
		return openai.New(opts...)
	case llms.ProviderAnthropic:
		var opts []anthropic.Option
		if cfg.Token != "" {
			opts = append(opts, anthropic.WithToken(cfg.Token))
		}
		if cfg.DefaultModel != "" {
			opts = append(opts, anthropic.WithModel(cfg.DefaultModel))
		}
		return anthropic.New(opts...)
	default:
		return nil, errors.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// DefaultModel returns the configured default provider's model,
// or the first provider when no default is named.
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 {
		return nil, errors.New("no providers configured")
	}
	name := f.cfg.DefaultProvider
	if name == "" {
		name = f.cfg.Providers[0].Name
	}
	return f.ModelByName(name)
}

func (f *factory) ModelByType(typ llms.ProviderType) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[typ]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if llms.ProviderType(strings.ToUpper(cfg.Provider)) == typ {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"provider", cfg.Provider,
				"model", cfg.DefaultModel,
				"name", cfg.Name)

			f.byType[typ] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", typ)
}

func (f *factory) ModelByName(name string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byName[name]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if cfg.Name == name {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"provider", cfg.Provider,
				"model", cfg.DefaultModel,
				"name", cfg.Name)

			f.byName[name] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for name: %s", name)
}
