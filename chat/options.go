package chat

import (
	"github.com/effective-security/mcpchat/store"
)

const (
	// DefaultMaxRounds caps the number of model rounds per query, so a
	// provider perpetually requesting tools cannot loop forever.
	DefaultMaxRounds = 10

	// DefaultMaxContentSize is the default limit on the accumulated history
	// size, in bytes.
	DefaultMaxContentSize = 4 * 1024 * 1024

	// DefaultSystemPrompt seeds the conversation when none is configured.
	DefaultSystemPrompt = "You are a helpful assistant. Use the available tools when they help answer the question."
)

// Option is a function that can be used to modify the behavior of the Chat Config.
type Option func(*Config)

type Config struct {
	// SystemPrompt is the system message seeded at the start of every query.
	SystemPrompt string

	// MaxRounds is the maximum number of model rounds per query.
	MaxRounds int

	// MaxContentSize is the limit on the accumulated history size in bytes.
	MaxContentSize uint64

	// Model overrides the model name in an LLM call.
	Model string

	// MaxTokens is the maximum number of tokens to generate in an LLM call.
	MaxTokens int

	// Temperature is the temperature for sampling in an LLM call, between 0 and 1.
	Temperature float64

	// CallbackHandler is notified of query, model and tool events.
	CallbackHandler Callback

	// Store, if set, receives the final question/answer pair of each query.
	Store store.MessageStore

	// ChatID keys the transcript in the Store.
	ChatID string
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		SystemPrompt:    DefaultSystemPrompt,
		MaxRounds:       DefaultMaxRounds,
		MaxContentSize:  DefaultMaxContentSize,
		CallbackHandler: NewNoopCallback(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSystemPrompt sets the system message seeded at the start of every query.
func WithSystemPrompt(prompt string) Option {
	return func(o *Config) {
		o.SystemPrompt = prompt
	}
}

// WithMaxRounds caps the number of model rounds per query.
func WithMaxRounds(rounds int) Option {
	return func(o *Config) {
		o.MaxRounds = rounds
	}
}

// WithMaxContentSize limits the accumulated history size in bytes.
func WithMaxContentSize(size uint64) Option {
	return func(o *Config) {
		o.MaxContentSize = size
	}
}

// WithModel overrides the model name for LLM calls.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithStore sets the transcript store and the chat ID keying it.
func WithStore(s store.MessageStore, chatID string) Option {
	return func(o *Config) {
		o.Store = s
		o.ChatID = chatID
	}
}
