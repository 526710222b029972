// Package llm provides model configuration and client abstractions over the supported providers.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for classification tasks such as the job description guardrail
	TierLite ModelTier = "lite"
	// TierStandard is for free-text reasoning such as fit assessment
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form generation such as the slide deck
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI chat completions provider
	ProviderOpenAI Provider = "openai"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
	// BaseURL overrides the provider endpoint (OpenAI compatible gateways).
	BaseURL string
}

// DefaultConfig returns the default configuration (Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// DefaultOpenAIConfig returns the default OpenAI configuration
func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4.1-nano",
			TierStandard: "gpt-4o-mini",
			TierAdvanced: "gpt-4o-mini",
		},
	}
}

// ConfigFor returns the default configuration for a provider name.
// Unknown names fall back to Gemini.
func ConfigFor(provider string) *Config {
	if Provider(provider) == ProviderOpenAI {
		return DefaultOpenAIConfig()
	}
	return DefaultGeminiConfig()
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a new Config with a specific model for a tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := c.clone()
	next.Models[tier] = model
	return next
}

// WithAllModels returns a new Config using model for every tier.
// Used when a single LLM_MODEL override is configured.
func (c *Config) WithAllModels(model string) *Config {
	next := c.clone()
	for _, tier := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		next.Models[tier] = model
	}
	return next
}

func (c *Config) clone() *Config {
	next := &Config{
		Provider: c.Provider,
		BaseURL:  c.BaseURL,
		Models:   make(map[ModelTier]string, len(c.Models)),
	}
	for k, v := range c.Models {
		next.Models[k] = v
	}
	return next
}

// CallOptions are per-request generation settings.
type CallOptions struct {
	System      string
	Temperature *float32
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithSystem sets the system instruction for a call.
func WithSystem(system string) CallOption {
	return func(o *CallOptions) { o.System = system }
}

// WithTemperature sets the sampling temperature for a call.
func WithTemperature(t float32) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

// ApplyOptions resolves opts; temperature defaults to 0.1.
func ApplyOptions(opts ...CallOption) CallOptions {
	def := float32(0.1)
	o := CallOptions{Temperature: &def}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
