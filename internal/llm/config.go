// Package llm provides centralized LLM configuration and client abstractions used by the
// extraction and analysis stages.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: document transcription, classification
	TierLite ModelTier = "lite"
	// TierStandard is for structured output such as candidate profiles
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long or dense resumes that the standard tier handles poorly
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the only provider NewClient can build
const ProviderGemini Provider = "gemini"

// DefaultTemperature keeps responses close to deterministic
const DefaultTemperature float32 = 0.1

// Config holds the model configuration for the application
type Config struct {
	Provider    Provider
	Models      map[ModelTier]string
	Temperature float32
}

// DefaultConfig returns the Gemini configuration used in production
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature: DefaultTemperature,
	}
}

func (c *Config) temperature() float32 {
	if c.Temperature <= 0 {
		return DefaultTemperature
	}
	return c.Temperature
}

// GetModel returns the model for tier, falling back to the standard and then the lite model
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model := c.Models[t]; model != "" {
			return model
		}
	}
	return ""
}

// WithOverrides returns a copy of c in which every non-empty entry of models replaces the tier's
// model. c is not modified.
func (c *Config) WithOverrides(models map[ModelTier]string) *Config {
	out := &Config{
		Provider:    c.Provider,
		Models:      make(map[ModelTier]string, len(c.Models)),
		Temperature: c.Temperature,
	}
	for tier, model := range c.Models {
		out.Models[tier] = model
	}
	for tier, model := range models {
		if model != "" {
			out.Models[tier] = model
		}
	}
	return out
}
