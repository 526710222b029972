package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
}

func TestConfigFor(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, ConfigFor("openai").Provider)
	assert.Equal(t, "gpt-4.1-nano", ConfigFor("openai").GetModel(TierLite))
	assert.Equal(t, ProviderGemini, ConfigFor("gemini").Provider)
	assert.Equal(t, ProviderGemini, ConfigFor("whatever").Provider)
}

func TestGetModel_Fallback(t *testing.T) {
	config := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite: "fallback-model",
		},
	}

	assert.Equal(t, "fallback-model", config.GetModel("unknown"))
	assert.Equal(t, "", (&Config{Models: map[ModelTier]string{}}).GetModel(TierAdvanced))
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	next := config.WithModel(TierAdvanced, "custom-model")

	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.Equal(t, "custom-model", next.GetModel(TierAdvanced))
	assert.Equal(t, "gemini-2.5-flash-lite", next.GetModel(TierLite))
}

func TestWithAllModels(t *testing.T) {
	config := DefaultOpenAIConfig()
	config.BaseURL = "http://gateway"
	next := config.WithAllModels("gpt-4.1")

	for _, tier := range []ModelTier{TierLite, TierStandard, TierAdvanced} {
		assert.Equal(t, "gpt-4.1", next.GetModel(tier))
	}
	assert.Equal(t, "http://gateway", next.BaseURL)
	assert.Equal(t, "gpt-4.1-nano", config.GetModel(TierLite))
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions()
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.1, *o.Temperature, 1e-6)
	assert.Empty(t, o.System)

	o = ApplyOptions(WithTemperature(0), WithSystem("be terse"))
	require.NotNil(t, o.Temperature)
	assert.Equal(t, float32(0), *o.Temperature)
	assert.Equal(t, "be terse", o.System)
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(t.Context(), &Config{Provider: "anthropic"}, "key")
	assert.ErrorContains(t, err, "unsupported llm provider")

	_, err = NewClient(t.Context(), DefaultOpenAIConfig(), "")
	assert.ErrorContains(t, err, "API key is required")

	client, err := NewClient(t.Context(), DefaultOpenAIConfig(), "sk-test")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, client.Provider())
	assert.Equal(t, "gpt-4o-mini", client.GetModel(TierStandard))
	assert.NoError(t, client.Close())
}
