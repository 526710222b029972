package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements Client over the OpenAI chat completions API.
type OpenAIClient struct {
	client openai.Client
	config *Config
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(config *Config, apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		config: config,
	}, nil
}

func (c *OpenAIClient) params(prompt string, tier ModelTier, o CallOptions) (openai.ChatCompletionNewParams, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("no model configured for tier %s", tier)
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if o.System != "" {
		msgs = append(msgs, openai.SystemMessage(o.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelName),
		Messages: msgs,
	}
	if o.Temperature != nil {
		params.Temperature = openai.Float(float64(*o.Temperature))
	}
	return params, nil
}

func (c *OpenAIClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateContent generates text content using the specified model tier
func (c *OpenAIClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier, opts ...CallOption) (string, error) {
	params, err := c.params(prompt, tier, ApplyOptions(opts...))
	if err != nil {
		return "", err
	}
	return c.complete(ctx, params)
}

// GenerateJSON generates JSON content using the specified model tier
func (c *OpenAIClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier, opts ...CallOption) (string, error) {
	params, err := c.params(prompt, tier, ApplyOptions(opts...))
	if err != nil {
		return "", err
	}
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}

	text, err := c.complete(ctx, params)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// GetModel returns the model name for a tier
func (c *OpenAIClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Provider returns ProviderOpenAI
func (c *OpenAIClient) Provider() Provider {
	return ProviderOpenAI
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (c *OpenAIClient) Close() error {
	return nil
}
