package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/packlens/packlens/internal/token"
)

// Provider names the supported completion backends.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// Request is a single completion request.
type Request struct {
	System       string
	User         string
	Temperature  float64
	MaxOutTokens int
}

// Usage is the token accounting for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is the model's response to one request.
type Completion struct {
	Text  string
	Usage Usage
}

// Completer issues a single completion call. Failures are tagged
// *CallError values.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// ClientConfig configures the completion client.
type ClientConfig struct {
	Provider        Provider
	Model           string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string
}

// Client wraps a langchaingo model as a Completer.
type Client struct {
	llm       llms.Model
	modelName string
}

// NewClient creates a completion client for the configured provider.
func NewClient(cfg ClientConfig) (*Client, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	return &Client{llm: model, modelName: cfg.Model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.modelName }

// Complete issues one completion call. Provider failures come back as
// tagged *CallError values.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.System),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxOutTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxOutTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &CallError{Kind: KindFatal, Err: fmt.Errorf("no response choices")}
	}

	choice := resp.Choices[0]
	comp := &Completion{
		Text:  choice.Content,
		Usage: usageFromInfo(choice.GenerationInfo),
	}

	// Providers that omit usage fall back to local token estimates so
	// accounting stays monotonic.
	if comp.Usage.InputTokens == 0 {
		comp.Usage.InputTokens = token.Count(req.System) + token.Count(req.User)
	}
	if comp.Usage.OutputTokens == 0 {
		comp.Usage.OutputTokens = token.Count(choice.Content)
	}
	return comp, nil
}

// usageFromInfo extracts token usage from langchaingo's provider-specific
// GenerationInfo keys.
func usageFromInfo(info map[string]any) Usage {
	var u Usage
	for _, key := range []string{"PromptTokens", "InputTokens", "prompt_tokens", "input_tokens"} {
		if v, ok := asInt(info[key]); ok {
			u.InputTokens = v
			break
		}
	}
	for _, key := range []string{"CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens"} {
		if v, ok := asInt(info[key]); ok {
			u.OutputTokens = v
			break
		}
	}
	return u
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
