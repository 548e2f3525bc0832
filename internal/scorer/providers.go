package scorer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscore/internal/config"
	"github.com/sells-group/leadscore/internal/cost"
	"github.com/sells-group/leadscore/internal/resilience"
	"github.com/sells-group/leadscore/pkg/anthropic"
	"github.com/sells-group/leadscore/pkg/gemini"
	"github.com/sells-group/leadscore/pkg/openai"
)

const systemPrompt = "You are a B2B sales analyst who classifies prospect buying intent as High, Medium, or Low."

// AnthropicOracle classifies with Claude.
type AnthropicOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	costs     *cost.Calculator
}

// NewAnthropicOracle creates an oracle backed by client.
func NewAnthropicOracle(client anthropic.Client, model string, maxTokens int64, costs *cost.Calculator) *AnthropicOracle {
	return &AnthropicOracle{client: client, model: model, maxTokens: maxTokens, costs: costs}
}

// Classify implements Oracle.
func (o *AnthropicOracle) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	if o.costs != nil {
		o.costs.Log(config.ProviderAnthropic, o.model, cost.Usage{
			Input:      resp.Usage.InputTokens,
			Output:     resp.Usage.OutputTokens,
			CacheWrite: resp.Usage.CacheCreationInputTokens,
			CacheRead:  resp.Usage.CacheReadInputTokens,
		})
	}
	return resp.Text(), nil
}

// OpenAIOracle classifies with an OpenAI-compatible chat model.
type OpenAIOracle struct {
	client    openai.Client
	model     string
	maxTokens int
	costs     *cost.Calculator
}

// NewOpenAIOracle creates an oracle backed by client.
func NewOpenAIOracle(client openai.Client, model string, maxTokens int, costs *cost.Calculator) *OpenAIOracle {
	return &OpenAIOracle{client: client, model: model, maxTokens: maxTokens, costs: costs}
}

// Classify implements Oracle.
func (o *OpenAIOracle) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Complete(ctx, openai.CompletionRequest{
		Model:     o.model,
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if o.costs != nil {
		cached := int64(resp.Usage.CachedPromptTokens)
		o.costs.Log(config.ProviderOpenAI, o.model, cost.Usage{
			Input:     int64(resp.Usage.PromptTokens) - cached,
			Output:    int64(resp.Usage.CompletionTokens),
			CacheRead: cached,
		})
	}
	return resp.Content, nil
}

// geminiGenerator is satisfied by *gemini.Client.
type geminiGenerator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error)
}

// GeminiOracle classifies with Gemini.
type GeminiOracle struct {
	client    geminiGenerator
	model     string
	maxTokens int32
	costs     *cost.Calculator
}

// NewGeminiOracle creates an oracle backed by client.
func NewGeminiOracle(client geminiGenerator, model string, maxTokens int32, costs *cost.Calculator) *GeminiOracle {
	return &GeminiOracle{client: client, model: model, maxTokens: maxTokens, costs: costs}
}

// Classify implements Oracle.
func (o *GeminiOracle) Classify(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Generate(ctx, gemini.Request{
		Model:     o.model,
		System:    systemPrompt,
		Prompt:    prompt,
		MaxTokens: o.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if o.costs != nil {
		o.costs.Log(config.ProviderGemini, o.model, cost.Usage{
			Input:     int64(resp.Usage.PromptTokens - resp.Usage.CachedTokens),
			Output:    int64(resp.Usage.OutputTokens),
			CacheRead: int64(resp.Usage.CachedTokens),
		})
	}
	return resp.Text, nil
}

// NewOracle builds the configured provider wrapped in a GuardedOracle. The
// result is constructed once at startup and shared by every batch.
func NewOracle(ctx context.Context, cfg *config.Config) (*GuardedOracle, error) {
	costs := cost.NewCalculator(cost.DefaultRates())
	maxTokens := cfg.Classifier.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	var base Oracle
	switch cfg.Classifier.Provider {
	case config.ProviderAnthropic:
		base = NewAnthropicOracle(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, maxTokens, costs)
	case config.ProviderOpenAI:
		base = NewOpenAIOracle(openai.NewClient(cfg.OpenAI.Key, cfg.OpenAI.BaseURL), cfg.OpenAI.Model, int(maxTokens), costs)
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key)
		if err != nil {
			return nil, eris.Wrap(err, "scorer: init gemini")
		}
		base = NewGeminiOracle(client, cfg.Gemini.Model, int32(maxTokens), costs)
	case config.ProviderOffline:
		base = OfflineOracle{}
	default:
		return nil, eris.Errorf("scorer: unsupported classifier provider %q", cfg.Classifier.Provider)
	}

	return NewGuardedOracle(cfg.Classifier.Provider, base, GuardConfig{
		Timeout:           time.Duration(cfg.Classifier.TimeoutSecs) * time.Second,
		RequestsPerSecond: cfg.Classifier.RequestsPerSecond,
		Breaker:           resilience.BreakerConfigFrom(cfg.Classifier.BreakerFailures, cfg.Classifier.BreakerResetSecs),
	}), nil
}
