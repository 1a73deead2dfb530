package internal

import (
	"context"
	"fmt"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
)

const (
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

// jsonOnlySystemPrompt keeps chat-tuned models from wrapping the object in prose.
const jsonOnlySystemPrompt = "You summarize git commits. Reply with a single JSON object and nothing else."

type FantasyConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

var _ Gateway = (*FantasyGateway)(nil)

// FantasyGateway sends prompts to hosted providers.
type FantasyGateway struct {
	model    fantasy.LanguageModel
	cfg      FantasyConfig
	endpoint string
}

func NewFantasyGateway(ctx context.Context, cfg FantasyConfig) (*FantasyGateway, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case ProviderOpenRouter:
		provider, err = openrouter.New(openrouter.WithAPIKey(cfg.APIKey))

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = cfg.Provider
	}

	return &FantasyGateway{
		model:    model,
		cfg:      cfg,
		endpoint: endpoint,
	}, nil
}

func (g *FantasyGateway) Endpoint() string { return g.endpoint }

// IsAvailable does not spend a request: hosted providers count as live once
// the model resolved and credentials are present.
func (g *FantasyGateway) IsAvailable(ctx context.Context) bool {
	return g.model != nil && g.cfg.APIKey != "" && ctx.Err() == nil
}

func (g *FantasyGateway) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	agent := fantasy.NewAgent(g.model, fantasy.WithSystemPrompt(jsonOnlySystemPrompt))

	call := fantasy.AgentCall{Prompt: prompt}
	temperature := g.cfg.Temperature
	call.Temperature = &temperature
	if g.cfg.MaxTokens > 0 {
		maxTokens := int64(g.cfg.MaxTokens)
		call.MaxOutputTokens = &maxTokens
	}

	result, err := agent.Generate(ctx, call)
	if err != nil {
		return "", &ModelRequestError{Op: "generate", Err: err}
	}

	return result.Response.Content.Text(), nil
}
