package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultModelEndpoint = "http://localhost:11434"
	DefaultModelName     = "llama3.2"
	DefaultTemperature   = 0.3
	DefaultMaxTokens     = 2048
	DefaultModelTimeout  = 120 * time.Second
	DefaultProbeTimeout  = 3 * time.Second
)

type OllamaConfig struct {
	Endpoint     string
	Model        string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
	ProbeTimeout time.Duration
	HTTPClient   *http.Client
}

var _ Gateway = (*OllamaGateway)(nil)

// OllamaGateway talks to a local Ollama server.
type OllamaGateway struct {
	client   *api.Client
	endpoint string
	cfg      OllamaConfig
}

func NewOllamaGateway(cfg OllamaConfig) (*OllamaGateway, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultModelEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultModelTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse model endpoint %q: %w", cfg.Endpoint, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("model endpoint %q must be an absolute URL", cfg.Endpoint)
	}

	return &OllamaGateway{
		client:   api.NewClient(base, cfg.HTTPClient),
		endpoint: endpoint,
		cfg:      cfg,
	}, nil
}

func (g *OllamaGateway) Endpoint() string { return g.endpoint }

func (g *OllamaGateway) Model() string { return g.cfg.Model }

// IsAvailable lists local models, which any running server answers quickly.
func (g *OllamaGateway) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.ProbeTimeout)
	defer cancel()

	_, err := g.client.List(ctx)
	return err == nil
}

func (g *OllamaGateway) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	format, err := ExtractedContextSchemaJSON()
	if err != nil {
		return "", fmt.Errorf("encode response schema: %w", err)
	}

	stream := false
	req := &api.GenerateRequest{
		Model:  g.cfg.Model,
		Prompt: prompt,
		Stream: &stream,
		Format: format,
		Options: map[string]any{
			"temperature": g.cfg.Temperature,
			"num_predict": g.cfg.MaxTokens,
		},
	}

	var out strings.Builder
	err = g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", g.requestError(err)
	}
	return out.String(), nil
}

func (g *OllamaGateway) requestError(err error) error {
	var status api.StatusError
	if errors.As(err, &status) {
		return &ModelRequestError{Op: "generate", StatusCode: status.StatusCode, Err: err}
	}
	var statusPtr *api.StatusError
	if errors.As(err, &statusPtr) {
		return &ModelRequestError{Op: "generate", StatusCode: statusPtr.StatusCode, Err: err}
	}
	return &ModelRequestError{Op: "generate", Err: err}
}
