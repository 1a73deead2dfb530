package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Gateway is a language model that turns a prompt into raw text.
type Gateway interface {
	// Endpoint identifies where requests go, for error reporting.
	Endpoint() string
	// IsAvailable is a cheap liveness probe. It never returns an error;
	// any failure means unavailable.
	IsAvailable(ctx context.Context) bool
	Generate(ctx context.Context, prompt string) (string, error)
}

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// ExtractedContext is the structured summary the model produces for one
// commit. Its JSON encoding is what the ledger stores.
type ExtractedContext struct {
	Summary      string   `json:"summary" jsonschema:"1-2 sentence description of what this commit does"`
	FilesChanged []string `json:"files_changed" jsonschema:"key files that were modified"`
	KeyDetails   []string `json:"key_details" jsonschema:"2-4 important technical details about this change"`
	Technologies []string `json:"technologies" jsonschema:"technologies and libraries involved"`
	Impact       Impact   `json:"impact" jsonschema:"how significant the change is"`
}

var extractedContextSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[ExtractedContext](nil)
	if err != nil {
		return nil, err
	}
	// Extra keys from the model are tolerated and dropped on decode.
	s.AdditionalProperties = nil

	minLen := 1
	if p, ok := s.Properties["summary"]; ok {
		p.MinLength = &minLen
	}
	if p, ok := s.Properties["impact"]; ok {
		p.Enum = []any{string(ImpactHigh), string(ImpactMedium), string(ImpactLow)}
	}
	return s, nil
})

var resolvedExtractedContextSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	s, err := extractedContextSchema()
	if err != nil {
		return nil, err
	}
	return s.Resolve(nil)
})

// ExtractedContextSchemaJSON returns the JSON schema of ExtractedContext,
// sent as the format of models that support constrained output.
func ExtractedContextSchemaJSON() (json.RawMessage, error) {
	s, err := extractedContextSchema()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// ParseExtractedContext extracts the outermost JSON object from raw model
// output and validates it. Nothing is synthesized when the output is
// unusable; the caller gets a *ResponseParseError.
func ParseExtractedContext(raw string) (*ExtractedContext, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, &ResponseParseError{Reason: "no JSON object in response", Raw: raw}
	}
	body := raw[start : end+1]

	var instance map[string]any
	if err := json.Unmarshal([]byte(body), &instance); err != nil {
		return nil, &ResponseParseError{Reason: "invalid JSON", Raw: raw, Err: err}
	}

	resolved, err := resolvedExtractedContextSchema()
	if err != nil {
		return nil, fmt.Errorf("resolve extracted context schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, &ResponseParseError{Reason: "schema violation", Raw: raw, Err: err}
	}

	var ec ExtractedContext
	if err := json.Unmarshal([]byte(body), &ec); err != nil {
		return nil, &ResponseParseError{Reason: "decode", Raw: raw, Err: err}
	}
	ec.normalize()
	return &ec, nil
}

func (ec *ExtractedContext) normalize() {
	ec.Summary = strings.TrimSpace(ec.Summary)
	if ec.FilesChanged == nil {
		ec.FilesChanged = []string{}
	}
	if ec.KeyDetails == nil {
		ec.KeyDetails = []string{}
	}
	ec.Technologies = dedupe(ec.Technologies)
}

// JSON returns the durable encoding stored in llm_extracted_context.
func (ec *ExtractedContext) JSON() (string, error) {
	data, err := json.Marshal(ec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NewGateway builds the gateway for the configured provider, rate limited
// when a per-minute quota is set.
func NewGateway(ctx context.Context, cfg *Config) (Gateway, error) {
	var gw Gateway
	switch cfg.Model.Provider {
	case "", ProviderOllama:
		og, err := NewOllamaGateway(OllamaConfig{
			Endpoint:     cfg.Model.Endpoint,
			Model:        cfg.Model.Model,
			Temperature:  cfg.Model.Temperature,
			MaxTokens:    cfg.Model.MaxTokens,
			Timeout:      cfg.Model.Timeout,
			ProbeTimeout: cfg.Model.ProbeTimeout,
		})
		if err != nil {
			return nil, err
		}
		gw = og
	default:
		baseURL := cfg.Model.Endpoint
		if baseURL == DefaultModelEndpoint {
			baseURL = ""
		}
		fg, err := NewFantasyGateway(ctx, FantasyConfig{
			Provider:    cfg.Model.Provider,
			APIKey:      cfg.APIKey(),
			BaseURL:     baseURL,
			Model:       cfg.Model.Model,
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
			Timeout:     cfg.Model.Timeout,
		})
		if err != nil {
			return nil, err
		}
		gw = fg
	}

	if cfg.Model.RequestsPerMinute > 0 {
		gw = NewRateLimitedGateway(gw, cfg.Model.RequestsPerMinute)
	}
	return gw, nil
}
