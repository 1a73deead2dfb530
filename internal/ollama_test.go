package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOllama struct {
	mu       sync.Mutex
	requests []map[string]any
	response string
	status   int
	delay    time.Duration
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("tags method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("generate method = %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		f.mu.Lock()
		f.requests = append(f.requests, body)
		status, delay, response := f.status, f.delay, f.response
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"model exploded"}`))
			return
		}
		out, _ := json.Marshal(map[string]any{
			"model":    body["model"],
			"response": response,
			"done":     true,
		})
		_, _ = w.Write(append(out, '\n'))
	})
	return mux
}

func newFakeOllama(t *testing.T, f *fakeOllama) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaGatewayIsAvailable(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{})

	gw, err := NewOllamaGateway(OllamaConfig{Endpoint: srv.URL + "/"})
	require.NoError(t, err)
	assert.True(t, gw.IsAvailable(context.Background()))
	assert.Equal(t, srv.URL, gw.Endpoint())
}

func TestOllamaGatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw, err := NewOllamaGateway(OllamaConfig{Endpoint: url, ProbeTimeout: 500 * time.Millisecond})
	require.NoError(t, err)
	assert.False(t, gw.IsAvailable(context.Background()))
}

func TestOllamaGatewayGenerateWireContract(t *testing.T) {
	fake := &fakeOllama{response: validResponse}
	srv := newFakeOllama(t, fake)

	gw, err := NewOllamaGateway(OllamaConfig{
		Endpoint:    srv.URL,
		Model:       "llama3.2",
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	require.NoError(t, err)

	out, err := gw.Generate(context.Background(), "summarize this")
	require.NoError(t, err)
	assert.Equal(t, validResponse, out)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "llama3.2", req["model"])
	assert.Equal(t, "summarize this", req["prompt"])
	assert.Equal(t, false, req["stream"])

	opts, ok := req["options"].(map[string]any)
	require.True(t, ok, "options missing: %v", req)
	assert.InDelta(t, 0.3, opts["temperature"], 1e-9)
	assert.EqualValues(t, 2048, opts["num_predict"])

	format, ok := req["format"].(map[string]any)
	require.True(t, ok, "format should carry the response schema: %v", req["format"])
	assert.Contains(t, format, "properties")
}

func TestOllamaGatewayNonSuccessStatus(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{status: http.StatusInternalServerError})

	gw, err := NewOllamaGateway(OllamaConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = gw.Generate(context.Background(), "p")
	var re *ModelRequestError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
}

func TestOllamaGatewayTimeout(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{delay: 2 * time.Second, response: validResponse})

	gw, err := NewOllamaGateway(OllamaConfig{Endpoint: srv.URL, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	_, err = gw.Generate(context.Background(), "p")
	var re *ModelRequestError
	require.True(t, errors.As(err, &re), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewOllamaGatewayRejectsRelativeURL(t *testing.T) {
	_, err := NewOllamaGateway(OllamaConfig{Endpoint: "localhost:11434/api"})
	assert.Error(t, err)
}

func TestNewGatewayFromConfig(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{})
	cfg := DefaultConfig()
	cfg.Model.Endpoint = srv.URL

	gw, err := NewGateway(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &OllamaGateway{}, gw)

	cfg.Model.RequestsPerMinute = 60
	gw, err = NewGateway(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &RateLimitedGateway{}, gw)
	assert.True(t, gw.IsAvailable(context.Background()))
}
