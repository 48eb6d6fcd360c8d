package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelogue/pkg/config"
	"travelogue/pkg/llm"
	"travelogue/pkg/tracker"
)

func TestGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"The river kept pace with us."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tr := tracker.New()
	c, err := NewClient(config.ProviderConfig{Type: "openai", BaseURL: srv.URL, Model: "gpt-4o-mini", Key: "sk-test"}, srv.Client(), tr)
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), llm.Request{System: "sys", User: "usr", Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "The river kept pace with us.", resp.Text)
	assert.Equal(t, "gpt-4o-mini", resp.Model)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	assert.InDelta(t, 0.7, got["temperature"], 1e-6)

	assert.Equal(t, int64(1), tr.Snapshot()["openai"].APISuccess)
}

func TestGenerate_ZeroTemperatureSent(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Fog on the quay."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.ProviderConfig{Type: "groq", BaseURL: srv.URL, Model: "llama-3.1-8b-instant", Key: "gsk-test"}, srv.Client(), nil)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), llm.Request{User: "usr", Temperature: 0})
	require.NoError(t, err)

	temp, ok := got["temperature"].(float64)
	require.True(t, ok, "temperature must be sent, got %v", got)
	assert.InDelta(t, 0, temp, 1e-9)
}

func TestGenerate_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	tr := tracker.New()
	c, err := NewClient(config.ProviderConfig{BaseURL: srv.URL, Model: "gpt-4o-mini", Key: "bad"}, srv.Client(), tr)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), llm.Request{User: "usr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int64(1), tr.Snapshot()["openai"].APIFailures)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
	}))
	defer srv.Close()

	ok, err := NewClient(config.ProviderConfig{BaseURL: srv.URL, Model: "gpt-4o-mini"}, srv.Client(), nil)
	require.NoError(t, err)
	assert.NoError(t, ok.HealthCheck(context.Background()))

	missing, err := NewClient(config.ProviderConfig{BaseURL: srv.URL, Model: "gpt-5"}, srv.Client(), nil)
	require.NoError(t, err)
	assert.Error(t, missing.HealthCheck(context.Background()))
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(config.ProviderConfig{Type: "openai"}, nil, nil)
	assert.Error(t, err)
}

func TestBaseURLFor(t *testing.T) {
	tests := []struct {
		typ        string
		configured string
		want       string
	}{
		{"openai", "", ""},
		{"groq", "", "https://api.groq.com/openai/v1"},
		{"deepseek", "", "https://api.deepseek.com"},
		{"groq", "http://proxy.local/v1/", "http://proxy.local/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.typ+tt.configured, func(t *testing.T) {
			assert.Equal(t, tt.want, baseURLFor(tt.typ, tt.configured))
		})
	}
}

func TestNewClient_Label(t *testing.T) {
	c, err := NewClient(config.ProviderConfig{Type: "groq", Model: "llama-3.3-70b"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "groq", c.Name())

	c, err = NewClient(config.ProviderConfig{Model: "gpt-4o-mini"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", c.Name())
}
