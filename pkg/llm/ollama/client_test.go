package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelogue/pkg/config"
	"travelogue/pkg/llm"
	"travelogue/pkg/request"
)

func newRequestClient(t *testing.T) *request.Client {
	rc := request.New(request.Config{Retries: 1, Timeout: 5 * time.Second}, nil, nil)
	t.Cleanup(rc.Close)
	return rc
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"<think>hmm</think>We set off along the canal."},"done":true}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.ProviderConfig{Type: "ollama", BaseURL: srv.URL + "/", Model: "llama3.1:8b"}, newRequestClient(t))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), llm.Request{
		Profile:     "travelogue",
		System:      "You are a storyteller.",
		User:        "Route Name: Canal",
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "We set off along the canal.", resp.Text)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, "llama3.1:8b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.InDelta(t, 0.7, got.Options["temperature"], 1e-6)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"ServerError", http.StatusInternalServerError, `{"error":"boom"}`},
		{"ErrorField", http.StatusOK, `{"error":"model not found"}`},
		{"EmptyContent", http.StatusOK, `{"message":{"role":"assistant","content":"  "}}`},
		{"BadJSON", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			c, err := NewClient(config.ProviderConfig{BaseURL: srv.URL, Model: "m"}, newRequestClient(t))
			require.NoError(t, err)
			_, err = c.Generate(context.Background(), llm.Request{User: "hi"})
			assert.Error(t, err)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest"},{"name":"nomic-embed-text:latest"}]}`))
	}))
	defer srv.Close()

	tests := []struct {
		model   string
		wantErr bool
	}{
		{"llama3.1", false},
		{"llama3.1:latest", false},
		{"nomic-embed-text", false},
		{"mistral", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c, err := NewClient(config.ProviderConfig{BaseURL: srv.URL, Model: tt.model}, newRequestClient(t))
			require.NoError(t, err)
			err = c.HealthCheck(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(config.ProviderConfig{Type: "ollama"}, nil)
	assert.Error(t, err)
}
