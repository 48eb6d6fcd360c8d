package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelogue/pkg/cache"
	"travelogue/pkg/config"
	"travelogue/pkg/request"
)

type recorder struct {
	mu     sync.Mutex
	calls  int
	inputs [][]string
}

func (r *recorder) snapshot() (int, [][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.inputs
}

// lengthServer embeds each input as [len(text), 1].
func lengthServer(t *testing.T, rec *recorder) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var req embedRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		rec.mu.Lock()
		rec.calls++
		rec.inputs = append(rec.inputs, req.Input)
		rec.mu.Unlock()
		resp := embedResponse{Model: req.Model}
		for _, in := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(len(in)), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newRequester(t *testing.T) *request.Client {
	rc := request.New(request.Config{Retries: 1, Timeout: 5 * time.Second}, nil, nil)
	t.Cleanup(rc.Close)
	return rc
}

func TestEmbedBatch_OrderAndBatching(t *testing.T) {
	rec := &recorder{}
	srv := lengthServer(t, rec)
	defer srv.Close()

	c := New(&config.EmbeddingConfig{BaseURL: srv.URL, Model: "nomic-embed-text", BatchSize: 2}, newRequester(t), nil)

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
	calls, inputs := rec.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc", "dddd"}, {"eeeee"}}, inputs)
}

func TestEmbedBatch_Cache(t *testing.T) {
	rec := &recorder{}
	srv := lengthServer(t, rec)
	defer srv.Close()

	mem := cache.NewMemory()
	c := New(&config.EmbeddingConfig{BaseURL: srv.URL, Model: "nomic-embed-text", Cache: true}, newRequester(t), mem)

	_, err := c.EmbedBatch(context.Background(), []string{"walk", "river"})
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Len())

	vecs, err := c.EmbedBatch(context.Background(), []string{"river", "bridge", "walk"})
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, vecs[0])
	assert.Equal(t, []float32{6, 1}, vecs[1])
	assert.Equal(t, []float32{4, 1}, vecs[2])

	// second call only sent the unseen text
	calls, inputs := rec.snapshot()
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"bridge"}, inputs[1])
}

func TestEmbedBatch_CacheDisabled(t *testing.T) {
	rec := &recorder{}
	srv := lengthServer(t, rec)
	defer srv.Close()

	mem := cache.NewMemory()
	c := New(&config.EmbeddingConfig{BaseURL: srv.URL, Model: "nomic-embed-text", Cache: false}, newRequester(t), mem)

	for i := 0; i < 2; i++ {
		_, err := c.EmbedBatch(context.Background(), []string{"walk"})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, mem.Len())
	calls, _ := rec.snapshot()
	assert.Equal(t, 2, calls)
}

func TestEmbedBatch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
		target  error
	}{
		{"ServerError", http.StatusInternalServerError, `{"error":"boom"}`, nil},
		{"ErrorField", http.StatusOK, `{"error":"model not found"}`, nil},
		{"CountMismatch", http.StatusOK, `{"embeddings":[[1,2]]}`, ErrEmptyEmbedding},
		{"EmptyVector", http.StatusOK, `{"embeddings":[[],[]]}`, ErrEmptyEmbedding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			c := New(&config.EmbeddingConfig{BaseURL: srv.URL, Model: "m"}, newRequester(t), nil)
			_, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
		})
	}
}
