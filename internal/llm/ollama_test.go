package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama3.2", req.Model)
		require.Equal(t, "be brief", req.System)
		require.False(t, req.Stream)
		require.NotNil(t, req.Options)
		require.Equal(t, 0.2, req.Options.Temperature)

		json.NewEncoder(w).Encode(generateResponse{
			Model:     "llama3.2",
			Response:  "hello there",
			Done:      true,
			EvalCount: 7,
		})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	resp, err := c.Generate(context.Background(), Request{
		Model:   "llama3.2",
		System:  "be brief",
		Prompt:  "say hello",
		Options: Options{Temperature: 0.2},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Text)
	require.Equal(t, 7, resp.EvalCount)
}

func TestOllamaClient_DefaultOptionsFillZeroFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Options)
		// Per-request temperature wins; unset fields inherit defaults.
		require.Equal(t, 0.1, req.Options.Temperature)
		require.Equal(t, 8192, req.Options.NumCtx)
		require.Equal(t, 512, req.Options.NumPredict)

		json.NewEncoder(w).Encode(generateResponse{Model: "m", Response: "ok", Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil).WithDefaultOptions(Options{
		Temperature: 0.7,
		NumCtx:      8192,
		NumPredict:  512,
	})
	_, err := c.Generate(context.Background(), Request{
		Model:   "m",
		Prompt:  "classify this",
		Options: Options{Temperature: 0.1},
	})
	require.NoError(t, err)
}

func TestOllamaClient_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)

		flusher := w.(http.Flusher)
		for _, word := range []string{"one ", "two ", "three"} {
			fmt.Fprintf(w, `{"model":"m","response":%q,"done":false}`+"\n", word)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"model":"m","response":"","done":true,"eval_count":3}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	var chunks []string
	resp, err := c.GenerateStream(context.Background(), Request{Model: "m", Prompt: "count"}, func(ch Chunk) error {
		if !ch.Done {
			chunks = append(chunks, ch.Text)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "one two three", resp.Text)
	require.Equal(t, []string{"one ", "two ", "three"}, chunks)
	require.Equal(t, 3, resp.EvalCount)
}

func TestOllamaClient_StreamConsumerErrorAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 100; i++ {
			fmt.Fprintf(w, `{"response":"x","done":false}`+"\n")
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	calls := 0
	_, err := c.GenerateStream(context.Background(), Request{Model: "m", Prompt: "p"}, func(ch Chunk) error {
		calls++
		return fmt.Errorf("stop")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "stream consumer")
	require.Equal(t, 1, calls)
}

func TestOllamaClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Generate(context.Background(), Request{Model: "ghost", Prompt: "p"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "model not found")
}

func TestOllamaClient_APIErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "model is overloaded"})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Generate(context.Background(), Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "overloaded")
}

func TestOllamaClient_ContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewOllamaClient(srv.URL, nil)
	_, err := c.Generate(ctx, Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "context canceled") || strings.Contains(err.Error(), "canceled"))
}

func TestNewOllamaClient_DefaultHost(t *testing.T) {
	c := NewOllamaClient("", nil)
	require.Equal(t, defaultOllamaHost, c.host)

	c = NewOllamaClient("http://10.0.0.5:11434/", nil)
	require.Equal(t, "http://10.0.0.5:11434", c.host)
}
