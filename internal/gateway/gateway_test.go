package gateway_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nyashahama/multimodal-risk-engine/internal/gateway"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// ─── Ollama ───────────────────────────────────────────────────────────────────

func TestOllama_Generate_SendsImageAndReturnsText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"model":"llava","response":"{\"risk_level\":\"Low\"}","done":true}`)
	}))
	defer srv.Close()

	c := gateway.NewOllamaClient(gateway.OllamaConfig{BaseURL: srv.URL + "/", Model: "llava"}, discardLogger())
	text, err := c.Generate(context.Background(), "assess", []byte("img"), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"risk_level":"Low"}` {
		t.Errorf("text = %q", text)
	}

	if got["model"] != "llava" {
		t.Errorf("model = %v, want llava", got["model"])
	}
	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	images, _ := got["images"].([]any)
	if len(images) != 1 || images[0] != base64.StdEncoding.EncodeToString([]byte("img")) {
		t.Errorf("images = %v", got["images"])
	}
}

func TestOllama_Generate_ExplicitModelOverridesDefault(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Model string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		model = body.Model
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	}))
	defer srv.Close()

	c := gateway.NewOllamaClient(gateway.OllamaConfig{BaseURL: srv.URL, Model: "llava"}, discardLogger())
	if _, err := c.Generate(context.Background(), "p", nil, "bakllava"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != "bakllava" {
		t.Errorf("model = %q, want bakllava", model)
	}
}

func TestOllama_Generate_EmptyResponseIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	c := gateway.NewOllamaClient(gateway.OllamaConfig{BaseURL: srv.URL}, discardLogger())
	text, err := c.Generate(context.Background(), "p", nil, "llava")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestOllama_Generate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"server error", http.StatusInternalServerError, `boom`, "unexpected status 500"},
		{"model missing", http.StatusNotFound, `{"error":"model 'llava' not found"}`, "unexpected status 404"},
		{"api error in 200", http.StatusOK, `{"error":"out of memory"}`, "out of memory"},
		{"garbage body", http.StatusOK, `<html>`, "unmarshal response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := gateway.NewOllamaClient(gateway.OllamaConfig{BaseURL: srv.URL}, discardLogger())
			_, err := c.Generate(context.Background(), "p", nil, "llava")
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestOllama_Generate_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := gateway.NewOllamaClient(gateway.OllamaConfig{BaseURL: url, Timeout: time.Second}, discardLogger())
	if _, err := c.Generate(context.Background(), "p", nil, "llava"); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestOllama_Ping(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"models":[]}`)
	}))
	defer srv.Close()

	c := gateway.NewOllamaClient(gateway.OllamaConfig{BaseURL: srv.URL}, discardLogger())
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
	status = http.StatusServiceUnavailable
	if err := c.Ping(context.Background()); err == nil {
		t.Error("expected ping error on 503")
	}
}

// ─── OpenAI-compatible ────────────────────────────────────────────────────────

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *gateway.OpenAIClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := gateway.NewOpenAIClient(gateway.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-4o-mini",
	}, discardLogger())
	return srv, c
}

func TestOpenAI_Generate_InlinesImageAsDataURL(t *testing.T) {
	var body string
	_, c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":"`+"```json\\n{}\\n```"+`"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	})

	text, err := c.Generate(context.Background(), "assess", pngHeader, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "```json\n{}\n```" {
		t.Errorf("text = %q", text)
	}
	if !strings.Contains(body, "data:image/png;base64,") {
		t.Errorf("request did not carry a png data URL: %s", body)
	}
	if !strings.Contains(body, `"model":"gpt-4o-mini"`) {
		t.Errorf("request did not carry the default model: %s", body)
	}
}

func TestOpenAI_Generate_NoChoices(t *testing.T) {
	_, c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[]}`)
	})

	_, err := c.Generate(context.Background(), "p", nil, "")
	if !errors.Is(err, gateway.ErrNoChoices) {
		t.Errorf("err = %v, want ErrNoChoices", err)
	}
}

func TestOpenAI_Generate_APIError(t *testing.T) {
	_, c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})

	if _, err := c.Generate(context.Background(), "p", nil, ""); err == nil {
		t.Error("expected error on 401")
	}
}

func TestOpenAI_Ping(t *testing.T) {
	_, c := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s, want /v1/models", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[]}`)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

// Both clients satisfy the full Client interface.
var (
	_ gateway.Client = (*gateway.OllamaClient)(nil)
	_ gateway.Client = (*gateway.OpenAIClient)(nil)
)
