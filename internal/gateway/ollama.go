package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// OllamaClient calls a local or remote Ollama server's generate endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	options    map[string]any
	httpClient *http.Client
	logger     *slog.Logger
}

// OllamaConfig configures an OllamaClient.
//   - BaseURL: e.g. "http://localhost:11434"
//   - Model:   used when Generate is called with an empty model, e.g. "llava"
//   - Timeout: whole-request deadline, default 60s
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Options map[string]any // sampler options passed through verbatim
}

// NewOllamaClient returns a client for the Ollama HTTP API.
func NewOllamaClient(cfg OllamaConfig, logger *slog.Logger) *OllamaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		options: cfg.Options,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// ─── OLLAMA API SHAPES ────────────────────────────────────────────────────────

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images,omitempty"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Error     string `json:"error"`
	CreatedAt string `json:"created_at"`
}

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

// Generate posts the prompt and base64 image to /api/generate with streaming
// disabled and returns the response text. An empty response string is not an
// error.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, image []byte, model string) (string, error) {
	if model == "" {
		model = c.model
	}

	reqBody := ollamaGenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options,
	}
	if len(image) > 0 {
		reqBody.Images = []string{base64.StdEncoding.EncodeToString(image)}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20)) // 4 MB cap
	if err != nil {
		return "", fmt.Errorf("ollama: read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("ollama: unmarshal response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama: API error: %s", parsed.Error)
	}

	c.logger.Debug("ollama: generate complete",
		"model", model,
		"chars", len(parsed.Response),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return parsed.Response, nil
}

// Ping lists local models via /api/tags. Any non-200 answer counts as down.
func (c *OllamaClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama: build ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}
