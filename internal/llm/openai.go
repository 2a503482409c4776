package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"bioclass/internal/config"
	"bioclass/internal/httpkit"
)

// DefaultBaseURL is the OpenAI chat-completions endpoint.
const DefaultBaseURL = "https://api.openai.com/v1/chat/completions"

// ErrNoAPIKey is returned when Resolve is called without a configured
// API key. Startup proceeds without one; only the AI stage fails.
var ErrNoAPIKey = errors.New("openai: api key not configured")

// OpenAIClient implements Resolver against the OpenAI chat-completions API.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates an OpenAI-backed resolver. The per-call timeout
// is owned by the caller's context; the underlying http.Client carries no
// timeout of its own.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		logger:  logger.With("provider", "openai"),
		// Timeout control lives in ctx so the classifier's 30s budget
		// governs the whole call, not each transport phase separately.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(0)),
	}
}

// OpenAI request/response types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Resolve sends one chat-completion request carrying the prompt (system
// message) and the numbered bio list (user message), then parses the
// reply into per-number labels. It makes exactly one attempt: the
// classifier's conservative-default policy is the retry strategy here.
func (c *OpenAIClient) Resolve(ctx context.Context, prompt string, bios []string) (map[int]string, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if len(bios) == 0 {
		return map[int]string{}, nil
	}

	var payload strings.Builder
	for i, bio := range bios {
		fmt.Fprintf(&payload, "%d) %s\n", i+1, bio)
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: payload.String()},
		},
		Temperature: 0,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("sending classification batch", "model", c.model, "bios", len(bios))
	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openai API error %d: %s", resp.StatusCode, errBody)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("openai API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return nil, errors.New("openai response has no choices")
	}

	content := cr.Choices[0].Message.Content
	c.logger.Log(ctx, config.LevelTrace, "response content", "content", content)

	labels := parseLabelLines(content, len(bios))
	c.logger.Debug("batch resolved",
		"model", cr.Model,
		"requested", len(bios),
		"parsed", len(labels),
	)

	return labels, nil
}
