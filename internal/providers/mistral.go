package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const MistralBaseURL = "https://api.mistral.ai/v1"

// MistralConfig holds configuration for the Mistral chat client.
type MistralConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// MistralClient calls the Mistral chat completions API directly. The schema
// is injected into the system message and the response format is
// json_object.
type MistralClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewMistralClient creates a new Mistral client.
func NewMistralClient(cfg MistralConfig) *MistralClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MistralBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModels[Mistral]
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &MistralClient{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the provider tag.
func (c *MistralClient) Name() string {
	return string(Mistral)
}

// Mode reports prompt injection.
func (c *MistralClient) Mode() SchemaMode {
	return ModePromptInjection
}

// Generate sends one chat completion request.
func (c *MistralClient) Generate(ctx context.Context, req *StructuredRequest) (*StructuredResult, error) {
	start := time.Now()
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	temperature := req.Temperature
	body := mistralChatRequest{
		Model: model,
		Messages: []mistralMessage{
			{Role: "system", Content: InjectSchema(req.Instruction, req.Schema)},
			{Role: "user", Content: req.Text},
		},
		Temperature:    &temperature,
		ResponseFormat: &mistralResponseFormat{Type: "json_object"},
	}

	resp, err := c.doRequest(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("mistral returned no choices")
	}

	content, err := resp.Choices[0].Message.text()
	if err != nil {
		return nil, err
	}

	result := &StructuredResult{
		Output:        content,
		ExecutionTime: time.Since(start),
		Provider:      c.Name(),
		ModelUsed:     resp.Model,
		RequestID:     req.RequestID,
	}
	if resp.Usage != nil {
		result.PromptTokens = resp.Usage.PromptTokens
		result.CompletionTokens = resp.Usage.CompletionTokens
		result.TotalTokens = resp.Usage.TotalTokens
	}
	return result, nil
}

// doRequest makes an HTTP request to Mistral API.
func (c *MistralClient) doRequest(ctx context.Context, path string, body any) (*mistralChatResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: c.Name(), StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp mistralErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil {
			if msg := errResp.message(); msg != "" {
				apiErr.Message = msg
			}
		}
		return nil, apiErr
	}

	var chatResp mistralChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &chatResp, nil
}

// Mistral API types

type mistralChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []mistralMessage       `json:"messages"`
	Temperature    *float64               `json:"temperature,omitempty"`
	ResponseFormat *mistralResponseFormat `json:"response_format,omitempty"`
}

type mistralMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

type mistralChatResponse struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []mistralChoice `json:"choices"`
	Usage   *mistralUsage   `json:"usage,omitempty"`
}

type mistralChoice struct {
	Index        int                    `json:"index"`
	Message      mistralResponseMessage `json:"message"`
	FinishReason string                 `json:"finish_reason"`
}

// mistralResponseMessage content is either a string or a list of chunks.
type mistralResponseMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type mistralContentChunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m mistralResponseMessage) text() (string, error) {
	if len(m.Content) == 0 || string(m.Content) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s, nil
	}
	var chunks []mistralContentChunk
	if err := json.Unmarshal(m.Content, &chunks); err != nil {
		return "", fmt.Errorf("unexpected mistral message content: %w", err)
	}
	var b strings.Builder
	for _, chunk := range chunks {
		if chunk.Type == "" || chunk.Type == "text" {
			b.WriteString(chunk.Text)
		}
	}
	return b.String(), nil
}

type mistralUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (r mistralErrorResponse) message() string {
	if r.Error.Message != "" {
		return r.Error.Message
	}
	return r.Message
}

// Verify interface
var _ StructuredClient = (*MistralClient)(nil)
