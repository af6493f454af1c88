package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig holds configuration for the OpenAI structured client.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	BaseURL      string       // Optional (tests)
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAIClient requests native strict json_schema output through the
// official OpenAI SDK.
type OpenAIClient struct {
	defaultModel string
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI client. SDK retries are disabled.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModels[OpenAI]
	}
	return &OpenAIClient{
		defaultModel: cfg.DefaultModel,
		client:       openai.NewClient(openAIOptions(cfg.APIKey, cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)...),
	}
}

func openAIOptions(apiKey, baseURL string, timeout time.Duration, httpClient *http.Client) []option.RequestOption {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return opts
}

// Name returns the provider tag.
func (c *OpenAIClient) Name() string {
	return string(OpenAI)
}

// Mode reports native schema support.
func (c *OpenAIClient) Mode() SchemaMode {
	return ModeNative
}

// Generate sends one chat completion with a strict json_schema response
// format at the requested temperature.
func (c *OpenAIClient) Generate(ctx context.Context, req *StructuredRequest) (*StructuredResult, error) {
	start := time.Now()
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	strict, err := strictSchemaForOpenAI(req.Schema)
	if err != nil {
		return nil, err
	}

	name := req.SchemaName
	if name == "" {
		name = "structured_output"
	}
	jsonSchema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   name,
		Strict: openai.Bool(true),
		Schema: strict,
	}
	if req.SchemaDescription != "" {
		jsonSchema.Description = openai.String(req.SchemaDescription)
	}

	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.Instruction),
			openai.UserMessage(req.Text),
		},
		Temperature: openai.Float(req.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(c.Name(), err)
	}
	return completionResult(c.Name(), req.RequestID, start, resp)
}

// completionResult converts a chat completion into a StructuredResult.
// Valid JSON content is returned as json.RawMessage, anything else as text.
func completionResult(provider, requestID string, start time.Time, resp *openai.ChatCompletion) (*StructuredResult, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", provider)
	}
	msg := resp.Choices[0].Message
	if refusal := strings.TrimSpace(msg.Refusal); refusal != "" {
		return nil, fmt.Errorf("%s refused request: %s", provider, refusal)
	}

	var output any = msg.Content
	if json.Valid([]byte(msg.Content)) {
		output = json.RawMessage(msg.Content)
	}

	return &StructuredResult{
		Output:           output,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
		Provider:         provider,
		ModelUsed:        resp.Model,
		RequestID:        requestID,
	}, nil
}

func mapOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
		}
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

var _ StructuredClient = (*OpenAIClient)(nil)
