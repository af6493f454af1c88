package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// GroqConfig holds configuration for the Groq client.
type GroqConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	BaseURL      string
	HTTPClient   *http.Client
}

// GroqClient talks to Groq through the OpenAI SDK. Groq models do not all
// support json_schema, so the schema travels in the system message and the
// response format is json_object.
type GroqClient struct {
	defaultModel string
	client       openai.Client
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(cfg GroqConfig) *GroqClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModels[Groq]
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GroqBaseURL
	}
	return &GroqClient{
		defaultModel: cfg.DefaultModel,
		client:       openai.NewClient(openAIOptions(cfg.APIKey, cfg.BaseURL, cfg.Timeout, cfg.HTTPClient)...),
	}
}

// Name returns the provider tag.
func (c *GroqClient) Name() string {
	return string(Groq)
}

// Mode reports prompt injection.
func (c *GroqClient) Mode() SchemaMode {
	return ModePromptInjection
}

// Generate sends one chat completion requesting a JSON object.
func (c *GroqClient) Generate(ctx context.Context, req *StructuredRequest) (*StructuredResult, error) {
	start := time.Now()
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(InjectSchema(req.Instruction, req.Schema)),
			openai.UserMessage(req.Text),
		},
		Temperature: openai.Float(req.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(c.Name(), err)
	}
	return completionResult(c.Name(), req.RequestID, start, resp)
}

var _ StructuredClient = (*GroqClient)(nil)
