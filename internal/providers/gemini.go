package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration // per request; zero leaves the deadline to ctx

	// Generate replaces the SDK call (tests).
	Generate GeminiGenerateFunc
}

// GeminiGenerateFunc performs the content generation call for a model.
type GeminiGenerateFunc func(ctx context.Context, model *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error)

// GeminiClient requests native schema-constrained JSON output through the
// Google generative AI SDK.
type GeminiClient struct {
	apiKey       string
	defaultModel string
	timeout      time.Duration
	generate     GeminiGenerateFunc
	useSDK       bool

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a new Gemini client. The SDK client is created on
// first use.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModels[Gemini]
	}
	c := &GeminiClient{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		timeout:      cfg.Timeout,
		generate:     cfg.Generate,
	}
	if c.generate == nil {
		c.useSDK = true
		c.generate = func(ctx context.Context, m *genai.GenerativeModel, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
			return m.GenerateContent(ctx, parts...)
		}
	}
	return c
}

// Name returns the provider tag.
func (c *GeminiClient) Name() string {
	return string(Gemini)
}

// Mode reports native schema support.
func (c *GeminiClient) Mode() SchemaMode {
	return ModeNative
}

// Close releases the SDK client, if one was created.
func (c *GeminiClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.client = client
	return client, nil
}

// Generate sends one request with ResponseMIMEType application/json and the
// converted response schema.
func (c *GeminiClient) Generate(ctx context.Context, req *StructuredRequest) (*StructuredResult, error) {
	start := time.Now()
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}

	responseSchema, err := GeminiSchema(req.Schema)
	if err != nil {
		return nil, err
	}

	var client *genai.Client
	if c.useSDK {
		client, err = c.sdk(ctx)
		if err != nil {
			return nil, err
		}
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(req.Temperature))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema
	if req.Instruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.Instruction)}}
	}

	resp, err := c.generate(ctx, model, genai.Text(req.Text))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text, err := geminiText(resp)
	if err != nil {
		return nil, err
	}

	result := &StructuredResult{
		Output:        text,
		ExecutionTime: time.Since(start),
		Provider:      c.Name(),
		ModelUsed:     modelName,
		RequestID:     req.RequestID,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("gemini candidate has no content (finish reason %v)", cand.FinishReason)
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// GeminiSchema converts a JSON Schema document into the SDK schema type.
// Nullable type unions become Nullable; keywords Gemini does not accept
// (pattern, numeric bounds) are dropped. Local validation still enforces
// them.
func GeminiSchema(schemaRaw json.RawMessage) (*genai.Schema, error) {
	core, err := extractValidationSchema(schemaRaw)
	if err != nil {
		return nil, err
	}
	var root map[string]any
	if err := json.Unmarshal(core, &root); err != nil {
		return nil, fmt.Errorf("failed to parse structured schema: %w", err)
	}
	return toGeminiSchema(root)
}

func toGeminiSchema(node map[string]any) (*genai.Schema, error) {
	s := &genai.Schema{}

	typeName, nullable, err := schemaTypeName(node["type"])
	if err != nil {
		return nil, err
	}
	s.Nullable = nullable
	switch typeName {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	case "object":
		s.Type = genai.TypeObject
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typeName)
	}

	if d, ok := node["description"].(string); ok {
		s.Description = d
	}
	if enum, ok := node["enum"].([]any); ok {
		for _, v := range enum {
			if str, ok := v.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		s.Items, err = toGeminiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
	}

	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			s.Properties[name], err = toGeminiSchema(child)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
		}
	}

	if req, ok := node["required"].([]any); ok {
		for _, v := range req {
			if str, ok := v.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
		sort.Strings(s.Required)
	}

	return s, nil
}

func schemaTypeName(v any) (string, bool, error) {
	switch t := v.(type) {
	case string:
		return t, false, nil
	case []any:
		name := ""
		nullable := false
		for _, item := range t {
			s, _ := item.(string)
			if s == "null" {
				nullable = true
				continue
			}
			if name != "" {
				return "", false, fmt.Errorf("type union %v is not supported", t)
			}
			name = s
		}
		return name, nullable, nil
	}
	return "", false, fmt.Errorf("schema node has no type")
}

var _ StructuredClient = (*GeminiClient)(nil)
