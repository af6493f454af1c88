package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Provider is the tag of a supported LLM backend.
type Provider string

const (
	OpenAI  Provider = "openai"
	Gemini  Provider = "gemini"
	Mistral Provider = "mistral"
	Groq    Provider = "groq"
)

// AllProviders lists the supported provider tags.
var AllProviders = []Provider{OpenAI, Gemini, Mistral, Groq}

// ParseProvider maps a user-supplied tag to a Provider.
func ParseProvider(tag string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range AllProviders {
		if p == known {
			return p, nil
		}
	}
	return "", &UnknownProviderError{Provider: tag}
}

// SchemaMode describes how a client conveys the output schema.
type SchemaMode int

const (
	// ModeNative passes the schema as an API parameter.
	ModeNative SchemaMode = iota
	// ModePromptInjection embeds the schema in the system instruction and
	// asks for generic JSON output.
	ModePromptInjection
)

func (m SchemaMode) String() string {
	if m == ModeNative {
		return "native"
	}
	return "prompt_injection"
}

// StructuredClient performs one structured-output LLM call.
type StructuredClient interface {
	// Name returns the provider tag.
	Name() string

	// Mode reports how the schema reaches the model.
	Mode() SchemaMode

	// Generate sends a single request. Implementations never retry.
	Generate(ctx context.Context, req *StructuredRequest) (*StructuredResult, error)
}

// StructuredRequest is one extraction call.
type StructuredRequest struct {
	// Model overrides the client default when set.
	Model string

	// Instruction is the system message; Text is the user content.
	Instruction string
	Text        string

	// SchemaName names the schema for APIs that require it.
	SchemaName        string
	SchemaDescription string
	Schema            json.RawMessage

	Temperature float64

	RequestID string
}

// StructuredResult is the provider's answer.
//
// Output is whatever the provider produced: a string, a json.RawMessage, or
// a decoded value. Callers canonicalize it before validation.
type StructuredResult struct {
	Output any

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`
}

// DefaultModels holds the default model per provider.
var DefaultModels = map[Provider]string{
	OpenAI:  "gpt-4.1",
	Gemini:  "gemini-2.5-pro",
	Mistral: "open-mistral-7b",
	Groq:    "llama-3.3-70b-versatile",
}

// schemaInjectionPreamble precedes the schema in prompt-injection mode.
const schemaInjectionPreamble = "You MUST produce JSON that matches this schema exactly:"

// InjectSchema appends the JSON Schema to a system instruction.
func InjectSchema(instruction string, schema json.RawMessage) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(instruction, "\n"))
	b.WriteString("\n\n")
	b.WriteString(schemaInjectionPreamble)
	b.WriteString("\n")
	b.Write(schema)
	return b.String()
}
