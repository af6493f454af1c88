// Package llmcall records extraction calls for traceability.
// Every provider call is written as one JSON line with its prompt hash,
// outcome, and token usage.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/hemapex/hemapex/internal/extract"
)

// Call represents a recorded extraction call.
type Call struct {
	// Unique identifier
	ID string `json:"id" yaml:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	LatencyMs int       `json:"latency_ms" yaml:"latency_ms"`

	// Context references
	PatientID string `json:"rghc,omitempty" yaml:"rghc,omitempty"`
	RunID     string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Target    string `json:"target" yaml:"target"`

	// Prompt traceability
	PromptKey  string `json:"prompt_key" yaml:"prompt_key"`
	PromptHash string `json:"prompt_hash,omitempty" yaml:"prompt_hash,omitempty"` // hash of the exact instruction text sent

	// Model info
	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	RequestID   string  `json:"request_id,omitempty" yaml:"request_id,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`

	// Status
	Outcome  string `json:"outcome" yaml:"outcome"`
	Warnings int    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Success reports whether the call produced a validated record.
func (c *Call) Success() bool {
	return c.Outcome == extract.OutcomeValidated.String()
}

// RecordOptions provides context for recording a call.
type RecordOptions struct {
	PatientID string
	RunID     string
	Target    string

	// Prompt identification
	PromptKey  string
	PromptHash string

	Temperature float64
}

// FromResult creates a Call from an extraction result.
func FromResult[T any](result extract.Result[T], opts RecordOptions) *Call {
	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		LatencyMs:    int(result.Usage.Latency.Milliseconds()),
		PatientID:    opts.PatientID,
		RunID:        opts.RunID,
		Target:       opts.Target,
		PromptKey:    opts.PromptKey,
		PromptHash:   opts.PromptHash,
		Provider:     result.Provider,
		Model:        result.Model,
		Temperature:  opts.Temperature,
		RequestID:    result.RequestID,
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		Outcome:      result.Outcome.String(),
		Warnings:     len(result.Warnings),
	}
	if result.Err != nil {
		call.Error = result.Err.Error()
	}
	return call
}
