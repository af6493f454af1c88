package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a StructuredClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	FailAfter  int // Fail after N requests (0 = never)
	SchemaMode SchemaMode

	// Output is returned as StructuredResult.Output. It may be a string,
	// json.RawMessage, a decoded value, or nil.
	Output any

	// Outputs, when set, is consumed in order; the last entry repeats.
	Outputs []any

	// State
	requestCount atomic.Int64

	mu       sync.Mutex
	requests []StructuredRequest
}

// NewMockClient creates a new mock client returning output.
func NewMockClient(output any) *MockClient {
	return &MockClient{Output: output}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Mode returns the configured schema mode.
func (c *MockClient) Mode() SchemaMode {
	return c.SchemaMode
}

// Generate records the request and returns the configured output.
func (c *MockClient) Generate(ctx context.Context, req *StructuredRequest) (*StructuredResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	output := c.Output
	if len(c.Outputs) > 0 {
		idx := int(count) - 1
		if idx >= len(c.Outputs) {
			idx = len(c.Outputs) - 1
		}
		output = c.Outputs[idx]
	}

	promptTokens := (len(req.Instruction) + len(req.Text)) / 4 // Rough estimate
	completionTokens := 0
	if s, ok := output.(string); ok {
		completionTokens = len(s) / 4
	}

	return &StructuredResult{
		Output:           output,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		ExecutionTime:    time.Since(start),
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        req.RequestID,
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of the requests received.
func (c *MockClient) Requests() []StructuredRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StructuredRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ StructuredClient = (*MockClient)(nil)
