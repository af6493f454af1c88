package llmcall

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	PatientID string
	RunID     string
	Target    string
	PromptKey string
	Provider  string
	Outcome   string
	After     *time.Time
	Limit     int
}

func (f QueryFilter) match(c *Call) bool {
	switch {
	case f.PatientID != "" && c.PatientID != f.PatientID:
		return false
	case f.RunID != "" && c.RunID != f.RunID:
		return false
	case f.Target != "" && c.Target != f.Target:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.Outcome != "" && c.Outcome != f.Outcome:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	}
	return true
}

// Read parses a JSON Lines call log and returns the calls matching filter.
func Read(r io.Reader, filter QueryFilter) ([]Call, error) {
	var calls []Call
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !filter.match(&c) {
			continue
		}
		calls = append(calls, c)
		if filter.Limit > 0 && len(calls) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return calls, nil
}

// Load reads the call log at path.
func Load(path string, filter QueryFilter) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, filter)
}

// LoadFiles reads several call logs in order. filter.Limit applies to the
// combined result.
func LoadFiles(paths []string, filter QueryFilter) ([]Call, error) {
	var calls []Call
	for _, path := range paths {
		batch, err := Load(path, filter)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		calls = append(calls, batch...)
		if filter.Limit > 0 && len(calls) >= filter.Limit {
			return calls[:filter.Limit], nil
		}
	}
	return calls, nil
}

// Summary aggregates a set of calls.
type Summary struct {
	Calls        int            `json:"calls" yaml:"calls"`
	Validated    int            `json:"validated" yaml:"validated"`
	ByOutcome    map[string]int `json:"by_outcome" yaml:"by_outcome"`
	InputTokens  int            `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int            `json:"output_tokens" yaml:"output_tokens"`
	AvgLatencyMs int            `json:"avg_latency_ms" yaml:"avg_latency_ms"`
}

// Summarize tallies calls by outcome and token usage.
func Summarize(calls []Call) Summary {
	s := Summary{ByOutcome: make(map[string]int)}
	var latency int
	for i := range calls {
		c := &calls[i]
		s.Calls++
		s.ByOutcome[c.Outcome]++
		if c.Success() {
			s.Validated++
		}
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
		latency += c.LatencyMs
	}
	if s.Calls > 0 {
		s.AvgLatencyMs = latency / s.Calls
	}
	return s
}
