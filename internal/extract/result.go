package extract

import "time"

// Outcome classifies an extraction call.
type Outcome int

const (
	// OutcomeEmpty means nothing usable was produced: a transport failure or
	// an output of unrecognized shape.
	OutcomeEmpty Outcome = iota
	// OutcomeRaw means the provider answered but the answer did not
	// satisfy the target schema. Result.Raw holds the text for repair.
	OutcomeRaw
	// OutcomeValidated means Result.Value holds a schema-valid record.
	OutcomeValidated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRaw:
		return "raw"
	case OutcomeValidated:
		return "validated"
	default:
		return "empty"
	}
}

// Usage reports token counts and latency for one call.
type Usage struct {
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Latency          time.Duration `json:"latency"`
}

// Result is the three-way outcome of Extract.
type Result[T any] struct {
	Outcome Outcome

	// Value is set only for OutcomeValidated.
	Value T

	// Raw is the canonical text the provider produced, when there was any.
	Raw string

	// Err explains a non-validated outcome.
	Err error

	// Warnings lists normalizer rewrites and unrecognized field values.
	Warnings []string

	Provider  string
	Model     string
	RequestID string
	Usage     Usage
}

// Validated reports whether Value is usable.
func (r Result[T]) Validated() bool {
	return r.Outcome == OutcomeValidated
}
