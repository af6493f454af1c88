// Package extract turns free-text notes into schema-valid records through a
// configured LLM provider.
//
// Every call makes exactly one provider request and yields one of three
// outcomes: a validated value, the raw text that failed validation, or
// nothing. Only configuration errors (an unknown provider) are returned as
// errors; everything else is reported through the Result so batch drivers
// can continue.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"

	"github.com/hemapex/hemapex/internal/providers"
	"github.com/hemapex/hemapex/internal/schema"
)

// Request identifies the provider call for one note.
type Request struct {
	Provider    string
	Model       string // empty selects the provider default
	Instruction string
	Text        string
}

// Config configures an Extractor.
type Config struct {
	Registry    *providers.Registry
	Logger      *slog.Logger
	Temperature float64
}

// Extractor resolves providers and runs structured extraction calls.
type Extractor struct {
	registry    *providers.Registry
	logger      *slog.Logger
	temperature float64
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = providers.NewRegistry()
	}
	return &Extractor{
		registry:    registry,
		logger:      logger,
		temperature: cfg.Temperature,
	}
}

// Extract asks the provider for a T described by target and classifies the
// answer. The returned error is non-nil only for *providers.UnknownProviderError.
func Extract[T any](ctx context.Context, e *Extractor, req Request, target schema.Target[T]) (Result[T], error) {
	var result Result[T]

	client, err := e.registry.Get(req.Provider)
	if err != nil {
		return result, err
	}

	schemaRaw, err := target.JSONSchema()
	if err != nil {
		return result, err
	}

	requestID := uuid.New().String()
	result.Provider = client.Name()
	result.Model = req.Model
	result.RequestID = requestID

	logger := e.logger.With("provider", result.Provider, "target", target.Name, "request_id", requestID)

	resp, err := client.Generate(ctx, &providers.StructuredRequest{
		Model:             req.Model,
		Instruction:       req.Instruction,
		Text:              req.Text,
		SchemaName:        target.Name,
		SchemaDescription: target.Description,
		Schema:            schemaRaw,
		Temperature:       e.temperature,
		RequestID:         requestID,
	})
	if err != nil {
		logger.Error("provider call failed", "error", err)
		result.Outcome = OutcomeEmpty
		result.Err = err
		return result, nil
	}

	if resp.ModelUsed != "" {
		result.Model = resp.ModelUsed
	}
	result.Usage = Usage{
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
		Latency:          resp.ExecutionTime,
	}

	text, err := canonicalize(result.Provider, resp.Output)
	if err != nil {
		logger.Error("unrecognized output shape", "error", err)
		result.Outcome = OutcomeEmpty
		result.Err = err
		return result, nil
	}
	result.Raw = text

	value, warnings, err := decode(text, schemaRaw, target, logger)
	result.Warnings = warnings
	if err != nil {
		logger.Warn("output failed schema validation, keeping raw text", "error", err)
		result.Outcome = OutcomeRaw
		result.Err = err
		return result, nil
	}

	result.Outcome = OutcomeValidated
	result.Value = value
	logger.Debug("extraction validated",
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
		"warnings", len(warnings))
	return result, nil
}

// canonicalize turns whatever the provider returned into JSON text.
// Text-like values pass through, JSON-like structures are marshalled, and
// anything else is an *providers.UnrecognizedOutputShapeError.
func canonicalize(provider string, output any) (string, error) {
	switch v := output.(type) {
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	case []byte:
		return string(v), nil
	case nil:
		return "", &providers.UnrecognizedOutputShapeError{Provider: provider, Type: "nil"}
	}

	rv := reflect.ValueOf(output)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		data, err := json.Marshal(output)
		if err != nil {
			return "", &providers.UnrecognizedOutputShapeError{Provider: provider, Type: fmt.Sprintf("%T", output)}
		}
		return string(data), nil
	}
	return "", &providers.UnrecognizedOutputShapeError{Provider: provider, Type: fmt.Sprintf("%T", output)}
}

// decode parses text, normalizes fields, validates against the schema and
// decodes into T. Every failure is a *providers.SchemaValidationError.
func decode[T any](text string, schemaRaw json.RawMessage, target schema.Target[T], logger *slog.Logger) (T, []string, error) {
	var value T

	parsed, err := providers.ParseStructuredJSON(text)
	if err != nil {
		return value, nil, &providers.SchemaValidationError{Schema: target.Name, Err: err}
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return value, nil, &providers.SchemaValidationError{Schema: target.Name, Err: err}
	}

	warnings := target.Apply(doc, logger)

	if err := providers.ValidateStructuredJSON(schemaRaw, doc); err != nil {
		return value, warnings, &providers.SchemaValidationError{
			Schema: target.Name,
			Issues: providers.ValidationIssues(err),
			Err:    err,
		}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return value, warnings, &providers.SchemaValidationError{Schema: target.Name, Err: err}
	}
	if err := json.Unmarshal(normalized, &value); err != nil {
		return value, warnings, &providers.SchemaValidationError{Schema: target.Name, Err: err}
	}
	return value, warnings, nil
}

// IsUnknownProvider reports whether err is a provider configuration error.
func IsUnknownProvider(err error) bool {
	var unknown *providers.UnknownProviderError
	return errors.As(err, &unknown)
}
