package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Target describes a structured extraction result type T: the JSON Schema
// the provider is asked to honour and the field normalizers applied to the
// decoded document before validation.
type Target[T any] struct {
	Name        string
	Description string
	Schema      map[string]any

	// Normalize rewrites doc in place and returns human-readable warnings
	// for every value it changed or could not interpret.
	Normalize func(doc any, logger *slog.Logger) []string
}

// JSONSchema returns the target schema as JSON.
func (t Target[T]) JSONSchema() (json.RawMessage, error) {
	data, err := json.Marshal(t.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s schema: %w", t.Name, err)
	}
	return data, nil
}

// Apply runs the target normalizer, if any.
func (t Target[T]) Apply(doc any, logger *slog.Logger) []string {
	if t.Normalize == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return t.Normalize(doc, logger)
}

// TreatmentLinesTarget extracts every treatment line found in a note.
var TreatmentLinesTarget = Target[TreatmentLines]{
	Name:        "treatment_lines",
	Description: "Linhas de tratamento oncologico descritas na nota clinica",
	Schema:      TreatmentLinesSchema,
	Normalize:   normalizeTreatmentLines,
}

// RelapseTarget extracts post-transplant relapse status.
var RelapseTarget = Target[Relapse]{
	Name:        "relapse",
	Description: "Recaida pos-transplante",
	Schema:      RelapseSchema,
	Normalize:   normalizeRelapse,
}

func normalizeTreatmentLines(doc any, logger *slog.Logger) []string {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	lines, ok := root["linhas"].([]any)
	if !ok {
		return nil
	}

	var warnings []string
	for i, item := range lines {
		line, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, field := range TreatmentDateFields {
			if w := normalizeDateField(line, field, logger); w != "" {
				warnings = append(warnings, fmt.Sprintf("linhas[%d]: %s", i, w))
			}
		}
		for _, field := range TreatmentDrugFields {
			blankToNull(line, field)
		}
		if w := normalizeTransplantField(line, "transplant_type", logger); w != "" {
			warnings = append(warnings, fmt.Sprintf("linhas[%d]: %s", i, w))
		}
	}
	return warnings
}

func normalizeRelapse(doc any, logger *slog.Logger) []string {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if w := normalizeDateField(root, "relapse_dt", logger); w != "" {
		return []string{w}
	}
	return nil
}

// normalizeDateField rewrites obj[field] to DD/MM/YYYY. Blank strings become
// null so they read as absent.
func normalizeDateField(obj map[string]any, field string, logger *slog.Logger) string {
	raw, ok := obj[field].(string)
	if !ok {
		return ""
	}
	if strings.TrimSpace(raw) == "" {
		obj[field] = nil
		return ""
	}

	out, form := NormalizeDate(raw)
	switch {
	case form == FormUnknown:
		msg := fmt.Sprintf("%s: invalid date format %q (expected DD/MM/YYYY or a convertible variant)", field, raw)
		logger.Warn("invalid date format", "field", field, "value", raw)
		return msg
	case out != raw:
		obj[field] = out
		msg := fmt.Sprintf("%s: corrected date from %s: %q -> %q", field, form, raw, out)
		logger.Warn("corrected date", "field", field, "from", raw, "to", out, "form", form.String())
		return msg
	}
	return ""
}

func normalizeTransplantField(obj map[string]any, field string, logger *slog.Logger) string {
	raw, ok := obj[field].(string)
	if !ok {
		return ""
	}
	if strings.TrimSpace(raw) == "" {
		obj[field] = nil
		return ""
	}

	out, known := NormalizeTransplantType(raw)
	obj[field] = out
	if !known {
		logger.Warn("invalid transplant type", "field", field, "value", raw)
		return fmt.Sprintf("%s: invalid transplant type %q", field, raw)
	}
	return ""
}

func blankToNull(obj map[string]any, field string) {
	if s, ok := obj[field].(string); ok && strings.TrimSpace(s) == "" {
		obj[field] = nil
	}
}
