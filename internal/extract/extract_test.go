package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hemapex/hemapex/internal/providers"
	"github.com/hemapex/hemapex/internal/schema"
)

func newTestExtractor(client providers.StructuredClient) *Extractor {
	registry := providers.NewRegistry()
	registry.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry.Register(providers.OpenAI, client)
	return New(Config{
		Registry: registry,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestExtract_TwoEpisodes(t *testing.T) {
	mock := providers.NewMockClient(`{"linhas": [
		{"line_number": 1, "inducao_start": "10/01/2018", "inducao_medicamentos": "VRd", "transplant_dt": "06/2018", "transplant_type": "Autólogo"},
		{"line_number": 2, "inducao_start": "03/15/2021", "inducao_medicamentos": "Dara-VRd"}
	]}`)
	e := newTestExtractor(mock)

	result, err := Extract(context.Background(), e, Request{
		Provider:    "openai",
		Instruction: "Extraia as linhas.",
		Text:        "Paciente com duas linhas de tratamento.",
	}, schema.TreatmentLinesTarget)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if result.Outcome != OutcomeValidated {
		t.Fatalf("Outcome = %v, err = %v", result.Outcome, result.Err)
	}

	lines := result.Value.Linhas
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].LineNumber != 1 || lines[1].LineNumber != 2 {
		t.Errorf("line numbers = %d, %d", lines[0].LineNumber, lines[1].LineNumber)
	}
	if lines[0].TransplantDate != "15/06/2018" {
		t.Errorf("TransplantDate = %q, want 15/06/2018", lines[0].TransplantDate)
	}
	if lines[0].TransplantType != "autologo" {
		t.Errorf("TransplantType = %q, want autologo", lines[0].TransplantType)
	}
	if lines[1].InducaoStart != "15/03/2021" {
		t.Errorf("InducaoStart = %q, want 15/03/2021", lines[1].InducaoStart)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("Warnings = %v, want two date rewrites", result.Warnings)
	}
	if result.RequestID == "" || result.Provider != providers.MockClientName {
		t.Errorf("result metadata = %+v", result)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider called %d times, want 1", len(reqs))
	}
	if reqs[0].Temperature != 0 || reqs[0].SchemaName != "treatment_lines" || len(reqs[0].Schema) == 0 {
		t.Errorf("request = %+v", reqs[0])
	}
	if reqs[0].Instruction != "Extraia as linhas." {
		t.Errorf("Instruction = %q", reqs[0].Instruction)
	}
}

func TestExtract_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		output      any
		fail        bool
		wantOutcome Outcome
		wantRaw     string
		wantErr     any
	}{
		{
			name:        "structured map",
			output:      map[string]any{"linhas": []any{map[string]any{"line_number": 1}}},
			wantOutcome: OutcomeValidated,
		},
		{
			name:        "fenced json",
			output:      "```json\n{\"linhas\": []}\n```",
			wantOutcome: OutcomeValidated,
		},
		{
			name:        "schema violation",
			output:      `{"linhas": [{"line_number": 0}]}`,
			wantOutcome: OutcomeRaw,
			wantRaw:     `{"linhas": [{"line_number": 0}]}`,
			wantErr:     new(*providers.SchemaValidationError),
		},
		{
			name:        "missing required",
			output:      `{"lines": []}`,
			wantOutcome: OutcomeRaw,
			wantRaw:     `{"lines": []}`,
			wantErr:     new(*providers.SchemaValidationError),
		},
		{
			name:        "prose",
			output:      "Nao encontrei tratamentos.",
			wantOutcome: OutcomeRaw,
			wantRaw:     "Nao encontrei tratamentos.",
			wantErr:     new(*providers.SchemaValidationError),
		},
		{
			name:        "nil output",
			output:      nil,
			wantOutcome: OutcomeEmpty,
			wantErr:     new(*providers.UnrecognizedOutputShapeError),
		},
		{
			name:        "scalar output",
			output:      42,
			wantOutcome: OutcomeEmpty,
			wantErr:     new(*providers.UnrecognizedOutputShapeError),
		},
		{
			name:        "transport failure",
			fail:        true,
			wantOutcome: OutcomeEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := providers.NewMockClient(tt.output)
			mock.ShouldFail = tt.fail
			e := newTestExtractor(mock)

			result, err := Extract(context.Background(), e, Request{Provider: "openai", Text: "nota"}, schema.TreatmentLinesTarget)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if result.Outcome != tt.wantOutcome {
				t.Fatalf("Outcome = %v, want %v (err %v)", result.Outcome, tt.wantOutcome, result.Err)
			}
			if tt.wantRaw != "" && result.Raw != tt.wantRaw {
				t.Errorf("Raw = %q, want %q", result.Raw, tt.wantRaw)
			}
			if tt.wantOutcome != OutcomeValidated && result.Err == nil {
				t.Error("expected Err on non-validated outcome")
			}
			if tt.wantErr != nil && !errors.As(result.Err, tt.wantErr) {
				t.Errorf("Err = %T %v, want %T", result.Err, result.Err, tt.wantErr)
			}
		})
	}
}

func TestExtract_ValidationIssuesNamed(t *testing.T) {
	mock := providers.NewMockClient(`{"linhas": [{"line_number": 1, "radio_start": "no inicio de 2020"}]}`)
	e := newTestExtractor(mock)

	result, _ := Extract(context.Background(), e, Request{Provider: "openai"}, schema.TreatmentLinesTarget)
	if result.Outcome != OutcomeRaw {
		t.Fatalf("Outcome = %v, want raw", result.Outcome)
	}
	var sve *providers.SchemaValidationError
	if !errors.As(result.Err, &sve) {
		t.Fatalf("Err = %v", result.Err)
	}
	if len(sve.Issues) == 0 || !strings.Contains(strings.Join(sve.Issues, " "), "radio_start") {
		t.Errorf("Issues = %v, want radio_start", sve.Issues)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v, want unparseable date warning", result.Warnings)
	}
}

func TestExtract_UnknownProvider(t *testing.T) {
	e := newTestExtractor(providers.NewMockClient("{}"))

	_, err := Extract(context.Background(), e, Request{Provider: "claude"}, schema.TreatmentLinesTarget)
	if !IsUnknownProvider(err) {
		t.Fatalf("Extract() error = %v, want unknown provider", err)
	}

	_, err = Extract(context.Background(), e, Request{Provider: "gemini"}, schema.RelapseTarget)
	if !IsUnknownProvider(err) {
		t.Fatalf("Extract() unconfigured provider error = %v, want unknown provider", err)
	}
}

func TestExtract_Relapse(t *testing.T) {
	mock := providers.NewMockClient(`{"relapse": true, "relapse_dt": "11/2022"}`)
	e := newTestExtractor(mock)

	result, err := Extract(context.Background(), e, Request{Provider: "openai"}, schema.RelapseTarget)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !result.Validated() {
		t.Fatalf("Outcome = %v, err = %v", result.Outcome, result.Err)
	}
	if !result.Value.Relapse || result.Value.Date != "15/11/2022" {
		t.Errorf("Value = %+v", result.Value)
	}
}

func TestCanonicalize(t *testing.T) {
	type record struct {
		A int `json:"a"`
	}
	tests := []struct {
		name   string
		output any
		want   string
		ok     bool
	}{
		{"string", "x", "x", true},
		{"bytes", []byte("y"), "y", true},
		{"struct", record{A: 1}, `{"a":1}`, true},
		{"pointer", &record{A: 2}, `{"a":2}`, true},
		{"slice", []any{1, 2}, `[1,2]`, true},
		{"bool", true, "", false},
		{"float", 1.5, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalize("mock", tt.output)
			if (err == nil) != tt.ok {
				t.Fatalf("canonicalize() error = %v, ok = %v", err, tt.ok)
			}
			if got != tt.want {
				t.Errorf("canonicalize() = %q, want %q", got, tt.want)
			}
		})
	}
}
