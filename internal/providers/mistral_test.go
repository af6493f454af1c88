package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestMistralClient_Generate(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		var got mistralChatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode body: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "cmpl-1",
				"model": "open-mistral-7b",
				"choices": [{"index": 0, "finish_reason": "stop",
					"message": {"role": "assistant", "content": "{\"linhas\": []}"}}],
				"usage": {"prompt_tokens": 120, "completion_tokens": 8, "total_tokens": 128}
			}`))
		}))
		defer server.Close()

		client := NewMistralClient(MistralConfig{APIKey: "test-key", BaseURL: server.URL})
		result, err := client.Generate(context.Background(), &StructuredRequest{
			Instruction: "Extraia as linhas de tratamento.",
			Text:        "Paciente iniciou VRd em 01/02/2020.",
			Schema:      json.RawMessage(`{"type":"object"}`),
			RequestID:   "req-1",
		})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}

		if result.Output != `{"linhas": []}` {
			t.Errorf("Output = %v", result.Output)
		}
		if result.TotalTokens != 128 || result.RequestID != "req-1" {
			t.Errorf("result = %+v", result)
		}

		if got.Model != DefaultModels[Mistral] {
			t.Errorf("model = %q, want default", got.Model)
		}
		if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %+v, want json_object", got.ResponseFormat)
		}
		if got.Temperature == nil || *got.Temperature != 0 {
			t.Errorf("temperature = %v, want 0", got.Temperature)
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
			t.Fatalf("messages = %+v", got.Messages)
		}
		if !strings.Contains(got.Messages[0].Content, schemaInjectionPreamble) {
			t.Errorf("system message missing injected schema: %q", got.Messages[0].Content)
		}
	})

	t.Run("chunked content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"model":"m","choices":[{"message":{"role":"assistant",
				"content":[{"type":"text","text":"{\"relapse\":"},{"type":"text","text":" false}"}]}}]}`))
		}))
		defer server.Close()

		client := NewMistralClient(MistralConfig{APIKey: "k", BaseURL: server.URL})
		result, err := client.Generate(context.Background(), &StructuredRequest{})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if result.Output != `{"relapse": false}` {
			t.Errorf("Output = %q", result.Output)
		}
	})

	t.Run("API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "Unauthorized"}`))
		}))
		defer server.Close()

		client := NewMistralClient(MistralConfig{APIKey: "bad-key", BaseURL: server.URL})
		_, err := client.Generate(context.Background(), &StructuredRequest{})

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Unauthorized" {
			t.Errorf("apiErr = %+v", apiErr)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		client := NewMistralClient(MistralConfig{APIKey: "k", BaseURL: server.URL})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := client.Generate(ctx, &StructuredRequest{}); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

func TestMistralClient_Integration(t *testing.T) {
	cfg := LoadTestConfig()
	if !cfg.Has(Mistral) {
		t.Skip("MISTRAL_API_KEY not set")
	}
	if os.Getenv("HEMAPEX_LIVE_TESTS") == "" {
		t.Skip("HEMAPEX_LIVE_TESTS not set")
	}

	client := NewMistralClient(MistralConfig{APIKey: cfg.MistralAPIKey})
	result, err := client.Generate(context.Background(), &StructuredRequest{
		Instruction: "Responda se o paciente teve recaida.",
		Text:        "Paciente em remissao completa apos TMO autologo.",
		Schema:      json.RawMessage(`{"type":"object","properties":{"relapse":{"type":"boolean"}},"required":["relapse"]}`),
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := ParseStructuredJSON(result.Output.(string)); err != nil {
		t.Errorf("output is not JSON: %v", result.Output)
	}
}
