package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestOpenAIEngine_Generate(t *testing.T) {
	var captured map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": `{"recommendation_ids":[3]}`},
			}},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	out, err := e.Generate(context.Background(), "gpt-4o-mini", "rank",
		GenerateOptions{JSON: true, Temperature: 0.2, MaxTokens: 512})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"recommendation_ids":[3]}` {
		t.Errorf("got %q", out)
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	rf, _ := captured["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", captured["response_format"])
	}
	if captured["max_tokens"] != float64(512) {
		t.Errorf("max_tokens = %v, want 512", captured["max_tokens"])
	}
}

func TestOpenAIEngine_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	if _, err := e.Generate(context.Background(), "missing", "rank", GenerateOptions{}); err == nil {
		t.Fatal("expected client error")
	}
}

func TestOpenAIEngine_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEngine("sk-test", srv.URL+"/v1")
	if _, err := e.Generate(context.Background(), "m", "rank", GenerateOptions{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
