package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
				t.Errorf("authorization = %q", got)
			}

			var body struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
				MaxTokens int `json:"max_tokens"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Model != "gpt-4o" || len(body.Messages) != 2 || body.Messages[0].Role != "system" {
				t.Errorf("request body = %+v", body)
			}
			if body.MaxTokens != 2000 {
				t.Errorf("max_tokens = %d, want 2000", body.MaxTokens)
			}

			w.Write([]byte(`{
				"choices": [{"message": {"content": "Easy run today."}, "finish_reason": "stop"}],
				"model": "gpt-4o",
				"usage": {"total_tokens": 321}
			}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider("key-1", "", srv.URL)
		resp, err := p.Generate(context.Background(), "system", "user", Options{Temperature: 0.7, MaxTokens: 2000})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if resp.Content != "Easy run today." || resp.TokensUsed != 321 || resp.StopReason != "stop" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("ping hits the models listing", func(t *testing.T) {
		var pinged bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/models" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
				t.Errorf("authorization = %q", got)
			}
			pinged = true
			w.Write([]byte(`{"data": []}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider("key-1", "", srv.URL)
		if err := p.Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
		if !pinged {
			t.Error("ping never reached the server")
		}
	})

	t.Run("ping reports a bad key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		p := NewOpenAIProvider("bad", "", srv.URL)
		err := p.Ping(context.Background())

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("want *APIError, got %T: %v", err, err)
		}
		if apiErr.StatusCode != 401 {
			t.Errorf("status = %d, want 401", apiErr.StatusCode)
		}
	})

	t.Run("api error is structured", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "Incorrect API key", "code": "invalid_api_key"}}`))
		}))
		defer srv.Close()

		p := NewOpenAIProvider("bad", "", srv.URL)
		_, err := p.Generate(context.Background(), "s", "u", Options{})

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("want *APIError, got %T: %v", err, err)
		}
		if apiErr.StatusCode != 401 || apiErr.Code != "invalid_api_key" {
			t.Errorf("api error = %+v", apiErr)
		}
		if !strings.Contains(apiErr.UserMessage(), "Invalid API key") {
			t.Errorf("user message = %q", apiErr.UserMessage())
		}
	})
}

func TestAnthropicGenerate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/messages" {
				t.Errorf("path = %q", r.URL.Path)
			}
			if got := r.Header.Get("x-api-key"); got != "key-2" {
				t.Errorf("api key header = %q", got)
			}
			if got := r.Header.Get("anthropic-version"); got == "" {
				t.Error("version header missing")
			}

			var body struct {
				System    string `json:"system"`
				MaxTokens int    `json:"max_tokens"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.System != "system" {
				t.Errorf("system prompt = %q", body.System)
			}
			// Unset max tokens falls back to the provider default.
			if body.MaxTokens != 4096 {
				t.Errorf("max_tokens = %d, want 4096", body.MaxTokens)
			}

			w.Write([]byte(`{
				"content": [{"text": "Recovery day."}],
				"model": "claude-sonnet-4-20250514",
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 100, "output_tokens": 50}
			}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("key-2", "", srv.URL)
		resp, err := p.Generate(context.Background(), "system", "user", Options{Temperature: 0.7})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if resp.Content != "Recovery day." || resp.TokensUsed != 150 || resp.StopReason != "end_turn" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("overloaded maps to a retry-later message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "Overloaded"}}`))
		}))
		defer srv.Close()

		p := NewAnthropicProvider("key-2", "", srv.URL)
		_, err := p.Generate(context.Background(), "s", "u", Options{})

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("want *APIError, got %v", err)
		}
		if !strings.Contains(apiErr.UserMessage(), "temporarily unavailable") {
			t.Errorf("user message = %q", apiErr.UserMessage())
		}
	})
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models": []}`))
		case "/api/chat":
			w.Write([]byte(`{"message": {"content": "Long slow distance."}, "model": "llama3", "done_reason": "stop", "eval_count": 42, "prompt_eval_count": 10}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	resp, err := p.Generate(context.Background(), "system", "user", Options{Temperature: 0.7})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != "Long slow distance." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TokensUsed != 52 {
		t.Errorf("tokens used = %d, want 52", resp.TokensUsed)
	}
	if resp.StopReason != "stop" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
}

func TestUserMessageMapping(t *testing.T) {
	cases := []struct {
		name string
		err  APIError
		want string
	}{
		{"rate limited", APIError{Provider: "OpenAI", StatusCode: 429}, "Rate limit"},
		{"no credits", APIError{Provider: "Anthropic", StatusCode: 400, Message: "credit balance too low"}, "Insufficient credits"},
		{"bad model", APIError{Provider: "OpenAI", StatusCode: 400, Message: "model `gpt-9` does not exist"}, "Model not found"},
		{"server error", APIError{Provider: "Ollama", StatusCode: 502}, "temporarily unavailable"},
		{"fallback", APIError{Provider: "OpenAI", StatusCode: 418, Message: "teapot"}, "request failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.UserMessage(); !strings.Contains(got, tc.want) {
				t.Errorf("user message = %q, want it to mention %q", got, tc.want)
			}
		})
	}
}
