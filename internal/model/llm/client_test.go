// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"retail-chatbot/internal/chat"
	"retail-chatbot/pkg/config"
)

func TestNewClient_Dispatch(t *testing.T) {
	openai, err := NewClient("openai", config.ProviderConfig{Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("NewClient(openai) error: %v", err)
	}
	if openai.TranscriptMode() != chat.ModePassThrough {
		t.Errorf("openai transcript = %v, want passthrough", openai.TranscriptMode())
	}

	gemini, err := NewClient("gemini", config.ProviderConfig{Model: "gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("NewClient(gemini) error: %v", err)
	}
	if gemini.TranscriptMode() != chat.ModeStrictAlternation {
		t.Errorf("gemini transcript = %v, want strict", gemini.TranscriptMode())
	}

	if _, err := NewClient("llama-on-a-toaster", config.ProviderConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewClient_TranscriptOverride(t *testing.T) {
	c, err := NewClient("gemini", config.ProviderConfig{Transcript: "passthrough"})
	if err != nil {
		t.Fatal(err)
	}
	if c.TranscriptMode() != chat.ModePassThrough {
		t.Errorf("transcript override ignored, got %v", c.TranscriptMode())
	}
}

func TestOpenAIClient_ChatWithTools(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {
				"content": "",
				"tool_calls": [{"id": "call_abc", "function": {"name": "search_products", "arguments": "{\"query\": \"phones under 20000\"}"}}]
			}}]
		}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.ProviderConfig{Model: "gpt-4o-mini", APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.ChatWithTools(context.Background(), ChatRequest{
		SystemPrompt: "You are a retail assistant.",
		Turns: []chat.Turn{
			chat.UserTurn("show me phones under 20000"),
		},
		Tools: []ToolSchema{{
			Name:        "search_products",
			Description: "Search the product catalog",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("ChatWithTools error: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_abc" || tc.Name != "search_products" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	if tc.Arguments["query"] != "phones under 20000" {
		t.Errorf("arguments not parsed: %+v", tc.Arguments)
	}

	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected system + user message, got %v", gotBody["messages"])
	}
	first := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("first message role = %v, want system", first["role"])
	}
	if _, ok := gotBody["tools"]; !ok {
		t.Error("tools missing from request body")
	}
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model overloaded"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(config.ProviderConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ChatWithTools(context.Background(), ChatRequest{Turns: []chat.Turn{chat.UserTurn("hi")}}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestGeminiClient_FunctionCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"candidates": [{"content": {"parts": [
				{"functionCall": {"name": "get_store_details", "args": {"city": "Indore"}}}
			]}}]
		}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient(config.ProviderConfig{APIKey: "test", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.ChatWithTools(context.Background(), ChatRequest{
		Turns: []chat.Turn{chat.UserTurn("any store in indore?")},
	})
	if err != nil {
		t.Fatalf("ChatWithTools error: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "get_store_details" || resp.ToolCalls[0].Arguments["city"] != "Indore" {
		t.Errorf("unexpected tool call: %+v", resp.ToolCalls[0])
	}
	if resp.ToolCalls[0].ID == "" {
		t.Error("expected synthesized call ID")
	}
}

func TestOpenAIMessage_Roles(t *testing.T) {
	msg, err := openAIMessage(chat.AssistantTurn("", []chat.ToolCall{{ID: "c1", Name: "search_products", Arguments: map[string]any{"query": "tv"}}}))
	if err != nil {
		t.Fatal(err)
	}
	calls, ok := msg["tool_calls"].([]map[string]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("tool_calls missing: %v", msg)
	}
	fn := calls[0]["function"].(map[string]any)
	if fn["name"] != "search_products" {
		t.Errorf("unexpected function: %v", fn)
	}

	msg, err = openAIMessage(chat.ToolResultTurn("c1", "search_products", `{"products": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg["role"] != "tool" || msg["tool_call_id"] != "c1" {
		t.Errorf("unexpected tool message: %v", msg)
	}
}

func TestEstimateRequestTokens(t *testing.T) {
	req := ChatRequest{
		SystemPrompt: "abcd",
		Turns:        []chat.Turn{chat.UserTurn("12345678")},
		Options:      GenerateOptions{MaxTokens: 10},
	}
	if got := estimateRequestTokens(req); got != 13 {
		t.Errorf("estimateRequestTokens = %d, want 13", got)
	}
}

func TestRateLimiter_ConcurrencySlots(t *testing.T) {
	rl := NewRateLimiter(map[string]config.LLMRateLimitConfig{
		"openai": {MaxConcurrent: 1},
	})
	ctx := context.Background()

	if err := rl.Wait(ctx, "openai", 10); err != nil {
		t.Fatalf("first Wait failed: %v", err)
	}

	blocked, cancel := context.WithCancel(ctx)
	cancel()
	if err := rl.Wait(blocked, "openai", 10); err == nil {
		t.Fatal("expected second Wait to block until cancellation")
	}

	rl.Release("openai")
	if err := rl.Wait(ctx, "openai", 10); err != nil {
		t.Fatalf("Wait after Release failed: %v", err)
	}
}
