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

package registry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"retail-chatbot/internal/tool"
)

type fakeTool struct {
	name    string
	schema  tool.Schema
	execute func(ctx context.Context, args map[string]any) (tool.Result, error)
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool for tests" }
func (f *fakeTool) Schema() tool.Schema { return f.schema }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	return f.execute(ctx, args)
}

func searchSchema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":     {Type: "string", Description: "search query"},
			"max_price": {Type: "number"},
		},
		Required: []string{"query"},
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := New()
	r.Register(&fakeTool{
		name:   "search_products",
		schema: searchSchema(),
		execute: func(ctx context.Context, args map[string]any) (tool.Result, error) {
			return tool.Result{Content: `{"products":[]}`}, nil
		},
	})

	res := r.Execute(context.Background(), "search_products", map[string]any{"query": "tv"})
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if res.Content != `{"products":[]}` {
		t.Errorf("unexpected content: %s", res.Content)
	}
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := New()
	res := r.Execute(context.Background(), "book_flight", nil)
	if res.Err == "" || !strings.Contains(res.Err, "unknown tool") {
		t.Fatalf("expected unknown tool error, got %+v", res)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(res.Content), &payload); err != nil {
		t.Fatalf("error result must be JSON: %v", err)
	}
	if payload["error"] == "" {
		t.Error("expected error key in result content")
	}
}

func TestRegistry_ValidatesArguments(t *testing.T) {
	r := New()
	r.Register(&fakeTool{
		name:   "search_products",
		schema: searchSchema(),
		execute: func(ctx context.Context, args map[string]any) (tool.Result, error) {
			t.Fatal("execute must not be reached on validation failure")
			return tool.Result{}, nil
		},
	})

	res := r.Execute(context.Background(), "search_products", map[string]any{"max_price": 20000})
	if !strings.Contains(res.Err, "missing required argument: query") {
		t.Errorf("expected missing-argument error, got %q", res.Err)
	}

	res = r.Execute(context.Background(), "search_products", map[string]any{"query": "tv", "color": "red"})
	if !strings.Contains(res.Err, "unknown argument: color") {
		t.Errorf("expected unknown-argument error, got %q", res.Err)
	}
}

func TestRegistry_RecoversPanic(t *testing.T) {
	r := New()
	r.Register(&fakeTool{
		name:   "search_products",
		schema: searchSchema(),
		execute: func(ctx context.Context, args map[string]any) (tool.Result, error) {
			panic("backend exploded")
		},
	})

	res := r.Execute(context.Background(), "search_products", map[string]any{"query": "tv"})
	if !strings.Contains(res.Err, "panicked") {
		t.Fatalf("expected panic captured as error result, got %+v", res)
	}
}

func TestRegistry_SchemasForLLM(t *testing.T) {
	r := New()
	r.Register(&fakeTool{name: "b_tool", schema: searchSchema(), execute: nil})
	r.Register(&fakeTool{name: "a_tool", schema: tool.Schema{Type: "object"}, execute: nil})

	schemas := r.SchemasForLLM()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
	if schemas[0].Name != "a_tool" || schemas[1].Name != "b_tool" {
		t.Errorf("schemas not sorted: %v, %v", schemas[0].Name, schemas[1].Name)
	}

	params := schemas[1].Parameters
	if params["type"] != "object" {
		t.Errorf("parameters type = %v", params["type"])
	}
	req, ok := params["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "query" {
		t.Errorf("unexpected required: %v", params["required"])
	}
}
