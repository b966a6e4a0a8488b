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
	"fmt"
	"sort"
	"sync"
	"time"

	"retail-chatbot/internal/model/llm"
	"retail-chatbot/internal/tool"
	"retail-chatbot/pkg/metrics"
)

// Registry 模型可发现的工具注册表。执行路径做参数校验与 panic
// 兜底：任何失败都转成结构化错误结果回放给模型，不中断会话。
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.Tool
}

// New 创建新 Registry
func New() *Registry {
	return &Registry{tools: make(map[string]tool.Tool)}
}

// Register 注册工具，同名覆盖
func (r *Registry) Register(t tool.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (tool.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List 返回所有已注册工具，按名称排序
func (r *Registry) List() []tool.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tool.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// SchemasForLLM 返回所有工具的声明，供对话调用携带
func (r *Registry) SchemasForLLM() []llm.ToolSchema {
	list := r.List()
	out := make([]llm.ToolSchema, 0, len(list))
	for _, t := range list {
		out = append(out, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  parametersMap(t.Schema()),
		})
	}
	return out
}

// parametersMap 将 Schema 转成 JSON Schema 形式的参数声明
func parametersMap(s tool.Schema) map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	params := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		params["required"] = s.Required
	}
	return params
}

// errorResult 构造回放给模型的结构化错误结果
func errorResult(msg string) tool.Result {
	content, _ := json.Marshal(map[string]string{"error": msg})
	return tool.Result{Content: string(content), Err: msg}
}

// Execute 执行一次工具调用。未注册的工具、参数校验失败、执行报错
// 或 panic 都返回错误结果而非 error，由模型在下一轮自行处理。
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result tool.Result) {
	start := time.Now()
	defer func() {
		metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if rec := recover(); rec != nil {
			metrics.ToolFailTotal.WithLabelValues(name).Inc()
			result = errorResult(fmt.Sprintf("tool %s panicked: %v", name, rec))
		} else if result.Err != "" {
			metrics.ToolFailTotal.WithLabelValues(name).Inc()
		}
	}()

	t, ok := r.Get(name)
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	if msg := validateArgs(t.Schema(), args); msg != "" {
		return errorResult(msg)
	}

	res, err := t.Execute(ctx, args)
	if err != nil {
		return errorResult(err.Error())
	}
	return res
}

// validateArgs 校验必填参数齐全、无未声明参数
func validateArgs(s tool.Schema, args map[string]any) string {
	for _, req := range s.Required {
		v, ok := args[req]
		if !ok || v == nil || v == "" {
			return fmt.Sprintf("missing required argument: %s", req)
		}
	}
	for name := range args {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Sprintf("unknown argument: %s", name)
		}
	}
	return ""
}
