package tool

import (
	"context"
)

// Schema 表示工具的 JSON Schema（供 LLM function-calling 使用）
type Schema struct {
	Type        string                    `json:"type,omitempty"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// SchemaProperty 表示 Schema 中单个属性的描述
type SchemaProperty struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Result 工具执行结果。Err 非空表示业务失败，Content 仍会作为
// 工具结果回放给模型。
type Result struct {
	Content string `json:"content"`
	Err     string `json:"error,omitempty"`
}

// Tool 会话内可被模型调用的工具接口
type Tool interface {
	Name() string
	Description() string
	Schema() Schema
	Execute(ctx context.Context, args map[string]any) (Result, error)
}
