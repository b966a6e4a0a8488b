package llm

import (
	"context"

	"retail-chatbot/internal/chat"
	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/errors"
)

// Client 支持工具调用的 LLM 客户端接口
type Client interface {
	// ChatWithTools 带工具声明的对话调用。Turns 已按该 Provider 的
	// 回放形态过滤，首条为 system 提示词的场合由调用方用
	// SystemPrompt 传入。
	ChatWithTools(ctx context.Context, req ChatRequest) (*Response, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
	// TranscriptMode 返回该 Provider 要求的历史回放形态
	TranscriptMode() chat.TranscriptMode
}

// ChatRequest 一次对话调用的输入
type ChatRequest struct {
	SystemPrompt string
	Turns        []chat.Turn
	Tools        []ToolSchema
	Options      GenerateOptions
}

// Response 一次对话调用的输出。ToolCalls 非空表示模型请求执行工具。
type Response struct {
	Content   string
	ToolCalls []chat.ToolCall
}

// ToolSchema 报给模型的工具声明（JSON Schema 风格）
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// NewClient 按 Provider 名称创建 LLM 客户端。OpenAI 兼容端点
// （qwen/deepseek 等）走 OpenAI 客户端。
func NewClient(provider string, cfg config.ProviderConfig) (Client, error) {
	switch provider {
	case "gemini":
		return NewGeminiClient(cfg)
	case "openai", "qwen", "deepseek", "":
		return NewOpenAIClient(cfg)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown llm provider %q", provider)
	}
}

// transcriptMode 解析配置中的回放形态字符串，缺省回退到 fallback。
func transcriptMode(s string, fallback chat.TranscriptMode) chat.TranscriptMode {
	switch s {
	case "passthrough":
		return chat.ModePassThrough
	case "strict":
		return chat.ModeStrictAlternation
	default:
		return fallback
	}
}
