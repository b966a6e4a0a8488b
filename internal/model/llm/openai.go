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
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"retail-chatbot/internal/chat"
	"retail-chatbot/pkg/config"
)

// OpenAIClient OpenAI 及兼容端点客户端。历史回放形态为 passthrough：
// 完整保留 assistant tool_calls 与 tool 结果轮次。
type OpenAIClient struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	transcript chat.TranscriptMode
	client     *resty.Client
}

// NewOpenAIClient 创建 OpenAI 兼容客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIClient(cfg config.ProviderConfig) (*OpenAIClient, error) {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(providerTimeout(cfg))
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIClient{
		provider:   "openai",
		model:      model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		transcript: transcriptMode(cfg.Transcript, chat.ModePassThrough),
		client:     client,
	}, nil
}

// ChatWithTools 带工具声明的对话调用
func (c *OpenAIClient) ChatWithTools(ctx context.Context, req ChatRequest) (*Response, error) {
	// 转换消息格式
	messages := make([]map[string]any, 0, len(req.Turns)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.SystemPrompt})
	}
	for _, t := range req.Turns {
		msg, err := openAIMessage(t)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	// 构建请求
	request := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	if req.Options.Temperature > 0 {
		request["temperature"] = req.Options.Temperature
	}
	if req.Options.MaxTokens > 0 {
		request["max_tokens"] = req.Options.MaxTokens
	}
	if req.Options.TopP > 0 {
		request["top_p"] = req.Options.TopP
	}
	if len(req.Options.Stop) > 0 {
		request["stop"] = req.Options.Stop
	}
	if len(req.Tools) > 0 {
		tools := make([]map[string]any, len(req.Tools))
		for i, s := range req.Tools {
			tools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        s.Name,
					"description": s.Description,
					"parameters":  s.Parameters,
				},
			}
		}
		request["tools"] = tools
	}

	// 发送请求
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")

	if err != nil {
		return nil, fmt.Errorf("调用 OpenAI API failed: %w", err)
	}

	// 检查响应状态
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API 返回错误: %s", response.String())
	}

	// 解析响应
	var result struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 OpenAI 响应failed: %w", err)
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API 没有返回结果")
	}

	msg := result.Choices[0].Message
	out := &Response{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			// 模型给出的参数不是合法 JSON 时按空参数处理，由
			// 注册表的参数校验兜底
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return out, nil
}

// openAIMessage 将单个轮次转换为 OpenAI 消息格式
func openAIMessage(t chat.Turn) (map[string]any, error) {
	switch t.Role {
	case chat.RoleUser:
		return map[string]any{"role": "user", "content": t.Content}, nil
	case chat.RoleAssistant:
		msg := map[string]any{"role": "assistant", "content": t.Content}
		if len(t.ToolCalls) > 0 {
			calls := make([]map[string]any, len(t.ToolCalls))
			for i, tc := range t.ToolCalls {
				argsJSON, err := json.Marshal(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("序列化工具参数 failed: %w", err)
				}
				calls[i] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(argsJSON),
					},
				}
			}
			msg["tool_calls"] = calls
		}
		return msg, nil
	case chat.RoleTool:
		return map[string]any{
			"role":         "tool",
			"tool_call_id": t.ToolCallID,
			"content":      t.Content,
		}, nil
	default:
		return nil, fmt.Errorf("不支持的消息角色: %s", t.Role)
	}
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string {
	return c.provider
}

// TranscriptMode 返回历史回放形态
func (c *OpenAIClient) TranscriptMode() chat.TranscriptMode {
	return c.transcript
}

// providerTimeout 解析 Provider 超时配置，缺省 30 秒
func providerTimeout(cfg config.ProviderConfig) time.Duration {
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}
