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

// GeminiClient Gemini 客户端。历史回放形态为 strict：Gemini 要求
// 历史 user/model 严格交替，回放的历史在发送前被整理；当前请求内的
// 工具调用与结果按 functionCall/functionResponse 原样下发。
type GeminiClient struct {
	provider   string
	model      string
	apiKey     string
	baseURL    string
	transcript chat.TranscriptMode
	client     *resty.Client
}

// NewGeminiClient 创建新的 Gemini 客户端
func NewGeminiClient(cfg config.ProviderConfig) (*GeminiClient, error) {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
		if envURL := os.Getenv("GEMINI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(providerTimeout(cfg))
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &GeminiClient{
		provider:   "gemini",
		model:      model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		transcript: transcriptMode(cfg.Transcript, chat.ModeStrictAlternation),
		client:     client,
	}, nil
}

// ChatWithTools 带工具声明的对话调用
func (c *GeminiClient) ChatWithTools(ctx context.Context, req ChatRequest) (*Response, error) {
	// 转换消息格式
	contents := make([]map[string]any, 0, len(req.Turns))
	for _, t := range req.Turns {
		switch t.Role {
		case chat.RoleUser:
			contents = append(contents, map[string]any{
				"role":  "user",
				"parts": []map[string]any{{"text": t.Content}},
			})
		case chat.RoleAssistant:
			parts := make([]map[string]any, 0, 1+len(t.ToolCalls))
			if t.Content != "" {
				parts = append(parts, map[string]any{"text": t.Content})
			}
			for _, call := range t.ToolCalls {
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{
						"name": call.Name,
						"args": call.Arguments,
					},
				})
			}
			if len(parts) == 0 {
				parts = append(parts, map[string]any{"text": ""})
			}
			contents = append(contents, map[string]any{
				"role":  "model",
				"parts": parts,
			})
		case chat.RoleTool:
			contents = append(contents, map[string]any{
				"role": "user",
				"parts": []map[string]any{{
					"functionResponse": map[string]any{
						"name":     t.ToolName,
						"response": map[string]any{"content": t.Content},
					},
				}},
			})
		}
	}

	// 构建请求
	request := map[string]any{
		"contents": contents,
	}
	if req.SystemPrompt != "" {
		request["system_instruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.SystemPrompt}},
		}
	}
	genConfig := map[string]any{}
	if req.Options.Temperature > 0 {
		genConfig["temperature"] = req.Options.Temperature
	}
	if req.Options.MaxTokens > 0 {
		genConfig["maxOutputTokens"] = req.Options.MaxTokens
	}
	if req.Options.TopP > 0 {
		genConfig["topP"] = req.Options.TopP
	}
	if len(req.Options.Stop) > 0 {
		genConfig["stopSequences"] = req.Options.Stop
	}
	if len(genConfig) > 0 {
		request["generationConfig"] = genConfig
	}
	if len(req.Tools) > 0 {
		decls := make([]map[string]any, len(req.Tools))
		for i, s := range req.Tools {
			decls[i] = map[string]any{
				"name":        s.Name,
				"description": s.Description,
				"parameters":  s.Parameters,
			}
		}
		request["tools"] = []map[string]any{{"functionDeclarations": decls}}
	}

	// 发送请求
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request).
		Post(c.baseURL + "/models/" + c.model + ":generateContent?key=" + c.apiKey)

	if err != nil {
		return nil, fmt.Errorf("调用 Gemini API 失败: %w", err)
	}

	// 检查响应状态
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("Gemini API 返回错误: %s", response.String())
	}

	// 解析响应
	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text         string `json:"text"`
					FunctionCall *struct {
						Name string         `json:"name"`
						Args map[string]any `json:"args"`
					} `json:"functionCall"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 Gemini 响应失败: %w", err)
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("Gemini API 没有返回结果")
	}

	out := &Response{}
	for i, part := range result.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
				// Gemini 不下发调用 ID，按序号合成
				ID:        fmt.Sprintf("call_%d", i),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
			continue
		}
		out.Content += part.Text
	}
	if out.Content == "" && len(out.ToolCalls) == 0 {
		return nil, fmt.Errorf("Gemini API 没有返回文本")
	}
	return out, nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string {
	return c.provider
}

// TranscriptMode 返回历史回放形态
func (c *GeminiClient) TranscriptMode() chat.TranscriptMode {
	return c.transcript
}
