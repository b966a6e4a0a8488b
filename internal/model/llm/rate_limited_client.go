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
	"time"

	"retail-chatbot/internal/chat"
	"retail-chatbot/pkg/metrics"
)

// RateLimitedClient 包装任意 Client，在真实调用前后执行限流控制。
type RateLimitedClient struct {
	inner       Client
	rateLimiter *RateLimiter
}

// NewRateLimitedClient 创建带限流的客户端。rateLimiter 为 nil 时退化为直接调用。
func NewRateLimitedClient(inner Client, rateLimiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// ChatWithTools 实现 Client.ChatWithTools，调用前后执行限流。
func (c *RateLimitedClient) ChatWithTools(ctx context.Context, req ChatRequest) (*Response, error) {
	if c.rateLimiter != nil {
		provider := c.inner.Provider()
		estimated := estimateRequestTokens(req)
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider, estimated); err != nil {
			return nil, err
		}
		waited := time.Since(start)
		if waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
		}
		defer c.rateLimiter.Release(provider)
	}

	resp, err := c.inner.ChatWithTools(ctx, req)
	if err != nil {
		return nil, err
	}
	if c.rateLimiter != nil {
		// 用 MaxTokens 近似记录实际用量（未来可从 response 中取 usage）
		c.rateLimiter.RecordTokenUsage(c.inner.Provider(), req.Options.MaxTokens)
	}
	return resp, nil
}

// Model 返回底层 Client 的模型名称。
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称。
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// TranscriptMode 代理到底层 Client。
func (c *RateLimitedClient) TranscriptMode() chat.TranscriptMode { return c.inner.TranscriptMode() }

// estimateRequestTokens 粗略估算一次请求的 token 数（4 字符 ≈ 1 token）。
func estimateRequestTokens(req ChatRequest) int {
	estimated := len(req.SystemPrompt)/4 + chat.EstimateTokens(req.Turns)
	if req.Options.MaxTokens > 0 {
		estimated += req.Options.MaxTokens
	}
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}
