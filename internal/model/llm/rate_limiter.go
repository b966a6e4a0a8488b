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
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"retail-chatbot/pkg/config"
)

// RateLimiter Provider 维度的限流器，token budget + RPS + 并发控制
type RateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*providerLimiter
	defaults config.LLMRateLimitConfig
}

type providerLimiter struct {
	requestLimiter *rate.Limiter // RPS 限流器
	tokenLimiter   *rate.Limiter // Token 限流器
	semaphore      chan struct{} // 并发控制

	mu               sync.Mutex
	tokensUsedMinute int
	minuteStart      time.Time
}

// NewRateLimiter 创建限流器。未配置的 Provider 首次调用时按默认配额创建。
func NewRateLimiter(configs map[string]config.LLMRateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		defaults: config.LLMRateLimitConfig{
			TokensPerMinute:   90000,
			RequestsPerMinute: 3500,
			MaxConcurrent:     50,
		},
	}
	for provider, cfg := range configs {
		l.addProvider(provider, cfg)
	}
	return l
}

func (l *RateLimiter) addProvider(provider string, cfg config.LLMRateLimitConfig) {
	pl := &providerLimiter{minuteStart: time.Now()}

	if cfg.RequestsPerMinute > 0 {
		rps := cfg.RequestsPerMinute / 60.0
		burst := int(rps * 2) // burst = 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		pl.requestLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if cfg.TokensPerMinute > 0 {
		tps := float64(cfg.TokensPerMinute) / 60.0
		burst := cfg.TokensPerMinute / 60 * 2
		if burst < 1 {
			burst = 1
		}
		pl.tokenLimiter = rate.NewLimiter(rate.Limit(tps), burst)
	}
	if cfg.MaxConcurrent > 0 {
		pl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}

	l.mu.Lock()
	l.limiters[provider] = pl
	l.mu.Unlock()
}

func (l *RateLimiter) limiterFor(provider string) *providerLimiter {
	l.mu.RLock()
	pl, ok := l.limiters[provider]
	l.mu.RUnlock()
	if ok {
		return pl
	}
	l.addProvider(provider, l.defaults)
	l.mu.RLock()
	pl = l.limiters[provider]
	l.mu.RUnlock()
	return pl
}

// Wait 阻塞直到获得执行许可
func (l *RateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	pl := l.limiterFor(provider)

	if pl.requestLimiter != nil {
		if err := pl.requestLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}

	// 预扣 token 配额
	if pl.tokenLimiter != nil && estimatedTokens > 0 {
		if err := pl.tokenLimiter.WaitN(ctx, estimatedTokens); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}

	if pl.semaphore != nil {
		select {
		case pl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	pl.mu.Lock()
	now := time.Now()
	if now.Sub(pl.minuteStart) > time.Minute {
		pl.tokensUsedMinute = estimatedTokens
		pl.minuteStart = now
	} else {
		pl.tokensUsedMinute += estimatedTokens
	}
	pl.mu.Unlock()

	return nil
}

// Release 释放并发 slot，在调用完成后执行
func (l *RateLimiter) Release(provider string) {
	l.mu.RLock()
	pl, ok := l.limiters[provider]
	l.mu.RUnlock()

	if ok && pl.semaphore != nil {
		select {
		case <-pl.semaphore:
		default:
		}
	}
}

// RecordTokenUsage 记录实际使用的 tokens
func (l *RateLimiter) RecordTokenUsage(provider string, actualTokens int) {
	l.mu.RLock()
	pl, ok := l.limiters[provider]
	l.mu.RUnlock()
	if !ok {
		return
	}

	pl.mu.Lock()
	now := time.Now()
	if now.Sub(pl.minuteStart) > time.Minute {
		pl.tokensUsedMinute = actualTokens
		pl.minuteStart = now
	} else {
		pl.tokensUsedMinute += actualTokens
	}
	pl.mu.Unlock()
}
