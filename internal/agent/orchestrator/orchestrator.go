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

// Package orchestrator 会话主循环。驱动 模型调用⇄工具执行 的状态机，
// 把最终回复整形成固定 schema 后返回。对调用方永不报错：模型故障、
// 超长对话、循环超限都折叠成合法的回答结构。同一 session 的请求
// 需由调用方串行化。
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"retail-chatbot/internal/agent/normalize"
	"retail-chatbot/internal/chat"
	"retail-chatbot/internal/model/llm"
	"retail-chatbot/internal/runtime/session"
	"retail-chatbot/internal/tool/builtin"
	"retail-chatbot/internal/tool/registry"
	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/log"
	"retail-chatbot/pkg/metrics"
)

const (
	defaultMaxIterations = 15
	defaultTokenBudget   = 15000

	modelErrorAnswer = "I'm having a little trouble reaching our systems right now. Please try again in a moment."
	tooLongAnswer    = "This conversation has grown quite long. Could you start a fresh chat and ask again? I'll be happy to help."
	retryAnswer      = "I couldn't finish processing that request. Could you please try asking again?"
)

// Orchestrator 会话编排器
type Orchestrator struct {
	model    llm.Client
	tools    *registry.Registry
	sessions session.Store
	cfg      config.AgentConfig
	log      *log.Logger
}

// New 创建编排器
func New(model llm.Client, tools *registry.Registry, sessions session.Store, cfg config.AgentConfig, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		model:    model,
		tools:    tools,
		sessions: sessions,
		cfg:      cfg,
		log:      logger,
	}
}

// HandleMessage 处理一条用户消息并返回完整的回答结构。
// 内部任何失败都转成用户可读的兜底回答，不向调用方抛错。
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string) map[string]any {
	start := time.Now()
	out, status := o.handle(ctx, sessionID, message)
	metrics.ChatDuration.Observe(time.Since(start).Seconds())
	metrics.ChatTotal.WithLabelValues(status).Inc()
	return out
}

func (o *Orchestrator) handle(ctx context.Context, sessionID, message string) (map[string]any, string) {
	sess := o.sessions.Load(ctx, sessionID)
	if !sess.Available {
		o.log.Warn("会话存储不可用，降级为无记忆模式", "session_id", sessionID)
	}

	userTurn := chat.UserTurn(message)
	o.sessions.AppendTurn(ctx, sessionID, userTurn)

	// 只整理回放的历史。本次请求内产生的 user/assistant/tool 轮次
	// 原样下发，strict Provider 才能看到刚执行完的工具结果。
	mode := o.model.TranscriptMode()
	history := chat.FilterTranscript(sess.Turns, mode)
	if mode == chat.ModeStrictAlternation {
		// 历史以 user 轮结尾时（上回合模型故障，没有助手轮落库），
		// 丢掉旧的 user 轮，保留本次的新消息
		for len(history) > 0 && history[len(history)-1].Role == chat.RoleUser {
			history = history[:len(history)-1]
		}
	}
	live := []chat.Turn{userTurn}
	toolCtx := builtin.WithSessionID(ctx, sessionID)

	maxIter := o.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	var lastContent string
	iterations := 0
	truncated := false

	for iterations < maxIter {
		iterations++

		// 每轮重读认证状态，verify_otp 等工具会在循环中改写它
		auth := o.sessions.LoadAuth(ctx, sessionID)
		prompt := buildSystemPrompt(o.cfg.AuthPolicy, auth)

		transcript := append(append([]chat.Turn{}, history...), live...)

		// 超预算时截断历史重试一次，截断后仍超则放弃
		if over := o.overBudget(prompt, transcript); over {
			if truncated {
				metrics.ChatIterations.Observe(float64(iterations))
				return safeOutput(tooLongAnswer), "budget_exhausted"
			}
			truncated = true
			history = chat.TruncateTurns(history, o.tokenBudget())
			transcript = append(append([]chat.Turn{}, history...), live...)
			if o.overBudget(prompt, transcript) {
				metrics.ChatIterations.Observe(float64(iterations))
				return safeOutput(tooLongAnswer), "budget_exhausted"
			}
		}

		resp, err := o.model.ChatWithTools(ctx, llm.ChatRequest{
			SystemPrompt: prompt,
			Turns:        transcript,
			Tools:        o.tools.SchemasForLLM(),
		})
		if err != nil {
			// 模型故障合成兜底回答，不写入会话记忆
			o.log.Warn("模型调用 failed", "session_id", sessionID, "error", err)
			metrics.ChatIterations.Observe(float64(iterations))
			return safeOutput(modelErrorAnswer), "model_error"
		}

		assistant := chat.AssistantTurn(resp.Content, resp.ToolCalls)
		live = append(live, assistant)
		if resp.Content != "" {
			o.sessions.AppendTurn(ctx, sessionID, assistant)
			lastContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			metrics.ChatIterations.Observe(float64(iterations))
			return normalize.Normalize(resp.Content), "ok"
		}

		// 按模型给出的顺序执行，每个调用恰好对应一条结果轮次
		for _, call := range resp.ToolCalls {
			result := o.tools.Execute(toolCtx, call.Name, call.Arguments)
			live = append(live, chat.ToolResultTurn(call.ID, call.Name, result.Content))
		}
	}

	// 循环超限：有最后一次助手内容就用它，否则合成重试提示
	metrics.ChatIterations.Observe(float64(iterations))
	if lastContent != "" {
		return normalize.Normalize(lastContent), "ok"
	}
	return safeOutput(retryAnswer), "ok"
}

func (o *Orchestrator) tokenBudget() int {
	if o.cfg.TokenBudget > 0 {
		return o.cfg.TokenBudget
	}
	return defaultTokenBudget
}

func (o *Orchestrator) overBudget(prompt string, turns []chat.Turn) bool {
	return len(prompt)/4+chat.EstimateTokens(turns) > o.tokenBudget()
}

// safeOutput 把一句兜底回答包成完整 schema
func safeOutput(answer string) map[string]any {
	b, _ := json.Marshal(map[string]any{"answer": answer})
	return normalize.Normalize(string(b))
}
