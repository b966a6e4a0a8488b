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

// Package http 会话服务的 HTTP 表面。只做请求解析与响应编码，
// 业务逻辑全部在编排层。
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"retail-chatbot/internal/runtime/session"
	"retail-chatbot/pkg/log"
	"retail-chatbot/pkg/metrics"
)

// Chatter 会话入口，由 orchestrator 实现
type Chatter interface {
	HandleMessage(ctx context.Context, sessionID, message string) map[string]any
}

// Handler HTTP 处理器
type Handler struct {
	chatter  Chatter
	sessions session.Store
	logger   *log.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(chatter Chatter, sessions session.Store, logger *log.Logger) *Handler {
	return &Handler{
		chatter:  chatter,
		sessions: sessions,
		logger:   logger,
	}
}

// chatRequest POST /api/chat 请求体
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Chat 处理一条用户消息
// POST /api/chat
func (h *Handler) Chat(c context.Context, ctx *app.RequestContext) {
	var req chatRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "请求体不是合法 JSON",
		})
		return
	}
	if req.Message == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "message is required",
		})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	out := h.chatter.HandleMessage(c, req.SessionID, req.Message)
	out["session_id"] = req.SessionID
	ctx.JSON(consts.StatusOK, out)
}

// ClearSession 清除会话历史与认证状态
// DELETE /api/sessions/:id
func (h *Handler) ClearSession(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	if id == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{
			"error": "session id is required",
		})
		return
	}
	h.sessions.Clear(c, id)
	ctx.JSON(consts.StatusOK, map[string]string{"status": "cleared"})
}

// HealthCheck 健康检查，带会话存储探测
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	sessionStore := "ok"
	if h.sessions != nil {
		if err := h.sessions.Ping(c); err != nil {
			sessionStore = "degraded"
		}
	}
	ctx.JSON(consts.StatusOK, map[string]any{
		"status":        "ok",
		"session_store": sessionStore,
		"timestamp":     time.Now().Unix(),
		"service":       "chat-service",
	})
}

// Metrics Prometheus 文本格式指标
// GET /metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		h.logger.Error("导出指标 failed", "error", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{
			"error": "导出指标失败",
		})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}
