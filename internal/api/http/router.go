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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
)

// Router HTTP 路由器
type Router struct {
	handler *Handler
}

// NewRouter 创建路由器
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Build 构建 Hertz Server 并挂载路由
func (r *Router) Build(addr string) *server.Hertz {
	h := server.Default(server.WithHostPorts(addr))

	api := h.Group("/api")
	api.POST("/chat", r.handler.Chat)
	api.DELETE("/sessions/:id", r.handler.ClearSession)
	api.GET("/health", r.handler.HealthCheck)

	h.GET("/metrics", r.handler.Metrics)
	return h
}
