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

// Package builtin 内置零售工具集：商品检索、门店查询、商品详情、
// 售后条款检索、OTP 认证与联系方式登记。
package builtin

import (
	"context"
	"encoding/json"
	"time"

	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/go-resty/resty/v2"

	"retail-chatbot/internal/runtime/session"
	"retail-chatbot/internal/storage/contact"
	"retail-chatbot/pkg/config"
)

type sessionIDKey struct{}

// WithSessionID 把会话 ID 注入 ctx，供需要会话状态的工具使用
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext 取出会话 ID，未注入时返回空串
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// Deps 内置工具的后端依赖
type Deps struct {
	Products einoretriever.Retriever
	Policies einoretriever.Retriever
	Sessions session.Store
	Contacts contact.Store
	Tools    config.ToolsConfig
}

// newPortalClient 创建访问商城门户 web-api 的 resty 客户端
func newPortalClient(cfg config.ToolsConfig) *resty.Client {
	client := resty.New()
	client.SetTimeout(cfg.ToolTimeout())
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetHeader("auth-key", cfg.AuthKey)
	client.SetHeader("end-client", "Lotus-Web")
	return client
}

func unmarshalBody(body []byte, v any) error {
	return json.Unmarshal(body, v)
}
