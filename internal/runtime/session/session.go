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

package session

import (
	"retail-chatbot/internal/chat"
)

// DefaultHistoryLimit 每 session 默认保留的最近轮次数
const DefaultHistoryLimit = 30

// AuthStatus 会话认证状态
type AuthStatus string

const (
	AuthUnauthenticated AuthStatus = "unauthenticated"
	AuthPending         AuthStatus = "pending_verification"
	AuthVerified        AuthStatus = "authenticated"
)

// AuthState 会话级认证记录，与轮次列表独立存取、同一 TTL
type AuthState struct {
	Status AuthStatus `json:"status"`
	Phone  string     `json:"phone_number,omitempty"`
}

// DefaultAuthState 缺省认证状态（记录损坏或缺失时使用）
func DefaultAuthState() AuthState {
	return AuthState{Status: AuthUnauthenticated}
}

// Session 一个会话的运行时视图。Available 为 false 表示后端不可达，
// 本次请求以空历史降级运行。
type Session struct {
	ID        string
	Turns     []chat.Turn
	Auth      AuthState
	Available bool
}

// BoundTurns 截断到最近 limit 条（前端淘汰）。limit<=0 使用默认值。
func BoundTurns(turns []chat.Turn, limit int) []chat.Turn {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if len(turns) <= limit {
		return turns
	}
	return turns[len(turns)-limit:]
}
