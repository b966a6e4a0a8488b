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

package chat

import (
	"time"
)

// Role 对话轮次角色，封闭枚举
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall 模型发出的一次工具调用请求
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Turn 对话中的一个轮次。Role 为标签：
// RoleUser/RoleAssistant 使用 Content；RoleAssistant 可携带 ToolCalls；
// RoleTool 为工具结果，必须携带 ToolCallID 与 ToolName。
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// UserTurn 创建用户轮次
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// AssistantTurn 创建助手轮次
func AssistantTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls, Timestamp: time.Now()}
}

// ToolResultTurn 创建工具结果轮次，callID 关联发起该调用的助手轮次
func ToolResultTurn(callID, name, content string) Turn {
	return Turn{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: name, Timestamp: time.Now()}
}

// HasToolCalls 该轮是否携带待执行的工具调用
func (t Turn) HasToolCalls() bool {
	return t.Role == RoleAssistant && len(t.ToolCalls) > 0
}

// Persistable 是否应写入会话记忆。工具结果轮次不持久化，
// 每轮对话重新构造，避免跨请求与 Provider 的序列约束冲突。
func (t Turn) Persistable() bool {
	return t.Role == RoleUser || t.Role == RoleAssistant
}

// EstimateTokens 粗略估算轮次列表的 token 数（约 4 字符 1 token）
func EstimateTokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += len(t.Content)
		for _, c := range t.ToolCalls {
			total += len(c.Name) + 32
		}
	}
	return total / 4
}
