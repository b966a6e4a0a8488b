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

// TranscriptMode 历史回放形态。不同 Provider 对消息序列的要求不同：
// passthrough 保留完整 tool_call/tool_result 配对；strict 只允许
// user/assistant 严格交替且不接受工具轮次。
type TranscriptMode string

const (
	ModePassThrough       TranscriptMode = "passthrough"
	ModeStrictAlternation TranscriptMode = "strict"
)

// PlaceholderToolResult 悬空 tool_call 的占位结果内容
const PlaceholderToolResult = "Tool execution completed"

// FilterTranscript 按 Provider 形态整理轮次序列。
// 两种模式都保证输出序列对目标 Provider 合法：
//   - strict：丢弃工具轮次，连续同角色轮次只保留第一条；
//   - passthrough：孤儿工具结果丢弃，悬空工具调用补占位结果，
//     每个 tool_call 在下一条非工具轮次前恰好对应一条结果。
func FilterTranscript(turns []Turn, mode TranscriptMode) []Turn {
	if mode == ModeStrictAlternation {
		return filterStrict(turns)
	}
	return filterPassThrough(turns)
}

func filterStrict(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	var last Role
	for _, t := range turns {
		if t.Role == RoleTool {
			continue
		}
		if t.Role == last {
			continue
		}
		// strict Provider 也不接受助手轮携带工具调用
		if t.Role == RoleAssistant && len(t.ToolCalls) > 0 {
			if t.Content == "" {
				continue
			}
			t.ToolCalls = nil
		}
		out = append(out, t)
		last = t.Role
	}
	return out
}

func filterPassThrough(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	pending := map[string]ToolCall{}
	order := []string{}

	flushPending := func() {
		for _, id := range order {
			call, ok := pending[id]
			if !ok {
				continue
			}
			out = append(out, ToolResultTurn(call.ID, call.Name, PlaceholderToolResult))
		}
		pending = map[string]ToolCall{}
		order = order[:0]
	}

	for _, t := range turns {
		switch {
		case t.HasToolCalls():
			flushPending()
			out = append(out, t)
			for _, c := range t.ToolCalls {
				pending[c.ID] = c
				order = append(order, c.ID)
			}
		case t.Role == RoleTool:
			if _, ok := pending[t.ToolCallID]; !ok {
				// 孤儿结果：没有对应 tool_call，丢弃
				continue
			}
			out = append(out, t)
			delete(pending, t.ToolCallID)
		default:
			flushPending()
			out = append(out, t)
		}
	}
	flushPending()
	return out
}

// TruncateTurns 在 token 预算内截断历史，保留最近的轮次。
// 先保留最近 10 轮，仍超预算时退到最近 5 轮。
func TruncateTurns(turns []Turn, maxTokens int) []Turn {
	if maxTokens <= 0 || EstimateTokens(turns) <= maxTokens {
		return turns
	}
	keep := func(n int) []Turn {
		if len(turns) <= n {
			return turns
		}
		return turns[len(turns)-n:]
	}
	truncated := keep(10)
	if EstimateTokens(truncated) > maxTokens {
		truncated = keep(5)
	}
	return truncated
}
