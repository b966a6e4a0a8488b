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

// Package normalize 把模型最终回复的原始文本整形成固定 schema 的
// 结构化回答。模型输出不可靠，可能带 markdown 围栏、被数组包裹、
// 嵌套在 data/answer 字段里或干脆不是 JSON，这里逐级降级处理并
// 保证每个必需字段都存在。整个过程纯函数，不做任何 I/O。
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"retail-chatbot/internal/agent/compare"
)

const (
	defaultAnswer = "I found some information for you."
	defaultEnd    = "How else can I help you?"

	parseFailAnswer = "I found some information for you, but I'm having trouble formatting the response properly. Could you please rephrase your question?"
	parseFailEnd    = "How else can I help you with Lotus Electronics products?"

	overloadAnswer = "Can you ask me again later? I'm being asked too many queries right now by users which is more than usual, so I can't do that for you right now."
	overloadEnd    = "Please wait for some time and ask again."

	maxUnwrapDepth = 2
)

var (
	fencedJSONRE = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	// 无嵌套或一层嵌套的花括号片段，够覆盖模型把 JSON 混进普通文本的情况
	braceSpanRE = regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
)

// Normalize 把原始回复文本整形成完整的回答结构。任何输入都能得到
// 含全部必需字段的结果，绝不返回 nil。
func Normalize(raw string) map[string]any {
	clean := extractCandidate(raw)

	var parsed any
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return ensureSchema(map[string]any{
			"answer": parseFailAnswer,
			"end":    parseFailEnd,
		})
	}

	out, ok := unwrap(parsed, 0).(map[string]any)
	if !ok {
		return ensureSchema(map[string]any{
			"answer": overloadAnswer,
			"end":    overloadEnd,
		})
	}

	repairProductDetails(out)
	if comp, ok := out["comparison"].(map[string]any); ok {
		out["comparison"] = compare.Fill(comp)
	}
	return ensureSchema(out)
}

// extractCandidate 从原始文本里剥出最可能是目标对象的 JSON 片段
func extractCandidate(raw string) string {
	clean := strings.TrimSpace(raw)

	if m := fencedJSONRE.FindStringSubmatch(clean); m != nil {
		clean = strings.TrimSpace(m[1])
	} else if strings.HasPrefix(clean, "```json") {
		clean = strings.ReplaceAll(clean, "```json", "")
		clean = strings.TrimSpace(strings.ReplaceAll(clean, "```", ""))
	}

	// 某些 provider 会把输出包成字符串数组
	if strings.HasPrefix(clean, "[") && strings.HasSuffix(clean, "]") {
		var arr []any
		if err := json.Unmarshal([]byte(clean), &arr); err == nil {
			for _, item := range arr {
				s, ok := item.(string)
				if !ok {
					continue
				}
				s = strings.TrimSpace(s)
				if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
					clean = s
					break
				}
				if m := fencedJSONRE.FindStringSubmatch(s); m != nil {
					clean = strings.TrimSpace(m[1])
					break
				}
			}
		}
	}

	if !strings.HasPrefix(clean, "{") || !strings.HasSuffix(clean, "}") {
		if span := braceSpanRE.FindString(clean); span != "" {
			clean = span
		}
	}
	return clean
}

// unwrap 剥掉 data/answer 字段里的再序列化嵌套，最多两层
func unwrap(v any, depth int) any {
	if depth >= maxUnwrapDepth {
		return v
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}

	if data, ok := m["data"].(map[string]any); ok {
		if s, ok := data["answer"].(string); ok {
			if inner, ok := parseObject(s); ok {
				return unwrap(inner, depth+1)
			}
		}
		return data
	}

	if s, ok := m["answer"].(string); ok {
		if inner, ok := parseObject(s); ok {
			return unwrap(inner, depth+1)
		}
	}
	return m
}

func parseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// repairProductDetails 修复 product_details.output 里被当成字符串
// 转存的记录。上游 Python 服务偶尔把 dict 的 repr 填进来，按
// Python 字面量解析，失败则原样保留。
func repairProductDetails(m map[string]any) {
	details, ok := m["product_details"].(map[string]any)
	if !ok {
		return
	}
	output, ok := details["output"].(string)
	if !ok {
		return
	}
	if parsed, ok := parsePythonLiteral(output); ok {
		m["product_details"] = parsed
	}
}

// ensureSchema 补齐缺失的必需字段并返回同一个 map
func ensureSchema(m map[string]any) map[string]any {
	if answer, ok := m["answer"].(string); !ok || answer == "" {
		m["answer"] = defaultAnswer
	}
	if _, ok := m["end"]; !ok {
		m["end"] = defaultEnd
	}
	if _, ok := m["products"]; !ok {
		m["products"] = []any{}
	}
	if _, ok := m["stores"]; !ok {
		m["stores"] = []any{}
	}
	if _, ok := m["product_details"]; !ok {
		m["product_details"] = map[string]any{}
	}
	if _, ok := m["policy_info"]; !ok {
		m["policy_info"] = map[string]any{}
	}
	if _, ok := m["comparison"]; !ok {
		m["comparison"] = map[string]any{
			"products": []any{},
			"criteria": []any{},
			"table":    []any{},
		}
	}
	if _, ok := m["authentication"]; !ok {
		m["authentication"] = map[string]any{
			"required": false,
			"step":     "verified",
			"message":  "",
		}
	}
	return m
}
