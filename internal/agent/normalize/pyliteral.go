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

package normalize

import (
	"encoding/json"
	"strings"
)

// parsePythonLiteral 解析 Python dict/list 字面量。把单引号字符串
// 改写成 JSON 字符串、替换 True/False/None 后走标准 JSON 解析。
// 只处理字面量常见形态，解析失败返回 false 让调用方保留原值。
func parsePythonLiteral(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return nil, false
	}

	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch c {
		case '\'', '"':
			lit, next, ok := readPyString(runes, i)
			if !ok {
				return nil, false
			}
			encoded, err := json.Marshal(lit)
			if err != nil {
				return nil, false
			}
			b.Write(encoded)
			i = next
		default:
			if word, next := matchWord(runes, i); word != "" {
				switch word {
				case "True":
					b.WriteString("true")
				case "False":
					b.WriteString("false")
				case "None":
					b.WriteString("null")
				default:
					b.WriteString(word)
				}
				i = next
				continue
			}
			b.WriteRune(c)
			i++
		}
	}

	var v any
	if err := json.Unmarshal([]byte(b.String()), &v); err != nil {
		return nil, false
	}
	return v, true
}

// readPyString 读取从 start 开始的引号字符串，返回内容与下一个位置
func readPyString(runes []rune, start int) (string, int, bool) {
	quote := runes[start]
	var out strings.Builder
	i := start + 1
	for i < len(runes) {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			switch next {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			case '\\', '\'', '"':
				out.WriteRune(next)
			default:
				out.WriteRune('\\')
				out.WriteRune(next)
			}
			i += 2
			continue
		}
		if c == quote {
			return out.String(), i + 1, true
		}
		out.WriteRune(c)
		i++
	}
	return "", 0, false
}

// matchWord 从 i 处匹配一段字母标识符，非字母开头返回空串
func matchWord(runes []rune, i int) (string, int) {
	if !isAlpha(runes[i]) {
		return "", i
	}
	j := i
	for j < len(runes) && isAlpha(runes[j]) {
		j++
	}
	return string(runes[i:j]), j
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
