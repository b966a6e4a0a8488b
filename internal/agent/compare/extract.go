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

package compare

import (
	"fmt"
	"regexp"
	"strings"
)

// 商品名里的 RAM 标注有四种常见写法
var ramPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*gb\s*ram`),
	regexp.MustCompile(`\((\d+)gb\s*ram`),
	regexp.MustCompile(`(\d+)gb\s*ram\)`),
	regexp.MustCompile(`(\d+)\s*gb\s*(?:memory)`),
}

var storagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*gb\s*(?:storage|rom)`),
	regexp.MustCompile(`\((\d+)gb\s*(?:storage|rom)`),
	regexp.MustCompile(`(\d+)gb\s*(?:storage|rom)\)`),
	regexp.MustCompile(`(\d+)\s*gb\s*(?:internal)`),
}

var (
	firstWordRE = regexp.MustCompile(`^\w+`)
	modelRE     = regexp.MustCompile(`[a-zA-Z]+\s*\d+[a-zA-Z]*(?:\s+[a-zA-Z]+)?`)
)

// genericTechWords 出现在名称开头时不视为品牌
var genericTechWords = map[string]bool{
	"android": true, "smartphone": true, "mobile": true, "phone": true, "device": true,
}

// modelStopWords 提取型号前从名称里剔除的通用词
var modelStopWords = []string{"android", "smartphone", "mobile", "phone", "gb", "ram", "storage", "rom"}

// extractRAM 从商品名提取 RAM 容量，如 "8GB"
func extractRAM(nameLower string) (string, bool) {
	for _, re := range ramPatterns {
		if m := re.FindStringSubmatch(nameLower); m != nil {
			return m[1] + "GB", true
		}
	}
	return "", false
}

// extractStorage 从商品名提取存储容量
func extractStorage(nameLower string) (string, bool) {
	for _, re := range storagePatterns {
		if m := re.FindStringSubmatch(nameLower); m != nil {
			return m[1] + "GB", true
		}
	}
	return "", false
}

// extractBrand 取名称首词作为品牌，通用技术词除外
func extractBrand(name string) (string, bool) {
	word := firstWordRE.FindString(name)
	if word == "" || genericTechWords[strings.ToLower(word)] {
		return "", false
	}
	return titleCase(word), true
}

// extractModel 剔除品牌与通用词后，取“字母+数字”形态的型号片段
func extractModel(name string) (string, bool) {
	text := name
	for _, w := range modelStopWords {
		re := regexp.MustCompile(`(?i)\b` + w + `\b`)
		text = re.ReplaceAllString(text, "")
	}
	m := modelRE.FindString(text)
	if m == "" {
		return "", false
	}
	return titleCase(strings.TrimSpace(m)), true
}

// extractConnectivity 5G 优先于 4G
func extractConnectivity(nameLower string) (string, bool) {
	if strings.Contains(nameLower, "5g") {
		return "5G", true
	}
	if strings.Contains(nameLower, "4g") {
		return "4G", true
	}
	return "", false
}

// featureKeywords 从 features 列表里归类条目的指示词
var featureKeywords = []struct {
	criterion string
	words     []string
}{
	{"Processor", []string{"snapdragon", "mediatek", "exynos", "dimensity", "bionic"}},
	{"Camera", []string{"mp", "camera"}},
	{"Display", []string{"display", "screen", "oled", "amoled", "lcd"}},
	{"Battery", []string{"mah", "battery"}},
	{"OS", []string{"android", "ios"}},
}

// titleCase 逐词首字母大写
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// stringify 把规格值折叠为字符串，列表取首元素
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []any:
		if len(x) == 0 {
			return ""
		}
		return stringify(x[0])
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
