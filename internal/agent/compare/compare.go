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

// Package compare 对比表补全。模型给出的 comparison 结构里 table
// 经常缺失或全是占位符，这里从商品的规格、卖点与名称确定性地
// 重建表格。product_name 是商品与表列之间的规范连接键。
package compare

import (
	"fmt"
	"sort"
	"strings"
)

const placeholder = "-"

// featurePriority 全量兜底重建时的行排序
var featurePriority = []string{
	"Price", "Brand", "RAM", "Storage", "Model", "Connectivity",
	"Processor", "Camera", "Display", "Battery", "OS", "Warranty",
}

// Fill 补全 comparison 结构的 table。products 或 criteria 为空、
// 或表格已被模型填好时原样返回。任何内部失败都吞掉并返回输入。
func Fill(comp map[string]any) (out map[string]any) {
	out = comp
	defer func() {
		if r := recover(); r != nil {
			out = comp
		}
	}()
	if comp == nil {
		return comp
	}

	products := productList(comp["products"])
	criteria := criteriaList(comp["criteria"])
	table := tableRows(comp["table"])

	if len(products) > 0 && len(criteria) > 0 && needsFilling(comp["table"]) {
		table = buildTable(products, criteria)
		comp["table"] = anyRows(table)
	}

	// 模型有时截断表键里的商品名，按名称前缀映射回全名
	if rows := tableRows(comp["table"]); len(rows) > 0 && len(products) > 0 {
		comp["table"] = anyRows(repairKeys(rows, products))
	}
	return comp
}

// needsFilling 表缺失、结构异常或全部非 feature 值为占位符时需要重建
func needsFilling(v any) bool {
	rows, ok := v.([]any)
	if !ok || len(rows) == 0 {
		return true
	}
	for _, r := range rows {
		row, ok := r.(map[string]any)
		if !ok {
			return true
		}
		for k, val := range row {
			if k == "feature" {
				continue
			}
			switch val {
			case placeholder, "", nil:
			default:
				return false
			}
		}
	}
	return true
}

// buildTable 按 criteria 顺序为每个商品填值
func buildTable(products []map[string]any, criteria []string) []map[string]any {
	prodMap := map[string]map[string]string{}
	for _, prod := range products {
		name := productName(prod)
		if name == "" {
			continue
		}
		prodMap[name] = featureMap(prod, name)
	}

	var table []map[string]any
	for _, criterion := range criteria {
		row := map[string]any{"feature": criterion}
		for _, prod := range products {
			name := productName(prod)
			if name == "" {
				continue
			}
			val := lookupValue(prodMap[name], criterion)
			if val == "" {
				val = placeholder
			}
			row[name] = val
		}
		table = append(table, row)
	}

	if allPlaceholders(table) {
		table = rebuildFromFeatureMap(products, prodMap)
	}
	return table
}

// featureMap 合并一个商品的全部可比信息，后写的覆盖先写的
func featureMap(prod map[string]any, name string) map[string]string {
	m := map[string]string{}

	if mrp := stringify(prod["product_mrp"]); mrp != "" {
		m["Price"] = mrp
		m["MRP"] = mrp
	}

	// 卖点原文既作为打勾项也编号保留
	features := featureStrings(prod["features"])
	for i, f := range features {
		m[f] = "✔"
		m[fmt.Sprintf("Feature %d", i+1)] = f
	}

	// 声明的规格对，兼容三种键名写法
	if specs, ok := prod["product_specification"].([]any); ok {
		for _, s := range specs {
			spec, ok := s.(map[string]any)
			if !ok {
				continue
			}
			switch {
			case spec["fkey"] != nil && spec["fvalue"] != nil:
				if key := strings.TrimSpace(stringify(spec["fkey"])); key != "" {
					m[key] = stringify(spec["fvalue"])
				}
			case spec["name"] != nil && spec["value"] != nil:
				key, kok := spec["name"].(string)
				val, vok := spec["value"].(string)
				if kok && vok {
					m[key] = val
				}
			case spec["specification"] != nil && spec["detail"] != nil:
				key, kok := spec["specification"].(string)
				val, vok := spec["detail"].(string)
				if kok && vok {
					m[key] = val
				}
			}
		}
	}

	// 名称里的可模式化信息
	nameLower := strings.ToLower(name)
	if ram, ok := extractRAM(nameLower); ok {
		m["RAM"] = ram
	}
	if storage, ok := extractStorage(nameLower); ok {
		m["Storage"] = storage
	}
	if brand, ok := extractBrand(name); ok {
		m["Brand"] = brand
	}
	if model, ok := extractModel(name); ok {
		m["Model"] = model
	}
	if conn, ok := extractConnectivity(nameLower); ok {
		m["Connectivity"] = conn
	}

	// 卖点条目按指示词归类，后出现的条目覆盖先出现的
	for _, f := range features {
		lower := strings.ToLower(f)
		for _, kw := range featureKeywords {
			for _, w := range kw.words {
				if strings.Contains(lower, w) {
					m[kw.criterion] = f
					break
				}
			}
		}
	}

	if w := stringify(prod["warranty"]); w != "" {
		m["Warranty"] = w
	}
	return m
}

// lookupValue 精确 → 忽略大小写 → 双向子串
func lookupValue(m map[string]string, criterion string) string {
	if v, ok := m[criterion]; ok && v != "" {
		return v
	}
	lower := strings.ToLower(criterion)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.ToLower(k) == lower {
			return m[k]
		}
	}
	for _, k := range keys {
		kl := strings.ToLower(k)
		if strings.Contains(kl, lower) || strings.Contains(lower, kl) {
			return m[k]
		}
	}
	return ""
}

// rebuildFromFeatureMap 原 criteria 全部落空时，用特征表自身的键
// 按优先级重建，只保留至少一个商品有值的行；特征表也为空时退到
// Price/Brand/Model 三行。
func rebuildFromFeatureMap(products []map[string]any, prodMap map[string]map[string]string) []map[string]any {
	available := map[string]bool{}
	for _, m := range prodMap {
		for k := range m {
			available[k] = true
		}
	}

	if len(available) == 0 {
		return minimalTable(products)
	}

	var table []map[string]any
	emit := func(feature string) {
		row := map[string]any{"feature": feature}
		hasData := false
		for _, prod := range products {
			name := productName(prod)
			if name == "" {
				continue
			}
			val := prodMap[name][feature]
			if val == "" {
				val = placeholder
			} else {
				hasData = true
			}
			row[name] = val
		}
		if hasData {
			table = append(table, row)
		}
	}

	seen := map[string]bool{}
	for _, f := range featurePriority {
		if available[f] {
			emit(f)
			seen[f] = true
		}
	}
	var rest []string
	for f := range available {
		if !seen[f] {
			rest = append(rest, f)
		}
	}
	sort.Strings(rest)
	for _, f := range rest {
		emit(f)
	}
	return table
}

// minimalTable 只靠名称和价格构造 Price/Brand/Model 三行
func minimalTable(products []map[string]any) []map[string]any {
	var table []map[string]any
	for _, feature := range []string{"Price", "Brand", "Model"} {
		row := map[string]any{"feature": feature}
		for _, prod := range products {
			name := productName(prod)
			if name == "" {
				name = "Unknown Product"
			}
			switch feature {
			case "Price":
				if mrp := stringify(prod["product_mrp"]); mrp != "" {
					row[name] = mrp
				} else {
					row[name] = placeholder
				}
			case "Brand":
				if brand := firstWordRE.FindString(name); brand != "" {
					row[name] = titleCase(brand)
				} else {
					row[name] = placeholder
				}
			case "Model":
				if len(name) > 50 {
					row[name] = name[:50] + "..."
				} else {
					row[name] = name
				}
			}
		}
		table = append(table, row)
	}
	return table
}

// repairKeys 把截断的表键（商品名 2..7 词前缀）改写回全名
func repairKeys(rows []map[string]any, products []map[string]any) []map[string]any {
	mapping := map[string]string{}
	for _, prod := range products {
		full, _ := prod["product_name"].(string)
		if full == "" {
			continue
		}
		words := strings.Fields(full)
		for i := 2; i < len(words) && i < 8; i++ {
			mapping[strings.Join(words[:i], " ")] = full
		}
	}

	fixed := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out := map[string]any{"feature": row["feature"]}
		if out["feature"] == nil {
			out["feature"] = ""
		}
		for k, v := range row {
			if k == "feature" {
				continue
			}
			if full, ok := mapping[k]; ok {
				out[full] = v
			} else {
				out[k] = v
			}
		}
		fixed = append(fixed, out)
	}
	return fixed
}

func allPlaceholders(table []map[string]any) bool {
	for _, row := range table {
		for k, v := range row {
			if k == "feature" {
				continue
			}
			if v != placeholder {
				return false
			}
		}
	}
	return true
}

// 结构取值辅助

func productName(prod map[string]any) string {
	if name, ok := prod["product_name"].(string); ok && name != "" {
		return name
	}
	return stringify(prod["product_id"])
}

func productList(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func criteriaList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func tableRows(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func featureStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func anyRows(rows []map[string]any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
