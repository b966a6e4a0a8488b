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

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	einoretriever "github.com/cloudwego/eino/components/retriever"

	"retail-chatbot/internal/tool"
)

const (
	searchDefaultTopK = 5
	searchMaxTopK     = 20
	// 多取候选再做品牌去重与价格过滤
	searchOverFetch = 10
	maxBrandCount   = 2
)

// brandPatterns 从商品名识别品牌，子串命中即归入
var brandPatterns = []struct {
	brand    string
	patterns []string
}{
	{"Samsung", []string{"samsung"}},
	{"OnePlus", []string{"oneplus", "one plus"}},
	{"Xiaomi", []string{"xiaomi", "redmi", "mi "}},
	{"Oppo", []string{"oppo"}},
	{"Vivo", []string{"vivo"}},
	{"Apple", []string{"iphone", "apple"}},
	{"Nothing", []string{"nothing"}},
	{"Realme", []string{"realme"}},
	{"Motorola", []string{"motorola"}},
}

// SearchProducts 商品语义检索工具
type SearchProducts struct {
	retriever einoretriever.Retriever
}

// NewSearchProducts 创建商品检索工具
func NewSearchProducts(r einoretriever.Retriever) *SearchProducts {
	return &SearchProducts{retriever: r}
}

func (s *SearchProducts) Name() string { return "search_products" }

func (s *SearchProducts) Description() string {
	return "Search the product catalog by meaning with optional price filtering. " +
		"Use for queries like 'Samsung AC', 'gaming laptop under 80000' or 'wireless headphones'."
}

func (s *SearchProducts) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"query":     {Type: "string", Description: "What the customer is looking for"},
			"top_k":     {Type: "integer", Description: "Number of products to return (1-20, default 5)"},
			"price_min": {Type: "number", Description: "Minimum price in rupees"},
			"price_max": {Type: "number", Description: "Maximum price in rupees"},
		},
		Required: []string{"query"},
	}
}

type searchProduct struct {
	ProductID    string   `json:"product_id"`
	ProductName  string   `json:"product_name"`
	ProductMRP   string   `json:"product_mrp"`
	ProductURL   string   `json:"product_url"`
	ProductImage string   `json:"product_image"`
	Features     []string `json:"features"`
}

type searchResponse struct {
	SearchQuery string           `json:"search_query"`
	TotalFound  int              `json:"total_found"`
	PriceFilter map[string]any   `json:"price_filter"`
	Products    []searchProduct  `json:"products"`
	Metadata    map[string]any   `json:"search_metadata"`
}

// Execute 检索商品：超量取回、校验名称与价格、应用价格区间、
// 限制单品牌条数，再格式化为模型可直接引用的 JSON。
func (s *SearchProducts) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	query, _ := args["query"].(string)
	topK := intArg(args, "top_k", searchDefaultTopK)
	if topK < 1 {
		topK = 1
	}
	if topK > searchMaxTopK {
		topK = searchMaxTopK
	}
	priceMin, hasMin := floatArg(args, "price_min")
	priceMax, hasMax := floatArg(args, "price_max")

	docs, err := s.retriever.Retrieve(ctx, query, einoretriever.WithTopK(topK*searchOverFetch))
	if err != nil {
		return tool.Result{}, fmt.Errorf("product search failed: %w", err)
	}

	var products []searchProduct
	brandCounts := map[string]int{}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		meta := doc.MetaData

		name := strings.TrimSpace(asString(meta["product_name"]))
		switch strings.ToLower(name) {
		case "", "unknown", "n/a", "null":
			continue
		}

		price, ok := asFloat(meta["price"])
		if !ok || price <= 0 {
			continue
		}
		if hasMin && price < priceMin {
			continue
		}
		if hasMax && price > priceMax {
			continue
		}

		brand := detectBrand(name)
		if brandCounts[brand] >= maxBrandCount {
			continue
		}

		productID := asString(meta["product_id"])
		if productID == "" {
			productID = doc.ID
		}
		productURL := ""
		if slug := strings.TrimSpace(asString(meta["url"])); slug != "" && productID != "" {
			productURL = fmt.Sprintf("https://www.lotuselectronics.com/product/%s/%s", slug, productID)
		}

		products = append(products, searchProduct{
			ProductID:    productID,
			ProductName:  name,
			ProductMRP:   "₹" + formatRupees(price),
			ProductURL:   productURL,
			ProductImage: strings.TrimSpace(asString(meta["image_url"])),
			Features:     deriveFeatures(name, asString(meta["text"])),
		})
		brandCounts[brand]++

		if len(products) >= topK {
			break
		}
	}

	resp := searchResponse{
		SearchQuery: query,
		TotalFound:  len(products),
		PriceFilter: map[string]any{
			"min": nullableFloat(priceMin, hasMin),
			"max": nullableFloat(priceMax, hasMax),
		},
		Products: products,
		Metadata: map[string]any{
			"top_k_requested":  topK,
			"has_price_filter": hasMin || hasMax,
		},
	}
	if len(products) == 0 {
		resp.Metadata["no_results"] = true
	}

	content, err := json.Marshal(resp)
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Content: string(content)}, nil
}

// detectBrand 从商品名识别品牌，未命中归为 Unknown
func detectBrand(name string) string {
	lower := strings.ToLower(name)
	for _, b := range brandPatterns {
		for _, p := range b.patterns {
			if strings.Contains(lower, p) {
				return b.brand
			}
		}
	}
	return "Unknown"
}

// formatRupees 千分位格式化整数卢比
func formatRupees(v float64) string {
	n := int64(v + 0.5)
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// featureSkip 描述里整段跳过的键值片段
var featureSkip = []string{"processor:", "operating system:", "camera back:", "internal memory:", "network:"}

// featureInvalid 含这些内容的片段视为无效
var featureInvalid = []string{"undefined", "null", "n/a", "..."}

// deriveFeatures 从描述里提取至多 4 条简短卖点，不足 3 条时按
// 品类补充默认卖点。
func deriveFeatures(name, description string) []string {
	var features []string
	if len(description) > 20 {
		clean := strings.NewReplacer("|", ",", ":", ",").Replace(description)
		for _, part := range strings.Split(clean, ",") {
			f := strings.TrimRight(strings.TrimSpace(part), ".,;:")
			if len(f) < 5 || len(f) > 40 {
				continue
			}
			lower := strings.ToLower(f)
			if containsAny(lower, featureSkip) || containsAny(lower, featureInvalid) {
				continue
			}
			features = append(features, f)
			if len(features) >= 3 {
				break
			}
		}
	}

	if len(features) < 3 {
		defaults := defaultFeatures(name)
		features = append(features, defaults[:3-len(features)]...)
	}
	if len(features) > 4 {
		features = features[:4]
	}
	return features
}

// defaultFeatures 按商品名推断品类，给出兜底卖点
func defaultFeatures(name string) []string {
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, []string{"smartphone", "phone", "mobile", "galaxy", "redmi", "oneplus"}):
		return []string{"High Resolution Camera", "Fast Performance", "Long Battery Life"}
	case containsAny(lower, []string{"earphone", "headphone", "buds", "speaker"}):
		return []string{"Premium Sound Quality", "Wireless Connectivity", "Comfortable Design"}
	case containsAny(lower, []string{"tv", "television", "smart tv"}):
		return []string{"Full HD Display", "Smart Features", "Energy Efficient"}
	case containsAny(lower, []string{"laptop", "computer"}):
		return []string{"High Performance", "Portable Design", "Latest Technology"}
	default:
		return []string{"Latest Technology", "High Quality Build", "Great Value for Money"}
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// 参数取值辅助：模型给出的数值可能是 float64 或字符串

func intArg(args map[string]any, key string, def int) int {
	if v, ok := asFloat(args[key]); ok {
		return int(v)
	}
	return def
}

func floatArg(args map[string]any, key string) (float64, bool) {
	return asFloat(args[key])
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func nullableFloat(v float64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}
