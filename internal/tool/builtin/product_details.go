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
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"retail-chatbot/internal/tool"
	"retail-chatbot/pkg/config"
)

const defaultDetailCity = "INDORE"

// ProductDetails 商品详情工具。调用门户 product_detail 接口，
// 只回传模型需要的字段子集。
type ProductDetails struct {
	baseURL   string
	authToken string
	client    *resty.Client
}

// NewProductDetails 创建商品详情工具
func NewProductDetails(cfg config.ToolsConfig) *ProductDetails {
	return &ProductDetails{
		baseURL:   strings.TrimRight(cfg.PortalBaseURL, "/"),
		authToken: cfg.AuthToken,
		client:    newPortalClient(cfg),
	}
}

func (p *ProductDetails) Name() string { return "get_product_details" }

func (p *ProductDetails) Description() string {
	return "Get detailed information for a single product by its product_id: " +
		"price, stock status, specifications and delivery options."
}

func (p *ProductDetails) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"product_id": {Type: "string", Description: "ID of the product to fetch"},
			"city":       {Type: "string", Description: "City for stock and delivery info, defaults to INDORE"},
		},
		Required: []string{"product_id"},
	}
}

// Execute 拉取商品详情并过滤字段
func (p *ProductDetails) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	productID := strings.TrimSpace(asString(args["product_id"]))
	city := strings.TrimSpace(asString(args["city"]))
	if city == "" {
		city = defaultDetailCity
	}

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("auth-token", p.authToken).
		SetFormData(map[string]string{
			"product_id": productID,
			"city":       city,
		}).
		Post(p.baseURL + "/home/product_detail")
	if err != nil {
		return tool.Result{}, fmt.Errorf("product detail request failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return tool.Result{}, fmt.Errorf("product detail returned status %d", response.StatusCode())
	}

	var result struct {
		Data struct {
			ProductDetail map[string]any `json:"product_detail"`
		} `json:"data"`
	}
	if err := unmarshalBody(response.Body(), &result); err != nil {
		return tool.Result{}, fmt.Errorf("product detail response invalid: %w", err)
	}

	detail := result.Data.ProductDetail
	if len(detail) == 0 {
		msg := "Product not found."
		content, _ := json.Marshal(map[string]string{"error": msg})
		return tool.Result{Content: string(content), Err: msg}, nil
	}

	filtered := map[string]any{
		"product_id":            detail["product_id"],
		"product_name":          detail["product_name"],
		"uri_slug":              detail["uri_slug"],
		"product_sku":           detail["product_sku"],
		"product_mrp":           detail["product_mrp"],
		"product_image":         firstImage(detail["product_image"]),
		"instock":               detail["instock"],
		"product_specification": detail["product_specification"],
		"meta_desc":             detail["meta_desc"],
		"del":                   detail["del"],
	}
	content, err := json.Marshal(filtered)
	if err != nil {
		return tool.Result{}, err
	}
	return tool.Result{Content: string(content)}, nil
}

// firstImage 详情接口的图片字段是数组，只保留第一张
func firstImage(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}
