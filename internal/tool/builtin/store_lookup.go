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
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"retail-chatbot/internal/tool"
	"retail-chatbot/pkg/config"
)

// StoreLookup 门店查询工具。按城市或邮编查门店，两者都缺时返回
// 提示性错误结果让模型补问。
type StoreLookup struct {
	baseURL string
	client  *resty.Client
}

// NewStoreLookup 创建门店查询工具
func NewStoreLookup(cfg config.ToolsConfig) *StoreLookup {
	return &StoreLookup{
		baseURL: strings.TrimRight(cfg.PortalBaseURL, "/"),
		client:  newPortalClient(cfg),
	}
}

func (s *StoreLookup) Name() string { return "get_nearby_store" }

func (s *StoreLookup) Description() string {
	return "Find store locations near the customer by city name or zip code, " +
		"including address and opening hours."
}

func (s *StoreLookup) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"city":    {Type: "string", Description: "City name, e.g. 'Indore'"},
			"zipcode": {Type: "string", Description: "Zip code, e.g. '452001'"},
		},
	}
}

type storeRecord struct {
	StoreName string `json:"store_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zipcode   string `json:"zipcode"`
	Timing    string `json:"timing"`
}

// Execute 查询门店并格式化为可读列表
func (s *StoreLookup) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	city := strings.TrimSpace(asString(args["city"]))
	zipcode := strings.TrimSpace(asString(args["zipcode"]))
	if city == "" && zipcode == "" {
		msg := "Please provide either a city or a zip code to search for the nearest store."
		return tool.Result{Content: msg, Err: msg}, nil
	}

	form := map[string]string{}
	if city != "" {
		form["city"] = city
	}
	if zipcode != "" {
		form["zipcode"] = zipcode
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(s.baseURL + "/home/store_locator")
	if err != nil {
		return tool.Result{}, fmt.Errorf("store lookup failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return tool.Result{}, fmt.Errorf("store lookup returned status %d", response.StatusCode())
	}

	var result struct {
		Data struct {
			Stores []storeRecord `json:"stores"`
		} `json:"data"`
	}
	if err := unmarshalBody(response.Body(), &result); err != nil {
		return tool.Result{}, fmt.Errorf("store lookup response invalid: %w", err)
	}

	if len(result.Data.Stores) == 0 {
		return tool.Result{Content: "No store found for the given location."}, nil
	}

	var out []string
	for _, st := range result.Data.Stores {
		out = append(out, fmt.Sprintf("🏬 **%s**\n📍 %s, %s - %s, %s\n🕒 %s",
			st.StoreName, st.Address, st.City, st.Zipcode, st.State, st.Timing))
	}
	return tool.Result{Content: strings.Join(out, "\n\n")}, nil
}
