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

// 离线导入器：把产品目录或售后条款 JSON 写入 Redis 向量索引，
// 供 search_products / search_policies 工具检索。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"os"

	"github.com/cloudwego/eino/schema"

	"retail-chatbot/internal/model/embedding"
	"retail-chatbot/internal/search"
	"retail-chatbot/pkg/config"
)

// productRecord 产品目录 JSON 的一条记录
type productRecord struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	URISlug     string  `json:"uri_slug"`
	ImageURL    string  `json:"image_url"`
	Description string  `json:"description"`
}

// policyRecord 售后条款 JSON 的一条记录
type policyRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func main() {
	var (
		configPath = flag.String("config", "configs/api.yaml", "配置文件路径")
		kind       = flag.String("type", "product", "导入类型: product | policy")
		file       = flag.String("file", "", "JSON 数据文件路径")
		keyPrefix  = flag.String("prefix", "", "Redis key 前缀，默认按类型 products:/policies:")
	)
	flag.Parse()

	if *file == "" {
		stdlog.Fatal("缺少 -file 参数")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}

	provider := cfg.Model.Defaults.Embedding
	providerCfg, ok := cfg.Model.Embedding.Providers[provider]
	if !ok {
		stdlog.Fatalf("未配置 embedding provider %q", provider)
	}
	embedder, err := embedding.NewEmbedder(provider, providerCfg)
	if err != nil {
		stdlog.Fatalf("初始化 Embedder 失败: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		stdlog.Fatalf("读取数据文件失败: %v", err)
	}

	var docs []*schema.Document
	prefix := *keyPrefix
	switch *kind {
	case "product":
		if prefix == "" {
			prefix = "products:"
		}
		docs, err = productDocuments(data)
	case "policy":
		if prefix == "" {
			prefix = "policies:"
		}
		docs, err = policyDocuments(data)
	default:
		stdlog.Fatalf("未知导入类型 %q", *kind)
	}
	if err != nil {
		stdlog.Fatalf("解析数据文件失败: %v", err)
	}
	if len(docs) == 0 {
		stdlog.Fatal("数据文件为空")
	}

	ctx := context.Background()
	idx, err := search.NewIndexer(ctx, cfg.Search, prefix, embedder)
	if err != nil {
		stdlog.Fatalf("初始化 Indexer 失败: %v", err)
	}

	ids, err := idx.Store(ctx, docs)
	if err != nil {
		stdlog.Fatalf("写入索引失败: %v", err)
	}
	stdlog.Printf("已导入 %d 条记录（type=%s prefix=%s）", len(ids), *kind, prefix)
}

// productDocuments 产品记录转检索文档，metadata 字段与 search_products 读取的键对齐
func productDocuments(data []byte) ([]*schema.Document, error) {
	var records []productRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	docs := make([]*schema.Document, 0, len(records))
	for i, r := range records {
		if r.ProductName == "" {
			continue
		}
		id := r.ProductID
		if id == "" {
			id = fmt.Sprintf("product-%d", i)
		}
		content := r.ProductName
		if r.Description != "" {
			content += "\n" + r.Description
		}
		docs = append(docs, &schema.Document{
			ID:      id,
			Content: content,
			MetaData: map[string]any{
				"product_id":   r.ProductID,
				"product_name": r.ProductName,
				"price":        r.Price,
				"url":          r.URISlug,
				"image_url":    r.ImageURL,
				"text":         r.Description,
			},
		})
	}
	return docs, nil
}

// policyDocuments 条款记录转检索文档
func policyDocuments(data []byte) ([]*schema.Document, error) {
	var records []policyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	docs := make([]*schema.Document, 0, len(records))
	for i, r := range records {
		if r.Content == "" {
			continue
		}
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("policy-%d", i)
		}
		docs = append(docs, &schema.Document{
			ID:      id,
			Content: r.Content,
			MetaData: map[string]any{
				"title": r.Title,
			},
		})
	}
	return docs, nil
}
