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

// Package search 基于 Redis Stack 的向量检索层。产品目录与售后条款
// 共用一个 Redis 实例，各自独立的索引前缀。
package search

import (
	"context"
	"fmt"
	"strconv"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"retail-chatbot/pkg/config"
)

const (
	defaultBatchSize    = 100
	defaultTopK         = 5
	defaultProductIndex = "products"
	defaultPolicyIndex  = "policies"
)

// redisOptions 从 SearchConfig 构造 redis.Options
func redisOptions(cfg config.SearchConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       0,
	}
	if cfg.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if cfg.DB != "" {
		db, err := strconv.Atoi(cfg.DB)
		if err == nil && db >= 0 {
			opts.DB = db
		}
	}
	// Redis Stack 向量检索需 Protocol 2、UnstableResp3 true（见 eino-ext retriever 注释）
	opts.Protocol = 2
	opts.UnstableResp3 = true
	return opts
}

// NewProductRetriever 创建产品目录检索器
func NewProductRetriever(ctx context.Context, cfg config.SearchConfig, embedder einoembed.Embedder) (einoretriever.Retriever, error) {
	index := cfg.ProductIndex
	if index == "" {
		index = defaultProductIndex
	}
	return newRetriever(ctx, cfg, index, embedder)
}

// NewPolicyRetriever 创建售后条款检索器
func NewPolicyRetriever(ctx context.Context, cfg config.SearchConfig, embedder einoembed.Embedder) (einoretriever.Retriever, error) {
	index := cfg.PolicyIndex
	if index == "" {
		index = defaultPolicyIndex
	}
	return newRetriever(ctx, cfg, index, embedder)
}

func newRetriever(ctx context.Context, cfg config.SearchConfig, index string, embedder einoembed.Embedder) (einoretriever.Retriever, error) {
	client := redis.NewClient(redisOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = defaultTopK
	}
	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:    client,
		Index:     index,
		TopK:      topK,
		Embedding: embedder,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis retriever: %w", err)
	}
	return ret, nil
}

// NewIndexer 创建写入指定索引前缀的 Indexer，供离线导入使用
func NewIndexer(ctx context.Context, cfg config.SearchConfig, keyPrefix string, embedder einoembed.Embedder) (einoindexer.Indexer, error) {
	client := redis.NewClient(redisOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
		Client:    client,
		KeyPrefix: keyPrefix,
		BatchSize: defaultBatchSize,
		Embedding: embedder,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis indexer: %w", err)
	}
	return idx, nil
}
