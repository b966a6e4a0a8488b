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

package main

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	einoembed "github.com/cloudwego/eino/components/embedding"
	hertzslog "github.com/hertz-contrib/logger/slog"

	apihttp "retail-chatbot/internal/api/http"
	"retail-chatbot/internal/agent/orchestrator"
	"retail-chatbot/internal/model/embedding"
	"retail-chatbot/internal/model/llm"
	"retail-chatbot/internal/runtime/session"
	"retail-chatbot/internal/search"
	"retail-chatbot/internal/storage/contact"
	"retail-chatbot/internal/tool/builtin"
	"retail-chatbot/internal/tool/registry"
	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/log"
)

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		stdlog.Fatalf("加载配置失败: %v", err)
	}

	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		stdlog.Fatalf("初始化日志失败: %v", err)
	}
	setupHertzLogger(cfg)

	ctx := context.Background()

	client, err := buildLLMClient(cfg)
	if err != nil {
		stdlog.Fatalf("初始化 LLM 客户端失败: %v", err)
	}

	sessions, err := session.NewStore(cfg.Session, cfg.Agent.HistoryLimit, logger)
	if err != nil {
		stdlog.Fatalf("初始化会话存储失败: %v", err)
	}

	deps := builtin.Deps{
		Sessions: sessions,
		Tools:    cfg.Tools,
	}

	// 检索与联系人后端按配置装配，缺谁降级掉谁，对应工具不注册
	if embedder, err := buildEmbedder(cfg); err != nil {
		logger.Warn("初始化 Embedder failed，产品/条款检索工具不可用", "error", err)
	} else {
		if products, err := search.NewProductRetriever(ctx, cfg.Search, embedder); err != nil {
			logger.Warn("初始化产品检索器 failed", "error", err)
		} else {
			deps.Products = products
		}
		if policies, err := search.NewPolicyRetriever(ctx, cfg.Search, embedder); err != nil {
			logger.Warn("初始化条款检索器 failed", "error", err)
		} else {
			deps.Policies = policies
		}
	}

	if contacts, err := contact.NewStore(ctx, cfg.Contact); err != nil {
		logger.Warn("初始化联系人存储 failed，record_contact 不可用", "error", err)
	} else {
		deps.Contacts = contacts
	}

	reg := registry.New()
	builtin.RegisterAll(reg, deps)

	chatter := orchestrator.New(client, reg, sessions, cfg.Agent, logger)
	handler := apihttp.NewHandler(chatter, sessions, logger)
	router := apihttp.NewRouter(handler)

	addr := ":8080"
	if cfg.API.Port > 0 {
		addr = fmt.Sprintf(":%d", cfg.API.Port)
	}
	if cfg.API.Host != "" {
		addr = fmt.Sprintf("%s%s", cfg.API.Host, addr)
	}

	h := router.Build(addr)
	go func() {
		h.Spin()
	}()
	logger.Info("chat 服务已启动", "addr", addr, "provider", client.Provider(), "model", client.Model())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭服务 failed", "error", err)
	}
	logger.Info("chat 服务已关闭")
}

// buildLLMClient 按默认 Provider 创建客户端并套上限流包装
func buildLLMClient(cfg *config.Config) (llm.Client, error) {
	provider := cfg.Model.Defaults.LLM
	providerCfg, ok := cfg.Model.LLM.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("未配置 llm provider %q", provider)
	}
	client, err := llm.NewClient(provider, providerCfg)
	if err != nil {
		return nil, err
	}
	limiter := llm.NewRateLimiter(cfg.RateLimits.LLM)
	return llm.NewRateLimitedClient(client, limiter), nil
}

func buildEmbedder(cfg *config.Config) (einoembed.Embedder, error) {
	provider := cfg.Model.Defaults.Embedding
	providerCfg, ok := cfg.Model.Embedding.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("未配置 embedding provider %q", provider)
	}
	return embedding.NewEmbedder(provider, providerCfg)
}

// setupHertzLogger 把 Hertz 框架日志接到 slog
func setupHertzLogger(cfg *config.Config) {
	levelVar := &slog.LevelVar{}
	switch cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(os.Stdout),
		hertzslog.WithLevel(levelVar),
	))
}
