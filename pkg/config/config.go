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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Session    SessionConfig    `mapstructure:"session"`
	Search     SearchConfig     `mapstructure:"search"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Contact    ContactConfig    `mapstructure:"contact"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int    `mapstructure:"port"`
	Host    string `mapstructure:"host"`
	Timeout string `mapstructure:"timeout"`
}

// AgentConfig 会话编排配置
type AgentConfig struct {
	// AuthPolicy 认证策略：optional（自然收集联系方式，默认）| otp（OTP 强制验证）
	AuthPolicy string `mapstructure:"auth_policy"`
	// MaxIterations 单次请求内 模型调用⇄工具执行 的最大循环次数，<=0 默认 15
	MaxIterations int `mapstructure:"max_iterations"`
	// HistoryLimit 每个 session 保留的最近消息条数，<=0 默认 30
	HistoryLimit int `mapstructure:"history_limit"`
	// TokenBudget 估算 token 上限，超出时截断重试一次，<=0 默认 15000
	TokenBudget int `mapstructure:"token_budget"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	// Transcript 该 Provider 的历史回放形态：passthrough（完整 tool 序列）| strict（严格 user/assistant 交替）
	Transcript string `mapstructure:"transcript"`
	Timeout    string `mapstructure:"timeout"`
}

// DefaultsConfig 默认模型配置
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// SessionConfig 会话记忆存储配置
type SessionConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 如 "30m"，空则默认 30m
}

// SearchConfig 向量检索配置（Redis Stack，产品与条款共用实例、各自前缀）
type SearchConfig struct {
	Addr             string `mapstructure:"addr"`
	DB               string `mapstructure:"db"`
	Password         string `mapstructure:"password"`
	ProductIndex     string `mapstructure:"product_index"`
	PolicyIndex      string `mapstructure:"policy_index"`
	DefaultTopK      int    `mapstructure:"default_top_k"`
	DefaultThreshold float64 `mapstructure:"default_threshold"`
}

// ToolsConfig 外部 REST 工具端点配置
type ToolsConfig struct {
	PortalBaseURL string `mapstructure:"portal_base_url"` // 商城门户 web-api 根路径
	AuthKey       string `mapstructure:"auth_key"`
	AuthToken     string `mapstructure:"auth_token"`
	ChatbotSecret string `mapstructure:"chatbot_secret"` // OTP 接口的 x-chatbot-auth
	Timeout       string `mapstructure:"timeout"`        // 单次工具 HTTP 调用超时，空则默认 10s
}

// ContactConfig 联系方式落库配置
type ContactConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// RateLimitsConfig 限流配置（LLM Provider 维度）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// replaceEnvVars 替换配置中的 ${ENV} 形式 API Key
func replaceEnvVars(config *Config) error {
	for provider, providerConfig := range config.Model.LLM.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.LLM.Providers[provider] = providerConfig
			}
		}
	}

	for provider, providerConfig := range config.Model.Embedding.Providers {
		if strings.HasPrefix(providerConfig.APIKey, "$") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(providerConfig.APIKey, "}"), "${")
			if val := os.Getenv(envVar); val != "" {
				providerConfig.APIKey = val
				config.Model.Embedding.Providers[provider] = providerConfig
			}
		}
	}

	return nil
}

// SessionTTL 解析会话 TTL，非法或缺省时返回 30 分钟
func (c *SessionConfig) SessionTTL() time.Duration {
	if c.TTL == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// ToolTimeout 解析工具 HTTP 超时，非法或缺省时返回 10 秒
func (c *ToolsConfig) ToolTimeout() time.Duration {
	if c.Timeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
