package embedding

import (
	einoembed "github.com/cloudwego/eino/components/embedding"

	"retail-chatbot/pkg/config"
	"retail-chatbot/pkg/errors"
)

// NewEmbedder 按 Provider 名称创建 Embedding 客户端。
// OpenAI 兼容端点（qwen 等）走 OpenAI 客户端。
func NewEmbedder(provider string, cfg config.ProviderConfig) (einoembed.Embedder, error) {
	switch provider {
	case "openai", "qwen", "":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown embedding provider %q", provider)
	}
}
