package llm

import (
	"context"
	"fmt"

	"docqa/internal/config"
	httpclient "docqa/pkg/http"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
type LLM interface {
	// Generate 对单轮提示生成完整回答，不做流式输出。
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options 是生成时的公共参数。
type Options struct {
	// MaxNewTokens 限制单次回答生成的 token 数，0 表示使用提供商默认值。
	MaxNewTokens int
}

// NewClient 根据配置中的提供商创建 LLM 客户端。
func NewClient(ctx context.Context, cfg config.ProviderConfig, opts Options, hc *httpclient.Client) (LLM, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model configured for %s provider", cfg.Provider)
	}
	switch cfg.Provider {
	case "gemini":
		return NewGemini(ctx, cfg.Model, cfg.APIKey, opts)
	case "openai":
		return NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL, opts)
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL, opts)
	case "huggingface":
		return NewHuggingFace(hc, cfg.Model, cfg.APIKey, cfg.BaseURL, opts)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
