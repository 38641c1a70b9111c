package embedding

import (
	"context"
	"fmt"

	"docqa/internal/config"
	httpclient "docqa/pkg/http"
)

// NewEmdModel 根据配置中的提供商创建 Embedding 模型实例。
//
// 参数:
//
//	cfg: 提供商、模型名称、API 密钥和基础 URL。
//	hc: 出站 HTTP 客户端，HuggingFace 通过它发送请求并受熔断器保护。
//
// 返回值:
//
//	Embedding: 新创建的 Embedding 模型实例。
//	error: 如果提供商不支持或模型初始化失败，则返回错误。
func NewEmdModel(ctx context.Context, cfg config.ProviderConfig, hc *httpclient.Client) (Embedding, error) {
	switch ModelType(cfg.Provider) {
	case Gemini:
		return NewGoogleModel(ctx, cfg.APIKey, cfg.Model)
	case OpenAI:
		return NewOpenAIModel(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case HuggingFace:
		return NewHuggingFaceModel(hc, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case Ollama:
		return NewOllamaModel(cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider) // 如果提供商不支持，返回错误。
	}
}
