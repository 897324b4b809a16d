package llm

import (
	"FactVerse/backend/go/internal/config"
	"FactVerse/backend/go/internal/models"
	pkghttp "FactVerse/backend/go/pkg/http"
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrMissingAPIKey 表示服务需要 API 密钥但配置中没有提供。
var ErrMissingAPIKey = errors.New("llm: api key not configured")

// LLM 定义了所有文本生成客户端必须实现的通用接口。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
// hc 用于基于 HTTP 的服务（Hugging Face）；Gemini、OpenAI 与 Ollama 使用各自的 SDK。
func NewClient(ctx context.Context, cfg config.ProviderConfig, hc *pkghttp.Client) (LLM, error) {
	switch cfg.Provider {
	case "huggingface":
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewHuggingFace(hc, cfg.Model, cfg.APIKey, cfg.BaseURL)
	case "ollama":
		return NewOllama(cfg.Model, cfg.BaseURL)
	case "gemini":
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewGemini(ctx, cfg.Model, cfg.APIKey)
	case "openai":
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewOpenAI(cfg.Model, cfg.APIKey, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Close 释放客户端持有的连接（目前只有 Gemini 持有 gRPC 连接），其他客户端直接返回 nil。
func Close(c LLM) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
