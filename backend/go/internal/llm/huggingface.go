package llm

import (
	"FactVerse/backend/go/internal/models"
	pkghttp "FactVerse/backend/go/pkg/http"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// HuggingFace 是一个用于 Hugging Face Inference API 的 LLM 客户端。
type HuggingFace struct {
	client  *pkghttp.Client // 带熔断的 HTTP 客户端。
	model   string          // 要使用的模型名称。
	apiKey  string          // Hugging Face API 密钥。
	baseURL string          // Hugging Face Inference API 的基准 URL。
}

// NewHuggingFace 创建一个新的 HuggingFace 客户端。
//
// 参数:
//
//	client: 发送请求使用的 HTTP 客户端，为 nil 时使用默认客户端。
//	model: 要使用的模型名称。
//	apiKey: Hugging Face API 密钥。
//	baseURL: Hugging Face Inference API 的基准 URL。如果为空，则默认为 "https://api-inference.huggingface.co/models/"。
func NewHuggingFace(client *pkghttp.Client, model, apiKey, baseURL string) (*HuggingFace, error) {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co/models/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = pkghttp.NewClientWith(nil, nil)
	}
	return &HuggingFace{
		client:  client,
		model:   model,
		apiKey:  apiKey,
		baseURL: baseURL,
	}, nil
}

// hfParameters 对应 Inference API 的 parameters 字段。
type hfParameters struct {
	MaxLength      int     `json:"max_length,omitempty"`
	Temperature    float32 `json:"temperature,omitempty"`
	TopP           float32 `json:"top_p,omitempty"`
	TopK           int     `json:"top_k,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
	DoSample       bool    `json:"do_sample"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfGenerated struct {
	GeneratedText string `json:"generated_text"`
}

// GenerateContent 使用 Hugging Face Inference API 生成内容。
// 非 2xx 响应以 *pkghttp.StatusError 返回，调用方可据此识别 429。
func (h *HuggingFace) GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error) {
	body := hfRequest{
		Inputs: req.Prompt,
		Parameters: hfParameters{
			MaxLength:   req.MaxTokens,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			TopK:        req.TopK,
			DoSample:    true,
		},
	}

	var raw json.RawMessage
	headers := map[string]string{"Authorization": "Bearer " + h.apiKey}
	if err := h.client.PostJSON(ctx, h.baseURL+h.model, headers, body, &raw); err != nil {
		return nil, fmt.Errorf("hugging face request failed: %w", err)
	}

	text, err := parseHuggingFaceText(raw)
	if err != nil {
		return nil, err
	}
	return &models.GenerateContentResponse{Text: text, ModelVersion: h.model}, nil
}

// parseHuggingFaceText 兼容数组与单个对象两种响应格式。
func parseHuggingFaceText(raw json.RawMessage) (string, error) {
	var list []hfGenerated
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}
	var single hfGenerated
	if err := json.Unmarshal(raw, &single); err != nil {
		return "", fmt.Errorf("failed to decode hugging face response: %w", err)
	}
	return single.GeneratedText, nil
}
