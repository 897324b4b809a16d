package models

// GenerateContentRequest 是发送给远程文本生成服务的请求。
// 各个服务只使用自己支持的参数，零值表示使用服务端默认值。
type GenerateContentRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

// GenerateContentResponse 是远程服务返回的生成结果。
type GenerateContentResponse struct {
	Text         string `json:"text"`
	ModelVersion string `json:"model_version,omitempty"`
}
