package models

import "errors"

// RequestInfo 存储了关于 HTTP 请求的上下文信息。
type RequestInfo struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms,omitempty"`
}

// ErrorInfo 存储了关于错误的结构化信息。
type ErrorInfo struct {
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`        // 错误的类型，例如 "database_error", "provider_error"
	StatusCode int    `json:"status_code,omitempty"` // 相关的HTTP状态码
}

// statusCoder 由携带 HTTP 状态码的错误实现（例如 pkg/http.StatusError）。
type statusCoder interface {
	error
	Code() int
}

// ErrorInfoFrom 把 error 转换为 ErrorInfo，并尽量提取状态码。
func ErrorInfoFrom(err error, errType string) ErrorInfo {
	if err == nil {
		return ErrorInfo{Type: errType}
	}
	info := ErrorInfo{Message: err.Error(), Type: errType}
	var sc statusCoder
	if errors.As(err, &sc) {
		info.StatusCode = sc.Code()
	}
	return info
}
