package relay

import (
	"errors"
	"fmt"
	"strings"

	"scribe-hq/hermes/pkg/providers"
)

// Category labels the cause of an upstream failure. Categories drive
// metrics and let operators separate credential problems from capacity
// and network problems.
type Category string

const (
	CategoryCredentialMissing Category = "credential_missing"
	CategoryUpstreamAuth      Category = "upstream_auth"
	CategoryRateLimited       Category = "rate_limited"
	CategoryInvalidCredential Category = "invalid_credential"
	CategoryUpstream          Category = "upstream"
	CategoryContentLength     Category = "content_length"
	CategoryNetwork           Category = "network"
	CategoryAuthOther         Category = "auth_other"
	CategoryUnknown           Category = "unknown"
)

// Classify maps an upstream failure to a category and a user-facing
// message. Messages are written for end users of the chat product, in
// Chinese, and never leak credentials or raw upstream bodies beyond
// the upstream's own error message.
//
// Cancellation is not a failure; callers must check for
// context.Canceled before classifying.
func Classify(err error) (Category, string) {
	if err == nil {
		return CategoryUnknown, ""
	}

	if isMissingKey(err) {
		return CategoryCredentialMissing, "API密钥未配置，请联系管理员"
	}

	var authErr *providers.AuthError
	if errors.As(err, &authErr) {
		if authErr.Code == "invalid_api_key" {
			return CategoryInvalidCredential, fmt.Sprintf("无效的API密钥：%s。请联系管理员。", authErr.Message)
		}
		return CategoryUpstreamAuth, fmt.Sprintf("API认证失败：%s (状态码: %d)，请联系管理员。", authErr.Message, authErr.StatusCode)
	}

	var rateErr *providers.RateLimitError
	if errors.As(err, &rateErr) {
		return CategoryRateLimited, fmt.Sprintf("请求过于频繁：%s (状态码: 429)，请稍后再试。", rateErr.Message)
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		if provErr.Code == "invalid_api_key" {
			return CategoryInvalidCredential, fmt.Sprintf("无效的API密钥：%s。请联系管理员。", provErr.Message)
		}
		if isContentLength(provErr.Code, provErr.Message) {
			return CategoryContentLength, "内容长度超出模型限制，请尝试减少输入内容"
		}
		return CategoryUpstream, fmt.Sprintf("OpenAI API错误：%s (状态码: %d, 类型: %s, Code: %s)",
			provErr.Message, provErr.StatusCode, provErr.Type, provErr.Code)
	}

	msg := err.Error()

	if isContentLength("", msg) {
		return CategoryContentLength, "内容长度超出模型限制，请尝试减少输入内容"
	}

	var netErr *providers.NetworkError
	if errors.As(err, &netErr) || isNetworkFailure(msg) {
		return CategoryNetwork, "网络连接错误，请检查您的网络连接或API Base URL是否正确，并重试"
	}

	if strings.Contains(msg, "authentication") || strings.Contains(msg, "认证") {
		return CategoryAuthOther, "API认证失败，请联系管理员"
	}

	return CategoryUnknown, fmt.Sprintf("生成内容失败: %s", msg)
}

// isMissingKey recognizes a configuration failure for an absent
// credential, whether typed or reported as text.
func isMissingKey(err error) bool {
	var cfgErr *providers.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Field == "api_key" {
		return true
	}
	return strings.Contains(err.Error(), "API key not configured")
}

// isContentLength recognizes context window overruns by error code or
// message text.
func isContentLength(code, msg string) bool {
	if code == "context_length_exceeded" {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "context_length_exceeded") ||
		strings.Contains(lower, "maximum context length") ||
		(strings.Contains(lower, "token") && strings.Contains(lower, "exceed"))
}

// isNetworkFailure recognizes transport failures reported as text by
// layers that lost the typed error.
func isNetworkFailure(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "network")
}
