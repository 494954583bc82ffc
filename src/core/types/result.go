package types

import (
	"fmt"
	"strings"
)

const (
	// ErrorPrefix 所有错误描述的前缀，页面层据此判断是否允许追问
	ErrorPrefix = "Error:"
	// UnknownName 模型无法识别人物时的名字
	UnknownName = "Unknown"
	// FullNameMarker 结构化回答中的姓名字段
	FullNameMarker = "**Full Name**"

	modelsDocURL = "https://console.groq.com/docs/models"
)

// IdentificationKind 识别结果类型
type IdentificationKind int

const (
	IdentificationSuccess IdentificationKind = iota
	IdentificationUnrecognized
	IdentificationConfigError
	IdentificationProviderError
	IdentificationTransportError
)

func (k IdentificationKind) String() string {
	switch k {
	case IdentificationSuccess:
		return "success"
	case IdentificationUnrecognized:
		return "unrecognized"
	case IdentificationConfigError:
		return "config_error"
	case IdentificationProviderError:
		return "provider_error"
	case IdentificationTransportError:
		return "transport_error"
	default:
		return "unknown_kind"
	}
}

// Identification 名人识别结果
type Identification struct {
	Kind IdentificationKind
	// Text 模型原始回答，仅Success/Unrecognized有值
	Text string
	// Name 提取出的名字，错误时为空
	Name string
	// Model 给出回答的模型
	Model string

	StatusCode int    // ProviderError
	Body       string // ProviderError 原始响应体
	Reason     string // ConfigError / TransportError
}

// Description 返回页面展示的描述文本，错误统一以"Error:"开头
func (r Identification) Description() string {
	switch r.Kind {
	case IdentificationSuccess, IdentificationUnrecognized:
		return r.Text
	case IdentificationConfigError:
		return ErrorPrefix + " " + r.Reason
	case IdentificationProviderError:
		return fmt.Sprintf("%s API request failed with status %d: %s", ErrorPrefix, r.StatusCode, r.Body)
	case IdentificationTransportError:
		return fmt.Sprintf("%s All models failed. Last error: %s. Please check %s for available vision-capable models.",
			ErrorPrefix, r.Reason, modelsDocURL)
	default:
		return ErrorPrefix + " unexpected identification result"
	}
}

// IsError 是否为错误结果
func (r Identification) IsError() bool {
	return r.Kind != IdentificationSuccess && r.Kind != IdentificationUnrecognized
}

// MissingKeyReason API key缺失时的说明
func MissingKeyReason(envName string) string {
	return fmt.Sprintf("%s is not configured. Please set it in your environment variables.", envName)
}

// AnswerKind 问答结果类型
type AnswerKind int

const (
	AnswerSuccess AnswerKind = iota
	AnswerConfigError
	AnswerProviderError
	AnswerTransportError
	AnswerUnexpectedError
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerSuccess:
		return "success"
	case AnswerConfigError:
		return "config_error"
	case AnswerProviderError:
		return "provider_error"
	case AnswerTransportError:
		return "transport_error"
	case AnswerUnexpectedError:
		return "unexpected_error"
	default:
		return "unknown_kind"
	}
}

// Answer 追问结果
type Answer struct {
	Kind       AnswerKind
	Content    string
	StatusCode int
	Body       string
	Reason     string
}

// Text 返回页面展示的回答文本
func (a Answer) Text() string {
	switch a.Kind {
	case AnswerSuccess:
		return a.Content
	case AnswerConfigError:
		return ErrorPrefix + " " + a.Reason
	case AnswerProviderError:
		return fmt.Sprintf("Sorry, I couldn't find the answer. %s API request failed with status %d: %s",
			ErrorPrefix, a.StatusCode, a.Body)
	case AnswerTransportError:
		return "Sorry, I encountered a network error: Network error: " + a.Reason
	case AnswerUnexpectedError:
		return "Sorry, an unexpected error occurred: Unexpected error: " + a.Reason
	default:
		return ErrorPrefix + " unexpected answer result"
	}
}

// ExtractName 从结构化回答中提取名字，没有姓名行时返回Unknown
func ExtractName(content string) string {
	const marker = "- **full name**:"
	for _, line := range strings.FieldsFunc(content, isLineBreak) {
		if !strings.HasPrefix(strings.ToLower(line), marker) {
			continue
		}
		// 取第一个与第二个冒号之间的内容
		parts := strings.Split(line, ":")
		return strings.TrimSpace(parts[1])
	}
	return UnknownName
}

// isLineBreak 换行符，包括单独的\r、换页符和Unicode行分隔符
func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
