package providers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ModelDecommissionedCode Groq下线模型时返回的错误码
const ModelDecommissionedCode = "model_decommissioned"

// Provider 所有提供者的基础接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// ClientConfig OpenAI兼容接口的连接配置
type ClientConfig struct {
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// ResponseRecorder 记录上游响应的状态码，非200时保留原始响应体。
// go-openai 解析错误后会丢掉原始body，页面需要原样展示。
// 每次请求使用一个新的实例。
type ResponseRecorder struct {
	client *http.Client

	StatusCode int
	Body       []byte
}

// NewResponseRecorder 创建记录器
func NewResponseRecorder(client *http.Client) *ResponseRecorder {
	return &ResponseRecorder{client: client}
}

// Do 实现 openai.HTTPDoer
func (r *ResponseRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}

	r.StatusCode = resp.StatusCode
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		r.StatusCode = 0
		return nil, fmt.Errorf("read response body: %w", err)
	}
	r.Body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// Responded 上游是否返回了HTTP响应
func (r *ResponseRecorder) Responded() bool {
	return r.StatusCode != 0
}

// NewChatClient 为一次请求创建客户端，所有HTTP流量经过recorder
func NewChatClient(config ClientConfig, recorder *ResponseRecorder) *openai.Client {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = recorder
	return openai.NewClientWithConfig(clientConfig)
}

// NewHTTPClient 按超时创建HTTP客户端
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// IsModelDecommissioned 判断失败是否因为模型已下线（唯一可以换模型重试的上游错误）
func IsModelDecommissioned(err error, body []byte) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && code == ModelDecommissionedCode {
			return true
		}
	}
	return strings.Contains(strings.ToLower(string(body)), "decommissioned")
}

// FirstChoiceContent 取第一条回答
func FirstChoiceContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
