package llm

import (
	"context"
	"fmt"
	"net/http"

	"celebrity-detector-go/src/core/providers"
	"celebrity-detector-go/src/core/types"
	"celebrity-detector-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Config LLM配置结构
type Config struct {
	ModelName   string
	Temperature float64
	MaxTokens   int
	Client      providers.ClientConfig
}

// Provider 名人追问问答，固定模型，不重试不降级
type Provider struct {
	config     *Config
	logger     *utils.TaggedLogger
	httpClient *http.Client
}

// NewProvider 创建问答提供者
func NewProvider(config *Config, logger *utils.Logger) *Provider {
	return &Provider{
		config:     config,
		logger:     logger.WithTag("llm"),
		httpClient: providers.NewHTTPClient(config.Client.Timeout),
	}
}

// Initialize 初始化提供者
func (p *Provider) Initialize() error {
	if p.config.ModelName == "" {
		return fmt.Errorf("no qa model configured")
	}
	if p.config.Client.APIKey == "" {
		p.logger.Error(fmt.Sprintf("%s 环境变量未设置", p.config.Client.APIKeyEnv))
	}
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// BuildPrompt 生成追问提示词
func BuildPrompt(name, question string) string {
	return fmt.Sprintf("You are a AI Assistant that knows a lot about celebrities. "+
		"You have to answer questions about %s concisely and accurately.\nQuestion : %s", name, question)
}

// Ask 针对已识别的名人回答问题
func (p *Provider) Ask(ctx context.Context, name, question string) types.Answer {
	if p.config.Client.APIKey == "" {
		p.logger.Error(fmt.Sprintf("%s 未设置，无法调用接口", p.config.Client.APIKeyEnv))
		return types.Answer{
			Kind:   types.AnswerConfigError,
			Reason: types.MissingKeyReason(p.config.Client.APIKeyEnv),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Client.Timeout)
	defer cancel()

	recorder := providers.NewResponseRecorder(p.httpClient)
	client := providers.NewChatClient(p.config.Client, recorder)

	p.logger.Debug("发送追问", map[string]interface{}{
		"model":    p.config.ModelName,
		"name":     name,
		"question": question,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.config.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildPrompt(name, question),
			},
		},
		Temperature: float32(p.config.Temperature),
		MaxTokens:   p.config.MaxTokens,
	})

	switch {
	case recorder.Responded() && recorder.StatusCode != http.StatusOK:
		p.logger.Error("接口返回错误", map[string]interface{}{
			"status_code": recorder.StatusCode,
			"body":        string(recorder.Body),
		})
		return types.Answer{
			Kind:       types.AnswerProviderError,
			StatusCode: recorder.StatusCode,
			Body:       string(recorder.Body),
		}
	case err != nil && !recorder.Responded():
		p.logger.Error(fmt.Sprintf("网络错误: %v", err))
		return types.Answer{Kind: types.AnswerTransportError, Reason: err.Error()}
	case err != nil:
		p.logger.Error(fmt.Sprintf("未知错误: %v", err))
		return types.Answer{Kind: types.AnswerUnexpectedError, Reason: err.Error()}
	}

	content, err := providers.FirstChoiceContent(resp)
	if err != nil {
		p.logger.Error(fmt.Sprintf("未知错误: %v", err))
		return types.Answer{Kind: types.AnswerUnexpectedError, Reason: err.Error()}
	}
	return types.Answer{Kind: types.AnswerSuccess, Content: content}
}
