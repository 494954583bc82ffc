package vlllm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"celebrity-detector-go/src/core/providers"
	"celebrity-detector-go/src/core/types"
	"celebrity-detector-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// IdentifyPrompt 识别名人的固定提示词，要求五字段格式或直接回答Unknown
const IdentifyPrompt = `You are a celebrity recognition expert AI.
Identify the person in the image. If known, respond in this format:

- **Full Name**:
- **Profession**:
- **Nationality**:
- **Famous For**:
- **Top Achievements**:

If unknown, return "Unknown".
`

// Config VLLLM配置结构
type Config struct {
	Models      []string // 候选模型，按顺序尝试
	Temperature float64
	MaxTokens   int
	Client      providers.ClientConfig
}

// Provider 视觉模型提供者，负责名人识别与模型降级
type Provider struct {
	config     *Config
	logger     *utils.TaggedLogger
	httpClient *http.Client

	// preferred 上次成功的模型，只影响下一次的尝试顺序
	mu        sync.RWMutex
	preferred string
}

// NewProvider 创建新的VLLLM提供者
func NewProvider(config *Config, logger *utils.Logger) *Provider {
	return &Provider{
		config:     config,
		logger:     logger.WithTag("vlllm"),
		httpClient: providers.NewHTTPClient(config.Client.Timeout),
	}
}

// Initialize 检查配置。缺少API key时只记录错误，每次识别都会返回配置错误
func (p *Provider) Initialize() error {
	if len(p.config.Models) == 0 {
		return fmt.Errorf("no vision models configured")
	}
	if p.config.Client.APIKey == "" {
		p.logger.Error(fmt.Sprintf("%s 环境变量未设置", p.config.Client.APIKeyEnv))
	}
	p.logger.Debug("VLLLM Provider初始化成功", map[string]interface{}{
		"models":   p.config.Models,
		"base_url": p.config.Client.BaseURL,
	})
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// PreferredModel 返回上次成功的模型，尚未成功过时为空
func (p *Provider) PreferredModel() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.preferred
}

func (p *Provider) remember(model string) {
	p.mu.Lock()
	p.preferred = model
	p.mu.Unlock()
}

// Candidates 本次识别的尝试顺序：上次成功的模型在前，其余按配置顺序
func (p *Provider) Candidates() []string {
	preferred := p.PreferredModel()
	candidates := make([]string, 0, len(p.config.Models)+1)
	if preferred != "" {
		candidates = append(candidates, preferred)
	}
	for _, model := range p.config.Models {
		if model != preferred {
			candidates = append(candidates, model)
		}
	}
	return candidates
}

// attemptOutcome 单个模型的尝试结果，result为空表示可以换下一个模型
type attemptOutcome struct {
	result  *types.Identification
	lastErr string
}

// Identify 识别图片中的名人
func (p *Provider) Identify(ctx context.Context, imageData []byte, format string) types.Identification {
	if p.config.Client.APIKey == "" {
		p.logger.Error(fmt.Sprintf("%s 未设置，无法调用接口", p.config.Client.APIKeyEnv))
		return types.Identification{
			Kind:   types.IdentificationConfigError,
			Reason: types.MissingKeyReason(p.config.Client.APIKeyEnv),
		}
	}

	if format == "" {
		format = "jpeg"
	}
	dataURL := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(imageData))

	lastErr := "no candidate models"
	for _, model := range p.Candidates() {
		if err := ctx.Err(); err != nil {
			lastErr = err.Error()
			break
		}

		p.logger.Info(fmt.Sprintf("尝试模型: %s", model))
		outcome := p.attempt(ctx, model, dataURL)
		if outcome.result != nil {
			return *outcome.result
		}
		lastErr = outcome.lastErr
	}

	p.logger.Error("所有模型均失败", map[string]interface{}{"last_error": lastErr})
	return types.Identification{
		Kind:   types.IdentificationTransportError,
		Reason: lastErr,
	}
}

func (p *Provider) attempt(ctx context.Context, model, dataURL string) attemptOutcome {
	ctx, cancel := context.WithTimeout(ctx, p.config.Client.Timeout)
	defer cancel()

	recorder := providers.NewResponseRecorder(p.httpClient)
	client := providers.NewChatClient(p.config.Client, recorder)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: IdentifyPrompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: dataURL,
						},
					},
				},
			},
		},
		Temperature: float32(p.config.Temperature),
		MaxTokens:   p.config.MaxTokens,
	})

	switch {
	case recorder.Responded() && recorder.StatusCode != http.StatusOK:
		if providers.IsModelDecommissioned(err, recorder.Body) {
			p.logger.Warn(fmt.Sprintf("模型 %s 已下线，尝试下一个模型", model))
			return attemptOutcome{lastErr: fmt.Sprintf("Model %s decommissioned", model)}
		}
		p.logger.Error("接口返回错误", map[string]interface{}{
			"model":       model,
			"status_code": recorder.StatusCode,
			"body":        string(recorder.Body),
		})
		return attemptOutcome{result: &types.Identification{
			Kind:       types.IdentificationProviderError,
			Model:      model,
			StatusCode: recorder.StatusCode,
			Body:       string(recorder.Body),
		}}
	case err != nil && !recorder.Responded():
		msg := fmt.Sprintf("Network error with %s: %v", model, err)
		p.logger.Warn(msg)
		return attemptOutcome{lastErr: msg}
	case err != nil:
		msg := fmt.Sprintf("Unexpected error with %s: %v", model, err)
		p.logger.Warn(msg)
		return attemptOutcome{lastErr: msg}
	}

	content, err := providers.FirstChoiceContent(resp)
	if err != nil {
		msg := fmt.Sprintf("Unexpected error with %s: %v", model, err)
		p.logger.Warn(msg)
		return attemptOutcome{lastErr: msg}
	}

	name := types.ExtractName(content)
	p.remember(model)
	p.logger.Info(fmt.Sprintf("识别成功: %s，模型 %s", name, model))

	kind := types.IdentificationSuccess
	if name == types.UnknownName {
		kind = types.IdentificationUnrecognized
	}
	return attemptOutcome{result: &types.Identification{
		Kind:  kind,
		Text:  content,
		Name:  name,
		Model: model,
	}}
}
