// Package openai implements the llm.StreamingLLM interface on top of the
// official openai-go SDK's Chat Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const ProviderName = "openai"

var (
	DefaultModel     = ModelGPT5
	DefaultMaxTokens = 4096
)

var _ llm.StreamingLLM = &Provider{}

type Provider struct {
	client    openai.Client
	model     string
	maxTokens int
	options   []option.RequestOption
}

func New(opts ...Option) *Provider {
	p := &Provider{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.client = openai.NewClient(p.options...)
	return p
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (*llm.Response, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	params, err := p.buildParams(messages, config)
	if err != nil {
		return nil, err
	}
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty response from openai api")
	}
	choice := completion.Choices[0]
	return llm.NewResponse(llm.ResponseOptions{
		ID:         completion.ID,
		Model:      completion.Model,
		Role:       llm.Assistant,
		StopReason: string(choice.FinishReason),
		Message:    llm.NewAssistantTextMessage(choice.Message.Content),
		Usage: llm.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}), nil
}

func (p *Provider) Stream(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (llm.Stream, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	params, err := p.buildParams(messages, config)
	if err != nil {
		return nil, err
	}
	return &Stream{stream: p.client.Chat.Completions.NewStreaming(ctx, params)}, nil
}

func (p *Provider) AvailableModels() []llm.ModelInfo {
	return availableModels()
}

func (p *Provider) buildParams(messages []*llm.Message, config *llm.Config) (openai.ChatCompletionNewParams, error) {
	if len(messages) == 0 {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("no messages provided")
	}
	model := config.Model
	if model == "" {
		model = p.model
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if config.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(config.SystemPrompt))
	}
	for _, msg := range messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, converted)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if config.MaxTokens != nil && *config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(*config.MaxTokens))
	} else if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(p.maxTokens))
	}
	if config.Temperature != nil {
		params.Temperature = openai.Float(*config.Temperature)
	}
	return params, nil
}

func convertMessage(msg *llm.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case llm.Assistant:
		return openai.AssistantMessage(msg.CompleteText()), nil
	case llm.System:
		return openai.SystemMessage(msg.CompleteText()), nil
	case llm.User:
		var parts []openai.ChatCompletionContentPartUnionParam
		for _, c := range msg.Content {
			switch c.Type {
			case llm.ContentTypeText:
				parts = append(parts, openai.TextContentPart(c.Text))
			case llm.ContentTypeImage:
				dataURL := fmt.Sprintf("data:%s;base64,%s", c.MediaType, c.Data)
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}))
			default:
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported content type: %s", c.Type)
			}
		}
		return openai.UserMessage(parts), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unsupported role: %s", msg.Role)
	}
}
