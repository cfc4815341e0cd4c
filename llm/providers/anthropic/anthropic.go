// Package anthropic implements the llm.StreamingLLM interface for the
// Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/forky/llm/providers"
	"github.com/deepnoodle-ai/wonton/retry"
)

const ProviderName = "anthropic"

var (
	DefaultModel         = ModelClaudeSonnet45
	DefaultEndpoint      = "https://api.anthropic.com/v1/messages"
	DefaultVersion       = "2023-06-01"
	DefaultMaxTokens     = 4096
	DefaultMaxRetries    = 3
	DefaultRetryBaseWait = 1 * time.Second
)

var _ llm.StreamingLLM = &Provider{}

type Provider struct {
	apiKey        string
	client        *http.Client
	endpoint      string
	model         string
	version       string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
}

func New(opts ...Option) *Provider {
	p := &Provider{
		apiKey:        os.Getenv("ANTHROPIC_API_KEY"),
		client:        http.DefaultClient,
		endpoint:      DefaultEndpoint,
		version:       DefaultVersion,
		model:         DefaultModel,
		maxTokens:     DefaultMaxTokens,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (*llm.Response, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	reqBody, err := p.buildRequest(messages, config, false)
	if err != nil {
		return nil, err
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	var result Response
	err = retry.DoSimple(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewBuffer(jsonBody))
		if err != nil {
			return fmt.Errorf("error creating request: %w", err)
		}
		p.setHeaders(req)
		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("error making request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode == http.StatusTooManyRequests && config.Logger != nil {
				config.Logger.Warn("rate limit exceeded",
					"status", resp.StatusCode, "body", string(body))
			}
			return providers.NewError(resp.StatusCode, string(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
		return nil
	}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 5*time.Minute))
	if err != nil {
		return nil, err
	}

	if len(result.Content) == 0 {
		return nil, fmt.Errorf("empty response from anthropic api")
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         result.ID,
		Model:      result.Model,
		Role:       llm.Assistant,
		StopReason: result.StopReason,
		Message:    llm.NewMessage(llm.Assistant, convertResponseContent(result.Content)),
		Usage: llm.Usage{
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		},
	}), nil
}

func (p *Provider) Stream(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (llm.Stream, error) {
	config := &llm.Config{}
	config.Apply(opts...)

	reqBody, err := p.buildRequest(messages, config, true)
	if err != nil {
		return nil, err
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	p.setHeaders(req)
	req.Header.Set("accept", "text/event-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, providers.NewError(resp.StatusCode, string(body))
	}
	return &Stream{
		events: llm.NewServerSentEventsReader[StreamEvent](resp.Body),
		body:   resp.Body,
	}, nil
}

func (p *Provider) AvailableModels() []llm.ModelInfo {
	return availableModels()
}

func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", p.version)
	req.Header.Set("content-type", "application/json")
}

func (p *Provider) buildRequest(messages []*llm.Message, config *llm.Config, stream bool) (*Request, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	model := config.Model
	if model == "" {
		model = p.model
	}
	maxTokens := config.MaxTokens
	if maxTokens == nil {
		maxTokens = &p.maxTokens
	}
	msgs, err := convertMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("error converting messages: %w", err)
	}
	return &Request{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: config.Temperature,
		System:      config.SystemPrompt,
		Stream:      stream,
	}, nil
}

func convertMessages(messages []*llm.Message) ([]*Message, error) {
	var result []*Message
	for i, msg := range messages {
		if len(msg.Content) == 0 {
			return nil, fmt.Errorf("empty message detected (index %d)", i)
		}
		var blocks []*ContentBlock
		for _, c := range msg.Content {
			switch c.Type {
			case llm.ContentTypeText:
				blocks = append(blocks, &ContentBlock{
					Type: "text",
					Text: c.Text,
				})
			case llm.ContentTypeImage:
				blocks = append(blocks, &ContentBlock{
					Type: "image",
					Source: &ImageSource{
						Type:      "base64",
						MediaType: c.MediaType,
						Data:      c.Data,
					},
				})
			default:
				return nil, fmt.Errorf("unsupported content type: %s", c.Type)
			}
		}
		result = append(result, &Message{
			Role:    strings.ToLower(string(msg.Role)),
			Content: blocks,
		})
	}
	return result, nil
}

func convertResponseContent(blocks []*ContentBlock) []*llm.Content {
	var content []*llm.Content
	for _, block := range blocks {
		if block.Type == "text" {
			content = append(content, &llm.Content{
				Type: llm.ContentTypeText,
				Text: block.Text,
			})
		}
	}
	return content
}
