// Package google implements the llm.StreamingLLM interface on top of the
// google.golang.org/genai SDK.
package google

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/deepnoodle-ai/wonton/retry"
	"google.golang.org/genai"
)

const ProviderName = "google"

var (
	DefaultModel         = ModelGemini25Flash
	DefaultMaxTokens     = 4096
	DefaultMaxRetries    = 3
	DefaultRetryBaseWait = 1 * time.Second
)

var _ llm.StreamingLLM = &Provider{}

type Provider struct {
	client        *genai.Client
	projectID     string
	location      string
	apiKey        string
	model         string
	maxTokens     int
	maxRetries    int
	retryBaseWait time.Duration
	mutex         sync.Mutex
}

func New(opts ...Option) *Provider {
	var apiKey string
	if value := os.Getenv("GEMINI_API_KEY"); value != "" {
		apiKey = value
	} else if value := os.Getenv("GOOGLE_API_KEY"); value != "" {
		apiKey = value
	}
	p := &Provider{
		apiKey:        apiKey,
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

func (p *Provider) initClient(ctx context.Context) (*genai.Client, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:   p.apiKey,
		Project:  p.projectID,
		Location: p.location,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google genai client: %v", err)
	}
	p.client = client
	return p.client, nil
}

func (p *Provider) Name() string {
	return ProviderName
}

func (p *Provider) Generate(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (*llm.Response, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &llm.Config{}
	config.Apply(opts...)

	model, contents, genConfig, err := p.buildRequest(messages, config)
	if err != nil {
		return nil, err
	}

	var result *llm.Response
	err = retry.DoSimple(ctx, func() error {
		resp, err := client.Models.GenerateContent(ctx, model, contents, genConfig)
		if err != nil {
			return fmt.Errorf("error generating content: %w", err)
		}
		result, err = convertResponse(resp, model)
		return err
	}, retry.WithMaxAttempts(p.maxRetries+1), retry.WithBackoff(p.retryBaseWait, 5*time.Minute))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Provider) Stream(ctx context.Context, messages []*llm.Message, opts ...llm.Option) (llm.Stream, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return nil, err
	}
	config := &llm.Config{}
	config.Apply(opts...)

	model, contents, genConfig, err := p.buildRequest(messages, config)
	if err != nil {
		return nil, err
	}
	seq := client.Models.GenerateContentStream(ctx, model, contents, genConfig)
	return newStream(seq, model), nil
}

func (p *Provider) AvailableModels() []llm.ModelInfo {
	return availableModels()
}

func (p *Provider) buildRequest(messages []*llm.Message, config *llm.Config) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	if len(messages) == 0 {
		return "", nil, nil, fmt.Errorf("no messages provided")
	}
	model := config.Model
	if model == "" {
		model = p.model
	}
	contents, err := messagesToContents(messages)
	if err != nil {
		return "", nil, nil, err
	}

	maxTokens := p.maxTokens
	if config.MaxTokens != nil {
		maxTokens = *config.MaxTokens
	}
	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if config.Temperature != nil {
		genConfig.Temperature = genai.Ptr(float32(*config.Temperature))
	}
	if config.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(config.SystemPrompt, genai.RoleUser)
	}
	return model, contents, genConfig, nil
}
