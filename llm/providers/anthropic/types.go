package anthropic

// Request is the Anthropic Messages API request body.
type Request struct {
	Model       string     `json:"model"`
	Messages    []*Message `json:"messages"`
	MaxTokens   *int       `json:"max_tokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
	System      string     `json:"system,omitempty"`
	Stream      bool       `json:"stream,omitempty"`
}

type Message struct {
	Role    string          `json:"role"`
	Content []*ContentBlock `json:"content"`
}

type ContentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type Response struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Model      string          `json:"model"`
	Content    []*ContentBlock `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is one decoded event from the Messages API event stream.
type StreamEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	Message      Response     `json:"message"`
	ContentBlock ContentBlock `json:"content_block"`
	Delta        StreamDelta  `json:"delta"`
	Usage        Usage        `json:"usage"`
}

type StreamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}
