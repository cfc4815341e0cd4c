package llm

import (
	"encoding/json"
	"strings"
)

// Role indicates the role of a message in a conversation. Either "user",
// "assistant", or "system".
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	System    Role = "system"
)

func (r Role) String() string {
	return string(r)
}

// Usage contains token usage information for an LLM response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage into this one.
func (u *Usage) Add(other *Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ContentType indicates the type of a content block in a message.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// Content is a single block of content in a message. A message may contain
// multiple content blocks.
type Content struct {
	// Type: text or image
	Type ContentType `json:"type"`

	// Text content
	Text string `json:"text,omitempty"`

	// Data is base64 encoded data for image content
	Data string `json:"data,omitempty"`

	// MediaType is the media type of image content
	MediaType string `json:"media_type,omitempty"`
}

// Message containing content passed to or from an LLM.
type Message struct {
	ID      string     `json:"id,omitempty"`
	Role    Role       `json:"role"`
	Content []*Content `json:"content"`
}

// Text returns the message text content. Specifically, it returns the last
// text content in the message. To retrieve a concatenated text from all
// message content, use CompleteText instead.
func (m *Message) Text() string {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if m.Content[i].Type == ContentTypeText {
			return m.Content[i].Text
		}
	}
	return ""
}

// CompleteText returns a concatenation of all text content in the message,
// joined by double newlines.
func (m *Message) CompleteText() string {
	var parts []string
	for _, c := range m.Content {
		if c.Type == ContentTypeText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Copy returns a deep copy of the message.
func (m *Message) Copy() *Message {
	cp := &Message{ID: m.ID, Role: m.Role}
	cp.Content = make([]*Content, len(m.Content))
	for i, c := range m.Content {
		cc := *c
		cp.Content[i] = &cc
	}
	return cp
}

// MarshalJSON serializes the message with a non-nil content array.
func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	a := alias(*m)
	if a.Content == nil {
		a.Content = []*Content{}
	}
	return json.Marshal(a)
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content []*Content) *Message {
	return &Message{Role: role, Content: content}
}

// NewTextMessage creates a message with a single text content block.
func NewTextMessage(role Role, text string) *Message {
	return &Message{Role: role, Content: []*Content{{Type: ContentTypeText, Text: text}}}
}

// NewUserTextMessage creates a user message with the given text.
func NewUserTextMessage(text string) *Message {
	return NewTextMessage(User, text)
}

// NewAssistantTextMessage creates an assistant message with the given text.
func NewAssistantTextMessage(text string) *Message {
	return NewTextMessage(Assistant, text)
}

// NewSystemTextMessage creates a system message with the given text.
func NewSystemTextMessage(text string) *Message {
	return NewTextMessage(System, text)
}
