package google

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/forky/llm"
	"google.golang.org/genai"
)

// messagesToContents converts llm messages to genai contents. Gemini uses
// "model" where we use "assistant".
func messagesToContents(messages []*llm.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for i, msg := range messages {
		if len(msg.Content) == 0 {
			return nil, fmt.Errorf("empty message detected (index %d)", i)
		}
		role := genai.RoleUser
		if msg.Role == llm.Assistant {
			role = genai.RoleModel
		}
		var parts []*genai.Part
		for _, c := range msg.Content {
			switch c.Type {
			case llm.ContentTypeText:
				parts = append(parts, genai.NewPartFromText(c.Text))
			case llm.ContentTypeImage:
				data, err := base64.StdEncoding.DecodeString(c.Data)
				if err != nil {
					return nil, fmt.Errorf("error decoding image data: %w", err)
				}
				parts = append(parts, &genai.Part{
					InlineData: &genai.Blob{MIMEType: c.MediaType, Data: data},
				})
			default:
				return nil, fmt.Errorf("unsupported content type: %s", c.Type)
			}
		}
		contents = append(contents, &genai.Content{Role: string(role), Parts: parts})
	}
	return contents, nil
}

func convertResponse(resp *genai.GenerateContentResponse, model string) (*llm.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from google genai")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return nil, fmt.Errorf("no content in response")
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	return llm.NewResponse(llm.ResponseOptions{
		ID:         resp.ResponseID,
		Model:      model,
		Role:       llm.Assistant,
		StopReason: stopReason(candidate.FinishReason),
		Message:    llm.NewAssistantTextMessage(text.String()),
		Usage:      usageFrom(resp),
	}), nil
}

func usageFrom(resp *genai.GenerateContentResponse) llm.Usage {
	if resp.UsageMetadata == nil {
		return llm.Usage{}
	}
	return llm.Usage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}

func stopReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return "end_turn"
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	default:
		return "other"
	}
}
