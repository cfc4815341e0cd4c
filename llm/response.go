package llm

// Response from an LLM.
type Response struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Role       Role    `json:"role"`
	StopReason string  `json:"stop_reason,omitempty"`
	Message    Message `json:"message"`
	Usage      Usage   `json:"usage"`
}

// ResponseOptions bundles the fields used to construct a Response.
type ResponseOptions struct {
	ID         string
	Model      string
	Role       Role
	StopReason string
	Message    *Message
	Usage      Usage
}

// NewResponse creates a Response from the given options.
func NewResponse(opts ResponseOptions) *Response {
	resp := &Response{
		ID:         opts.ID,
		Model:      opts.Model,
		Role:       opts.Role,
		StopReason: opts.StopReason,
		Usage:      opts.Usage,
	}
	if opts.Message != nil {
		resp.Message = *opts.Message
	}
	return resp
}
