package message

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ============================================================
// Anthropic Messages API types
// Reference: https://docs.anthropic.com/en/api/messages
// ============================================================

// Roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content block types
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Stop reasons
const (
	StopEndTurn      = "end_turn"
	StopMaxTokens    = "max_tokens"
	StopToolUse      = "tool_use"
	StopStopSequence = "stop_sequence"
)

// MessagesRequest is the inbound request body of POST /v1/messages
type MessagesRequest struct {
	Model         string           `json:"model"`
	Messages      []Message        `json:"messages"`
	System        SystemPrompt     `json:"system,omitempty"`
	MaxTokens     int              `json:"max_tokens"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	TopK          *int             `json:"top_k,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	ToolChoice    *ToolChoice      `json:"tool_choice,omitempty"`
	Thinking      *Thinking        `json:"thinking,omitempty"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// Message a single conversation turn. Content accepts both the string
// shorthand and the content-block array form.
type Message struct {
	Role    string       `json:"role"`
	Content ContentParts `json:"content"`
}

// ContentParts is the ordered content of a message. A bare JSON string
// decodes to a single text block.
type ContentParts []ContentBlock

// UnmarshalJSON accepts `"text"` or `[{...}, ...]`
func (c *ContentParts) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := jsoniter.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = ContentParts{{Type: BlockText, Text: text}}
		return nil
	}

	var blocks []ContentBlock
	if err := jsoniter.Unmarshal(data, &blocks); err != nil {
		return err
	}
	*c = blocks
	return nil
}

// ContentBlock a tagged content variant. Type selects which fields are
// meaningful: text | image | thinking | tool_use | tool_result.
type ContentBlock struct {
	Type string `json:"type"`

	// type "text"
	Text string `json:"text,omitempty"`

	// type "thinking"
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// type "image"
	Source *ImageSource `json:"source,omitempty"`

	// type "tool_use"
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// type "tool_result"
	ToolUseID string        `json:"tool_use_id,omitempty"`
	Content   ResultContent `json:"content,omitempty"`
	IsError   bool          `json:"is_error,omitempty"`
}

// ImageSource the source of an image block. Only base64 is supported.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// DataURL renders the source as a data: URL for OpenAI image_url parts
func (s *ImageSource) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", s.MediaType, s.Data)
}

// ResultContent the content of a tool_result block: a string, or an
// array of blocks. The raw bytes are kept so non-text payloads can be
// passed through as JSON.
type ResultContent struct {
	Raw    jsoniter.RawMessage
	Text   string
	Blocks []ContentBlock
	IsText bool
}

// UnmarshalJSON keeps both the decoded and the raw form
func (r *ResultContent) UnmarshalJSON(data []byte) error {
	r.Raw = append(jsoniter.RawMessage{}, data...)
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		if err := jsoniter.Unmarshal(data, &r.Text); err != nil {
			return err
		}
		r.IsText = true
		return nil
	}
	return jsoniter.Unmarshal(data, &r.Blocks)
}

// MarshalJSON writes the original form back
func (r ResultContent) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	if r.IsText {
		return jsoniter.Marshal(r.Text)
	}
	return jsoniter.Marshal(r.Blocks)
}

// IsEmpty reports whether the block carried no content at all
func (r ResultContent) IsEmpty() bool {
	return len(r.Raw) == 0 && !r.IsText && len(r.Blocks) == 0
}

// Stringify flattens the result content for the OpenAI tool message:
// strings pass through, text-only arrays join with blank lines, and
// anything else (images etc.) is serialized as JSON.
func (r ResultContent) Stringify() string {
	if r.IsText {
		return r.Text
	}

	textOnly := true
	for _, block := range r.Blocks {
		if block.Type != BlockText {
			textOnly = false
			break
		}
	}

	if textOnly && len(r.Blocks) > 0 {
		parts := make([]string, 0, len(r.Blocks))
		for _, block := range r.Blocks {
			parts = append(parts, block.Text)
		}
		return strings.Join(parts, "\n\n")
	}

	if len(r.Raw) > 0 {
		return string(r.Raw)
	}
	return ""
}

// SystemPrompt the system parameter: a string, or an array of text
// blocks joined with blank lines.
type SystemPrompt string

// UnmarshalJSON accepts both forms
func (s *SystemPrompt) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var text string
		if err := jsoniter.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = SystemPrompt(text)
		return nil
	}

	var blocks []ContentBlock
	if err := jsoniter.Unmarshal(data, &blocks); err != nil {
		return err
	}

	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Type == BlockText {
			parts = append(parts, block.Text)
		}
	}
	*s = SystemPrompt(strings.Join(parts, "\n\n"))
	return nil
}

// ToolDefinition an Anthropic tool declaration
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// ToolChoice the tool_choice parameter: auto | any | tool
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// Thinking the extended-thinking request parameter
type Thinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

// Enabled reports whether the client asked for thinking
func (t *Thinking) Enabled() bool {
	return t != nil && t.Type == "enabled"
}

// MessagesResponse the unary response body of POST /v1/messages
type MessagesResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// Usage token usage in Anthropic shape
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// CountTokensResponse the body of POST /v1/messages/count_tokens
type CountTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// NewID generates a prefixed random id, e.g. msg_k3x9..., req_a1b2...
func NewID(prefix string) string {
	id, _ := gonanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 24)
	return prefix + "_" + id
}

// Validate checks the structural constraints the gateway enforces
// before translation
func (req *MessagesRequest) Validate() error {
	if req.Model == "" {
		return ErrInvalidRequest("model is required")
	}
	if len(req.Messages) == 0 {
		return ErrInvalidRequest("messages must not be empty")
	}
	if req.MaxTokens <= 0 {
		return ErrInvalidRequest("max_tokens must be a positive integer")
	}
	for i, msg := range req.Messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return ErrInvalidRequest(fmt.Sprintf("messages[%d]: unknown role %q", i, msg.Role))
		}
		for j, block := range msg.Content {
			switch block.Type {
			case BlockText, BlockThinking:
			case BlockImage:
				if block.Source == nil || block.Source.Type != "base64" {
					return ErrInvalidRequest(fmt.Sprintf("messages[%d].content[%d]: image source must be base64", i, j))
				}
			case BlockToolUse:
				if block.Name == "" {
					return ErrInvalidRequest(fmt.Sprintf("messages[%d].content[%d]: tool_use requires a name", i, j))
				}
			case BlockToolResult:
				if block.ToolUseID == "" {
					return ErrInvalidRequest(fmt.Sprintf("messages[%d].content[%d]: tool_result requires tool_use_id", i, j))
				}
			default:
				return ErrInvalidRequest(fmt.Sprintf("messages[%d].content[%d]: unknown content type %q", i, j, block.Type))
			}
		}
	}
	if req.ToolChoice != nil {
		switch req.ToolChoice.Type {
		case "auto", "any":
		case "tool":
			if req.ToolChoice.Name == "" {
				return ErrInvalidRequest("tool_choice of type tool requires a name")
			}
		default:
			return ErrInvalidRequest(fmt.Sprintf("unknown tool_choice type %q", req.ToolChoice.Type))
		}
	}
	return nil
}
