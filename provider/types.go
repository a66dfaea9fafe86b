package provider

import (
	jsoniter "github.com/json-iterator/go"
)

// ============================================================
// OpenAI Chat Completions API types
// Reference: https://platform.openai.com/docs/api-reference/chat
// ============================================================

// ChatCompletionRequest the outbound request body. ExtraBody keys are
// flattened into the top level at marshal time so provider extensions
// (reasoning, verbosity) reach the backend without a strict SDK in the
// way.
type ChatCompletionRequest struct {
	Model         string         `json:"model"`
	Messages      []ChatMessage  `json:"messages"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
	Stop          []string       `json:"stop,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolChoice    any            `json:"tool_choice,omitempty"`
	ExtraBody     map[string]any `json:"-"`
}

// MarshalJSON merges ExtraBody into the top-level object
func (req *ChatCompletionRequest) MarshalJSON() ([]byte, error) {
	type plain ChatCompletionRequest
	data, err := jsoniter.Marshal((*plain)(req))
	if err != nil {
		return nil, err
	}
	if len(req.ExtraBody) == 0 {
		return data, nil
	}

	var body map[string]any
	if err := jsoniter.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	for key, value := range req.ExtraBody {
		body[key] = value
	}
	return jsoniter.Marshal(body)
}

// Body returns the request as a generic map, the form gou/http posts
func (req *ChatCompletionRequest) Body() (map[string]any, error) {
	data, err := jsoniter.Marshal(req)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := jsoniter.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// StreamOptions streaming request options
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage one message in the OpenAI conversation
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ContentPart one multimodal part of a user message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL the image_url part payload; URL is a data: URL here
type ImageURL struct {
	URL string `json:"url"`
}

// Tool a function tool declaration
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function the function payload of a tool
type Function struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ToolChoiceFunction the {type:"function", function:{name}} form of
// tool_choice
type ToolChoiceFunction struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// NamedToolChoice builds a tool_choice forcing one function
func NamedToolChoice(name string) ToolChoiceFunction {
	choice := ToolChoiceFunction{Type: "function"}
	choice.Function.Name = name
	return choice
}

// ToolCall a completed tool call on an assistant message
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall the function name and JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletion the unary response body
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice one completion choice
type Choice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason,omitempty"`
	StopReason   *string           `json:"stop_reason,omitempty"`
}

// CompletionMessage the assistant message of a unary completion.
// Reasoning arrives as `reasoning` (OpenRouter) or `reasoning_content`
// (DeepSeek); both are accepted.
type CompletionMessage struct {
	Role             string     `json:"role"`
	Content          string     `json:"content,omitempty"`
	Reasoning        string     `json:"reasoning,omitempty"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	Refusal          string     `json:"refusal,omitempty"`
}

// ReasoningText returns whichever reasoning field the backend used
func (m *CompletionMessage) ReasoningText() string {
	if m.Reasoning != "" {
		return m.Reasoning
	}
	return m.ReasoningContent
}

// Usage token usage in OpenAI shape
type Usage struct {
	PromptTokens            int                      `json:"prompt_tokens"`
	CompletionTokens        int                      `json:"completion_tokens"`
	TotalTokens             int                      `json:"total_tokens"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
}

// CompletionTokensDetails detailed completion usage; reasoning tokens
// are reported here by providers that split them out
type CompletionTokensDetails struct {
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// StreamChunk one SSE delta frame
type StreamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object,omitempty"`
	Created int64         `json:"created,omitempty"`
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice one choice in a delta frame
type ChunkChoice struct {
	Index        int          `json:"index"`
	Delta        DeltaContent `json:"delta"`
	FinishReason *string      `json:"finish_reason"`
}

// DeltaContent the delta payload of a streaming chunk
type DeltaContent struct {
	Role             string          `json:"role,omitempty"`
	Content          string          `json:"content,omitempty"`
	Reasoning        string          `json:"reasoning,omitempty"`
	ReasoningContent string          `json:"reasoning_content,omitempty"`
	Refusal          string          `json:"refusal,omitempty"`
	ToolCalls        []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ReasoningText returns whichever reasoning field the backend used
func (d *DeltaContent) ReasoningText() string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return d.ReasoningContent
}

// ToolCallDelta a tool call fragment in a delta frame
type ToolCallDelta struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Function FunctionCallDelta `json:"function"`
}

// FunctionCallDelta the function fragment of a tool call delta
type FunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// APIErrorBody the error envelope OpenAI-compatible backends return
type APIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   string `json:"param"`
		Code    any    `json:"code"`
	} `json:"error"`
}
