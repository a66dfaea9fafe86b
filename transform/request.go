package transform

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/config"
	"github.com/yaoapp/relay/message"
	"github.com/yaoapp/relay/provider"
	"github.com/yaoapp/relay/router"
)

// Request converts an Anthropic messages request into the OpenAI chat
// completions form for the resolved route. The outgoing model id is
// always the route's, never the client's.
func Request(req *message.MessagesRequest, route *router.Route, cfg config.Config) (*provider.ChatCompletionRequest, error) {

	out := &provider.ChatCompletionRequest{
		Model:       route.Model,
		MaxTokens:   clampTokens(req.MaxTokens, cfg.MinTokensLimit, cfg.MaxTokensLimit),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.StopSequences,
		Stream:      req.Stream,
	}
	// top_k has no chat completions equivalent

	if req.System != "" {
		out.Messages = append(out.Messages, provider.ChatMessage{
			Role:    "system",
			Content: string(req.System),
		})
	}

	for i, msg := range req.Messages {
		converted, err := convertMessage(msg)
		if err != nil {
			return nil, message.ErrInvalidRequest(fmt.Sprintf("messages[%d]: %s", i, err.Error()))
		}
		out.Messages = append(out.Messages, converted...)
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]provider.Tool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			out.Tools = append(out.Tools, provider.Tool{
				Type: "function",
				Function: provider.Function{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.InputSchema,
				},
			})
		}
	}

	if req.ToolChoice != nil {
		switch req.ToolChoice.Type {
		case "auto":
			out.ToolChoice = "auto"
		case "any":
			out.ToolChoice = "required"
		case "tool":
			out.ToolChoice = provider.NamedToolChoice(req.ToolChoice.Name)
		}
	}

	injectReasoning(out, req, route)
	return out, nil
}

// injectReasoning places the reasoning options under extra body keys.
// A client thinking block overrides the route policy; the capability
// gate still applies.
func injectReasoning(out *provider.ChatCompletionRequest, req *message.MessagesRequest, route *router.Route) {
	policy := route.Reasoning
	if req.Thinking.Enabled() {
		budget := req.Thinking.BudgetTokens
		if budget < router.MinReasoningBudget {
			budget = router.MinReasoningBudget
		}
		if budget > router.MaxReasoningBudget {
			budget = router.MaxReasoningBudget
		}
		policy.Mode = router.ReasoningBudget
		policy.MaxTokens = budget
		policy.Effort = ""
		policy.Exclude = false
		if !router.SupportsReasoning(route.Model) {
			log.Trace("[transform] %s does not support reasoning, thinking request dropped", route.Model)
			policy.Mode = router.ReasoningOff
		}
	}

	if !policy.Enabled() {
		if policy.Verbosity != "" {
			out.ExtraBody = map[string]any{"verbosity": policy.Verbosity}
		}
		return
	}

	reasoning := map[string]any{"enabled": true, "exclude": policy.Exclude}
	switch policy.Mode {
	case router.ReasoningEffort:
		reasoning["effort"] = policy.Effort
	case router.ReasoningBudget:
		reasoning["max_tokens"] = policy.MaxTokens
	}

	out.ExtraBody = map[string]any{"reasoning": reasoning}
	if policy.Verbosity != "" {
		out.ExtraBody["verbosity"] = policy.Verbosity
	}
}

// convertMessage expands one Anthropic message into its chat
// completion messages. A user turn mixing text and tool results splits
// into separate messages so ordering survives.
func convertMessage(msg message.Message) ([]provider.ChatMessage, error) {

	hasImage, hasToolUse, hasToolResult := false, false, false
	for _, block := range msg.Content {
		switch block.Type {
		case message.BlockImage:
			hasImage = true
		case message.BlockToolUse:
			hasToolUse = true
		case message.BlockToolResult:
			hasToolResult = true
		}
	}

	if hasToolUse {
		return convertToolUseMessage(msg)
	}
	if hasToolResult {
		return convertToolResultMessage(msg)
	}
	if hasImage {
		return convertMultimodalMessage(msg)
	}

	return []provider.ChatMessage{{Role: msg.Role, Content: joinText(msg.Content)}}, nil
}

// convertToolUseMessage maps an assistant turn with tool_use blocks to
// one message with tool_calls. Text blocks join as content; thinking
// blocks are dropped (the backend already saw its own reasoning).
func convertToolUseMessage(msg message.Message) ([]provider.ChatMessage, error) {
	out := provider.ChatMessage{Role: message.RoleAssistant}

	texts := []message.ContentBlock{}
	for _, block := range msg.Content {
		switch block.Type {
		case message.BlockText:
			texts = append(texts, block)
		case message.BlockToolUse:
			args, err := jsoniter.MarshalToString(block.Input)
			if err != nil || block.Input == nil {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: provider.FunctionCall{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}

	if len(texts) > 0 {
		out.Content = joinText(texts)
	} else {
		out.Content = nil
	}
	return []provider.ChatMessage{out}, nil
}

// convertToolResultMessage maps a user turn with tool_result blocks to
// one tool message per result, with any plain text emitted as its own
// user message in place
func convertToolResultMessage(msg message.Message) ([]provider.ChatMessage, error) {
	out := []provider.ChatMessage{}
	pending := []message.ContentBlock{}

	flush := func() {
		if len(pending) > 0 {
			out = append(out, provider.ChatMessage{Role: message.RoleUser, Content: joinText(pending)})
			pending = nil
		}
	}

	for _, block := range msg.Content {
		switch block.Type {
		case message.BlockToolResult:
			if block.ToolUseID == "" {
				return nil, fmt.Errorf("tool_result requires tool_use_id")
			}
			flush()
			content := block.Content.Stringify()
			if block.IsError {
				content = "[ERROR] " + content
			}
			out = append(out, provider.ChatMessage{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    content,
			})
		case message.BlockText:
			pending = append(pending, block)
		case message.BlockImage:
			return nil, fmt.Errorf("images are not supported alongside tool results")
		}
	}
	flush()
	return out, nil
}

// convertMultimodalMessage maps a turn with images to the multimodal
// part array, preserving block order
func convertMultimodalMessage(msg message.Message) ([]provider.ChatMessage, error) {
	parts := []provider.ContentPart{}
	for _, block := range msg.Content {
		switch block.Type {
		case message.BlockText:
			parts = append(parts, provider.ContentPart{Type: "text", Text: block.Text})
		case message.BlockImage:
			if block.Source == nil || block.Source.Type != "base64" {
				return nil, fmt.Errorf("image source must be base64")
			}
			parts = append(parts, provider.ContentPart{
				Type:     "image_url",
				ImageURL: &provider.ImageURL{URL: block.Source.DataURL()},
			})
		}
	}
	return []provider.ChatMessage{{Role: msg.Role, Content: parts}}, nil
}

// joinText concatenates text blocks with blank lines
func joinText(blocks []message.ContentBlock) string {
	text := ""
	for _, block := range blocks {
		if block.Type != message.BlockText {
			continue
		}
		if text != "" {
			text += "\n\n"
		}
		text += block.Text
	}
	return text
}

func clampTokens(n, min, max int) int {
	if n < min {
		return min
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
