package transform

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/message"
	"github.com/yaoapp/relay/provider"
	"github.com/yaoapp/relay/router"
)

// Response converts a unary chat completion into the Anthropic
// messages response. Only the first choice is consumed.
func Response(chat *provider.ChatCompletion, req *message.MessagesRequest, route *router.Route) *message.MessagesResponse {

	id := chat.ID
	if id == "" {
		id = message.NewID("msg")
	}

	resp := &message.MessagesResponse{
		ID:      id,
		Type:    "message",
		Role:    message.RoleAssistant,
		Model:   req.Model,
		Content: []message.ContentBlock{},
	}

	choice := chat.Choices[0]

	if reasoning := choice.Message.ReasoningText(); reasoning != "" && !route.Reasoning.Exclude {
		resp.Content = append(resp.Content, message.ContentBlock{
			Type:     message.BlockThinking,
			Thinking: reasoning,
		})
	}

	if choice.Message.Content != "" {
		resp.Content = append(resp.Content, message.ContentBlock{
			Type: message.BlockText,
			Text: choice.Message.Content,
		})
	}

	for _, call := range choice.Message.ToolCalls {
		resp.Content = append(resp.Content, message.ContentBlock{
			Type:  message.BlockToolUse,
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: ParseToolArguments(call.Function.Arguments),
		})
	}

	// A backend that reports the matched stop sequence gets the
	// faithful mapping; everything else collapses to the finish reason
	if choice.StopReason != nil && *choice.StopReason != "" {
		resp.StopReason = message.StopStopSequence
		resp.StopSequence = choice.StopReason
	} else {
		resp.StopReason = MapStopReason(choice.FinishReason)
	}
	resp.Usage = convertUsage(chat.Usage)
	return resp
}

// ParseToolArguments decodes a tool call's arguments string. Truncated
// or sloppy JSON goes through repair first; if that fails too, the raw
// string is preserved instead of failing the request.
func ParseToolArguments(arguments string) any {
	if arguments == "" {
		return map[string]any{}
	}

	var input any
	if err := jsoniter.UnmarshalFromString(arguments, &input); err == nil {
		return input
	}

	if repaired, err := jsonrepair.JSONRepair(arguments); err == nil {
		if err := jsoniter.UnmarshalFromString(repaired, &input); err == nil {
			log.Warn("[transform] tool arguments repaired: %d bytes", len(arguments))
			return input
		}
	}

	log.Warn("[transform] tool arguments are not valid JSON: %d bytes", len(arguments))
	return map[string]any{"raw": arguments}
}

// MapStopReason maps an OpenAI finish reason onto the Anthropic stop
// reason vocabulary
func MapStopReason(finishReason string) string {
	switch finishReason {
	case "length":
		return message.StopMaxTokens
	case "tool_calls", "function_call":
		return message.StopToolUse
	case "stop":
		return message.StopEndTurn
	default:
		return message.StopEndTurn
	}
}

// convertUsage maps usage to the Anthropic shape. OpenAI includes
// reasoning tokens inside completion_tokens; when the detailed field
// is present the visible output is completion minus reasoning, kept
// only while that stays non-negative.
func convertUsage(usage *provider.Usage) *message.Usage {
	if usage == nil {
		return &message.Usage{}
	}

	out := &message.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}
	if reasoning := ReasoningTokens(usage); reasoning > 0 {
		if visible := usage.CompletionTokens - reasoning; visible >= 0 {
			out.OutputTokens = visible
		}
	}
	return out
}

// ReasoningTokens extracts the separately reported reasoning token
// count, zero when the backend does not split it out
func ReasoningTokens(usage *provider.Usage) int {
	if usage == nil || usage.CompletionTokensDetails == nil {
		return 0
	}
	return usage.CompletionTokensDetails.ReasoningTokens
}
