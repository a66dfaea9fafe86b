package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yaoapp/relay/message"
	"github.com/yaoapp/relay/provider"
)

func chatWith(msg provider.CompletionMessage, finish string, usage *provider.Usage) *provider.ChatCompletion {
	return &provider.ChatCompletion{
		ID:      "c1",
		Choices: []provider.Choice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage:   usage,
	}
}

func TestResponseUnaryText(t *testing.T) {
	req := textReq("Hi")
	chat := chatWith(
		provider.CompletionMessage{Role: "assistant", Content: "Hello."},
		"stop",
		&provider.Usage{PromptTokens: 1, CompletionTokens: 2},
	)

	resp := Response(chat, req, testRoute("openai/gpt-5"))
	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "claude-opus-4", resp.Model)
	assert.Len(t, resp.Content, 1)
	assert.Equal(t, message.BlockText, resp.Content[0].Type)
	assert.Equal(t, "Hello.", resp.Content[0].Text)
	assert.Equal(t, message.StopEndTurn, resp.StopReason)
	assert.Equal(t, 1, resp.Usage.InputTokens)
	assert.Equal(t, 2, resp.Usage.OutputTokens)
}

func TestResponseGeneratesID(t *testing.T) {
	chat := chatWith(provider.CompletionMessage{Content: "x"}, "stop", nil)
	chat.ID = ""
	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Regexp(t, `^msg_`, resp.ID)
}

func TestResponseThinkingBlock(t *testing.T) {
	chat := chatWith(provider.CompletionMessage{Content: "Answer", Reasoning: "step 1..."}, "stop", nil)

	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Len(t, resp.Content, 2)
	assert.Equal(t, message.BlockThinking, resp.Content[0].Type)
	assert.Equal(t, "step 1...", resp.Content[0].Thinking)
	assert.Equal(t, message.BlockText, resp.Content[1].Type)
}

func TestResponseThinkingExcluded(t *testing.T) {
	route := testRoute("gpt-5")
	route.Reasoning.Exclude = true
	chat := chatWith(provider.CompletionMessage{Content: "Answer", Reasoning: "hidden"}, "stop", nil)

	resp := Response(chat, textReq("Hi"), route)
	assert.Len(t, resp.Content, 1)
	assert.Equal(t, message.BlockText, resp.Content[0].Type)
}

func TestResponseReasoningContentField(t *testing.T) {
	chat := chatWith(provider.CompletionMessage{Content: "A", ReasoningContent: "deepseek style"}, "stop", nil)
	resp := Response(chat, textReq("Hi"), testRoute("deepseek-r1"))
	assert.Equal(t, "deepseek style", resp.Content[0].Thinking)
}

func TestResponseToolCalls(t *testing.T) {
	chat := chatWith(provider.CompletionMessage{
		ToolCalls: []provider.ToolCall{
			{ID: "call_1", Type: "function", Function: provider.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
		},
	}, "tool_calls", nil)

	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Len(t, resp.Content, 1)
	block := resp.Content[0]
	assert.Equal(t, message.BlockToolUse, block.Type)
	assert.Equal(t, "call_1", block.ID)
	assert.Equal(t, "get_weather", block.Name)
	assert.Equal(t, map[string]any{"city": "Paris"}, block.Input)
	assert.Equal(t, message.StopToolUse, resp.StopReason)
}

func TestParseToolArgumentsRepair(t *testing.T) {
	// truncated JSON is repairable
	input := ParseToolArguments(`{"city":"Paris"`)
	m, ok := input.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "Paris", m["city"])

	// empty arguments mean an empty input object
	assert.Equal(t, map[string]any{}, ParseToolArguments(""))

	// beyond repair: keep the raw string
	input = ParseToolArguments("not json at all: <<>>")
	m, ok = input.(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, m, "raw")
}

func TestMapStopReason(t *testing.T) {
	assert.Equal(t, message.StopEndTurn, MapStopReason("stop"))
	assert.Equal(t, message.StopMaxTokens, MapStopReason("length"))
	assert.Equal(t, message.StopToolUse, MapStopReason("tool_calls"))
	assert.Equal(t, message.StopEndTurn, MapStopReason(""))
	assert.Equal(t, message.StopEndTurn, MapStopReason("content_filter"))
}

func TestResponseStopSequenceReported(t *testing.T) {
	seq := "END"
	chat := chatWith(provider.CompletionMessage{Content: "x"}, "stop", nil)
	chat.Choices[0].StopReason = &seq

	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Equal(t, message.StopStopSequence, resp.StopReason)
	assert.Equal(t, "END", *resp.StopSequence)
}

func TestResponseStopSequenceAbsent(t *testing.T) {
	chat := chatWith(provider.CompletionMessage{Content: "x"}, "stop", nil)
	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Equal(t, message.StopEndTurn, resp.StopReason)
	assert.Nil(t, resp.StopSequence)
}

func TestUsageReasoningSplit(t *testing.T) {
	chat := chatWith(provider.CompletionMessage{Content: "x"}, "stop", &provider.Usage{
		PromptTokens:     10,
		CompletionTokens: 100,
		CompletionTokensDetails: &provider.CompletionTokensDetails{
			ReasoningTokens: 40,
		},
	})

	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 60, resp.Usage.OutputTokens)
	assert.Equal(t, 40, ReasoningTokens(chat.Usage))
}

func TestUsageReasoningOverflowIgnored(t *testing.T) {
	usage := &provider.Usage{
		PromptTokens:            10,
		CompletionTokens:        30,
		CompletionTokensDetails: &provider.CompletionTokensDetails{ReasoningTokens: 50},
	}
	chat := chatWith(provider.CompletionMessage{Content: "x"}, "stop", usage)

	resp := Response(chat, textReq("Hi"), testRoute("gpt-5"))
	assert.Equal(t, 30, resp.Usage.OutputTokens)
}

func TestCountTokens(t *testing.T) {
	req := textReq("The quick brown fox jumps over the lazy dog")
	tokens := CountTokens(req)
	assert.Greater(t, tokens, 0)

	longer := textReq("The quick brown fox jumps over the lazy dog. " +
		"The quick brown fox jumps over the lazy dog. " +
		"The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, CountTokens(longer), tokens)
}
