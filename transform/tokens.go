package transform

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkoukk/tiktoken-go"
	"github.com/yaoapp/relay/message"
)

// tokensPerMessage the per-message framing overhead of the chat format
const tokensPerMessage = 4

// CountTokens estimates the prompt tokens of a request with the
// cl100k_base encoding. Anthropic model names do not resolve to an
// encoding, so the count is an approximation; when the encoder is
// unavailable (first use downloads the BPE ranks) it falls back to
// chars/4.
func CountTokens(req *message.MessagesRequest) int {
	text := collectText(req)

	tkm, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	if err != nil {
		return len(text)/4 + len(req.Messages)*tokensPerMessage
	}

	tokens := len(tkm.Encode(text, nil, nil))
	return tokens + len(req.Messages)*tokensPerMessage
}

// collectText flattens everything token-bearing in the request
func collectText(req *message.MessagesRequest) string {
	var sb strings.Builder

	sb.WriteString(string(req.System))
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			switch block.Type {
			case message.BlockText:
				sb.WriteString(block.Text)
			case message.BlockThinking:
				sb.WriteString(block.Thinking)
			case message.BlockToolUse:
				sb.WriteString(block.Name)
				if args, err := jsoniter.MarshalToString(block.Input); err == nil {
					sb.WriteString(args)
				}
			case message.BlockToolResult:
				sb.WriteString(block.Content.Stringify())
			}
			sb.WriteString("\n")
		}
	}

	for _, tool := range req.Tools {
		sb.WriteString(tool.Name)
		sb.WriteString(tool.Description)
		if schema, err := jsoniter.MarshalToString(tool.InputSchema); err == nil {
			sb.WriteString(schema)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
