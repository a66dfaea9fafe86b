package provider

import (
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
)

func TestCompletionsURL(t *testing.T) {
	cases := map[string]string{
		"https://api.openai.com/v1":  "https://api.openai.com/v1/chat/completions",
		"https://api.openai.com/v1/": "https://api.openai.com/v1/chat/completions",
		"https://openrouter.ai/api":  "https://openrouter.ai/api/v1/chat/completions",
		"http://localhost:11434":     "http://localhost:11434/v1/chat/completions",
	}
	for base, want := range cases {
		assert.Equal(t, want, completionsURL(base), base)
	}
}

func TestChatCompletionRequestMarshalFlattensExtraBody(t *testing.T) {
	req := &ChatCompletionRequest{
		Model:    "gpt-5",
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		ExtraBody: map[string]any{
			"reasoning": map[string]any{"effort": "high", "enabled": true},
			"verbosity": "low",
		},
	}

	data, err := jsoniter.Marshal(req)
	assert.NoError(t, err)

	var body map[string]any
	assert.NoError(t, jsoniter.Unmarshal(data, &body))
	assert.NotContains(t, body, "extra_body")
	assert.Equal(t, "low", body["verbosity"])

	reasoning := body["reasoning"].(map[string]any)
	assert.Equal(t, "high", reasoning["effort"])
}

func TestDeltaReasoningText(t *testing.T) {
	d := &DeltaContent{Reasoning: "a"}
	assert.Equal(t, "a", d.ReasoningText())

	d = &DeltaContent{ReasoningContent: "b"}
	assert.Equal(t, "b", d.ReasoningText())

	d = &DeltaContent{}
	assert.Equal(t, "", d.ReasoningText())
}

func TestBackendError(t *testing.T) {
	err := &BackendError{Status: 429, Message: "slow down"}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down")

	err = &BackendError{Message: "connection refused"}
	assert.Equal(t, "backend: connection refused", err.Error())
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxErrorBody+100)
	assert.Len(t, truncate(long), maxErrorBody)
	assert.Equal(t, "short", truncate("short"))
}
