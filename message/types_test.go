package message

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
)

func TestContentPartsStringShorthand(t *testing.T) {
	var msg Message
	err := jsoniter.UnmarshalFromString(`{"role":"user","content":"Hi"}`, &msg)
	assert.NoError(t, err)
	assert.Len(t, msg.Content, 1)
	assert.Equal(t, BlockText, msg.Content[0].Type)
	assert.Equal(t, "Hi", msg.Content[0].Text)
}

func TestContentPartsBlockArray(t *testing.T) {
	var msg Message
	raw := `{"role":"user","content":[{"type":"text","text":"a"},{"type":"image","source":{"type":"base64","media_type":"image/png","data":"aGk="}}]}`
	err := jsoniter.UnmarshalFromString(raw, &msg)
	assert.NoError(t, err)
	assert.Len(t, msg.Content, 2)
	assert.Equal(t, BlockImage, msg.Content[1].Type)
	assert.Equal(t, "data:image/png;base64,aGk=", msg.Content[1].Source.DataURL())
}

func TestSystemPromptForms(t *testing.T) {
	var req MessagesRequest
	err := jsoniter.UnmarshalFromString(`{"model":"m","system":"be brief","messages":[]}`, &req)
	assert.NoError(t, err)
	assert.Equal(t, SystemPrompt("be brief"), req.System)

	err = jsoniter.UnmarshalFromString(`{"model":"m","system":[{"type":"text","text":"a"},{"type":"text","text":"b"}],"messages":[]}`, &req)
	assert.NoError(t, err)
	assert.Equal(t, SystemPrompt("a\n\nb"), req.System)
}

func TestResultContentStringify(t *testing.T) {
	var r ResultContent
	assert.NoError(t, jsoniter.UnmarshalFromString(`"plain"`, &r))
	assert.Equal(t, "plain", r.Stringify())

	r = ResultContent{}
	assert.NoError(t, jsoniter.UnmarshalFromString(`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, &r))
	assert.Equal(t, "a\n\nb", r.Stringify())

	r = ResultContent{}
	raw := `[{"type":"text","text":"a"},{"type":"image","source":{"type":"base64","media_type":"image/png","data":"aGk="}}]`
	assert.NoError(t, jsoniter.UnmarshalFromString(raw, &r))
	assert.Equal(t, raw, r.Stringify())
}

func TestValidate(t *testing.T) {
	req := &MessagesRequest{Model: "claude-sonnet-4", MaxTokens: 10}
	err := req.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "messages")

	req.Messages = []Message{{Role: RoleUser, Content: ContentParts{{Type: BlockText, Text: "hi"}}}}
	assert.NoError(t, req.Validate())

	req.MaxTokens = 0
	err = req.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
	req.MaxTokens = 10

	req.Messages[0].Role = "system"
	assert.Error(t, req.Validate())
	req.Messages[0].Role = RoleUser

	req.Messages[0].Content = ContentParts{{Type: BlockImage, Source: &ImageSource{Type: "url"}}}
	err = req.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base64")

	req.Messages[0].Content = ContentParts{{Type: BlockToolResult}}
	err = req.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tool_use_id")

	req.Messages[0].Content = ContentParts{{Type: BlockText, Text: "x"}}
	req.ToolChoice = &ToolChoice{Type: "tool"}
	assert.Error(t, req.Validate())
	req.ToolChoice = &ToolChoice{Type: "tool", Name: "get_weather"}
	assert.NoError(t, req.Validate())
}

func TestValidateStatus(t *testing.T) {
	req := &MessagesRequest{Model: "m", MaxTokens: 1}
	apiErr := AsAPIError(req.Validate())
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, KindInvalidRequest, apiErr.Kind)
}

func TestNewID(t *testing.T) {
	id := NewID("msg")
	assert.Regexp(t, `^msg_[0-9a-z]{24}$`, id)
	assert.NotEqual(t, id, NewID("msg"))
}

func TestAPIErrorBody(t *testing.T) {
	apiErr := ErrAuthentication("invalid API key")
	body := apiErr.Body()
	assert.Equal(t, "error", body["type"])

	shape := body["error"].(map[string]any)
	assert.Equal(t, KindAuthentication, shape["type"])
	assert.Equal(t, "invalid_api_key", shape["code"])
}
