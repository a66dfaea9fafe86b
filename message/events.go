package message

// ============================================================
// Anthropic streaming SSE events
// Reference: https://docs.anthropic.com/en/api/messages-streaming
// ============================================================

// SSE event names
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// Delta types inside content_block_delta
const (
	DeltaText      = "text_delta"
	DeltaThinking  = "thinking_delta"
	DeltaInputJSON = "input_json_delta"
)

// Event is a single SSE frame addressed to the client. Name is the
// `event:` line, the value itself marshals into the `data:` line.
type Event interface {
	Name() string
}

// MessageStartEvent opens the stream
type MessageStartEvent struct {
	Type    string       `json:"type"`
	Message MessageStart `json:"message"`
}

// MessageStart the skeleton message in message_start
type MessageStart struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   *string        `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        *Usage         `json:"usage,omitempty"`
}

// Name implements Event
func (e *MessageStartEvent) Name() string { return EventMessageStart }

// NewMessageStart builds the opening event
func NewMessageStart(id, model string, inputTokens int) *MessageStartEvent {
	return &MessageStartEvent{
		Type: EventMessageStart,
		Message: MessageStart{
			ID:      id,
			Type:    "message",
			Role:    RoleAssistant,
			Content: []ContentBlock{},
			Model:   model,
			Usage:   &Usage{InputTokens: inputTokens},
		},
	}
}

// ContentBlockStartEvent opens one content block
type ContentBlockStartEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// Name implements Event
func (e *ContentBlockStartEvent) Name() string { return EventContentBlockStart }

// ContentBlockDeltaEvent carries one delta for an open block
type ContentBlockDeltaEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta Delta  `json:"delta"`
}

// Name implements Event
func (e *ContentBlockDeltaEvent) Name() string { return EventContentBlockDelta }

// Delta the payload of a content_block_delta
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// ContentBlockStopEvent closes one content block
type ContentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Name implements Event
func (e *ContentBlockStopEvent) Name() string { return EventContentBlockStop }

// MessageDeltaEvent carries the stop reason and final output usage
type MessageDeltaEvent struct {
	Type  string        `json:"type"`
	Delta MessageDelta  `json:"delta"`
	Usage *MessageUsage `json:"usage,omitempty"`
}

// MessageDelta the delta in message_delta
type MessageDelta struct {
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageUsage usage in message_delta
type MessageUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// Name implements Event
func (e *MessageDeltaEvent) Name() string { return EventMessageDelta }

// MessageStopEvent terminates the stream
type MessageStopEvent struct {
	Type string `json:"type"`
}

// Name implements Event
func (e *MessageStopEvent) Name() string { return EventMessageStop }

// PingEvent keep-alive frame
type PingEvent struct {
	Type string `json:"type"`
}

// Name implements Event
func (e *PingEvent) Name() string { return EventPing }

// ErrorEvent an in-stream error, sent when the backend fails after the
// first event is already on the wire
type ErrorEvent struct {
	Type  string     `json:"type"`
	Error ErrorShape `json:"error"`
}

// ErrorShape the wire form of an error
type ErrorShape struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Name implements Event
func (e *ErrorEvent) Name() string { return EventError }
