package transform

import (
	"strings"

	"github.com/yaoapp/relay/message"
	"github.com/yaoapp/relay/provider"
)

// Emitter receives each outgoing event in order. A returned error
// aborts the stream.
type Emitter func(event message.Event) error

// StreamOptions configures one streaming translation
type StreamOptions struct {
	MessageID   string  // id for message_start, generated when empty
	Model       string  // client-facing model name
	InputTokens int     // prompt token estimate for message_start
	Exclude     bool    // drop reasoning deltas
	Emit        Emitter // event sink
}

// Stream translates one OpenAI delta stream into the Anthropic event
// sequence. Feed is called once per chunk and Finish exactly once at
// stream end; neither is safe for concurrent use.
type Stream struct {
	opts StreamOptions

	started  bool
	finished bool

	nextIndex     int
	textIndex     int
	thinkingIndex int
	openOrder     []int
	toolBlocks    map[int]*toolBlock // backend tool-call index -> block
	activeToolIDs map[string]int     // tool id -> first backend index

	finishReason string
	usage        *provider.Usage
	contentChars int
	outputText   strings.Builder
}

type toolBlock struct {
	index      int // output block index
	id         string
	name       string
	argsBuffer string
	closed     bool
}

// NewStream creates a stream translator
func NewStream(opts StreamOptions) *Stream {
	if opts.MessageID == "" {
		opts.MessageID = message.NewID("msg")
	}
	return &Stream{
		opts:          opts,
		textIndex:     -1,
		thinkingIndex: -1,
		toolBlocks:    map[int]*toolBlock{},
		activeToolIDs: map[string]int{},
	}
}

// Feed processes one backend chunk
func (s *Stream) Feed(chunk *provider.StreamChunk) error {
	if s.finished {
		return nil
	}

	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}

	for _, choice := range chunk.Choices {
		if err := s.feedDelta(&choice.Delta); err != nil {
			return err
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			s.finishReason = *choice.FinishReason
		}
	}
	return nil
}

// feedDelta handles one delta payload: thinking first, then text,
// then tool calls
func (s *Stream) feedDelta(delta *provider.DeltaContent) error {
	if err := s.start(); err != nil {
		return err
	}

	if reasoning := delta.ReasoningText(); reasoning != "" && !s.opts.Exclude {
		if err := s.emitThinking(reasoning); err != nil {
			return err
		}
	}

	if delta.Content != "" {
		if err := s.emitText(delta.Content); err != nil {
			return err
		}
	}

	for _, entry := range delta.ToolCalls {
		if err := s.emitToolCall(entry); err != nil {
			return err
		}
	}
	return nil
}

// start emits message_start once
func (s *Stream) start() error {
	if s.started {
		return nil
	}
	s.started = true
	return s.opts.Emit(message.NewMessageStart(s.opts.MessageID, s.opts.Model, s.opts.InputTokens))
}

func (s *Stream) emitThinking(reasoning string) error {
	if s.thinkingIndex < 0 {
		s.thinkingIndex = s.openBlock()
		err := s.opts.Emit(&message.ContentBlockStartEvent{
			Type:         message.EventContentBlockStart,
			Index:        s.thinkingIndex,
			ContentBlock: message.ContentBlock{Type: message.BlockThinking},
		})
		if err != nil {
			return err
		}
	}
	s.contentChars += len(reasoning)
	return s.opts.Emit(&message.ContentBlockDeltaEvent{
		Type:  message.EventContentBlockDelta,
		Index: s.thinkingIndex,
		Delta: message.Delta{Type: message.DeltaThinking, Thinking: reasoning},
	})
}

func (s *Stream) emitText(content string) error {
	// Text ends the thinking phase
	if s.thinkingIndex >= 0 {
		if err := s.closeBlock(s.thinkingIndex); err != nil {
			return err
		}
		s.thinkingIndex = -1
	}

	if s.textIndex < 0 {
		s.textIndex = s.openBlock()
		err := s.opts.Emit(&message.ContentBlockStartEvent{
			Type:         message.EventContentBlockStart,
			Index:        s.textIndex,
			ContentBlock: message.ContentBlock{Type: message.BlockText, Text: ""},
		})
		if err != nil {
			return err
		}
	}
	s.contentChars += len(content)
	s.outputText.WriteString(content)
	return s.opts.Emit(&message.ContentBlockDeltaEvent{
		Type:  message.EventContentBlockDelta,
		Index: s.textIndex,
		Delta: message.Delta{Type: message.DeltaText, Text: content},
	})
}

// emitToolCall handles one tool-call entry. Some providers emit a
// duplicate ghost stream for the same call id under a second backend
// index; those entries are dropped whole.
func (s *Stream) emitToolCall(entry provider.ToolCallDelta) error {

	if entry.ID != "" {
		firstIndex, seen := s.activeToolIDs[entry.ID]
		if seen && firstIndex != entry.Index {
			return nil // ghost stream
		}
		if !seen {
			s.activeToolIDs[entry.ID] = entry.Index
			block := &toolBlock{
				index: s.openBlock(),
				id:    entry.ID,
				name:  entry.Function.Name,
			}
			s.toolBlocks[entry.Index] = block
			err := s.opts.Emit(&message.ContentBlockStartEvent{
				Type:  message.EventContentBlockStart,
				Index: block.index,
				ContentBlock: message.ContentBlock{
					Type:  message.BlockToolUse,
					ID:    block.id,
					Name:  block.name,
					Input: map[string]any{},
				},
			})
			if err != nil {
				return err
			}
		}
	}

	block, ok := s.toolBlocks[entry.Index]
	if !ok {
		return nil // orphan ghost, no registered call at this index
	}

	if entry.Function.Name != "" && block.name == "" {
		block.name = entry.Function.Name
	}

	if entry.Function.Arguments != "" {
		block.argsBuffer += entry.Function.Arguments
		s.contentChars += len(entry.Function.Arguments)
		s.outputText.WriteString(entry.Function.Arguments)
		return s.opts.Emit(&message.ContentBlockDeltaEvent{
			Type:  message.EventContentBlockDelta,
			Index: block.index,
			Delta: message.Delta{Type: message.DeltaInputJSON, PartialJSON: entry.Function.Arguments},
		})
	}
	return nil
}

// openBlock allocates the next output index and records open order
func (s *Stream) openBlock() int {
	index := s.nextIndex
	s.nextIndex++
	s.openOrder = append(s.openOrder, index)
	return index
}

// closeBlock emits content_block_stop and drops the index from the
// open list
func (s *Stream) closeBlock(index int) error {
	for i, open := range s.openOrder {
		if open == index {
			s.openOrder = append(s.openOrder[:i], s.openOrder[i+1:]...)
			break
		}
	}
	return s.opts.Emit(&message.ContentBlockStopEvent{
		Type:  message.EventContentBlockStop,
		Index: index,
	})
}

// Finish closes every open block in reverse order of opening and
// emits the terminal message_delta and message_stop. An empty stream
// still produces the full skeleton with stop reason end_turn.
func (s *Stream) Finish() error {
	if s.finished {
		return nil
	}
	s.finished = true

	if err := s.start(); err != nil {
		return err
	}

	for i := len(s.openOrder) - 1; i >= 0; i-- {
		err := s.opts.Emit(&message.ContentBlockStopEvent{
			Type:  message.EventContentBlockStop,
			Index: s.openOrder[i],
		})
		if err != nil {
			return err
		}
	}
	s.openOrder = nil

	err := s.opts.Emit(&message.MessageDeltaEvent{
		Type:  message.EventMessageDelta,
		Delta: message.MessageDelta{StopReason: s.StopReason()},
		Usage: &message.MessageUsage{OutputTokens: s.OutputTokens()},
	})
	if err != nil {
		return err
	}

	return s.opts.Emit(&message.MessageStopEvent{Type: message.EventMessageStop})
}

// Cancel marks the stream dead without emitting anything further
func (s *Stream) Cancel() {
	s.finished = true
}

// StopReason the mapped finish reason, end_turn when the backend never
// sent one
func (s *Stream) StopReason() string {
	return MapStopReason(s.finishReason)
}

// Usage the final backend usage, nil when it never arrived
func (s *Stream) Usage() *provider.Usage {
	return s.usage
}

// InputTokens the backend-reported prompt tokens, falling back to the
// opening estimate
func (s *Stream) InputTokens() int {
	if s.usage != nil && s.usage.PromptTokens > 0 {
		return s.usage.PromptTokens
	}
	return s.opts.InputTokens
}

// OutputTokens the final output count: backend usage when reported,
// otherwise a chars/4 approximation of everything emitted
func (s *Stream) OutputTokens() int {
	if s.usage != nil && s.usage.CompletionTokens > 0 {
		return convertUsage(s.usage).OutputTokens
	}
	return s.contentChars / 4
}

// ReasoningTokens the separately reported reasoning tokens, zero when
// the backend does not split them out
func (s *Stream) ReasoningTokens() int {
	return ReasoningTokens(s.usage)
}

// OutputText everything emitted to the client as text or tool
// arguments, for the response-side payload scan
func (s *Stream) OutputText() string {
	return s.outputText.String()
}
