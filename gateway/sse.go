package gateway

import (
	"fmt"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/relay/message"
)

// sseWriter writes Anthropic events to the client as SSE frames
type sseWriter struct {
	c     *gin.Context
	wrote bool
}

func newSSEWriter(c *gin.Context) *sseWriter {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	return &sseWriter{c: c}
}

// Write emits one `event:`/`data:` frame and flushes
func (w *sseWriter) Write(event message.Event) error {
	data, err := jsoniter.Marshal(event)
	if err != nil {
		return err
	}

	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Name(), data)
	if _, err := w.c.Writer.WriteString(frame); err != nil {
		return err
	}
	w.c.Writer.Flush()
	w.wrote = true
	return nil
}

// Started reports whether anything reached the wire. Errors before the
// first frame can still use a plain JSON response.
func (w *sseWriter) Started() bool {
	return w.wrote
}
