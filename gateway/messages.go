package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yaoapp/kun/log"
	"github.com/yaoapp/relay/message"
	"github.com/yaoapp/relay/provider"
	"github.com/yaoapp/relay/router"
	"github.com/yaoapp/relay/transform"
	"github.com/yaoapp/relay/usage"
)

// handleMessages serves POST /v1/messages, unary and streaming
func (g *Gateway) handleMessages(c *gin.Context) {
	started := time.Now()
	cfg := g.Config()
	requestID := message.NewID("req")

	var req message.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.fail(c, message.ErrInvalidRequest(fmt.Sprintf("invalid request body: %s", err.Error())))
		return
	}
	if err := req.Validate(); err != nil {
		g.fail(c, message.AsAPIError(err))
		return
	}

	route, err := g.Router().Resolve(req.Model)
	if err != nil {
		var missing *router.MissingCredentialError
		if errors.As(err, &missing) {
			g.fail(c, message.ErrAuthentication(missing.Error()))
			return
		}
		g.fail(c, message.AsAPIError(err))
		return
	}

	payload, err := transform.Request(&req, route, *cfg)
	if err != nil {
		g.fail(c, message.AsAPIError(err))
		return
	}

	client := provider.NewClient(route.Endpoint, route.APIKey, provider.WithHeaders(cfg.CustomHeaders))

	record := usage.Record{
		RequestID:      requestID,
		Tier:           route.Tier,
		ModelRequested: req.Model,
		ModelRouted:    route.Model,
		Endpoint:       route.Endpoint,
		Stream:         req.Stream,
		Status:         "ok",
		MessageCount:   len(req.Messages),
		HasSystem:      req.System != "",
	}

	if req.Stream {
		g.streamMessages(c, &req, route, client, payload, &record)
	} else {
		g.unaryMessages(c, &req, route, client, payload, &record)
	}

	record.DurationMs = time.Since(started).Milliseconds()
	g.logRequest(requestID, &record)
	if g.meter != nil {
		g.meter.Log(record)
	}
}

// unaryMessages runs the request to completion and writes one JSON
// response
func (g *Gateway) unaryMessages(c *gin.Context, req *message.MessagesRequest, route *router.Route, client *provider.Client, payload *provider.ChatCompletionRequest, record *usage.Record) {

	timeout := time.Duration(g.Config().RequestTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	chat, err := client.Complete(ctx, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil {
			record.ErrorMessage = "client_cancel"
			return
		}
		apiErr := mapBackendError(err, route.Model)
		record.Status = "error"
		record.ErrorMessage = errorLabel(err)
		g.fail(c, apiErr)
		return
	}

	resp := transform.Response(chat, req, route)
	record.InputTokens = resp.Usage.InputTokens
	record.OutputTokens = resp.Usage.OutputTokens
	record.ThinkingTokens = transform.ReasoningTokens(chat.Usage)
	scanRequest(req, chat.Choices[0].Message.Content, record)

	c.JSON(200, resp)
}

// streamMessages bridges the backend SSE stream onto the client as
// Anthropic events. Once the first frame is on the wire, failures
// become an error event followed by message_stop with HTTP 200.
func (g *Gateway) streamMessages(c *gin.Context, req *message.MessagesRequest, route *router.Route, client *provider.Client, payload *provider.ChatCompletionRequest, record *usage.Record) {

	writer := newSSEWriter(c)
	stream := transform.NewStream(transform.StreamOptions{
		Model:       req.Model,
		InputTokens: transform.CountTokens(req),
		Exclude:     route.Reasoning.Exclude,
		Emit:        writer.Write,
	})

	ctx := c.Request.Context()
	err := client.Stream(ctx, payload, stream.Feed)

	// Token accounting holds for every exit path
	defer func() {
		record.InputTokens = stream.InputTokens()
		record.OutputTokens = stream.OutputTokens()
		record.ThinkingTokens = stream.ReasoningTokens()
		scanRequest(req, stream.OutputText(), record)
	}()

	if ctx.Err() != nil {
		// Client went away: stop emitting, keep what was observed
		stream.Cancel()
		record.ErrorMessage = "client_cancel"
		return
	}

	if err != nil {
		apiErr := mapBackendError(err, route.Model)
		record.Status = "error"
		record.ErrorMessage = errorLabel(err)

		if !writer.Started() {
			g.fail(c, apiErr)
			return
		}

		// Mid-stream failure: error event, then terminate the protocol
		if werr := writer.Write(apiErr.Event()); werr != nil {
			stream.Cancel()
			return
		}
		writer.Write(&message.MessageStopEvent{Type: message.EventMessageStop})
		stream.Cancel()
		return
	}

	if err := stream.Finish(); err != nil {
		// Write failed on the closing events
		record.ErrorMessage = "client_cancel"
	}
}

// fail writes an error response in the Anthropic envelope
func (g *Gateway) fail(c *gin.Context, apiErr *message.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, apiErr.Body())
}

// mapBackendError maps transport failures onto the client-visible
// error taxonomy
func mapBackendError(err error, modelID string) *message.APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return message.ErrTimeout("request timed out")
	}

	var backendErr *provider.BackendError
	if errors.As(err, &backendErr) {
		switch backendErr.Status {
		case 401:
			return message.ErrAuthentication(fmt.Sprintf("backend rejected the credential: %s", backendErr.Message))
		case 403:
			return message.ErrPermission(backendErr.Message)
		case 404:
			return message.ErrNotFound(fmt.Sprintf("%s (upstream model %q)", backendErr.Message, modelID))
		case 429:
			return message.ErrRateLimit(backendErr.Message)
		default:
			msg := backendErr.Message
			if backendErr.Body != "" {
				msg = fmt.Sprintf("%s: %s", backendErr.Message, backendErr.Body)
			}
			return message.ErrBackend(msg)
		}
	}
	return message.AsAPIError(err)
}

// errorLabel the short usage-row form of an error
func errorLabel(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	label := err.Error()
	if len(label) > 200 {
		label = label[:200]
	}
	return label
}

// scanRequest fills the usage row's content flags and runs the JSON
// payload scan across the request and response text. Tool traffic
// always counts as JSON content.
func scanRequest(req *message.MessagesRequest, responseText string, record *usage.Record) {
	texts := []string{responseText}
	record.HasTools = len(req.Tools) > 0
	for _, msg := range req.Messages {
		for _, block := range msg.Content {
			switch block.Type {
			case message.BlockText:
				texts = append(texts, block.Text)
			case message.BlockImage:
				record.HasImages = true
			case message.BlockToolUse:
				record.HasTools = true
			case message.BlockToolResult:
				record.HasTools = true
				texts = append(texts, block.Content.Stringify())
			}
		}
	}

	hasJSON, jsonBytes := usage.ScanJSON(texts...)
	record.HasJSON = hasJSON || record.HasTools
	record.JSONBytes = jsonBytes
}

// logRequest the one completion line per request
func (g *Gateway) logRequest(requestID string, record *usage.Record) {
	fields := log.F{
		"request_id":    requestID,
		"tier":          record.Tier,
		"model_routed":  record.ModelRouted,
		"status":        record.Status,
		"duration_ms":   record.DurationMs,
		"input_tokens":  record.InputTokens,
		"output_tokens": record.OutputTokens,
	}
	if record.Status == "ok" {
		log.With(fields).Info("[gateway] request completed")
		return
	}
	log.With(fields).Error("[gateway] request failed: %s", record.ErrorMessage)
}
