package provider

import (
	gocontext "context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/gou/http"
	"github.com/yaoapp/kun/log"
)

// DefaultIdleTimeout the per-chunk idle timeout for streaming reads.
// There is no overall cap; the stream closes on backend EOF.
const DefaultIdleTimeout = 60 * time.Second

// maxErrorBody errors surface at most this much of the backend body
const maxErrorBody = 4 * 1024

// Client issues Chat Completions calls against one resolved endpoint
type Client struct {
	endpoint    string
	apiKey      string
	headers     map[string]string
	idleTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithHeaders appends extra headers to every backend call
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) { c.headers = headers }
}

// WithIdleTimeout overrides the streaming idle timeout
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// NewClient creates a client for one endpoint. An apiKey of "dummy"
// (local models) suppresses the Authorization header.
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BackendError a non-2xx response or transport failure from the
// backend, with the captured body
type BackendError struct {
	Status  int
	Body    string
	Message string
}

// Error implements error
func (e *BackendError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("backend HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend: %s", e.Message)
}

// completionsURL builds the chat completions URL. Bases that already
// carry the /v1 path segment are used as-is.
func completionsURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/chat/completions"
}

// newRequest builds a gou http request with the standard headers
func (c *Client) newRequest(stream bool) *http.Request {
	req := http.New(completionsURL(c.endpoint)).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "YaoRelay/1.0 (+https://yaoapps.com)").
		SetHeader("X-Request-ID", uuid.NewString())

	if stream {
		req.SetHeader("Accept", "text/event-stream")
	}

	if c.apiKey != "" && c.apiKey != "dummy" {
		req.SetHeader("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	for name, value := range c.headers {
		req.SetHeader(name, value)
	}
	return req
}

// Complete issues a unary chat completion. The deadline comes from ctx.
func (c *Client) Complete(ctx gocontext.Context, payload *ChatCompletionRequest) (*ChatCompletion, error) {
	payload.Stream = false
	body, err := payload.Body()
	if err != nil {
		return nil, fmt.Errorf("failed to build request body: %w", err)
	}

	req := c.newRequest(false)

	// gou's Post has no context hook; run it on the side so the
	// caller's deadline still holds
	done := make(chan *http.Response, 1)
	go func() { done <- req.Post(body) }()

	var resp *http.Response
	select {
	case resp = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if resp.Status != 200 {
		return nil, c.asBackendError(resp)
	}

	data, err := jsoniter.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	var chat ChatCompletion
	if err := jsoniter.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chat.Choices) == 0 {
		return nil, &BackendError{Status: resp.Status, Message: "no choices in response", Body: truncate(string(data))}
	}
	return &chat, nil
}

// StreamFunc receives each parsed delta chunk. Returning an error
// aborts the read loop.
type StreamFunc func(chunk *StreamChunk) error

// Stream issues a streaming chat completion and feeds each SSE chunk
// to fn. It returns after [DONE], backend EOF, ctx cancellation, or an
// idle timeout between chunks.
func (c *Client) Stream(ctx gocontext.Context, payload *ChatCompletionRequest, fn StreamFunc) error {
	payload.Stream = true
	if payload.StreamOptions == nil {
		payload.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	body, err := payload.Body()
	if err != nil {
		return fmt.Errorf("failed to build request body: %w", err)
	}

	// Idle watchdog: each received chunk pushes the deadline out
	streamCtx, cancel := gocontext.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(c.idleTimeout, cancel)
	defer watchdog.Stop()

	// Error responses arrive as raw JSON without the SSE framing;
	// buffer them for a proper BackendError
	var errorBuffer strings.Builder
	errorDetected := false
	var callbackErr error

	handler := func(data []byte) int {
		select {
		case <-streamCtx.Done():
			return http.HandlerReturnBreak
		default:
		}
		watchdog.Reset(c.idleTimeout)

		line := strings.TrimSpace(string(data))
		if line == "" {
			return http.HandlerReturnOk
		}

		if !strings.HasPrefix(line, "data: ") {
			if strings.HasPrefix(line, "{") && strings.Contains(line, `"error"`) {
				errorDetected = true
			}
			if errorDetected {
				errorBuffer.WriteString(line)
				errorBuffer.WriteString("\n")
			}
			// event:/comment lines are part of normal SSE framing
			return http.HandlerReturnOk
		}

		line = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if line == "[DONE]" {
			return http.HandlerReturnBreak
		}

		var chunk StreamChunk
		if err := jsoniter.UnmarshalFromString(line, &chunk); err != nil {
			log.Warn("[provider] failed to parse stream chunk: %s", err.Error())
			return http.HandlerReturnOk
		}

		if err := fn(&chunk); err != nil {
			callbackErr = err
			return http.HandlerReturnBreak
		}
		return http.HandlerReturnOk
	}

	req := c.newRequest(true)
	err = req.Stream(streamCtx, "POST", body, handler)

	if callbackErr != nil {
		return callbackErr
	}

	if errorDetected && errorBuffer.Len() > 0 {
		return c.parseErrorBody(errorBuffer.String())
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if streamCtx.Err() != nil && err != nil {
		// The watchdog fired, not the caller
		return &BackendError{Message: fmt.Sprintf("stream idle for %s", c.idleTimeout)}
	}
	if err != nil {
		return &BackendError{Message: err.Error()}
	}
	return nil
}

// asBackendError extracts the upstream error from a non-200 response
func (c *Client) asBackendError(resp *http.Response) *BackendError {
	body := ""
	message := resp.Message
	if resp.Data != nil {
		if raw, err := jsoniter.MarshalToString(resp.Data); err == nil {
			body = truncate(raw)
			var apiErr APIErrorBody
			if jsoniter.UnmarshalFromString(raw, &apiErr) == nil && apiErr.Error.Message != "" {
				message = apiErr.Error.Message
			}
		}
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", resp.Status)
	}
	return &BackendError{Status: resp.Status, Body: body, Message: message}
}

// parseErrorBody maps a raw in-stream error JSON to a BackendError
func (c *Client) parseErrorBody(raw string) *BackendError {
	raw = strings.TrimSpace(raw)
	var apiErr APIErrorBody
	if err := jsoniter.UnmarshalFromString(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		status := 502
		if code, ok := apiErr.Error.Code.(float64); ok && code >= 400 && code < 600 {
			status = int(code)
		}
		return &BackendError{Status: status, Body: truncate(raw), Message: apiErr.Error.Message}
	}
	return &BackendError{Status: 502, Body: truncate(raw), Message: raw}
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
