// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/studychat-tui/internal/logging"
	"github.com/jeranaias/studychat-tui/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the backend client.
type Config struct {
	// BaseURL is the server root (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// StreamTimeout bounds the wait for stream response headers (default: 30s).
	// The body itself has no deadline; cancel the context to stop it.
	StreamTimeout time.Duration

	// MaxRetries for idempotent GETs on network failure (default: 2)
	MaxRetries int

	// RetryDelay between retries (default: 500ms)
	RetryDelay time.Duration

	// RateLimit is requests per minute. Zero or negative disables the
	// limiter (default: 0)
	RateLimit int

	// Burst is the number of requests allowed at once (default: 5)
	Burst int

	// UserAgent header value (default: studychat-tui)
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       "http://127.0.0.1:8000",
		Timeout:       60 * time.Second,
		StreamTimeout: 30 * time.Second,
		MaxRetries:    2,
		RetryDelay:    500 * time.Millisecond,
		Burst:         5,
		UserAgent:     "studychat-tui",
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the study chat server. It is safe for concurrent use.
type Client struct {
	config       *Config
	baseURL      *url.URL
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	log          zerolog.Logger
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	c, _ := NewClientWithConfig(DefaultConfig())
	return c
}

// NewClientWithConfig creates a client, filling zero values with defaults.
func NewClientWithConfig(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	def := DefaultConfig()

	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = def.StreamTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = def.RetryDelay
	}
	if config.Burst == 0 {
		config.Burst = def.Burst
	}
	if config.UserAgent == "" {
		config.UserAgent = def.UserAgent
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", config.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", config.BaseURL)
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Every(time.Minute / time.Duration(config.RateLimit))
	}

	streamTransport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport.ResponseHeaderTimeout = config.StreamTimeout

	return &Client{
		config:     config,
		baseURL:    base,
		httpClient: &http.Client{Timeout: config.Timeout},
		// Streaming client has no overall timeout; the body may stay open
		// for as long as the reply takes.
		streamClient: &http.Client{Transport: streamTransport},
		limiter:      rate.NewLimiter(limit, config.Burst),
		log:          logging.For("backend"),
	}, nil
}

// BaseURL returns the configured server root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// =============================================================================
// SESSIONS
// =============================================================================

// ListSessions returns all sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var resp ListSessionsResponse
	if err := c.doJSON(ctx, "list sessions", http.MethodGet, "/api/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// CreateSession creates a session and returns its id.
func (c *Client) CreateSession(ctx context.Context, title string) (model.SessionID, error) {
	var resp CreateSessionResponse
	err := c.doJSON(ctx, "create session", http.MethodPost, "/api/sessions", CreateSessionRequest{Title: title}, &resp)
	if err != nil {
		return "", err
	}
	if resp.SessionID.IsZero() {
		return "", &TransportError{Type: ErrTypeDecode, Op: "create session", Message: "server returned no session id"}
	}
	return resp.SessionID, nil
}

// RenameSession sets the session title.
func (c *Client) RenameSession(ctx context.Context, id model.SessionID, title string) error {
	return c.doJSON(ctx, "rename session", http.MethodPatch, sessionPath(id, ""), RenameRequest{Title: title}, nil)
}

// DeleteSession removes the session and its messages.
func (c *Client) DeleteSession(ctx context.Context, id model.SessionID) error {
	return c.doJSON(ctx, "delete session", http.MethodDelete, sessionPath(id, ""), nil, nil)
}

// GetMessages returns the session history, oldest first.
func (c *Client) GetMessages(ctx context.Context, id model.SessionID) ([]model.Message, error) {
	var resp MessagesResponse
	if err := c.doJSON(ctx, "load messages", http.MethodGet, sessionPath(id, "/messages"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// =============================================================================
// CHAT
// =============================================================================

// SendChat posts a message and waits for the full reply.
func (c *Client) SendChat(ctx context.Context, id model.SessionID, text string, level model.Level) (ChatReply, error) {
	var reply ChatReply
	err := c.doJSON(ctx, "send message", http.MethodPost, sessionPath(id, "/chat"), ChatRequest{Message: text, Level: level}, &reply)
	return reply, err
}

// Regenerate asks the server to replace its last reply.
func (c *Client) Regenerate(ctx context.Context, id model.SessionID, level model.Level) (ChatReply, error) {
	var reply ChatReply
	err := c.doJSON(ctx, "regenerate", http.MethodPost, sessionPath(id, "/regenerate"), RegenerateRequest{Level: level}, &reply)
	return reply, err
}

// OpenChatStream posts a message and returns the reply as a chunk stream.
func (c *Client) OpenChatStream(ctx context.Context, id model.SessionID, text string, level model.Level) (*ChunkStream, error) {
	return c.openStream(ctx, "stream message", sessionPath(id, "/chat/stream"), ChatRequest{Message: text, Level: level})
}

// OpenRegenerateStream asks for a fresh last reply as a chunk stream.
func (c *Client) OpenRegenerateStream(ctx context.Context, id model.SessionID, level model.Level) (*ChunkStream, error) {
	return c.openStream(ctx, "stream regenerate", sessionPath(id, "/regenerate/stream"), RegenerateRequest{Level: level})
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportPDF returns the session transcript rendered as a PDF document.
func (c *Client) ExportPDF(ctx context.Context, id model.SessionID) ([]byte, error) {
	const op = "export pdf"
	resp, err := c.do(ctx, op, c.httpClient, http.MethodPost, sessionPath(id, "/export-pdf"), nil, "application/pdf")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(op, err)
	}
	if len(data) == 0 {
		return nil, &TransportError{Type: ErrTypeDecode, Op: op, Message: "empty document"}
	}
	return data, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func sessionPath(id model.SessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(id.String()) + suffix
}

// doJSON sends body as JSON and decodes the response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	resp, err := c.do(ctx, op, c.httpClient, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Type: ErrTypeDecode, Op: op, Status: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// openStream sends a streaming request and wraps the body.
func (c *Client) openStream(ctx context.Context, op, path string, body any) (*ChunkStream, error) {
	resp, err := c.do(ctx, op, c.streamClient, http.MethodPost, path, body, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return newChunkStream(op, resp.Body), nil
}

// do performs one request, retrying GETs on network failure. Non-2xx
// responses are converted to *TransportError and their bodies closed.
func (c *Client) do(ctx context.Context, op string, hc *http.Client, method, path string, body any, accept string) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Type: ErrTypeUnknown, Op: op, Message: "failed to marshal request", Cause: err}
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.config.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, classify(op, ctx.Err())
			case <-time.After(c.config.RetryDelay):
			}
		}

		resp, err := c.once(ctx, op, hc, method, path, payload, accept)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var te *TransportError
		if !errors.As(err, &te) || te.Type != ErrTypeNetwork {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, op string, hc *http.Client, method, path string, payload []byte, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, classify(op, ctx.Err())
		}
		return nil, &TransportError{Type: ErrTypeRateLimited, Op: op, Message: "too many requests", Cause: err}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeUnknown, Op: op, Message: "failed to create request", Cause: err}
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("op", op).Str("request_id", requestID).Msg("request failed")
		return nil, classify(op, err)
	}

	c.log.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, statusError(op, resp.StatusCode, readServerError(resp.Body))
	}
	return resp, nil
}

// readServerError extracts the {"error": "..."} message from a failure body.
func readServerError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload errorResponse
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
