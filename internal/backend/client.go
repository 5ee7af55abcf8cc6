// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/sse"
)

const (
	// DefaultBaseURL is the relay address used when none is configured.
	DefaultBaseURL = "http://localhost:5001"

	// DefaultTimeout bounds submit and health requests. Streams are bounded
	// only by their context.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps non-stream response bodies.
	MaxResponseSize = 1 << 20
)

// newTransport returns a pooled transport shared by the request and stream
// clients of one Client.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// Handler receives each decoded event in stream order.
type Handler func(research.Event)

// Client talks to the research API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transport := newTransport()
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Transport: transport, Timeout: DefaultTimeout},
		streamClient: &http.Client{Transport: transport},
		logger:       slog.Default(),
	}
}

// WithTimeout sets the submit and health request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces both underlying HTTP clients. The stream client
// keeps no timeout.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	stream := *hc
	stream.Timeout = 0
	c.streamClient = &stream
	return c
}

// WithLogger sets the logger used for request tracing.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// SUBMIT
// =============================================================================

// errorBody is the JSON shape of API failures.
type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// Submit posts a question and returns the request ID of the research run.
func (c *Client) Submit(ctx context.Context, req research.QueryRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit query: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return "", err
	}
	c.logger.Debug("query submitted", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		c.logger.Warn("query rejected", "detail", apiErr.Detail())
		return "", apiErr
	}

	var qr research.QueryResponse
	if err := json.Unmarshal(data, &qr); err != nil {
		return "", fmt.Errorf("parse query response: %w", err)
	}
	if qr.RequestID == "" {
		return "", ErrNoRequestID
	}
	return qr.RequestID, nil
}

// parseAPIError builds an APIError from a failure body. Bodies that are
// not the expected JSON shape are kept as raw details.
func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		apiErr.Details = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = eb.Error
	if len(eb.Details) > 0 {
		var s string
		if json.Unmarshal(eb.Details, &s) == nil {
			apiErr.Details = s
		} else {
			apiErr.Details = string(eb.Details)
		}
	}
	return apiErr
}

// readResponse reads a body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// =============================================================================
// STREAM
// =============================================================================

// Stream opens the event stream for requestID and calls handler for each
// progress, final and error event. It returns nil once a final or error
// event has been delivered. Events of unknown type and payloads that do not
// decode are skipped.
func (c *Client) Stream(ctx context.Context, requestID string, handler Handler) error {
	if requestID == "" {
		return ErrNoRequestID
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u := c.baseURL + "/api/query?request_id=" + url.QueryEscape(requestID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &StreamError{RequestID: requestID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := readResponse(resp)
		apiErr := parseAPIError(resp.StatusCode, data)
		return &StreamError{RequestID: requestID, Err: fmt.Errorf("open stream: %s", apiErr.Detail())}
	}

	c.logger.Debug("stream opened", "request_id", requestID)

	reader := sse.NewReader(resp.Body)
	for {
		frame, err := reader.ReadEvent()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}
			return &StreamError{RequestID: requestID, Err: err}
		}

		switch frame.Type {
		case "", "message":
		case sse.EventClose:
			c.logger.Debug("stream closed by server", "request_id", requestID)
			return ErrStreamClosed
		default:
			continue
		}
		if len(bytes.TrimSpace(frame.Data)) == 0 {
			continue
		}

		// Keepalives and other non-JSON lines reach us wrapped as data by
		// the relay; they are skipped like unknown event types.
		ev, err := research.DecodeEvent(frame.Data)
		if err != nil {
			c.logger.Debug("skipping event", "request_id", requestID, "error", err)
			continue
		}

		handler(ev)
		if ev.Kind().Terminal() {
			c.logger.Debug("stream finished", "request_id", requestID, "kind", ev.Kind())
			return nil
		}
	}
}

// Ask submits question with the default budget and streams its events.
func (c *Client) Ask(ctx context.Context, question string, handler Handler) error {
	id, err := c.Submit(ctx, research.NewQueryRequest(question))
	if err != nil {
		return err
	}
	return c.Stream(ctx, id, handler)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health checks that the API answers GET /health with status "healthy".
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: %s", parseAPIError(resp.StatusCode, data).Detail())
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fmt.Errorf("parse health response: %w", err)
	}
	if body.Status != "healthy" {
		return fmt.Errorf("health check: status %q", body.Status)
	}
	return nil
}
