package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"mercator-hq/relay/pkg/chat"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 64 << 10

// StreamResponse is the outcome of a streaming request. Exactly one of Body
// and ErrorBody is meaningful: Body for a 200 response, ErrorBody otherwise.
type StreamResponse struct {
	StatusCode int
	Body       io.ReadCloser
	ErrorBody  string
}

// OK reports whether the backend accepted the stream.
func (r *StreamResponse) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Client sends chat turns to one configured model.
type Client struct {
	config Config

	endpoint string

	// client enforces the overall timeout on non-streaming requests.
	client *http.Client

	// streamClient has no overall timeout; only the header wait is bounded.
	streamClient *http.Client

	logger *slog.Logger
}

// NewClient creates a Client for config.
func NewClient(config Config) (*Client, error) {
	config.BaseURL = DeriveBaseURL(config.BaseURL)
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRetryBackoff
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: config.Timeout,
		ForceAttemptHTTP2:     true,
	}

	return &Client{
		config:       config,
		endpoint:     config.BaseURL + "/chat/completions",
		client:       &http.Client{Transport: transport, Timeout: config.Timeout},
		streamClient: &http.Client{Transport: transport},
		logger:       slog.Default().With("component", "backend.client", "model", config.Key),
	}, nil
}

// Key returns the model key this client serves.
func (c *Client) Key() string {
	return c.config.Key
}

// ModelName returns the model identifier sent to the backend.
func (c *Client) ModelName() string {
	return c.config.ModelName
}

// Endpoint returns the completions URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.config
}

func (c *Client) headers(stream bool) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if c.config.APIKey != "" {
		h["Authorization"] = "Bearer " + c.config.APIKey
	}
	if stream {
		h["Accept"] = "text/event-stream"
	} else {
		h["Accept"] = "application/json"
	}
	return h
}

// Complete performs a non-streaming turn and returns the decoded response
// body. Transient failures (network errors, 5xx) are retried with
// exponential backoff; any final non-2xx status is a *chat.BackendError
// carrying the status and body.
func (c *Client) Complete(ctx context.Context, messages []chat.Message, options map[string]any) (map[string]any, error) {
	body, err := json.Marshal(buildRequestBody(c.config.ModelName, messages, c.config.Options, options, false))
	if err != nil {
		return nil, &chat.BackendError{Model: c.config.Key, Message: "failed to encode request", Cause: err}
	}

	ctx, span := c.startSpan(ctx, false)
	resp, err := c.doRequest(ctx, body)
	if err != nil {
		endSpan(span, statusOf(err), err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		err := c.transportError(ctx, "failed to read response", err)
		endSpan(span, resp.StatusCode, err)
		return nil, err
	}
	endSpan(span, resp.StatusCode, nil)

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var result map[string]any
	if err := decoder.Decode(&result); err != nil || result == nil {
		if err == nil {
			err = errors.New("response is not a JSON object")
		}
		return nil, &chat.BackendError{
			Model:      c.config.Key,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(raw)),
			Message:    "malformed response",
			Cause:      err,
		}
	}

	return result, nil
}

// doRequest posts body with retries. It returns a 2xx response or an error.
func (c *Client) doRequest(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBackoff << (attempt - 1)
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)
			trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(
				attribute.Int("relay.backend.attempt", attempt+1),
			))

			select {
			case <-ctx.Done():
				return nil, c.transportError(ctx, "request canceled", ctx.Err())
			case <-time.After(backoff):
			}
		}

		req, err := c.newRequest(ctx, body, false)
		if err != nil {
			return nil, &chat.BackendError{Model: c.config.Key, Message: "failed to create request", Cause: err}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = c.transportError(ctx, "request failed", err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			c.logger.Warn("request failed, will retry",
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		errorBody := readErrorBody(resp)
		lastErr = &chat.BackendError{
			Model:      c.config.Key,
			StatusCode: resp.StatusCode,
			Body:       errorBody,
			Message:    http.StatusText(resp.StatusCode),
		}

		if resp.StatusCode < 500 {
			return nil, lastErr
		}

		c.logger.Warn("request returned error status, will retry",
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	return nil, lastErr
}

// Stream opens a streaming turn. A non-200 status is not an error: it comes
// back as a StreamResponse with ErrorBody set. Only transport failures are
// returned as *chat.BackendError. The caller must close Body.
func (c *Client) Stream(ctx context.Context, messages []chat.Message, options map[string]any) (*StreamResponse, error) {
	body, err := json.Marshal(buildRequestBody(c.config.ModelName, messages, c.config.Options, options, true))
	if err != nil {
		return nil, &chat.BackendError{Model: c.config.Key, Message: "failed to encode request", Cause: err}
	}

	ctx, span := c.startSpan(ctx, true)
	req, err := c.newRequest(ctx, body, true)
	if err != nil {
		endSpan(span, 0, err)
		return nil, &chat.BackendError{Model: c.config.Key, Message: "failed to create request", Cause: err}
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		err := c.transportError(ctx, "stream request failed", err)
		endSpan(span, 0, err)
		return nil, err
	}
	endSpan(span, resp.StatusCode, nil)

	if resp.StatusCode != http.StatusOK {
		errorBody := readErrorBody(resp)
		c.logger.Warn("backend rejected stream",
			"status", resp.StatusCode,
			"body_bytes", len(errorBody),
		)
		return &StreamResponse{StatusCode: resp.StatusCode, ErrorBody: errorBody}, nil
	}

	return &StreamResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

func (c *Client) newRequest(ctx context.Context, body []byte, stream bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, value := range c.headers(stream) {
		req.Header.Set(key, value)
	}
	injectTrace(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.Debug("sending request to backend",
		"url", c.endpoint,
		"stream", stream,
		"body_bytes", len(body),
	)
	return req, nil
}

// transportError wraps a network failure, flagging timeouts.
func (c *Client) transportError(ctx context.Context, message string, err error) *chat.BackendError {
	be := &chat.BackendError{Model: c.config.Key, Message: message, Cause: err}

	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		be.Timeout = true
	case errors.As(err, &netErr) && netErr.Timeout():
		be.Timeout = true
	}
	return be
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(data)
}

func truncate(s string) string {
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

// statusOf returns the HTTP status carried by a backend error, or 0.
func statusOf(err error) int {
	var be *chat.BackendError
	if errors.As(err, &be) {
		return be.StatusCode
	}
	return 0
}
