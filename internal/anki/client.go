// Package anki is a client for the AnkiConnect HTTP API.
//
// Every call is one blocking JSON round-trip: an {action, version, params}
// envelope POSTed to the configured endpoint, an {result, error} envelope
// back. There is no retry; a failed call fails the caller's pass.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const apiVersion = 6

// DefaultURL is the endpoint AnkiConnect listens on out of the box.
const DefaultURL = "http://localhost:8765"

// APIError is an error reported by the remote store itself, as opposed to
// a transport failure.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote store rejected %s: %s", e.Action, e.Message)
}

// Client talks to a single AnkiConnect endpoint.
type Client struct {
	url    string
	hc     *http.Client
	logger *slog.Logger
}

// NewClient creates a Client for the given endpoint URL. An empty URL
// falls back to DefaultURL.
func NewClient(url string, logger *slog.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{url: url, hc: &http.Client{}, logger: logger}
}

type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type reply[T any] struct {
	Result T       `json:"result"`
	Error  *string `json:"error"`
}

// call posts one action and decodes the result into T.
func call[T any](ctx context.Context, c *Client, action string, params any) (T, error) {
	var zero T

	c.logger.Debug("requesting action", slog.String("action", action))

	body, err := json.Marshal(envelope{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return zero, fmt.Errorf("anki: encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("anki: build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return zero, fmt.Errorf("anki: %s: %w", action, err)
	}
	defer res.Body.Close()

	c.logger.Debug("got response", slog.String("action", action), slog.Int("status", res.StatusCode))

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, fmt.Errorf("anki: read %s response: %w", action, err)
	}

	var r reply[T]
	if err := json.Unmarshal(raw, &r); err != nil {
		return zero, fmt.Errorf("anki: decode %s response (body %s): %w", action, truncate(raw, 200), err)
	}
	if r.Error != nil {
		return zero, fmt.Errorf("anki: %w", &APIError{Action: action, Message: *r.Error})
	}
	return r.Result, nil
}

// callMulti batches one action over many parameter sets using the multi
// action. Results come back in request order; an error on any inner
// action fails the whole batch.
func callMulti[T any](ctx context.Context, c *Client, action string, params []any) ([]T, error) {
	type inner struct {
		Action string `json:"action"`
		Params any    `json:"params"`
	}

	actions := make([]inner, len(params))
	for i, p := range params {
		actions[i] = inner{Action: action, Params: p}
	}

	replies, err := call[[]reply[T]](ctx, c, "multi", map[string]any{"actions": actions})
	if err != nil {
		return nil, err
	}

	out := make([]T, len(replies))
	for i, r := range replies {
		if r.Error != nil {
			return nil, fmt.Errorf("anki: %s[%d]: %w", action, i, &APIError{Action: action, Message: *r.Error})
		}
		out[i] = r.Result
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
