// Package backend talks to the restaurant REST API. The API owns every piece of
// persistent state; this client only shapes requests and decodes responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GenericErrorMessage is shown when the API gives no message of its own.
const GenericErrorMessage = "Erro na requisição"

var ErrUnauthorized = errors.New("backend: unauthorized")

// APIError is any non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// UserMessage returns what a notification should say about err.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return GenericErrorMessage
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient is used by tests that point the client at an httptest server.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type requestOptions struct {
	token   string
	headers map[string]string
}

type Option func(*requestOptions)

// WithToken attaches the bearer credential of the current session.
func WithToken(token string) Option {
	return func(o *requestOptions) { o.token = token }
}

// WithIdempotencyKey lets the API collapse repeated submissions of one form.
func WithIdempotencyKey(key string) Option {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers["Idempotency-Key"] = key
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, opts ...Option) error {
	return c.doURL(ctx, method, c.baseURL+endpoint, body, out, opts...)
}

func (c *Client) doURL(ctx context.Context, method, endpoint string, body, out any, opts ...Option) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ro.token != "" {
		req.Header.Set("Authorization", "Bearer "+ro.token)
	}
	for k, v := range ro.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("Erro %d", resp.StatusCode)}
		var payload struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			apiErr.Message = GenericErrorMessage
		} else if payload.Message != "" {
			apiErr.Message = payload.Message
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return nil
}
