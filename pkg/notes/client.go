// Package notes forwards text and audio to the summarization and evaluation service.
package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/modelgraph/internal/logging"
)

// AudioField is the multipart form field carrying the recording.
const AudioField = "audio_file"

// maxResponseBytes bounds the body read from the notes service.
const maxResponseBytes = 4 << 20

// ErrEmptyInput is returned before any request when there is nothing to send.
var ErrEmptyInput = errors.New("notes: empty input")

// Summary is the answer of the process endpoint.
type Summary struct {
	Summary       string `json:"summary"`
	Transcription string `json:"transcription,omitempty"`
}

// Evaluation is a flat mapping of metric name to value, rendered as-is.
type Evaluation map[string]any

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("notes service: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("notes service: status %d", e.StatusCode)
}

// Client calls the notes service rooted at a base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client. Requests go to baseURL + "/notes/...".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SummarizeText sends text to the process endpoint.
func (c *Client) SummarizeText(ctx context.Context, text string) (Summary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Summary{}, ErrEmptyInput
	}
	body, err := json.Marshal(map[string]string{"text_input": text})
	if err != nil {
		return Summary{}, err
	}

	var out Summary
	err = c.post(ctx, "/notes/process", "application/json", bytes.NewReader(body), &out)
	return out, err
}

// SummarizeAudio uploads a recording to the process endpoint as multipart form data.
func (c *Client) SummarizeAudio(ctx context.Context, filename string, audio io.Reader) (Summary, error) {
	if audio == nil {
		return Summary{}, ErrEmptyInput
	}
	if filename == "" {
		filename = "recording.webm"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(AudioField, filename)
	if err != nil {
		return Summary{}, err
	}
	n, err := io.Copy(part, audio)
	if err != nil {
		return Summary{}, fmt.Errorf("read audio: %w", err)
	}
	if n == 0 {
		return Summary{}, ErrEmptyInput
	}
	if err := mw.Close(); err != nil {
		return Summary{}, err
	}

	var out Summary
	err = c.post(ctx, "/notes/process", mw.FormDataContentType(), &buf, &out)
	return out, err
}

// Evaluate scores a summary against its source text.
func (c *Client) Evaluate(ctx context.Context, text, summary string) (Evaluation, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, ErrEmptyInput
	}
	body, err := json.Marshal(map[string]string{"text_input": text, "summary": summary})
	if err != nil {
		return nil, err
	}

	out := Evaluation{}
	err = c.post(ctx, "/notes/evaluate", "application/json", bytes.NewReader(body), &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error("Notes service unreachable", "path", path, "err", err)
		return fmt.Errorf("notes service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("notes service: read body: %w", err)
	}
	if len(data) > maxResponseBytes {
		return fmt.Errorf("notes service: response exceeds %d bytes", maxResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &msg)
		return &StatusError{StatusCode: resp.StatusCode, Message: msg.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("notes service: malformed body: %w", err)
	}
	return nil
}
