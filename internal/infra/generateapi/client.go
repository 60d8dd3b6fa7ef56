package generateapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/yanqian/bio-generator/internal/domain/session"
	apperrors "github.com/yanqian/bio-generator/pkg/errors"
)

const (
	readChunkSize   = 4 << 10
	errorBodyLimit  = 4 << 10
	defaultTimeout  = 2 * time.Minute
	contentTypeJSON = "application/json"
)

// Request is the JSON payload accepted by the generation endpoint.
type Request struct {
	Prompt string `json:"prompt"`
}

// StatusError describes a non-success response from the generation endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return e.Status
	}
	return e.Status + ": " + e.Detail
}

// Client posts prompts to the generation endpoint and exposes the response as a text stream.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a client for the given endpoint URL.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("generate endpoint cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "generateapi.client"),
	}, nil
}

// Generate sends the prompt and returns the streamed body.
// It returns a nil stream when the response carries no body.
func (c *Client) Generate(ctx context.Context, prompt string) (session.Stream, error) {
	payload, err := json.Marshal(Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeRequestFailed, "request generation", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Detail:     errorDetail(resp.Body),
		}
		return nil, apperrors.Wrap(apperrors.CodeRequestFailed, statusErr.Status, statusErr)
	}

	if hasNoBody(resp) {
		resp.Body.Close()
		return nil, nil
	}

	enc := c.encodingFor(resp.Header.Get("Content-Type"))
	return newBodyStream(resp.Body, enc), nil
}

func (c *Client) encodingFor(contentType string) encoding.Encoding {
	if contentType == "" {
		return unicode.UTF8
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		c.logger.Debug("unparseable content type, assuming utf-8", "content_type", contentType, "error", err)
		return unicode.UTF8
	}
	charset := params["charset"]
	if charset == "" {
		return unicode.UTF8
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		c.logger.Debug("unknown charset, assuming utf-8", "charset", charset)
		return unicode.UTF8
	}
	return enc
}

func hasNoBody(resp *http.Response) bool {
	return resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 || resp.Body == http.NoBody
}

func statusText(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// errorDetail extracts the message from the server's JSON error envelope,
// falling back to the raw (bounded) body.
func errorDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(raw))
}

// BodyStream decodes a response body into text fragments as bytes arrive.
type BodyStream struct {
	body    io.Closer
	reader  io.Reader
	buf     []byte
	pending error
}

func newBodyStream(body io.ReadCloser, enc encoding.Encoding) *BodyStream {
	return &BodyStream{
		body:   body,
		reader: transform.NewReader(body, enc.NewDecoder()),
		buf:    make([]byte, readChunkSize),
	}
}

// Recv returns the text decoded from the next chunk read off the wire.
// A rune split across two reads is held back until it is complete.
func (s *BodyStream) Recv() (string, error) {
	if s.pending != nil {
		return "", s.pending
	}
	for {
		n, err := s.reader.Read(s.buf)
		if n > 0 {
			s.pending = err
			return string(s.buf[:n]), nil
		}
		if err != nil {
			s.pending = err
			return "", err
		}
	}
}

// Close releases the underlying connection.
func (s *BodyStream) Close() error {
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}

var _ session.Generator = (*Client)(nil)
