// Package uploader is the HTTP client for the content API upload endpoints.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/lyzr/cookbook/common/clients"
	"github.com/lyzr/cookbook/common/upload"
)

const uploadPath = "/api/upload"

// Client talks to the content API
type Client struct {
	baseURL string
	http    *clients.HTTPClient
	logger  clients.Logger
}

// Option customises a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     clients.Logger
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// WithLogger attaches a logger
func WithLogger(l clients.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// New creates a client for the API at baseURL
func New(baseURL string, opts ...Option) *Client {
	o := clientOptions{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		logger:     clients.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    clients.NewHTTPClient(o.httpClient, o.logger),
		logger:  o.logger,
	}
}

// UploadOption customises one upload
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	optimize bool
	observer Observer
}

// WithOptimize asks the server for an optimized variant
func WithOptimize() UploadOption {
	return func(o *uploadOptions) { o.optimize = true }
}

// WithProgress registers an observer for progress events
func WithProgress(observer Observer) UploadOption {
	return func(o *uploadOptions) { o.observer = observer }
}

// Upload sends one file and waits for the result
func (c *Client) Upload(ctx context.Context, file File, opts ...UploadOption) (*UploadResult, error) {
	return c.Start(ctx, file, opts...).Wait()
}

// Start begins sending one file in the background. The returned Upload can
// be paused, resumed, canceled and waited on.
func (c *Client) Start(ctx context.Context, file File, opts ...UploadOption) *Upload {
	var o uploadOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	u := newUpload(cancel, o.observer)

	body, contentType, err := singleBody(file, o.optimize)
	if err != nil {
		go func() {
			defer cancel()
			u.finish(StateError, nil, &TransportError{Err: err})
		}()
		return u
	}
	u.mu.Lock()
	u.total = int64(len(body))
	u.mu.Unlock()

	go func() {
		defer cancel()
		c.run(ctx, u, body, contentType)
	}()
	return u
}

func (c *Client) run(ctx context.Context, u *Upload, body []byte, contentType string) {
	u.begin()

	reader := &progressReader{ctx: ctx, reader: bytes.NewReader(body), upload: u}
	req, err := c.http.NewRequest(ctx, http.MethodPost, c.baseURL+uploadPath, reader)
	if err != nil {
		u.finish(StateError, nil, &TransportError{Err: err})
		return
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	resp, err := c.http.Do(req)
	if ctx.Err() != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		u.finish(StateCanceled, nil, fmt.Errorf("upload canceled: %w", ctx.Err()))
		return
	}
	if err != nil {
		c.logger.Warn("upload request failed", "error", err)
		u.finish(StateError, nil, &TransportError{Err: err})
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if ctx.Err() != nil {
		u.finish(StateCanceled, nil, fmt.Errorf("upload canceled: %w", ctx.Err()))
		return
	}
	if err != nil {
		u.finish(StateError, nil, &TransportError{Err: err})
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		u.finish(StateError, nil, newHTTPError(resp.StatusCode, payload))
		return
	}

	var result UploadResult
	if err := json.Unmarshal(payload, &result); err != nil {
		u.finish(StateError, nil, &TransportError{Err: fmt.Errorf("failed to decode upload response: %w", err)})
		return
	}
	u.finish(StateSuccess, &result, nil)
}

// UploadMany sends all files in one request. The server stores them in order
// and fails the whole batch on the first error.
func (c *Client) UploadMany(ctx context.Context, files []File) ([]upload.StoredAsset, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for i, f := range files {
		if err := writeFilePart(w, fmt.Sprintf("file%d", i), f); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.http.DoRequest(ctx, http.MethodPut, c.baseURL+uploadPath, w.FormDataContentType(), &buf)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, payload)
	}

	var out struct {
		Uploads []upload.StoredAsset `json:"uploads"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode batch response: %w", err)}
	}

	c.logger.Info("uploaded batch", "count", len(out.Uploads))
	return out.Uploads, nil
}

// Delete removes a previously uploaded file by its public path
func (c *Client) Delete(ctx context.Context, publicPath string) (bool, error) {
	body, err := json.Marshal(map[string]string{"path": publicPath})
	if err != nil {
		return false, err
	}

	resp, err := c.http.DoRequest(ctx, http.MethodDelete, c.baseURL+uploadPath, "application/json", bytes.NewReader(body))
	if err != nil {
		return false, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, newHTTPError(resp.StatusCode, payload)
	}

	var out struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return false, &TransportError{Err: fmt.Errorf("failed to decode delete response: %w", err)}
	}
	return out.Success, nil
}

func singleBody(file File, optimize bool) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeFilePart(w, "file", file); err != nil {
		return nil, "", err
	}
	if optimize {
		if err := w.WriteField("optimize", "true"); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(w *multipart.Writer, field string, f File) error {
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create part %s: %w", field, err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write part %s: %w", field, err)
	}
	return nil
}

func newHTTPError(status int, payload []byte) *HTTPError {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(payload, &body); err == nil {
		msg = body.Error
		if msg == "" {
			msg = body.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(payload))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Message: msg}
}
