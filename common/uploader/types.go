package uploader

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/lyzr/cookbook/common/upload"
	"github.com/lyzr/cookbook/common/validation"
)

// State is where an upload attempt is in its lifecycle
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateSuccess  State = "success"
	StateCanceled State = "canceled"
	StateError    State = "error"
)

// Terminal reports whether no further transitions can happen
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateCanceled || s == StateError
}

// ProgressEvent is delivered to an Observer on every state change and
// whenever more of the body has been sent
type ProgressEvent struct {
	State            State
	BytesTransferred int64
	TotalBytes       int64
}

// Observer receives progress events in order from a single goroutine
type Observer func(ProgressEvent)

// File is a local file to send
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFile loads path and guesses its content type from the extension,
// falling back to the file contents
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = validation.SniffContentType(data)
	}
	return File{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

// UploadResult is the server's answer to a single upload
type UploadResult struct {
	URL          string                    `json:"url"`
	Path         string                    `json:"path"`
	OriginalURL  string                    `json:"originalUrl,omitempty"`
	WebPURL      string                    `json:"webpUrl,omitempty"`
	AVIFURL      string                    `json:"avifUrl,omitempty"`
	Optimization *upload.OptimizationStats `json:"optimization,omitempty"`
	Metadata     *upload.ImageMetadata     `json:"metadata,omitempty"`
}

// HTTPError is a non-2xx response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Message)
}

// TransportError is a failure to reach the server or read its answer
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upload transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
