package validation

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrorCode identifies which asset rule was violated
type ErrorCode string

const (
	CodeInvalidType ErrorCode = "invalid-type"
	CodeTooLarge    ErrorCode = "too-large"
	CodeInvalidPath ErrorCode = "invalid-path"
)

// DefaultMaxBytes is the upload size ceiling (10 MiB)
const DefaultMaxBytes int64 = 10 << 20

// DefaultAllowedTypes lists the image types accepted for upload
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/avif",
}

// ValidationError reports the first rule an asset violated
type ValidationError struct {
	Code    ErrorCode
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is or wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Policy is the set of rules an uploaded asset must satisfy
type Policy struct {
	AllowedTypes []string
	MaxBytes     int64
}

// DefaultPolicy returns the image allow-list with the 10 MiB ceiling
func DefaultPolicy() Policy {
	return Policy{
		AllowedTypes: append([]string(nil), DefaultAllowedTypes...),
		MaxBytes:     DefaultMaxBytes,
	}
}

// Validate checks the declared type against the allow-list, then the size
// against the ceiling. It returns the first violation as a *ValidationError.
func (p Policy) Validate(contentType string, size int64) error {
	mediaType := normalizeType(contentType)
	if !p.allows(mediaType) {
		return &ValidationError{
			Code:    CodeInvalidType,
			Message: fmt.Sprintf("invalid file type %q: allowed types are %s", contentType, strings.Join(p.AllowedTypes, ", ")),
		}
	}

	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if size > maxBytes {
		return &ValidationError{
			Code:    CodeTooLarge,
			Message: fmt.Sprintf("file too large: %d bytes exceeds the %d byte limit", size, maxBytes),
		}
	}

	return nil
}

func (p Policy) allows(mediaType string) bool {
	if mediaType == "" {
		return false
	}
	for _, allowed := range p.AllowedTypes {
		if strings.EqualFold(mediaType, strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// normalizeType drops MIME parameters and lowercases the media type
func normalizeType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(mediaType)
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// SniffContentType detects the media type from the payload bytes
func SniffContentType(data []byte) string {
	detected := mimetype.Detect(data)
	mediaType := detected.String()
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return mediaType
}
