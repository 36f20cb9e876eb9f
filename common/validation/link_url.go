package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// CodeInvalidURL marks a link target that cannot be written into content
const CodeInvalidURL ErrorCode = "invalid-url"

// LinkURLValidator checks link targets before they are written into HTML.
// Site-relative paths and absolute http/https URLs are accepted.
type LinkURLValidator struct {
	allowedSchemes  map[string]bool
	blockedPatterns []string
}

// NewLinkURLValidator creates a validator allowing http and https
func NewLinkURLValidator() *LinkURLValidator {
	return &LinkURLValidator{
		allowedSchemes: map[string]bool{
			"http":  true,
			"https": true,
		},
		blockedPatterns: []string{
			"../",
			"..\\",
			"%2e%2e/",
			"%2e%2e%2f",
			"..%2f",
			"%2e%2e%5c",
			"..%5c",
		},
	}
}

// Validate returns a *ValidationError when target is unsafe to link to
func (v *LinkURLValidator) Validate(target string) error {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return invalidURL(target, "link URL is required")
	}

	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return invalidURL(target, "link URL contains control characters")
		}
	}

	lowered := strings.ToLower(trimmed)
	for _, pattern := range v.blockedPatterns {
		if strings.Contains(lowered, pattern) {
			return invalidURL(target, fmt.Sprintf("link URL contains blocked pattern %q", pattern))
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return invalidURL(target, fmt.Sprintf("invalid link URL: %v", err))
	}

	if parsed.Scheme == "" {
		// protocol-relative URLs would leave the site
		if !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") {
			return invalidURL(target, "relative link URL must start with a single /")
		}
		return nil
	}

	if !v.allowedSchemes[strings.ToLower(parsed.Scheme)] {
		return invalidURL(target, fmt.Sprintf("link URL scheme %q is not allowed (only http/https permitted)", parsed.Scheme))
	}
	if parsed.Hostname() == "" {
		return invalidURL(target, "absolute link URL needs a host")
	}

	return nil
}

func invalidURL(target, msg string) error {
	return &ValidationError{
		Code:    CodeInvalidURL,
		Message: fmt.Sprintf("%s: %q", msg, target),
	}
}
