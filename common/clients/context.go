package clients

import "context"

// Headers the content API reads caller identity from
const (
	HeaderUserID    = "X-User-ID"
	HeaderRequestID = "X-Request-ID"
)

type contextKey string

const (
	userIDKey    contextKey = "user-id"
	requestIDKey contextKey = "request-id"
)

// WithUserID attaches the caller's user ID; HTTPClient sends it as X-User-ID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user ID and whether a non-empty one is set
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// WithRequestID attaches a request ID; HTTPClient sends it as X-Request-ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID and whether a non-empty one is set
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok && requestID != ""
}
