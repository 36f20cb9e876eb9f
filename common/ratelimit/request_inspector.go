package ratelimit

import "net/http"

// RequestTier groups upload requests by how much work they cause
type RequestTier string

const (
	TierLight    RequestTier = "light"    // deletes
	TierStandard RequestTier = "standard" // single-file uploads
	TierHeavy    RequestTier = "heavy"    // batch uploads and oversized bodies
)

// heavyBodyBytes marks a single upload as heavy
const heavyBodyBytes int64 = 8 << 20

// RequestProfile describes an incoming upload request
type RequestProfile struct {
	Tier          RequestTier
	Method        string
	ContentLength int64
	Batch         bool
}

// InspectRequest decides the tier of an upload request from its method and
// declared body size. Unknown sizes (-1) are treated as small.
func InspectRequest(method string, contentLength int64) RequestProfile {
	profile := RequestProfile{
		Method:        method,
		ContentLength: contentLength,
		Batch:         method == http.MethodPut,
	}
	profile.Tier = determineTier(method, contentLength)
	return profile
}

func determineTier(method string, contentLength int64) RequestTier {
	switch {
	case method == http.MethodDelete:
		return TierLight
	case method == http.MethodPut:
		return TierHeavy
	case contentLength > heavyBodyBytes:
		return TierHeavy
	default:
		return TierStandard
	}
}

// String returns a human-readable description of the tier
func (t RequestTier) String() string {
	switch t {
	case TierLight, TierStandard, TierHeavy:
		return string(t)
	default:
		return "unknown"
	}
}
