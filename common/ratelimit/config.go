package ratelimit

import "fmt"

// DefaultWindowSeconds is the fixed window every upload counter uses
const DefaultWindowSeconds = 60

// TierLimit is the per-user allowance of one request tier
type TierLimit struct {
	Tier          RequestTier
	Requests      int64
	WindowSeconds int
}

var tierLabels = map[RequestTier]string{
	TierLight:    "Deletes",
	TierStandard: "Single uploads",
	TierHeavy:    "Batch or large uploads",
}

// Describe renders the allowance for 429 responses
func (l TierLimit) Describe() string {
	label, ok := tierLabels[l.Tier]
	if !ok {
		label = "Requests"
	}
	return fmt.Sprintf("%s are limited to %d requests per %d seconds", label, l.Requests, l.WindowSeconds)
}

// Limits are the allowances a RateLimiter enforces
type Limits struct {
	Global        int64
	Light         int64
	Standard      int64
	Heavy         int64
	WindowSeconds int
}

// DefaultLimits allows 300 uploads a minute service-wide and per user
// 120 deletes, 30 single uploads and 6 batch uploads a minute
func DefaultLimits() Limits {
	return LimitsFor(300, 30)
}

// LimitsFor derives the tier allowances from a per-user upload budget.
// Deletes get four times the budget, batches a fifth of it, never below one.
func LimitsFor(global, user int64) Limits {
	if user < 1 {
		user = 1
	}
	heavy := user / 5
	if heavy < 1 {
		heavy = 1
	}
	return Limits{
		Global:        global,
		Light:         user * 4,
		Standard:      user,
		Heavy:         heavy,
		WindowSeconds: DefaultWindowSeconds,
	}
}

// Tier returns the allowance of a tier; unknown tiers get the heavy one
func (l Limits) Tier(tier RequestTier) TierLimit {
	window := l.WindowSeconds
	if window <= 0 {
		window = DefaultWindowSeconds
	}
	switch tier {
	case TierLight:
		return TierLimit{Tier: TierLight, Requests: l.Light, WindowSeconds: window}
	case TierStandard:
		return TierLimit{Tier: TierStandard, Requests: l.Standard, WindowSeconds: window}
	default:
		return TierLimit{Tier: TierHeavy, Requests: l.Heavy, WindowSeconds: window}
	}
}

// Tiers lists every tier allowance, lightest first
func (l Limits) Tiers() []TierLimit {
	return []TierLimit{l.Tier(TierLight), l.Tier(TierStandard), l.Tier(TierHeavy)}
}

// MaxTierRequests is the largest per-tier allowance
func (l Limits) MaxTierRequests() int64 {
	return max(l.Light, l.Standard, l.Heavy)
}
