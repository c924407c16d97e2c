package domain

import "time"

// RateLimitPolicy is a fixed-window request budget for one scope.
type RateLimitPolicy struct {
	Scope    string
	Requests int
	Window   time.Duration
}

const (
	RateLimitScopeIP   = "ip"
	RateLimitScopeAuth = "auth"
)
