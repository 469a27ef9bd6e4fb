// Package actions provides the built-in action handlers wired into the
// response engine at startup: source blocklisting and token revocation
// backed by Redis, HTTP alert/notify/webhook delivery, file quarantine,
// and ticket creation. Each handler owns one side effect and reports an
// honest success/failure result; none of them panic outward.
package actions

import (
	"time"
)

const defaultHTTPTimeout = 10 * time.Second

// paramString reads a string parameter with a fallback.
func paramString(params map[string]any, key, fallback string) string {
	if params == nil {
		return fallback
	}
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// paramDuration reads a duration parameter expressed as a string ("24h").
func paramDuration(params map[string]any, key string, fallback time.Duration) time.Duration {
	if params == nil {
		return fallback
	}
	if v, ok := params[key].(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
