// Package ratelimit contains the bounded, server-guided retry policy for
// rate-limited calls and an advisory throttle-state tracker shared across
// logical calls.
package ratelimit
