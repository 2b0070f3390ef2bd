// Package ratelimit throttles updates per user with sliding windows.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter checks one request against rule for key.
type Limiter interface {
	Check(ctx context.Context, key string, rule Rule) (*Result, error)
}

// ErrLimitExceeded indicates the rate limit has been reached for the key.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// UserKey names the bucket of one user.
func UserKey(bucket string, userID int64) string {
	return bucket + ":" + strconv.FormatInt(userID, 10)
}
