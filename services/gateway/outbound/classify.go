// Copyright (C) 2026 PetLove Community (engineering@petlovecommunity.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package outbound owns the boundary between handlers and the
// upstream HTTP client: correlation header stamping, idempotency key
// derivation, retryability classification, circuit breaking, and the
// operation pipeline that composes the idempotency cache with the
// transaction executor.
//
// The package classifies errors; it never retries on its own. Retry
// ownership lives in the transaction executor.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx upstream response surfaced as an error. It
// keeps the request line and a body excerpt so terminal failures stay
// inspectable after retries are exhausted.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s %s: status %d", e.Method, e.URL, e.StatusCode)
}

// IsRetryableStatus reports whether an HTTP status code indicates a
// transient condition: any 5xx, plus 408 (timeout), 409 (conflict),
// and 429 (rate limited). Other 4xx are permanent.
func IsRetryableStatus(code int) bool {
	if code >= 500 {
		return true
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return false
}

// IsRetryable classifies an error from an upstream call.
//
// Context cancellation and deadline expiry are never retryable: the
// caller gave up. A StatusError follows IsRetryableStatus. A breaker
// rejection is retryable (the executor backs off, giving the breaker
// time to admit probes). Everything else is a transport-level failure
// and retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return IsRetryableStatus(statusErr.StatusCode)
	}
	return true
}
