// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies an upstream failure for retry policy.
type Kind int

const (
	// KindRateLimited covers HTTP 429 and quota-exceeded signatures;
	// retried with backoff.
	KindRateLimited Kind = iota

	// KindTransient covers 5xx and network timeouts; retried with backoff.
	KindTransient

	// KindPermanent covers everything else; fails immediately.
	KindPermanent
)

// String returns the taxonomy name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient_upstream"
	default:
		return "permanent_upstream"
	}
}

// Sentinel errors for the upstream failure taxonomy. WithResilience wraps its
// terminal error with one of these so callers can errors.Is on the class.
var (
	ErrRateLimited       = errors.New("upstream rate limited")
	ErrTransientUpstream = errors.New("transient upstream failure")
	ErrPermanentUpstream = errors.New("permanent upstream failure")
)

// Sentinel returns the sentinel error for the kind.
func (k Kind) Sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindTransient:
		return ErrTransientUpstream
	default:
		return ErrPermanentUpstream
	}
}

// StatusError reports a non-200 response from an upstream API. Source
// clients return it so the retry policy can classify by status code.
type StatusError struct {
	Source string
	Status int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Source, e.Status)
}

// quotaSignatures are message fragments that mark a rate-limit response even
// when the status code is not 429.
var quotaSignatures = []string{
	"rate limit",
	"too many requests",
	"quota exceeded",
	"quota_exceeded",
}

// Classify maps an upstream error to its retry kind.
func Classify(err error) Kind {
	if err == nil {
		return KindPermanent
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == 429:
			return KindRateLimited
		case se.Status >= 500:
			return KindTransient
		default:
			return KindPermanent
		}
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return KindRateLimited
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTransient
	}

	return KindPermanent
}
