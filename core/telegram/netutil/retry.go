// Package netutil classifies Bot API call failures for the retrying senders.
package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// MaxFloodWait caps how long a single retry waits on a flood-control answer.
const MaxFloodWait = 30 * time.Second

// ShouldRetry reports whether a failed Bot API call is worth retrying: transient
// dial/timeout failures, flood control and server side errors.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := FloodWait(err); ok {
		return true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return isTransientNet(err)
}

// FloodWait returns the wait Telegram asked for in a 429 answer.
func FloodWait(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	wait := time.Duration(flood.RetryAfter) * time.Second
	if wait > MaxFloodWait {
		wait = MaxFloodWait
	}
	return wait, true
}

// RetryDelay is the pause before attempt+1: the flood wait when Telegram sent one,
// otherwise linear backoff.
func RetryDelay(err error, attempt int, backoff time.Duration) time.Duration {
	if wait, ok := FloodWait(err); ok && wait > 0 {
		return wait
	}
	return backoff * time.Duration(attempt)
}

func isTransientNet(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() || netErr.Temporary() {
			return true
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
		if nested, ok := opErr.Err.(net.Error); ok {
			if nested.Timeout() || nested.Temporary() {
				return true
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return isTransientNet(urlErr.Err)
		}
	}
	return false
}
