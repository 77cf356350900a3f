// Package clock abstracts wall-clock reads so TTL expiry and retention
// windows can be tested without sleeping.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// Real implements Clock using the standard library.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Since returns the elapsed wall time since t.
func (Real) Since(t time.Time) time.Duration {
	return time.Since(t)
}
