// Package session holds the server side time authority, the session token
// format and the reconciliation of client answer snapshots.
package session

import (
	"sync"
	"time"
)

// Clock is the only source of "now" for session decisions. Client supplied
// timestamps never reach it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Deadline is startedAt plus the exam duration.
func Deadline(startedAt time.Time, durationMinutes int) time.Time {
	return startedAt.Add(time.Duration(durationMinutes) * time.Minute)
}

// Remaining is the time left before the deadline, never negative. It is
// recomputed on every request from server anchored inputs.
func Remaining(now, startedAt time.Time, durationMinutes int) time.Duration {
	return RemainingUntil(now, Deadline(startedAt, durationMinutes))
}

// RemainingUntil is Remaining for an already persisted deadline.
func RemainingUntil(now, deadline time.Time) time.Duration {
	left := deadline.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether now is strictly past the deadline. A request landing
// exactly on the deadline is still accepted.
func Expired(now, deadline time.Time) bool {
	return now.After(deadline)
}

// EffectiveSubmitTime is when a submit takes effect: now, or the deadline for
// a late request.
func EffectiveSubmitTime(now, deadline time.Time) time.Time {
	if Expired(now, deadline) {
		return deadline
	}
	return now
}
