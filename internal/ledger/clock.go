package ledger

import (
	"math"
	"time"
)

// Timestamp is a point in time in microseconds since the Unix epoch.
type Timestamp int64

// Duration is a span of time in microseconds.
type Duration int64

// Common durations.
const (
	Microsecond Duration = 1
	Millisecond          = 1000 * Microsecond
	Second               = 1000 * Millisecond
	Minute               = 60 * Second
	Hour                 = 60 * Minute
	Day                  = 24 * Hour
)

// FromTime converts a wall-clock time.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Time converts back to a UTC wall-clock time.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// Add returns t+d, saturating at the int64 bounds.
func (t Timestamp) Add(d Duration) Timestamp {
	if d > 0 && int64(t) > math.MaxInt64-int64(d) {
		return Timestamp(math.MaxInt64)
	}
	if d < 0 && int64(t) < math.MinInt64-int64(d) {
		return Timestamp(math.MinInt64)
	}
	return t + Timestamp(d)
}

// FromStd converts a time.Duration, truncating below one microsecond.
func FromStd(d time.Duration) Duration {
	return Duration(d / time.Microsecond)
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d) * time.Microsecond
}

// Expiry is either "never" or a concrete instant.
// The zero value never expires.
type Expiry struct {
	Finite bool
	At     Timestamp
}

// Never returns an expiry that is always in the future.
func Never() Expiry {
	return Expiry{}
}

// ExpiresAt returns an expiry at t.
func ExpiresAt(t Timestamp) Expiry {
	return Expiry{Finite: true, At: t}
}

// After reports whether the expiry lies strictly after now.
func (e Expiry) After(now Timestamp) bool {
	return !e.Finite || e.At > now
}

// IssueGate records when an issuer last minted.
//
// A closed gate blocks minting entirely (pending applicants). An open gate
// allows the next mint once the wait has elapsed since At. The zero value is
// closed.
type IssueGate struct {
	Open bool
	At   Timestamp
}

// Blocked returns a closed gate.
func Blocked() IssueGate {
	return IssueGate{}
}

// IssuedAt returns an open gate last used at t.
func IssuedAt(t Timestamp) IssueGate {
	return IssueGate{Open: true, At: t}
}

// Allows reports whether a mint at now clears the gate.
func (g IssueGate) Allows(now Timestamp, wait Duration) bool {
	return g.Open && now > g.At.Add(wait)
}
