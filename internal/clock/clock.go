// Package clock provides the application's notion of "now". Every component
// that compares against the current time receives a Clock instead of calling
// time.Now directly, so a configured minute offset (or a fixed instant in
// tests) applies uniformly.
package clock

import "time"

// Clock reports the logical current time.
type Clock interface {
	Now() time.Time
}

// Offset is wall-clock UTC time shifted by a fixed number of minutes.
// The offset is set once at startup and never changes afterwards.
type Offset struct {
	Minutes int
}

// Now returns time.Now().UTC() plus the configured offset.
func (o Offset) Now() time.Time {
	return time.Now().UTC().Add(time.Duration(o.Minutes) * time.Minute)
}

// Fixed always reports the same instant.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return f.T }

// New returns an Offset clock for the given minute offset.
func New(offsetMinutes int) Clock { return Offset{Minutes: offsetMinutes} }

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }
