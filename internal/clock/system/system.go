// Package system provides a real clock implementation.
package system

import "time"

// Clock implements clock.Clock using time.Now. Timestamps stay in the local
// zone because log file names and record prefixes are rendered in local time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}
