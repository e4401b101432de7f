// Package clock defines the time source shared by logging, the batch runner and
// progress events so tests can pin timestamps.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}
