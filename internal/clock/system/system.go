// Package system provides the wall clock used outside tests.
package system

import "time"

// Clock reports the current time in UTC. Scraped timestamps are stored without a zone.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to microseconds, the resolution Postgres keeps.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
