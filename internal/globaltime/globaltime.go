package globaltime

import "time"

// UTC returns the current time in UTC. All timestamps written by this
// service go through here so tests and migrations agree on the zone.
func UTC() time.Time {
	return time.Now().UTC()
}
