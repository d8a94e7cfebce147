package monitor

import "time"

// NextFire returns the next occurrence of hour:minute after now, in
// now's location. A time earlier today rolls over to tomorrow.
func NextFire(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}
