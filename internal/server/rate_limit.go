package server

import "time"

// rateLimit counts commands in fixed windows. It belongs to the room
// goroutine and is not safe for concurrent use.
type rateLimit struct {
	limit  int
	window time.Duration
	count  int
	start  time.Time
}

func newRateLimit(perSecond int) rateLimit {
	return rateLimit{limit: perSecond, window: time.Second}
}

// allow reports whether one more command fits the current window.
func (l *rateLimit) allow(now time.Time) bool {
	if l.limit <= 0 {
		return true
	}
	if now.Sub(l.start) >= l.window {
		l.start, l.count = now, 0
	}
	if l.count >= l.limit {
		return false
	}
	l.count++
	return true
}
