package poster

import (
	"sync/atomic"
	"time"
)

// IdleClock tracks a channel's last-incoming-message timestamp.
// Single-writer (the event handler that observes inbound PRIVMSGs),
// multi-reader (every ChannelPoster's idle gate). A racy read is
// acceptable here; it only feeds an idle heuristic (spec.md §5).
type IdleClock struct {
	nanos atomic.Int64
}

// NewIdleClock returns a clock initialized to the current time, so a
// freshly joined channel is treated as just having been spoken in
// rather than immediately eligible for posting.
func NewIdleClock() *IdleClock {
	c := &IdleClock{}
	c.Touch()
	return c
}

// Touch records now as the last-incoming-message time.
func (c *IdleClock) Touch() {
	c.nanos.Store(time.Now().UnixNano())
}

// Since returns the duration elapsed since the last touch.
func (c *IdleClock) Since() time.Duration {
	return time.Since(time.Unix(0, c.nanos.Load()))
}
