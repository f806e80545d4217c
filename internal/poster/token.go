package poster

import "log/slog"

// SendToken is the single global mutual-exclusion primitive
// serializing all outbound sends across every channel (spec.md §5).
// Held for an entire feed's batch; released before any idle-gate
// sleep and re-acquired afterwards.
type SendToken struct {
	ch chan struct{}
}

// NewSendToken returns a token ready for acquisition.
func NewSendToken() *SendToken {
	t := &SendToken{ch: make(chan struct{}, 1)}
	t.ch <- struct{}{}
	return t
}

// Acquire takes the token, trying non-blocking first; on contention it
// logs and blocks (spec.md §4.4 step 3).
func (t *SendToken) Acquire(log *slog.Logger) {
	select {
	case <-t.ch:
		return
	default:
	}
	log.Debug("send token contended, blocking")
	<-t.ch
}

// Release returns the token.
func (t *SendToken) Release() {
	t.ch <- struct{}{}
}
