package chat

import (
	"context"
	"sync"
)

// FakeClient is a test double for Client, used by poster/orchestrator
// tests that need a chat client without a network connection. Safe for
// concurrent use: Send and the connected flag are guarded, since an
// orchestrator test drives it from several worker goroutines at once.
type FakeClient struct {
	mu        sync.Mutex
	connected bool
	sent      []FakeSend

	onJoin    func(hostmask, channel string)
	onPrivmsg func(hostmask, target, text string)
}

// FakeSend records one Send call.
type FakeSend struct {
	Target, Text string
}

// NewFake returns a disconnected FakeClient.
func NewFake() *FakeClient { return &FakeClient{} }

// Connect implements Client.
func (f *FakeClient) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

// Connected implements Client.
func (f *FakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Join implements Client, synchronously firing the join callback.
func (f *FakeClient) Join(channel string) {
	if f.onJoin != nil {
		f.onJoin("bot!bot@example.org", channel)
	}
}

// Send implements Client.
func (f *FakeClient) Send(target, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, FakeSend{Target: target, Text: text})
	return nil
}

// SentCount returns the number of Send calls observed so far.
func (f *FakeClient) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// SentCopy returns a snapshot of every Send call observed so far.
func (f *FakeClient) SentCopy() []FakeSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeSend, len(f.sent))
	copy(out, f.sent)
	return out
}

// OnJoin implements Client.
func (f *FakeClient) OnJoin(fn func(hostmask, channel string)) { f.onJoin = fn }

// OnPrivmsg implements Client.
func (f *FakeClient) OnPrivmsg(fn func(hostmask, target, text string)) { f.onPrivmsg = fn }

// Loop implements Client; the fake has no reactor, so it blocks until ctx is done.
func (f *FakeClient) Loop(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Deliver simulates an inbound PRIVMSG for tests.
func (f *FakeClient) Deliver(hostmask, target, text string) {
	if f.onPrivmsg != nil {
		f.onPrivmsg(hostmask, target, text)
	}
}

// SetConnected lets tests simulate a netsplit.
func (f *FakeClient) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}
