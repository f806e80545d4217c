// Package poster implements ChannelPoster: one long-lived worker per
// channel that consumes Feed objects from the channel's queue,
// respects idle-time and connection gating, posts entries at a fixed
// spacing behind the global send token, and durably records posted
// URLs (spec.md §4.4).
package poster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alexott/ircfeedbot/internal/dedup"
	"github.com/alexott/ircfeedbot/internal/entry"
	"github.com/alexott/ircfeedbot/internal/feed"
)

// Client is the subset of chat.Client a Poster needs.
type Client interface {
	Connected() bool
	Send(target, text string) error
}

// Poster is the ChannelPoster for a single channel.
type Poster struct {
	Channel string

	Queue <-chan *feed.Feed

	Store      *dedup.Store
	Shortener  feed.Shortener // nil when no feed on this channel shortens
	NewFeedMax map[string]int

	Client Client
	Clock  *IdleClock
	Token  *SendToken

	ChannelJoin <-chan struct{}
	AlertsJoin  <-chan struct{}

	MessageFormat     string
	SecondsPerMessage float64

	Alert func(format string, args ...any)
	Log   *slog.Logger
}

// Run drains Queue until ctx is done. Each feed's post cycle is
// trapped: an error alerts and the worker moves on to the next feed
// (spec.md §4.4, final paragraph).
func (p *Poster) Run(ctx context.Context) {
	select {
	case <-p.ChannelJoin:
	case <-ctx.Done():
		return
	}
	select {
	case <-p.AlertsJoin:
	case <-ctx.Done():
		return
	}

	for {
		select {
		case f, ok := <-p.Queue:
			if !ok {
				return
			}
			if err := p.postFeed(ctx, f); err != nil {
				p.alertf("channel %s: feed %s: %v", p.Channel, f.Name, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poster) postFeed(ctx context.Context, f *feed.Feed) error {
	postable, err := f.PostableEntries(ctx, p.Store, p.Shortener, p.NewFeedMax)
	if err != nil {
		return fmt.Errorf("resolve postable entries: %w", err)
	}

	if len(postable) > 0 {
		if err := p.send(ctx, f, postable); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}

	unposted, err := f.UnpostedEntries(ctx, p.Store)
	if err != nil {
		return fmt.Errorf("resolve unposted entries: %w", err)
	}
	if len(unposted) == 0 {
		return nil
	}
	urls := make([]string, len(unposted))
	for i, e := range unposted {
		urls[i] = e.LongURL
	}
	if err := p.Store.InsertPosted(ctx, f.Channel, f.Name, urls); err != nil {
		return fmt.Errorf("insert posted: %w", err)
	}
	return nil
}

// send acquires the global token, applies the idle and connection
// gates, then posts each entry, padding after every send — including
// the last — to at least SecondsPerMessage before releasing the token,
// so the next holder's first send never lands inside this batch's
// final spacing window (spec.md §8 invariant 1).
func (p *Poster) send(ctx context.Context, f *feed.Feed, postable []entry.Entry) error {
	p.Token.Acquire(p.Log)

	for {
		sleep := f.MinChannelIdleTime - p.Clock.Since()
		if sleep <= 0 {
			break
		}
		p.Token.Release()
		if !sleepCtx(ctx, sleep) {
			return ctx.Err()
		}
		p.Token.Acquire(p.Log)
	}

	for !p.Client.Connected() {
		if !sleepCtx(ctx, 5*time.Second) {
			p.Token.Release()
			return ctx.Err()
		}
	}

	defer p.Token.Release()

	pace := time.Duration(p.SecondsPerMessage * float64(time.Second))
	for _, e := range postable {
		start := time.Now()
		msg := renderMessage(p.MessageFormat, f.Name, e.Title, e.URL(f.Config.Shorten))
		if err := p.Client.Send(p.Channel, msg); err != nil {
			return fmt.Errorf("send entry %q: %w", e.LongURL, err)
		}
		if wait := pace - time.Since(start); wait > 0 {
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
		}
	}
	return nil
}

func renderMessage(format, feedName, title, url string) string {
	r := strings.NewReplacer("{feed}", feedName, "{title}", title, "{url}", url)
	return r.Replace(format)
}

func (p *Poster) alertf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.Log.Error(msg)
	if p.Alert != nil {
		p.Alert(msg)
	}
}

// sleepCtx sleeps d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
