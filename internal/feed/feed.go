// Package feed implements the FeedReader worker: one long-lived
// goroutine per (channel, feed) that polls its seed URLs on a jittered
// schedule, runs the entry pipeline, and hands the resulting Feed to
// its channel's queue.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/dedup"
	"github.com/alexott/ircfeedbot/internal/entry"
)

// Feed is the result of one poll cycle: single-producer (the
// FeedReader that built it), single-consumer (the ChannelPoster that
// drains the channel queue). No concurrent mutation once enqueued.
type Feed struct {
	Channel string
	Name    string
	Config  config.FeedConfig

	Entries     []entry.Entry
	NumURLsRead int

	// MinChannelIdleTime is resolved at build time from Config.PeriodHours
	// per SPEC_FULL.md §6: feeds polling at PERIOD_HOURS_MIN are exempt
	// from idle gating.
	MinChannelIdleTime time.Duration

	unposted []entry.Entry
	postable []entry.Entry
	resolved bool
}

// UnpostedEntries returns the entries not already recorded in store
// under the feed's configured dedup scope, preserving order. The
// result is cached on the Feed.
func (f *Feed) UnpostedEntries(ctx context.Context, store *dedup.Store) ([]entry.Entry, error) {
	if f.resolved {
		return f.unposted, nil
	}
	if err := f.resolvePostable(ctx, store); err != nil {
		return nil, err
	}
	return f.unposted, nil
}

// PostableEntries returns UnpostedEntries, truncated to the new-feed
// cap when (channel, feed) has no prior DedupStore rows, and with
// ShortURL populated when shortening is enabled. The result is cached
// on the Feed; call UnpostedEntries or PostableEntries first to
// trigger resolution, whichever the caller needs.
func (f *Feed) PostableEntries(ctx context.Context, store *dedup.Store, shorten Shortener, newFeedPostsMax map[string]int) ([]entry.Entry, error) {
	if f.postable != nil {
		return f.postable, nil
	}
	if !f.resolved {
		if err := f.resolvePostable(ctx, store); err != nil {
			return nil, err
		}
	}
	postable := f.unposted

	isNew, err := store.IsNewFeed(ctx, f.Channel, f.Name)
	if err != nil {
		return nil, fmt.Errorf("check new feed %s/%s: %w", f.Channel, f.Name, err)
	}
	if isNew {
		maxPosts := newFeedPostsMax[f.Config.New]
		if maxPosts >= 0 && len(postable) > maxPosts {
			postable = postable[:maxPosts]
		}
	}

	if f.Config.Shorten && shorten != nil && len(postable) > 0 {
		longURLs := make([]string, len(postable))
		for i, e := range postable {
			longURLs[i] = e.LongURL
		}
		shortURLs, err := shorten.Shorten(ctx, longURLs)
		if err != nil {
			return nil, fmt.Errorf("shorten urls for %s/%s: %w", f.Channel, f.Name, err)
		}
		for i := range postable {
			postable[i].ShortURL = shortURLs[i]
		}
	}

	f.postable = postable
	return f.postable, nil
}

func (f *Feed) resolvePostable(ctx context.Context, store *dedup.Store) error {
	longURLs := make([]string, len(f.Entries))
	for i, e := range f.Entries {
		longURLs[i] = e.LongURL
	}

	var unpostedURLs []string
	var err error
	if f.Config.Dedup == "channel" {
		unpostedURLs, err = store.SelectUnpostedForChannel(ctx, f.Channel, longURLs)
	} else {
		unpostedURLs, err = store.SelectUnpostedForFeed(ctx, f.Channel, f.Name, longURLs)
	}
	if err != nil {
		return fmt.Errorf("select unposted for %s/%s: %w", f.Channel, f.Name, err)
	}

	keep := make(map[string]struct{}, len(unpostedURLs))
	for _, u := range unpostedURLs {
		keep[u] = struct{}{}
	}
	unposted := make([]entry.Entry, 0, len(unpostedURLs))
	for _, e := range f.Entries {
		if _, ok := keep[e.LongURL]; ok {
			unposted = append(unposted, e)
		}
	}

	f.unposted = unposted
	f.resolved = true
	return nil
}

// Shortener is the subset of *shortener.Shortener that Feed needs,
// kept as an interface so tests can substitute a fake.
type Shortener interface {
	Shorten(ctx context.Context, urls []string) ([]string, error)
}

// jitteredPeriod returns a duration uniformly distributed within
// ±percent of the configured period.
func jitteredPeriod(periodHours, percent float64) time.Duration {
	if percent <= 0 {
		return time.Duration(periodHours * float64(time.Hour))
	}
	spread := periodHours * percent / 100
	lo := periodHours - spread
	hi := periodHours + spread
	if lo < 0 {
		lo = 0
	}
	hours := lo + rand.Float64()*(hi-lo)
	return time.Duration(hours * float64(time.Hour))
}

// minChannelIdleTime implements SPEC_FULL.md §6: feeds polling at the
// minimum period are exempt from idle gating.
func minChannelIdleTime(periodHours float64, c config.Constants) time.Duration {
	if periodHours <= c.PeriodHoursMin {
		return 0
	}
	return time.Duration(c.MinChannelIdleTimeDefault * float64(time.Second))
}
