package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/entry"
	"github.com/alexott/ircfeedbot/internal/fetcher"
	"github.com/alexott/ircfeedbot/internal/parsers"
)

// URLFetcher is the subset of *fetcher.Fetcher a Reader needs.
type URLFetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Result, error)
}

// Barrier is the subset of *barrier.Barrier a Reader needs.
type Barrier interface {
	Wait()
}

// Reader is one long-lived worker for a single (channel, feed) pair.
type Reader struct {
	Channel string
	Name    string
	Config  config.FeedConfig

	Fetcher  URLFetcher
	Patterns *entry.PatternCache
	Barrier  Barrier // nil when the feed has no group

	Constants config.Constants

	// Queue is the channel's bounded inbox; enqueue uses a non-blocking
	// send first, falling back to a blocking send on Full (spec.md §4.3
	// step 6).
	Queue chan<- *Feed

	ChannelJoin <-chan struct{}
	AlertsJoin  <-chan struct{}

	Alert func(format string, args ...any)
	Log   *slog.Logger

	Once bool
}

// Run executes the Reader's lifecycle until ctx is done. Per-iteration
// errors are trapped, alerted, and do not stop the loop (spec.md §7).
func (r *Reader) Run(ctx context.Context) {
	select {
	case <-r.ChannelJoin:
	case <-ctx.Done():
		return
	}
	select {
	case <-r.AlertsJoin:
	case <-ctx.Done():
		return
	}

	queryTime := time.Now().Add(jitteredPeriod(r.Config.PeriodHours, 0) / 2)
	if !sleepUntil(ctx, queryTime) {
		return
	}

	for {
		if err := r.poll(ctx); err != nil {
			r.alertf("feed %s/%s: poll failed: %v", r.Channel, r.Name, err)
		}

		if r.Once {
			return
		}

		now := time.Now()
		next := queryTime.Add(jitteredPeriod(r.Config.PeriodHours, r.Constants.PeriodRandomPercent))
		if next.Before(now) {
			next = now
		}
		queryTime = next
		if !sleepUntil(ctx, queryTime) {
			return
		}
	}
}

// poll runs one fetch-parse-filter-enqueue cycle.
func (r *Reader) poll(ctx context.Context) error {
	parse, selector, err := parsers.Select(r.Config)
	if err != nil {
		return fmt.Errorf("select parser: %w", err)
	}

	urlsPending := append([]string(nil), r.Config.URLs...)
	urlsRead := make(map[string]struct{}, len(urlsPending))
	var entries []entry.Entry
	numRead := 0

	for len(urlsPending) > 0 {
		u := urlsPending[0]
		urlsPending = urlsPending[1:]
		if _, seen := urlsRead[u]; seen {
			continue
		}
		urlsRead[u] = struct{}{}
		numRead++

		res, err := r.Fetcher.Fetch(ctx, u)
		if err != nil {
			r.Log.Warn("fetch failed", "channel", r.Channel, "feed", r.Name, "url", u, "error", err)
			if len(urlsPending) > 0 {
				sleepFor(ctx, time.Duration(r.Constants.SecondsBetweenFeedURLs*float64(time.Second)))
			}
			continue
		}

		parsed, follow, err := parse(selector, res.Body, parsers.Meta{
			Channel:    r.Channel,
			Feed:       r.Name,
			URL:        u,
			DateFormat: r.Constants.DateFormat,
		})
		if err != nil {
			return fmt.Errorf("parse %s: %w", u, err)
		}

		if len(parsed) == 0 {
			if r.Config.AlertsEmpty {
				r.alertf("feed %s/%s: %s produced zero entries", r.Channel, r.Name, u)
			} else {
				r.Log.Warn("empty parse", "channel", r.Channel, "feed", r.Name, "url", u)
			}
		}
		entries = append(entries, parsed...)

		for _, fu := range follow {
			if _, seen := urlsRead[fu]; !seen {
				urlsPending = append(urlsPending, fu)
			}
		}

		if len(urlsPending) > 0 {
			if !sleepFor(ctx, time.Duration(r.Constants.SecondsBetweenFeedURLs*float64(time.Second))) {
				return ctx.Err()
			}
		}
	}

	entries, err = entry.Process(entries, r.Channel, r.Name, r.Config, r.Patterns, r.Constants.TitleMaxBytes, r.Log)
	if err != nil {
		return fmt.Errorf("process entries: %w", err)
	}

	if r.Barrier != nil {
		r.Barrier.Wait()
	}

	f := &Feed{
		Channel:            r.Channel,
		Name:               r.Name,
		Config:             r.Config,
		Entries:            entries,
		NumURLsRead:        numRead,
		MinChannelIdleTime: minChannelIdleTime(r.Config.PeriodHours, r.Constants),
	}
	r.enqueue(ctx, f)
	return nil
}

func (r *Reader) enqueue(ctx context.Context, f *Feed) {
	select {
	case r.Queue <- f:
		return
	default:
	}
	r.alertf("feed %s/%s: channel queue full, blocking", r.Channel, r.Name)
	select {
	case r.Queue <- f:
	case <-ctx.Done():
	}
}

func (r *Reader) alertf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Log.Error(msg)
	if r.Alert != nil {
		r.Alert(msg)
	}
}

// sleepUntil sleeps until t or ctx is done, reporting whether it
// completed without cancellation.
func sleepUntil(ctx context.Context, t time.Time) bool {
	return sleepFor(ctx, time.Until(t))
}

func sleepFor(ctx context.Context, d time.Duration) bool {
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
