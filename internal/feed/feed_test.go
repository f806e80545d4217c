package feed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/dedup"
	"github.com/alexott/ircfeedbot/internal/entry"
)

func openTestStore(t *testing.T) *dedup.Store {
	t.Helper()
	store, err := dedup.Open(filepath.Join(t.TempDir(), "dedup.db"))
	if err != nil {
		t.Fatalf("open dedup store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type fakeShortener struct {
	calls [][]string
}

func (f *fakeShortener) Shorten(_ context.Context, urls []string) ([]string, error) {
	f.calls = append(f.calls, urls)
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = "https://short/" + u
	}
	return out, nil
}

func TestUnpostedEntries_FeedScope(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.InsertPosted(ctx, "#chan", "myfeed", []string{"https://a"}); err != nil {
		t.Fatalf("insert posted: %v", err)
	}

	f := &Feed{
		Channel: "#chan",
		Name:    "myfeed",
		Config:  config.FeedConfig{Dedup: "feed"},
		Entries: []entry.Entry{
			{LongURL: "https://a"},
			{LongURL: "https://b"},
		},
	}

	unposted, err := f.UnpostedEntries(ctx, store)
	if err != nil {
		t.Fatalf("unposted entries: %v", err)
	}
	if len(unposted) != 1 || unposted[0].LongURL != "https://b" {
		t.Fatalf("expected only b unposted, got %+v", unposted)
	}
}

func TestUnpostedEntries_ChannelScopeCrossFeed(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.InsertPosted(ctx, "#chan", "other-feed", []string{"https://a"}); err != nil {
		t.Fatalf("insert posted: %v", err)
	}

	f := &Feed{
		Channel: "#chan",
		Name:    "myfeed",
		Config:  config.FeedConfig{Dedup: "channel"},
		Entries: []entry.Entry{
			{LongURL: "https://a"},
			{LongURL: "https://b"},
		},
	}

	unposted, err := f.UnpostedEntries(ctx, store)
	if err != nil {
		t.Fatalf("unposted entries: %v", err)
	}
	if len(unposted) != 1 || unposted[0].LongURL != "https://b" {
		t.Fatalf("expected only b unposted under channel scope, got %+v", unposted)
	}
}

func TestPostableEntries_NewFeedCap(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	entries := make([]entry.Entry, 12)
	for i := range entries {
		entries[i] = entry.Entry{LongURL: string(rune('a' + i))}
	}

	f := &Feed{
		Channel: "#chan",
		Name:    "myfeed",
		Config:  config.FeedConfig{Dedup: "feed", New: "5"},
		Entries: entries,
	}

	postable, err := f.PostableEntries(ctx, store, nil, map[string]int{"5": 5, "all": -1})
	if err != nil {
		t.Fatalf("postable entries: %v", err)
	}
	if len(postable) != 5 {
		t.Fatalf("expected new-feed cap of 5, got %d", len(postable))
	}

	unposted, err := f.UnpostedEntries(ctx, store)
	if err != nil {
		t.Fatalf("unposted entries: %v", err)
	}
	if len(unposted) != 12 {
		t.Fatalf("unposted must retain all 12 entries regardless of the cap, got %d", len(unposted))
	}
}

func TestPostableEntries_UncappedWhenNotNew(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if err := store.InsertPosted(ctx, "#chan", "myfeed", []string{"https://prior"}); err != nil {
		t.Fatalf("seed prior post: %v", err)
	}

	entries := make([]entry.Entry, 12)
	for i := range entries {
		entries[i] = entry.Entry{LongURL: string(rune('a' + i))}
	}

	f := &Feed{
		Channel: "#chan",
		Name:    "myfeed",
		Config:  config.FeedConfig{Dedup: "feed", New: "5"},
		Entries: entries,
	}

	postable, err := f.PostableEntries(ctx, store, nil, map[string]int{"5": 5})
	if err != nil {
		t.Fatalf("postable entries: %v", err)
	}
	if len(postable) != 12 {
		t.Fatalf("established feed must not be capped, got %d", len(postable))
	}
}

func TestPostableEntries_ShortenPopulatesShortURL(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	short := &fakeShortener{}

	f := &Feed{
		Channel: "#chan",
		Name:    "myfeed",
		Config:  config.FeedConfig{Dedup: "feed", New: "all", Shorten: true},
		Entries: []entry.Entry{{LongURL: "https://a"}},
	}

	postable, err := f.PostableEntries(ctx, store, short, map[string]int{"all": -1})
	if err != nil {
		t.Fatalf("postable entries: %v", err)
	}
	if len(postable) != 1 || postable[0].ShortURL != "https://short/https://a" {
		t.Fatalf("expected short url populated, got %+v", postable)
	}
	if len(short.calls) != 1 {
		t.Fatalf("expected exactly one shorten batch call, got %d", len(short.calls))
	}
}

func TestMinChannelIdleTime_ExemptAtMinPeriod(t *testing.T) {
	c := config.DefaultConstants()
	if d := minChannelIdleTime(c.PeriodHoursMin, c); d != 0 {
		t.Fatalf("expected zero idle time at PeriodHoursMin, got %v", d)
	}
	if d := minChannelIdleTime(c.PeriodHoursDefault, c); d <= 0 {
		t.Fatalf("expected positive idle time above PeriodHoursMin, got %v", d)
	}
}

func TestJitteredPeriod_WithinBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := jitteredPeriod(4, 10)
		if d < 0 {
			t.Fatalf("jittered period must not be negative, got %v", d)
		}
	}
}
