package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.ini")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts

[#news/hn]
url = https://example.org/rss
period = 1
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if inst.Host != "irc.example.org" {
		t.Errorf("Host = %q, want irc.example.org", inst.Host)
	}
	feed, ok := inst.Feeds["#news"]["hn"]
	if !ok {
		t.Fatalf("feed #news/hn not found in %v", inst.Feeds)
	}
	if len(feed.URLs) != 1 || feed.URLs[0] != "https://example.org/rss" {
		t.Errorf("URLs = %v", feed.URLs)
	}
	if feed.PeriodHours != 1 {
		t.Errorf("PeriodHours = %v, want 1", feed.PeriodHours)
	}
	if feed.Dedup != "feed" {
		t.Errorf("Dedup = %q, want feed (default)", feed.Dedup)
	}
}

func TestLoad_DefaultsMergeAndOverride(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts

[Defaults]
period = 6
dedup = channel
https = true

[#news/hn]
url = https://example.org/rss
dedup = feed
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	feed := inst.Feeds["#news"]["hn"]
	if feed.PeriodHours != 6 {
		t.Errorf("PeriodHours = %v, want inherited 6", feed.PeriodHours)
	}
	if feed.Dedup != "feed" {
		t.Errorf("Dedup = %q, want overridden feed", feed.Dedup)
	}
	if !feed.HTTPS {
		t.Errorf("HTTPS = false, want inherited true")
	}
}

func TestLoad_ParsesNestedJSONFields(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts

[#news/hn]
url = https://example.org/rss
blacklist = {"title": ["(?i)sponsored"]}
whitelist = {"url": ["^https://example\\.org"]}
format = {"str": {"title": "{title} [HN]"}}
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	feed := inst.Feeds["#news"]["hn"]
	if len(feed.Blacklist.Title) != 1 || feed.Blacklist.Title[0] != "(?i)sponsored" {
		t.Errorf("Blacklist.Title = %v", feed.Blacklist.Title)
	}
	if len(feed.Whitelist.URL) != 1 {
		t.Errorf("Whitelist.URL = %v", feed.Whitelist.URL)
	}
	if feed.Format.Str.Title != "{title} [HN]" {
		t.Errorf("Format.Str.Title = %q", feed.Format.Str.Title)
	}
}

func TestLoad_MissingPasswordEnv(t *testing.T) {
	os.Unsetenv("IRC_PASSWORD")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts

[#news/hn]
url = https://example.org/rss
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing IRC_PASSWORD")
	}
}

func TestLoad_MissingRequiredBotSettings(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing nick/alerts_channel")
	}
}

func TestLoad_DedupAndCacheDefaults(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts

[#news/hn]
url = https://example.org/rss
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if inst.DedupPath != "feedbot.db" {
		t.Errorf("DedupPath = %q, want default feedbot.db", inst.DedupPath)
	}
	if inst.CacheDir != "cache" {
		t.Errorf("CacheDir = %q, want default cache", inst.CacheDir)
	}
	if inst.ShortenerEndpoint != "" {
		t.Errorf("ShortenerEndpoint = %q, want empty default", inst.ShortenerEndpoint)
	}
}

func TestLoad_DedupAndCacheOverride(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts
dedup_db = /var/lib/feedbot/state.db
cache_dir = /var/lib/feedbot/cache
shortener_endpoint = https://bit.ly

[#news/hn]
url = https://example.org/rss
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if inst.DedupPath != "/var/lib/feedbot/state.db" {
		t.Errorf("DedupPath = %q", inst.DedupPath)
	}
	if inst.CacheDir != "/var/lib/feedbot/cache" {
		t.Errorf("CacheDir = %q", inst.CacheDir)
	}
	if inst.ShortenerEndpoint != "https://bit.ly" {
		t.Errorf("ShortenerEndpoint = %q", inst.ShortenerEndpoint)
	}
}

func TestLoad_ConstantOverrides(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts
title_max_bytes = 140
cache_maxsize_url_netloc = 128
new_feed_posts_max = {"all": -1, "default": 1}

[#news/hn]
url = https://example.org/rss
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if inst.Constants.TitleMaxBytes != 140 {
		t.Errorf("TitleMaxBytes = %d, want 140", inst.Constants.TitleMaxBytes)
	}
	if inst.Constants.CacheMaxsizeURLNetloc != 128 {
		t.Errorf("CacheMaxsizeURLNetloc = %d, want 128", inst.Constants.CacheMaxsizeURLNetloc)
	}
	if inst.Constants.NewFeedPostsMax["default"] != 1 {
		t.Errorf("NewFeedPostsMax[default] = %d, want 1", inst.Constants.NewFeedPostsMax["default"])
	}
}

func TestLoad_DateFormatOverride(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts
date_format = %Y-%m-%d

[#news/hn]
url = https://example.org/rss
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if inst.Constants.DateFormat != "2006-01-02" {
		t.Errorf("DateFormat = %q, want 2006-01-02", inst.Constants.DateFormat)
	}
}

func TestLoad_DeprecatedJmesAlias(t *testing.T) {
	t.Setenv("IRC_PASSWORD", "secret")

	path := writeConfig(t, `[Bot]
host = irc.example.org
nick = feedbot
alerts_channel = #alerts

[#news/api]
url = https://example.org/feed.json
jmes = entries[].{title: headline, url: link}
`)

	inst, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	feed := inst.Feeds["#news"]["api"]
	if feed.JMESPath == nil || feed.JMESPath.Select == "" {
		t.Fatalf("JMESPath not populated from deprecated jmes key: %+v", feed)
	}
}
