// Package config loads the bot's instance configuration: the IRC
// connection settings, the global tunables, and the per-channel,
// per-feed configuration tree.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ini/ini"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FeedConfig is the immutable, merged (defaults + per-feed overrides)
// configuration for one (channel, feed) pair.
type FeedConfig struct {
	URLs []string `json:"url"`

	// PeriodHours is the average hours between polls, before jitter.
	PeriodHours float64 `json:"period"`

	// Exactly one of these parser selectors may be set; if none is
	// set the default feedparser (gofeed) is used.
	Hext     *ParserSelector `json:"hext,omitempty"`
	JMESPath *ParserSelector `json:"jmespath,omitempty"`
	Pandas   *ParserSelector `json:"pandas,omitempty"`

	Blacklist PatternLists `json:"blacklist"`
	Whitelist PatternLists `json:"whitelist"`

	Sub SubConfig `json:"sub"`

	Format FormatConfig `json:"format"`

	HTTPS   bool   `json:"https"`
	Shorten bool   `json:"shorten"`
	Dedup   string `json:"dedup"` // "channel" or "feed"
	Group   string `json:"group"`
	New     string `json:"new"`

	AlertsEmpty bool `json:"alerts_empty"`

	// httpsSet, shortenSet, alertsEmptySet record whether this section
	// itself configured the corresponding key, so Merge can tell "unset,
	// inherit the default" from "explicitly set to false" (spec.md §3
	// per-feed overrides; a bool alone can't distinguish the two).
	httpsSet       bool
	shortenSet     bool
	alertsEmptySet bool
}

// ParserSelector is either a bare selector string or a
// {select, follow} pair. Follow is empty when the selector doesn't
// extract secondary (follow) URLs.
type ParserSelector struct {
	Select string `json:"select"`
	Follow string `json:"follow,omitempty"`
}

// UnmarshalJSON accepts either a bare JSON string or an object.
func (p *ParserSelector) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Select = s
		return nil
	}
	type alias ParserSelector
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("parse parser selector: %w", err)
	}
	*p = ParserSelector(a)
	return nil
}

// PatternLists is a mapping of field name (title|url|category) to a
// list of regex pattern strings.
type PatternLists struct {
	Title    []string `json:"title,omitempty"`
	URL      []string `json:"url,omitempty"`
	Category []string `json:"category,omitempty"`
}

// Empty reports whether no patterns are configured under any key.
func (p PatternLists) Empty() bool {
	return len(p.Title) == 0 && len(p.URL) == 0 && len(p.Category) == 0
}

// SubRule is a single regex substitution.
type SubRule struct {
	Pattern string `json:"pattern"`
	Repl    string `json:"repl"`
}

// SubConfig holds optional title/url substitution rules.
type SubConfig struct {
	Title *SubRule `json:"title,omitempty"`
	URL   *SubRule `json:"url,omitempty"`
}

// FormatConfig holds the entry reformatting rules (spec.md §4.3.1 step 5).
type FormatConfig struct {
	Re  map[string]string `json:"re,omitempty"`
	Str FormatStr         `json:"str,omitempty"`
}

// FormatStr holds the title/url format-map templates.
type FormatStr struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Merge returns a copy of defaults overridden field-by-field by override.
// Lists and maps are replaced wholesale (not merged element-wise), matching
// the Python `{**defaults, **override}` shallow-merge semantics.
func Merge(defaults, override FeedConfig) FeedConfig {
	merged := defaults
	if override.URLs != nil {
		merged.URLs = override.URLs
	}
	if override.PeriodHours != 0 {
		merged.PeriodHours = override.PeriodHours
	}
	if override.Hext != nil {
		merged.Hext = override.Hext
	}
	if override.JMESPath != nil {
		merged.JMESPath = override.JMESPath
	}
	if override.Pandas != nil {
		merged.Pandas = override.Pandas
	}
	if !override.Blacklist.Empty() {
		merged.Blacklist = override.Blacklist
	}
	if !override.Whitelist.Empty() {
		merged.Whitelist = override.Whitelist
	}
	if override.Sub.Title != nil {
		merged.Sub.Title = override.Sub.Title
	}
	if override.Sub.URL != nil {
		merged.Sub.URL = override.Sub.URL
	}
	if override.Format.Re != nil {
		merged.Format.Re = override.Format.Re
	}
	if override.Format.Str.Title != "" {
		merged.Format.Str.Title = override.Format.Str.Title
	}
	if override.Format.Str.URL != "" {
		merged.Format.Str.URL = override.Format.Str.URL
	}
	if override.httpsSet {
		merged.HTTPS = override.HTTPS
	}
	if override.shortenSet {
		merged.Shorten = override.Shorten
	}
	if override.Dedup != "" {
		merged.Dedup = override.Dedup
	}
	if override.Group != "" {
		merged.Group = override.Group
	}
	if override.New != "" {
		merged.New = override.New
	}
	if override.alertsEmptySet {
		merged.AlertsEmpty = override.AlertsEmpty
	}
	return merged
}

// Constants holds the global, overridable tunables (spec.md §6).
type Constants struct {
	MessageFormat              string
	SecondsPerMessage          float64
	MinChannelIdleTimeDefault  float64
	PeriodHoursMin             float64
	PeriodHoursDefault         float64
	PeriodRandomPercent        float64
	SecondsBetweenFeedURLs     float64
	TitleMaxBytes              int
	DedupStrategyDefault       string
	NewFeedPostsMax            map[string]int
	BitlyShortenerMaxCacheSize int
	CacheMaxsizeURLNetloc      int

	// DateFormat is the Go time.Format layout used to render an entry's
	// published date into the "published" format parameter, converted
	// once at load time from the configured strftime pattern.
	DateFormat string
}

// DefaultConstants returns the built-in defaults, overridable per-field
// from the [Bot] section of the config file.
func DefaultConstants() Constants {
	return Constants{
		MessageFormat:              "[{feed}] {title} ( {url} )",
		SecondsPerMessage:          1.0,
		MinChannelIdleTimeDefault:  90,
		PeriodHoursMin:             0.5,
		PeriodHoursDefault:         4,
		PeriodRandomPercent:        10,
		SecondsBetweenFeedURLs:     2,
		TitleMaxBytes:              300,
		DedupStrategyDefault:       "feed",
		NewFeedPostsMax:            map[string]int{"all": -1, "default": 5},
		BitlyShortenerMaxCacheSize: 4096,
		CacheMaxsizeURLNetloc:      4096,
		DateFormat:                 strftimeToGoLayout("%B %d, %Y %I:%M %p"),
	}
}

// Instance is the fully parsed, immutable runtime configuration.
type Instance struct {
	Host          string
	SSLPort       int
	Nick          string
	Mode          string
	AlertsChannel string
	Once          bool

	// DedupPath is the sqlite file backing the DedupStore.
	DedupPath string
	// CacheDir holds URLFetcher's conditional-GET metadata (spec.md §4.2).
	CacheDir string
	// ShortenerEndpoint is the URL-shortener API base; empty disables
	// shortening even for feeds with shorten=true.
	ShortenerEndpoint string

	// Feeds maps channel name (as configured, original case) to a map
	// of feed name to merged FeedConfig.
	Feeds map[string]map[string]FeedConfig

	Constants Constants
}

// Load reads and parses the instance configuration at path.
func Load(path string) (*Instance, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, fmt.Errorf("load ini file: %w", err)
	}

	inst := &Instance{
		Feeds:     make(map[string]map[string]FeedConfig),
		Constants: DefaultConstants(),
	}

	bot := f.Section("Bot")
	inst.Host = bot.Key("host").String()
	inst.SSLPort = bot.Key("ssl_port").MustInt(6697)
	inst.Nick = bot.Key("nick").String()
	inst.Mode = bot.Key("mode").String()
	inst.AlertsChannel = bot.Key("alerts_channel").String()
	inst.Once = bot.Key("once").MustBool(false)
	inst.DedupPath = bot.Key("dedup_db").MustString("feedbot.db")
	inst.CacheDir = bot.Key("cache_dir").MustString("cache")
	inst.ShortenerEndpoint = bot.Key("shortener_endpoint").String()

	if err := applyConstantOverrides(bot, &inst.Constants); err != nil {
		return nil, fmt.Errorf("parse [Bot] constants: %w", err)
	}

	defaults, err := parseFeedConfig(f.Section("Defaults"))
	if err != nil {
		return nil, fmt.Errorf("parse [Defaults]: %w", err)
	}

	for _, section := range f.Sections() {
		name := section.Name()
		if name == "DEFAULT" || name == "Bot" || name == "Defaults" || name == "" {
			continue
		}
		channel, feed, ok := splitChannelFeed(name)
		if !ok {
			continue
		}
		fc, err := parseFeedConfig(section)
		if err != nil {
			return nil, fmt.Errorf("parse section %q: %w", name, err)
		}
		merged := Merge(defaults, fc)
		if len(merged.URLs) == 0 {
			return nil, fmt.Errorf("feed %s of %s: no url configured", feed, channel)
		}
		if merged.PeriodHours == 0 {
			merged.PeriodHours = inst.Constants.PeriodHoursDefault
		}
		if merged.PeriodHours < inst.Constants.PeriodHoursMin {
			merged.PeriodHours = inst.Constants.PeriodHoursMin
		}
		if merged.Dedup == "" {
			merged.Dedup = inst.Constants.DedupStrategyDefault
		}
		if merged.New == "" {
			merged.New = "default"
		}
		if inst.Feeds[channel] == nil {
			inst.Feeds[channel] = make(map[string]FeedConfig)
		}
		inst.Feeds[channel][feed] = merged
	}

	if inst.Host == "" || inst.Nick == "" || inst.AlertsChannel == "" {
		return nil, fmt.Errorf("missing required [Bot] setting: host, nick, and alerts_channel are mandatory")
	}
	if len(inst.Feeds) == 0 {
		return nil, fmt.Errorf("no feed sections configured")
	}
	if _, err := requireEnv("IRC_PASSWORD"); err != nil {
		return nil, err
	}

	return inst, nil
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("missing required environment variable %s", name)
	}
	return v, nil
}

// splitChannelFeed splits a section name of the form "#channel/feedname"
// into its channel and feed parts.
func splitChannelFeed(name string) (channel, feed string, ok bool) {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

func applyConstantOverrides(section *ini.Section, c *Constants) error {
	if v := section.Key("message_format").String(); v != "" {
		c.MessageFormat = v
	}
	if v := section.Key("seconds_per_message").String(); v != "" {
		c.SecondsPerMessage = section.Key("seconds_per_message").MustFloat64(c.SecondsPerMessage)
	}
	if v := section.Key("min_channel_idle_time_default").String(); v != "" {
		c.MinChannelIdleTimeDefault = section.Key("min_channel_idle_time_default").MustFloat64(c.MinChannelIdleTimeDefault)
	}
	if v := section.Key("period_hours_min").String(); v != "" {
		c.PeriodHoursMin = section.Key("period_hours_min").MustFloat64(c.PeriodHoursMin)
	}
	if v := section.Key("period_hours_default").String(); v != "" {
		c.PeriodHoursDefault = section.Key("period_hours_default").MustFloat64(c.PeriodHoursDefault)
	}
	if v := section.Key("period_random_percent").String(); v != "" {
		c.PeriodRandomPercent = section.Key("period_random_percent").MustFloat64(c.PeriodRandomPercent)
	}
	if v := section.Key("seconds_between_feed_urls").String(); v != "" {
		c.SecondsBetweenFeedURLs = section.Key("seconds_between_feed_urls").MustFloat64(c.SecondsBetweenFeedURLs)
	}
	if v := section.Key("title_max_bytes").String(); v != "" {
		c.TitleMaxBytes = section.Key("title_max_bytes").MustInt(c.TitleMaxBytes)
	}
	if v := section.Key("dedup_strategy_default").String(); v != "" {
		c.DedupStrategyDefault = v
	}
	if v := section.Key("bitly_shortener_max_cache_size").String(); v != "" {
		c.BitlyShortenerMaxCacheSize = section.Key("bitly_shortener_max_cache_size").MustInt(c.BitlyShortenerMaxCacheSize)
	}
	if v := section.Key("new_feed_posts_max").String(); v != "" {
		m := make(map[string]int)
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return fmt.Errorf("parse new_feed_posts_max: %w", err)
		}
		c.NewFeedPostsMax = m
	}
	if v := section.Key("cache_maxsize_url_netloc").String(); v != "" {
		c.CacheMaxsizeURLNetloc = section.Key("cache_maxsize_url_netloc").MustInt(c.CacheMaxsizeURLNetloc)
	}
	if v := section.Key("date_format").String(); v != "" {
		c.DateFormat = strftimeToGoLayout(v)
	}
	return nil
}

// parseFeedConfig reads a feed (or Defaults) section into a FeedConfig.
// Scalar keys are read directly; nested keys (blacklist, whitelist, sub,
// format, and the parser selectors when given as an object) are parsed
// as inline JSON values.
func parseFeedConfig(section *ini.Section) (FeedConfig, error) {
	var fc FeedConfig

	if section.HasKey("url") {
		fc.URLs = section.Key("url").ValueWithShadows()
	}
	if section.HasKey("period") {
		fc.PeriodHours = section.Key("period").MustFloat64(0)
	}

	for _, sel := range []struct {
		key string
		dst **ParserSelector
	}{
		{"hext", &fc.Hext},
		{"jmespath", &fc.JMESPath},
		{"jmes", &fc.JMESPath}, // deprecated alias, per original_source/ircrssfeedbot/feed.py
		{"pandas", &fc.Pandas},
	} {
		if !section.HasKey(sel.key) {
			continue
		}
		raw := section.Key(sel.key).String()
		var ps ParserSelector
		if err := unmarshalJSONOrBare(raw, &ps); err != nil {
			return fc, fmt.Errorf("parse %s: %w", sel.key, err)
		}
		*sel.dst = &ps
	}

	if section.HasKey("blacklist") {
		if err := json.Unmarshal([]byte(section.Key("blacklist").String()), &fc.Blacklist); err != nil {
			return fc, fmt.Errorf("parse blacklist: %w", err)
		}
	}
	if section.HasKey("whitelist") {
		if err := json.Unmarshal([]byte(section.Key("whitelist").String()), &fc.Whitelist); err != nil {
			return fc, fmt.Errorf("parse whitelist: %w", err)
		}
	}
	if section.HasKey("sub") {
		if err := json.Unmarshal([]byte(section.Key("sub").String()), &fc.Sub); err != nil {
			return fc, fmt.Errorf("parse sub: %w", err)
		}
	}
	if section.HasKey("format") {
		if err := json.Unmarshal([]byte(section.Key("format").String()), &fc.Format); err != nil {
			return fc, fmt.Errorf("parse format: %w", err)
		}
	}

	fc.HTTPS = section.Key("https").MustBool(false)
	fc.httpsSet = section.HasKey("https")
	fc.Shorten = section.Key("shorten").MustBool(false)
	fc.shortenSet = section.HasKey("shorten")
	fc.Dedup = section.Key("dedup").String()
	fc.Group = section.Key("group").String()
	fc.New = section.Key("new").String()
	fc.AlertsEmpty = section.Key("alerts_empty").MustBool(true)
	fc.alertsEmptySet = section.HasKey("alerts_empty")

	return fc, nil
}

func unmarshalJSONOrBare(raw string, ps *ParserSelector) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw[0] != '{' && raw[0] != '"' {
		ps.Select = raw
		return nil
	}
	return json.Unmarshal([]byte(raw), ps)
}
