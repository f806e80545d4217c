// Command feedbot runs the feed-to-channel pipeline: it polls
// configured feeds, filters and reshapes their entries, and posts
// newly seen ones into IRC channels (spec.md §1-§2).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexott/ircfeedbot/internal/chat"
	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/dedup"
	"github.com/alexott/ircfeedbot/internal/entry"
	"github.com/alexott/ircfeedbot/internal/fetcher"
	"github.com/alexott/ircfeedbot/internal/orchestrator"
	"github.com/alexott/ircfeedbot/internal/shortener"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		runCommand(os.Args)
		return
	}

	switch os.Args[1] {
	case "run":
		runCommand(os.Args[1:])
	case "check":
		checkCommand(os.Args[1:])
	case "version", "-version", "--version":
		versionCommand()
	case "-h", "-help", "--help":
		printUsage()
	default:
		if strings.HasPrefix(os.Args[1], "-") {
			runCommand(os.Args)
		} else {
			fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `feedbot - IRC feed-to-channel pipeline

Usage:
  feedbot [command] [options]

Commands:
  run      Start the bot: poll feeds and post to IRC channels (default)
  check    Load and validate the configuration, then exit
  version  Show version information

Options:
  -c string
        path to config file (default "config.ini")
  -debug
        enable debug logging (default level is info)

Environment:
  IRC_PASSWORD           required, the bot's IRC server password
  BITLY_TOKENS           optional, comma-separated shortener API tokens
`)
}

func versionCommand() {
	fmt.Printf("feedbot version %s\n", version)
}

func setupLogging(debugMode bool) *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func checkCommand(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("c", "config.ini", "path to config file")
	fs.Parse(args[1:])

	inst, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config invalid: %v\n", err)
		os.Exit(1)
	}

	feedCount := 0
	for _, feeds := range inst.Feeds {
		feedCount += len(feeds)
	}
	fmt.Printf("config OK: %d channel(s), %d feed(s), alerts_channel=%s\n",
		len(inst.Feeds), feedCount, inst.AlertsChannel)
}

func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("c", "config.ini", "path to config file")
	debugMode := fs.Bool("debug", false, "enable debug logging")
	fs.Parse(args[1:])

	log := setupLogging(*debugMode)

	if err := run(*configPath, log); err != nil {
		log.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

// run wires every component per spec.md §4.5 and blocks until the
// process receives a termination signal. Fatal misconfiguration (a
// missing secret, a malformed config) exits non-zero before any worker
// starts; nothing else terminates the process (spec.md §7).
func run(configPath string, log *slog.Logger) error {
	inst, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Info("configuration loaded",
		"channels", len(inst.Feeds),
		"alerts_channel", inst.AlertsChannel)

	store, err := dedup.Open(inst.DedupPath)
	if err != nil {
		return fmt.Errorf("open dedup store: %w", err)
	}
	defer store.Close()

	fetch := fetcher.New(fetcher.Options{
		MetadataDir:     inst.CacheDir,
		NetlocCacheSize: inst.Constants.CacheMaxsizeURLNetloc,
		Logger:          log,
	})

	var short *shortener.Shortener
	if inst.ShortenerEndpoint != "" {
		tokens := shortener.TokensFromEnv(os.Getenv("BITLY_TOKENS"))
		if len(tokens) == 0 {
			return fmt.Errorf("shortener_endpoint configured but BITLY_TOKENS is unset")
		}
		short, err = shortener.New(inst.ShortenerEndpoint, tokens, inst.Constants.BitlyShortenerMaxCacheSize)
		if err != nil {
			return fmt.Errorf("create shortener: %w", err)
		}
	}

	password := os.Getenv("IRC_PASSWORD")
	client := chat.NewIRC(chat.IRCOptions{
		Host:     inst.Host,
		SSLPort:  inst.SSLPort,
		Nick:     inst.Nick,
		Password: password,
		Mode:     inst.Mode,
		Logger:   log,
	})

	patterns := entry.NewPatternCache(patternCacheSize(inst))

	o := orchestrator.New(inst, client, fetch, store, short, patterns, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting feed-to-channel pipeline", "version", version, "host", inst.Host, "nick", inst.Nick)
	if err := o.Run(ctx); err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	log.Info("feedbot shut down cleanly")
	return nil
}

// patternCacheSize sizes the blacklist/whitelist regex cache to the
// number of (channel, feed) pairs, per spec.md §9's "unbounded in
// practice" note, implemented here as a bounded LRU.
func patternCacheSize(inst *config.Instance) int {
	n := 0
	for _, feeds := range inst.Feeds {
		n += len(feeds)
	}
	if n < 16 {
		n = 16
	}
	return n * 6 // title/url/category x {blacklist,whitelist}
}
