// Package orchestrator owns the Orchestrator: process-wide wiring,
// join/privmsg event routing, and alerts (spec.md §4.5). Cross-cutting
// state — join events, idle clocks, per-channel queues, group barriers,
// and the global send token — lives here, not as package-level
// mutables; every worker takes its references at construction (spec.md
// §9 design notes).
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/alexott/ircfeedbot/internal/barrier"
	"github.com/alexott/ircfeedbot/internal/chat"
	"github.com/alexott/ircfeedbot/internal/config"
	"github.com/alexott/ircfeedbot/internal/dedup"
	"github.com/alexott/ircfeedbot/internal/entry"
	"github.com/alexott/ircfeedbot/internal/feed"
	"github.com/alexott/ircfeedbot/internal/poster"
	"github.com/alexott/ircfeedbot/internal/shortener"
)

var caseFolder = cases.Fold()

func casefold(s string) string { return caseFolder.String(s) }

// joinGate is a write-once signal fired when the bot observes its own
// join to a channel. fire is idempotent so a reconnect's rejoin never
// double-closes the channel.
type joinGate struct {
	ch   chan struct{}
	once sync.Once
}

func newJoinGate() *joinGate {
	return &joinGate{ch: make(chan struct{})}
}

func (g *joinGate) fire() {
	g.once.Do(func() { close(g.ch) })
}

// Orchestrator wires the DedupStore, URLFetcher, shortener, and chat
// client into one running pipeline: one ChannelPoster per channel, one
// FeedReader per (channel, feed), routed through the join-events,
// per-channel queues, group barriers, and global send token it owns.
type Orchestrator struct {
	Inst      *config.Instance
	Client    chat.Client
	Fetcher   feed.URLFetcher
	Store     *dedup.Store
	Shortener *shortener.Shortener // nil disables shortening process-wide
	Patterns  *entry.PatternCache
	Log       *slog.Logger

	channelName map[string]string // casefolded -> configured name
	joins       map[string]*joinGate
	clocks      map[string]*poster.IdleClock
	queues      map[string]chan *feed.Feed
	barriers    map[string]*barrier.Barrier // keyed by group name

	token *poster.SendToken

	alertsCF string
}

// New builds an Orchestrator's process state from inst and registers
// its event handlers on client. It does not connect or start workers;
// call Run for that.
func New(inst *config.Instance, client chat.Client, f feed.URLFetcher, store *dedup.Store, short *shortener.Shortener, patterns *entry.PatternCache, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		Inst:      inst,
		Client:    client,
		Fetcher:   f,
		Store:     store,
		Shortener: short,
		Patterns:  patterns,
		Log:       log,

		channelName: make(map[string]string),
		joins:       make(map[string]*joinGate),
		clocks:      make(map[string]*poster.IdleClock),
		queues:      make(map[string]chan *feed.Feed),
		barriers:    make(map[string]*barrier.Barrier),

		token: poster.NewSendToken(),
	}

	for channel, feeds := range inst.Feeds {
		cf := casefold(channel)
		o.channelName[cf] = channel
		o.joins[cf] = newJoinGate()
		o.clocks[cf] = poster.NewIdleClock()
		o.queues[cf] = make(chan *feed.Feed, 2*len(feeds))
	}

	o.alertsCF = casefold(inst.AlertsChannel)
	if _, ok := o.joins[o.alertsCF]; !ok {
		o.channelName[o.alertsCF] = inst.AlertsChannel
		o.joins[o.alertsCF] = newJoinGate()
		o.clocks[o.alertsCF] = poster.NewIdleClock()
		o.queues[o.alertsCF] = make(chan *feed.Feed, 1)
	}

	groupParties := make(map[string]int)
	for _, feeds := range inst.Feeds {
		for _, fc := range feeds {
			if fc.Group != "" {
				groupParties[fc.Group]++
			}
		}
	}
	for group, n := range groupParties {
		o.barriers[group] = barrier.New(n)
	}

	client.OnJoin(o.handleJoin)
	client.OnPrivmsg(o.handlePrivmsg)

	return o
}

// Run connects the chat client, joins every configured channel plus
// the alerts channel, launches one ChannelPoster per channel and one
// FeedReader per (channel, feed), and blocks until ctx is done or the
// chat client's event reactor exits.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Client.Connect(ctx); err != nil {
		return fmt.Errorf("connect chat client: %w", err)
	}

	for _, name := range o.channelName {
		o.Client.Join(name)
	}

	var wg sync.WaitGroup
	for channel, feeds := range o.Inst.Feeds {
		cf := casefold(channel)
		o.startPoster(ctx, &wg, channel, cf, feeds)
		for name, fc := range feeds {
			o.startReader(ctx, &wg, channel, cf, name, fc)
		}
	}

	loopErr := make(chan error, 1)
	go func() { loopErr <- o.Client.Loop(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-loopErr:
		if err != nil && ctx.Err() == nil {
			o.Log.Error("chat client event loop exited", "error", err)
		}
	}

	wg.Wait()
	return nil
}

func (o *Orchestrator) startPoster(ctx context.Context, wg *sync.WaitGroup, channel, cf string, feeds map[string]config.FeedConfig) {
	p := &poster.Poster{
		Channel:           channel,
		Queue:             o.queues[cf],
		Store:             o.Store,
		Shortener:         o.shortenerFor(feeds),
		NewFeedMax:        o.Inst.Constants.NewFeedPostsMax,
		Client:            o.Client,
		Clock:             o.clocks[cf],
		Token:             o.token,
		ChannelJoin:       o.joins[cf].ch,
		AlertsJoin:        o.joins[o.alertsCF].ch,
		MessageFormat:     o.Inst.Constants.MessageFormat,
		SecondsPerMessage: o.Inst.Constants.SecondsPerMessage,
		Alert:             o.Alertf,
		Log:               o.Log,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()
}

func (o *Orchestrator) startReader(ctx context.Context, wg *sync.WaitGroup, channel, cf, name string, fc config.FeedConfig) {
	var bar feed.Barrier
	if fc.Group != "" {
		bar = o.barriers[fc.Group]
	}
	r := &feed.Reader{
		Channel:     channel,
		Name:        name,
		Config:      fc,
		Fetcher:     o.Fetcher,
		Patterns:    o.Patterns,
		Barrier:     bar,
		Constants:   o.Inst.Constants,
		Queue:       o.queues[cf],
		ChannelJoin: o.joins[cf].ch,
		AlertsJoin:  o.joins[o.alertsCF].ch,
		Alert:       o.Alertf,
		Log:         o.Log,
		Once:        o.Inst.Once,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Run(ctx)
	}()
}

// shortenerFor returns the process shortener only when at least one
// feed on this channel has shorten=true, so channels with no
// shortening feed never populate Poster.Shortener.
func (o *Orchestrator) shortenerFor(feeds map[string]config.FeedConfig) feed.Shortener {
	if o.Shortener == nil {
		return nil
	}
	for _, fc := range feeds {
		if fc.Shorten {
			return o.Shortener
		}
	}
	return nil
}

// handleJoin is the chat.Client.OnJoin callback: it fires the
// channel's join-event and resets its idle clock, treating a freshly
// joined channel as just having been spoken in (spec.md §4.4.1).
func (o *Orchestrator) handleJoin(hostmask, channel string) {
	cf := casefold(channel)
	gate, ok := o.joins[cf]
	if !ok {
		return
	}
	gate.fire()
	if clock, ok := o.clocks[cf]; ok {
		clock.Touch()
	}
	o.Log.Info("joined channel", "hostmask", hostmask, "channel", channel)
}

// handlePrivmsg is the chat.Client.OnPrivmsg callback. Inbound
// messages to a known channel update that channel's idle clock;
// messages addressed directly to the bot are logged and alerted,
// except a VERSION CTCP probe, which is silently ignored (spec.md
// §4.4.1).
func (o *Orchestrator) handlePrivmsg(hostmask, target, text string) {
	cf := casefold(target)
	if clock, ok := o.clocks[cf]; ok {
		clock.Touch()
		return
	}

	if strings.Contains(text, "VERSION") {
		return
	}

	o.Log.Warn("unexpected direct message", "hostmask", hostmask, "text", text)
	o.Alertf("direct message from %s: %s", hostmask, text)
}

// Alertf is the alert sink passed to every Reader and Poster: it logs
// the message and, best-effort, sends it to the configured alerts
// channel (spec.md §4.5, §7).
func (o *Orchestrator) Alertf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	o.Log.Error("alert", "message", msg)
	if !o.Client.Connected() {
		return
	}
	if err := o.Client.Send(o.Inst.AlertsChannel, msg); err != nil {
		o.Log.Error("failed to send alert", "error", err)
	}
}
