package chat

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
)

// IRCClient is a minimal real implementation of Client over IRC,
// grounded on github.com/ergochat/irc-go (present in the retrieved
// pack's zilin-picoclaw manifest as a chat-bot transport dependency).
type IRCClient struct {
	conn      *ircevent.Connection
	connected atomic.Bool
	log       *slog.Logger
	nick      string
	mode      string

	onJoin    func(hostmask, channel string)
	onPrivmsg func(hostmask, target, text string)
}

// IRCOptions configures an IRCClient.
type IRCOptions struct {
	Host     string
	SSLPort  int
	Nick     string
	Password string
	Mode     string
	Logger   *slog.Logger
}

// NewIRC returns an IRCClient configured from opts. It does not connect.
func NewIRC(opts IRCOptions) *IRCClient {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	c := &IRCClient{log: opts.Logger, nick: opts.Nick, mode: opts.Mode}

	c.conn = &ircevent.Connection{
		Server:      fmt.Sprintf("%s:%d", opts.Host, opts.SSLPort),
		Nick:        opts.Nick,
		Password:    opts.Password,
		UseTLS:      true,
		TLSConfig:   &tls.Config{ServerName: opts.Host},
		RequestCaps: []string{"server-time"},
	}

	c.conn.AddConnectCallback(func(ircmsg.Message) {
		c.connected.Store(true)
		c.log.Info("chat client connected", "server", c.conn.Server)
	})
	c.conn.AddCallback("DISCONNECT", func(ircmsg.Message) {
		c.connected.Store(false)
		c.log.Warn("chat client disconnected", "server", c.conn.Server)
	})
	c.conn.AddCallback("JOIN", func(m ircmsg.Message) {
		if !strings.EqualFold(m.Nick(), opts.Nick) {
			return
		}
		if len(m.Params) == 0 {
			return
		}
		if c.onJoin != nil {
			c.onJoin(m.Source, m.Params[0])
		}
	})
	c.conn.AddCallback("PRIVMSG", func(m ircmsg.Message) {
		if len(m.Params) < 2 {
			return
		}
		if c.onPrivmsg != nil {
			c.onPrivmsg(m.Source, m.Params[0], m.Params[1])
		}
	})

	return c
}

// Connect implements Client. If opts.Mode was set, it additionally
// requests that user mode once connected (spec.md §6 instance field
// "mode?").
func (c *IRCClient) Connect(ctx context.Context) error {
	if err := c.conn.Connect(); err != nil {
		return fmt.Errorf("connect to %s: %w", c.conn.Server, err)
	}
	if c.mode != "" {
		if err := c.conn.Send("MODE", c.nick, c.mode); err != nil {
			c.log.Warn("failed to set user mode", "mode", c.mode, "error", err)
		}
	}
	return nil
}

// Connected implements Client.
func (c *IRCClient) Connected() bool {
	return c.connected.Load()
}

// Join implements Client.
func (c *IRCClient) Join(channel string) {
	c.conn.Join(channel)
}

// Send implements Client.
func (c *IRCClient) Send(target, text string) error {
	c.conn.Privmsg(target, text)
	return nil
}

// OnJoin implements Client.
func (c *IRCClient) OnJoin(fn func(hostmask, channel string)) {
	c.onJoin = fn
}

// OnPrivmsg implements Client.
func (c *IRCClient) OnPrivmsg(fn func(hostmask, target, text string)) {
	c.onPrivmsg = fn
}

// Loop implements Client.
func (c *IRCClient) Loop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.conn.Loop()
		close(done)
	}()
	select {
	case <-ctx.Done():
		c.conn.Quit()
		return ctx.Err()
	case <-done:
		return nil
	}
}
