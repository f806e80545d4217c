// Package chat defines the chat-protocol client contract the core
// pipeline depends on. Per spec.md §6/§1, only the contract is in
// scope here — connect/join/PRIVMSG transport is an external
// collaborator; Orchestrator only needs Client.
package chat

import "context"

// Client is the line-based chat-protocol contract the Orchestrator and
// ChannelPoster depend on. Channel comparison throughout is
// case-insensitive (casefold), per spec.md §6.
type Client interface {
	// Connect establishes the connection and authenticates, blocking
	// until the connection is up or ctx is done.
	Connect(ctx context.Context) error

	// Connected reports whether the client currently has a live
	// connection (false during a netsplit/reconnect).
	Connected() bool

	// Join requests the bot join channel. Completion is signaled
	// asynchronously via the OnJoin callback once the server echoes the
	// bot's own JOIN.
	Join(channel string)

	// Send emits one line of text to target (a channel or nick).
	Send(target, text string) error

	// OnJoin registers a handler invoked when the bot observes its own
	// join to a channel (hostmask, channel).
	OnJoin(func(hostmask, channel string))

	// OnPrivmsg registers a handler invoked for every inbound PRIVMSG
	// (hostmask, target, text). target is the bot's nick for a direct
	// message, or a channel name for a channel message.
	OnPrivmsg(func(hostmask, target, text string))

	// Loop runs the client's event reactor until ctx is done or the
	// connection is closed.
	Loop(ctx context.Context) error
}
