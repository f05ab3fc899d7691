package game

import (
	"fmt"
	"strings"

	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/protocol"
)

func (b *Backend) handleChat(c *network.Conn, pkt *protocol.Chat) error {
	if !loggedIn(c) {
		return fmt.Errorf("chat before login: %w", protocol.ErrMalformed)
	}

	message := strings.TrimSpace(pkt.Message)
	if message == "" {
		return nil
	}
	if len(message) > 256 {
		return fmt.Errorf("chat message of %d bytes: %w", len(message), protocol.ErrMalformed)
	}

	b.BroadcastChat(fmt.Sprintf("<%s> %s", c.PlayerName(), message))
	return nil
}

func (b *Backend) handleKeepAlive(c *network.Conn, pkt *protocol.KeepAlive) {
	rtt, matched := c.CompletePing(pkt.Token)
	if !matched {
		// Stale or unsolicited token; harmless, the next ping resyncs.
		return
	}
	b.Logger.Debugf("%s round trip %v", c.RemoteAddr(), rtt)
}

func (b *Backend) handlePluginMessage(c *network.Conn, pkt *protocol.PluginMessage) error {
	handler, registered := b.channels.lookup(pkt.Channel)
	if !registered {
		b.Logger.Debugf("%s sent a message for unregistered channel %q", c.RemoteAddr(), pkt.Channel)
		return nil
	}
	handler(c, pkt.Data)
	return nil
}
