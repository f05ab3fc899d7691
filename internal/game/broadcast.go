package game

import (
	"context"
	"time"

	"github.com/emberfell/emberfell/internal/protocol"
	"github.com/emberfell/emberfell/internal/world"
)

// BroadcastChat enqueues a chat line for every connection in the registry,
// regardless of login state, then wakes the scheduler once for the batch.
func (b *Backend) BroadcastChat(message string) {
	for _, c := range b.net.Connections() {
		if c.Disconnected() {
			continue
		}
		c.Enqueue(&protocol.Chat{Message: message})
	}
	b.net.Signal()
}

// RefreshPlayerList pushes the full player list to every logged-in
// connection. Each client receives an entry for every logged-in player,
// itself included, so it can render its own latency.
func (b *Backend) RefreshPlayerList() {
	conns := b.net.Connections()

	var entries []*protocol.PlayerListItem
	for _, c := range conns {
		if c.Disconnected() || !loggedIn(c) {
			continue
		}
		entries = append(entries, &protocol.PlayerListItem{
			Name:    c.PlayerName(),
			Online:  true,
			Latency: int16(c.Latency() / time.Millisecond),
		})
	}

	for _, c := range conns {
		if c.Disconnected() || !loggedIn(c) {
			continue
		}
		for _, entry := range entries {
			c.Enqueue(entry)
		}
	}
	b.net.Signal()
}

// runPlayerListRefresh keeps every client's player list fresh on a fixed
// period; join and leave paths refresh it immediately on top of this.
func (b *Backend) runPlayerListRefresh(ctx context.Context) {
	ticker := time.NewTicker(b.PlayerListInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.RefreshPlayerList()
		}
	}
}

// bindWorld bridges a world's block-change notifications into outbound
// packets for exactly the connections whose entity lives in that world.
func (b *Backend) bindWorld(w *world.World) {
	w.ObserveBlockChanges(func(change world.BlockChange) {
		if b.net == nil {
			return
		}

		pkt := &protocol.BlockChange{
			X:         change.X,
			Y:         change.Y,
			Z:         change.Z,
			BlockType: change.BlockType,
			Meta:      change.Meta,
		}
		for _, c := range b.net.Connections() {
			if c.Disconnected() || !loggedIn(c) {
				continue
			}
			if !w.HasEntity(c.EntityID()) {
				continue
			}
			c.Enqueue(pkt)
		}
		b.net.Signal()
	})
}
