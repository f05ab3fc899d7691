package game

import (
	"time"

	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/protocol"
)

// startKeepAlive begins the periodic ping loop for a logged-in connection.
// The loop is cancelled through the connection's disconnect callbacks, so it
// never outlives the session.
func (b *Backend) startKeepAlive(c *network.Conn) {
	stop := make(chan struct{})
	c.OnDisconnect(func() { close(stop) })

	go func() {
		ticker := time.NewTicker(b.KeepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				token := b.keepAliveToken.Add(1)
				c.BeginPing(token)
				c.Enqueue(&protocol.KeepAlive{Token: token})
				b.net.Signal()
			}
		}
	}()
}
