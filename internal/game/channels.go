package game

import (
	"fmt"
	"sync"

	"github.com/emberfell/emberfell/internal/network"
)

// ChannelHandler processes the payload of a plugin message addressed to a
// registered channel.
type ChannelHandler func(c *network.Conn, payload []byte)

// ChannelRegistry maps plugin channel names to their handlers.
type ChannelRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ChannelHandler
}

func newChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{handlers: make(map[string]ChannelHandler)}
}

func (r *ChannelRegistry) register(name string, handler ChannelHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("plugin channel %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

func (r *ChannelRegistry) lookup(name string) (ChannelHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[name]
	return handler, exists
}

// RegisterChannel binds a handler to a plugin channel name. The onRegistered
// callback fires exactly once, with the backend, when registration succeeds.
func (b *Backend) RegisterChannel(name string, handler ChannelHandler, onRegistered func(*Backend)) error {
	if err := b.channels.register(name, handler); err != nil {
		return err
	}
	if onRegistered != nil {
		onRegistered(b)
	}
	b.Logger.Debugf("registered plugin channel %q", name)
	return nil
}
