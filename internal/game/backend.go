// Package game implements the gameplay side of the server: the login
// sequence, inbound packet handling, and the broadcast services that bridge
// world events into per-client outbound traffic.
package game

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberfell/emberfell/internal/core"
	"github.com/emberfell/emberfell/internal/data"
	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/protocol"
	"github.com/emberfell/emberfell/internal/world"
)

// Network is the slice of the network server the game layer drives: fan-out
// over live connections, waking the send scheduler, and forcing disconnects.
type Network interface {
	Connections() []*network.Conn
	Signal()
	Disconnect(c *network.Conn)
}

// EncryptionHandshake negotiates transport encryption with a client when the
// server runs in online mode. Only the boolean outcome matters here; the
// wire-level exchange is the collaborator's business.
type EncryptionHandshake interface {
	Negotiate(c *network.Conn) (bool, error)
}

type offlineHandshake struct{}

func (offlineHandshake) Negotiate(*network.Conn) (bool, error) { return true, nil }

// Backend handles all decoded client packets and owns the broadcast services.
type Backend struct {
	Config *core.Config
	Logger *logrus.Logger

	// Handshake is consulted during login when online mode is enabled.
	Handshake EncryptionHandshake

	KeepAliveInterval  time.Duration
	PlayerListInterval time.Duration

	net          Network
	worlds       map[string]*world.World
	defaultWorld *world.World
	channels     *ChannelRegistry
	store        *data.Store

	keepAliveToken atomic.Int32
}

// NewBackend assembles the game layer. The first world is the one players
// spawn into; store may be nil to run without persistence.
func NewBackend(config *core.Config, logger *logrus.Logger, worlds []*world.World, store *data.Store) (*Backend, error) {
	if len(worlds) == 0 {
		return nil, fmt.Errorf("cannot start with no world configured")
	}

	b := &Backend{
		Config:             config,
		Logger:             logger,
		Handshake:          offlineHandshake{},
		KeepAliveInterval:  10 * time.Second,
		PlayerListInterval: 10 * time.Second,
		worlds:             make(map[string]*world.World),
		defaultWorld:       worlds[0],
		channels:           newChannelRegistry(),
		store:              store,
	}
	for _, w := range worlds {
		b.worlds[w.Name()] = w
		b.bindWorld(w)
	}
	return b, nil
}

// Bind attaches the backend to the network server it enqueues through. Must
// happen before the server starts accepting connections.
func (b *Backend) Bind(n Network) { b.net = n }

// World returns a world by name.
func (b *Backend) World(name string) (*world.World, bool) {
	w, ok := b.worlds[name]
	return w, ok
}

// Start launches the periodic broadcast services. They stop when ctx is
// cancelled.
func (b *Backend) Start(ctx context.Context) {
	go b.runPlayerListRefresh(ctx)
}

// Handle is the main entry point for processing client packets. It runs
// synchronously on the connection's receive goroutine.
func (b *Backend) Handle(ctx context.Context, c *network.Conn, p protocol.Inbound) error {
	switch pkt := p.(type) {
	case *protocol.Login:
		return b.handleLogin(ctx, c, pkt)
	case *protocol.Chat:
		return b.handleChat(c, pkt)
	case *protocol.KeepAlive:
		b.handleKeepAlive(c, pkt)
		return nil
	case *protocol.PluginMessage:
		return b.handlePluginMessage(c, pkt)
	case *protocol.ClientSettings:
		return fmt.Errorf("client settings negotiation: %w", protocol.ErrUnsupported)
	default:
		return fmt.Errorf("no handler for packet %#02x: %w", byte(p.ID()), protocol.ErrMalformed)
	}
}

// Disconnected runs during a connection's cleanup, before it leaves the
// registry: the entity despawns, the player record is saved, and everyone
// else learns the player went offline.
func (b *Backend) Disconnected(c *network.Conn) {
	if !loggedIn(c) {
		return
	}

	entityID := c.EntityID()
	var lastPosition world.Position
	if w := b.worldOf(c); w != nil {
		if e, ok := w.Entity(entityID); ok {
			lastPosition = e.Position
		}
		w.RemoveEntity(entityID)
	}

	b.savePlayer(c, lastPosition)

	departure := &protocol.PlayerListItem{Name: c.PlayerName(), Online: false}
	for _, other := range b.net.Connections() {
		if other == c || other.Disconnected() || !loggedIn(other) {
			continue
		}
		other.Enqueue(departure)
	}
	// The disconnect path signals the scheduler once cleanup finishes.
}

func (b *Backend) savePlayer(c *network.Conn, lastPosition world.Position) {
	if b.store == nil {
		return
	}

	record := &data.PlayerRecord{
		Name:     c.PlayerName(),
		LastSeen: time.Now(),
		X:        lastPosition.X,
		Y:        lastPosition.Y,
		Z:        lastPosition.Z,
	}
	if err := b.store.SavePlayer(record); err != nil {
		b.Logger.Warnf("failed to save player record for %s: %v", c.PlayerName(), err)
	}
}

// worldOf resolves which world a connection's entity currently lives in.
func (b *Backend) worldOf(c *network.Conn) *world.World {
	entityID := c.EntityID()
	for _, w := range b.worlds {
		if w.HasEntity(entityID) {
			return w
		}
	}
	return nil
}

func loggedIn(c *network.Conn) bool {
	return c.State() == network.StateLoggedIn || c.State() == network.StateReadyToSpawn
}
