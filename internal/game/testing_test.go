package game

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberfell/emberfell/internal/core"
	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/protocol"
	"github.com/emberfell/emberfell/internal/world"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestConfig(worlds ...string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Game.Worlds = worlds
	cfg.Game.ViewDistance = 1
	return cfg
}

func newTestBackend(t *testing.T, cfg *core.Config) (*Backend, *fakeNetwork) {
	t.Helper()

	chunks := world.NewChunkProvider()
	worlds := make([]*world.World, 0, len(cfg.Game.Worlds))
	for _, name := range cfg.Game.Worlds {
		worlds = append(worlds, world.New(name, chunks))
	}

	backend, err := NewBackend(cfg, newTestLogger(), worlds, nil)
	if err != nil {
		t.Fatalf("error building test backend: %v", err)
	}

	net := newFakeNetwork()
	backend.Bind(net)
	return backend, net
}

// fakeNetwork drives real registry and scheduler instances while counting
// scheduler signals, so tests can assert the once-per-batch contract.
type fakeNetwork struct {
	registry  *network.Registry
	scheduler *network.Scheduler
	signals   atomic.Int32

	mu           sync.Mutex
	disconnected []*network.Conn
}

func newFakeNetwork() *fakeNetwork {
	f := &fakeNetwork{registry: network.NewRegistry()}
	f.scheduler = network.NewScheduler(f.registry, newTestLogger(), nil,
		network.WithIdleInterval(5*time.Millisecond))
	return f
}

func (f *fakeNetwork) Connections() []*network.Conn { return f.registry.Snapshot() }

func (f *fakeNetwork) Signal() {
	f.signals.Add(1)
	f.scheduler.Signal()
}

func (f *fakeNetwork) Disconnect(c *network.Conn) {
	f.mu.Lock()
	f.disconnected = append(f.disconnected, c)
	f.mu.Unlock()
}

func (f *fakeNetwork) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disconnected)
}

// startScheduler begins transmitting queued packets; before it runs, queued
// units stay queued, which lets tests observe pre-transmission state.
func (f *fakeNetwork) startScheduler(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.scheduler.Run(ctx)
}

// frameReader collects the packets a test client reads off its pipe.
type frameReader struct {
	mu      sync.Mutex
	packets []protocol.Inbound
}

func (r *frameReader) add(packets ...protocol.Inbound) {
	r.mu.Lock()
	r.packets = append(r.packets, packets...)
	r.mu.Unlock()
}

func (r *frameReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packets)
}

func (r *frameReader) received() []protocol.Inbound {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.Inbound, len(r.packets))
	copy(out, r.packets)
	return out
}

// newPipeConn builds a connection over an in-memory pipe, with a client-side
// goroutine decoding everything the server transmits.
func newPipeConn(t *testing.T, f *fakeNetwork) (*network.Conn, *frameReader) {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	c := network.NewConn(serverSide)
	f.registry.Add(c)

	reader := &frameReader{}
	go func() {
		var buffered []byte
		chunk := make([]byte, 4096)
		for {
			n, err := clientSide.Read(chunk)
			if err != nil {
				return
			}
			buffered = append(buffered, chunk[:n]...)

			packets, consumed, err := protocol.Decode(buffered)
			if err != nil {
				return
			}
			buffered = append(buffered[:0], buffered[consumed:]...)
			if len(packets) > 0 {
				reader.add(packets...)
			}
		}
	}()

	t.Cleanup(func() {
		clientSide.Close()
		serverSide.Close()
	})
	return c, reader
}

// loginConn puts a connection directly into the logged-in state with an
// entity registered in the given world, skipping the wire-level login.
func loginConn(t *testing.T, c *network.Conn, w *world.World, name string) {
	t.Helper()

	entity := &world.Entity{ID: world.NextEntityID(), Name: name, Position: w.Spawn()}
	if err := w.AddEntity(entity); err != nil {
		t.Fatalf("error registering test entity: %v", err)
	}
	c.SetIdentity(name, entity.ID)
	if err := c.Advance(network.StateLoggedIn); err != nil {
		t.Fatalf("error logging in test connection: %v", err)
	}
}

// waitFor polls a condition until it holds or the timeout expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
