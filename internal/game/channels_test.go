package game

import (
	"bytes"
	"context"
	"testing"

	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/protocol"
)

func TestRegisterChannel(t *testing.T) {
	backend, _ := newTestBackend(t, newTestConfig("overworld"))

	var registeredWith *Backend
	calls := 0
	err := backend.RegisterChannel("ember:brand", func(*network.Conn, []byte) {}, func(b *Backend) {
		registeredWith = b
		calls++
	})
	if err != nil {
		t.Fatalf("RegisterChannel() returned an unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("onRegistered called %d times, want 1", calls)
	}
	if registeredWith != backend {
		t.Error("onRegistered did not receive the owning backend")
	}

	if err := backend.RegisterChannel("ember:brand", func(*network.Conn, []byte) {}, nil); err == nil {
		t.Error("RegisterChannel() with a duplicate name should have returned an error")
	}
}

func TestPluginMessageRouting(t *testing.T) {
	backend, fakeNet := newTestBackend(t, newTestConfig("overworld"))
	c, _ := newPipeConn(t, fakeNet)

	var gotPayload []byte
	var gotConn *network.Conn
	err := backend.RegisterChannel("ember:brand", func(c *network.Conn, payload []byte) {
		gotConn = c
		gotPayload = payload
	}, nil)
	if err != nil {
		t.Fatalf("RegisterChannel() returned an unexpected error: %v", err)
	}

	err = backend.Handle(context.Background(), c, &protocol.PluginMessage{
		Channel: "ember:brand",
		Data:    []byte{0x01, 0x02, 0x03},
	})
	if err != nil {
		t.Fatalf("Handle(plugin message) returned an unexpected error: %v", err)
	}

	if gotConn != c {
		t.Error("channel handler did not receive the originating connection")
	}
	if !bytes.Equal(gotPayload, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("channel handler payload = %v, want [1 2 3]", gotPayload)
	}
}

func TestPluginMessageUnknownChannelIgnored(t *testing.T) {
	backend, fakeNet := newTestBackend(t, newTestConfig("overworld"))
	c, _ := newPipeConn(t, fakeNet)

	err := backend.Handle(context.Background(), c, &protocol.PluginMessage{Channel: "nobody:home"})
	if err != nil {
		t.Errorf("Handle(unknown channel) returned %v, want nil (ignored)", err)
	}
}

func TestKeepAliveUpdatesLatency(t *testing.T) {
	backend, fakeNet := newTestBackend(t, newTestConfig("overworld"))
	c, _ := newPipeConn(t, fakeNet)

	c.BeginPing(99)
	err := backend.Handle(context.Background(), c, &protocol.KeepAlive{Token: 99})
	if err != nil {
		t.Fatalf("Handle(keep alive) returned an unexpected error: %v", err)
	}

	if c.Latency() <= 0 {
		t.Errorf("Latency() = %v after a completed ping, want > 0", c.Latency())
	}

	// An unsolicited token is ignored rather than treated as an error.
	if err := backend.Handle(context.Background(), c, &protocol.KeepAlive{Token: 12345}); err != nil {
		t.Errorf("Handle(stale keep alive) returned %v, want nil", err)
	}
}
