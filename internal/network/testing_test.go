package network

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberfell/emberfell/internal/protocol"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeSocket is a net.Conn that records everything written to it and can be
// told to fail writes, standing in for an unresponsive client.
type fakeSocket struct {
	mu         sync.Mutex
	written    bytes.Buffer
	failWrites bool
	closed     bool
}

func (f *fakeSocket) Read(b []byte) (int, error) {
	return 0, io.EOF
}

func (f *fakeSocket) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites {
		return 0, errors.New("simulated write failure")
	}
	return f.written.Write(b)
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSocket) writtenBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]byte, f.written.Len())
	copy(out, f.written.Bytes())
	return out
}

func (f *fakeSocket) writtenLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Len()
}

func (f *fakeSocket) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (f *fakeSocket) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
}

func (f *fakeSocket) SetDeadline(time.Time) error      { return nil }
func (f *fakeSocket) SetReadDeadline(time.Time) error  { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

// decodeWritten reinterprets a fake socket's output as protocol frames.
func decodeWritten(t *testing.T, data []byte) []protocol.Inbound {
	t.Helper()

	packets, consumed, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("decoding transmitted bytes: %v", err)
	}
	if consumed != len(data) {
		t.Fatalf("transmitted bytes contained a partial frame (%d of %d consumed)", consumed, len(data))
	}
	return packets
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
