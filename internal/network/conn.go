package network

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emberfell/emberfell/internal/protocol"
)

const (
	// initialRecvBuffer is the starting size of a connection's receive buffer.
	initialRecvBuffer = 4096
	// maxRecvBuffer bounds per-connection memory. A frame that cannot
	// assemble within this many bytes is a protocol violation; the uint16
	// length prefix means a well-behaved client can never hit it.
	maxRecvBuffer = protocol.MaxFrameSize
)

// Conn represents one live client session: its socket, receive buffer,
// session state, and outbound packet queue.
type Conn struct {
	socket     net.Conn
	remoteAddr string

	queue *outboundQueue

	// Receive buffer. recvBuf[:recvCursor] holds bytes read from the socket
	// but not yet consumed by the decoder. Only the receive goroutine touches
	// these.
	recvBuf    []byte
	recvCursor int

	mu           sync.Mutex
	state        SessionState
	playerName   string
	entityID     int32
	onDisconnect []func()

	disconnected atomic.Bool
	latency      atomic.Int64 // nanoseconds

	pingMu     sync.Mutex
	pingToken  int32
	pingSentAt time.Time
}

// NewConn wraps an accepted socket in a Conn in the handshaking state.
func NewConn(socket net.Conn) *Conn {
	return &Conn{
		socket:     socket,
		remoteAddr: socket.RemoteAddr().String(),
		queue:      newOutboundQueue(),
		recvBuf:    make([]byte, initialRecvBuffer),
	}
}

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Enqueue appends a packet to the connection's outbound queue. An optional
// callback is fired by the scheduler once the packet has been transmitted.
// Enqueueing does not wake the scheduler; callers signal once per batch.
func (c *Conn) Enqueue(p protocol.Outbound, onSent ...func()) {
	unit := outboundUnit{packet: p}
	if len(onSent) > 0 {
		unit.onSent = onSent[0]
	}
	c.queue.push(unit)
}

// QueueLen returns the number of packets waiting to be transmitted.
func (c *Conn) QueueLen() int { return c.queue.len() }

// State returns the connection's current session state.
func (c *Conn) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Advance moves the session to a later state. Transitions only ever move
// forward; in particular, once a connection is logged in it stays logged in
// until it disconnects.
func (c *Conn) Advance(to SessionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !validTransition(c.state, to) {
		return &StateError{From: c.state, To: to}
	}
	c.state = to
	return nil
}

// StateError reports an attempted illegal session state transition.
type StateError struct {
	From, To SessionState
}

func (e *StateError) Error() string {
	return "illegal session transition from " + e.From.String() + " to " + e.To.String()
}

// SetIdentity records the player name and entity ID established during login.
func (c *Conn) SetIdentity(name string, entityID int32) {
	c.mu.Lock()
	c.playerName = name
	c.entityID = entityID
	c.mu.Unlock()
}

func (c *Conn) PlayerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerName
}

func (c *Conn) EntityID() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entityID
}

// Disconnected reports whether the disconnect path has begun for this
// connection. The flag is monotonic.
func (c *Conn) Disconnected() bool { return c.disconnected.Load() }

// markDisconnected flips the disconnected flag, returning true only for the
// caller that performed the transition. This is what makes the cleanup path
// idempotent when a read error and a send error race.
func (c *Conn) markDisconnected() bool {
	return c.disconnected.CompareAndSwap(false, true)
}

// OnDisconnect registers a callback run exactly once during cleanup. Used to
// cancel per-connection timers such as the keep-alive.
func (c *Conn) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = append(c.onDisconnect, fn)
	c.mu.Unlock()
}

func (c *Conn) runDisconnectCallbacks() {
	c.mu.Lock()
	callbacks := c.onDisconnect
	c.onDisconnect = nil
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Latency returns the most recent keep-alive round trip estimate.
func (c *Conn) Latency() time.Duration {
	return time.Duration(c.latency.Load())
}

// BeginPing records an outstanding keep-alive token awaiting its echo.
func (c *Conn) BeginPing(token int32) {
	c.pingMu.Lock()
	c.pingToken = token
	c.pingSentAt = time.Now()
	c.pingMu.Unlock()
}

// CompletePing matches an echoed token against the outstanding ping and, on a
// match, updates the latency estimate.
func (c *Conn) CompletePing(token int32) (time.Duration, bool) {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()

	if c.pingSentAt.IsZero() || token != c.pingToken {
		return 0, false
	}
	rtt := time.Since(c.pingSentAt)
	c.pingSentAt = time.Time{}
	c.latency.Store(int64(rtt))
	return rtt, true
}

// growRecvBuffer makes room for the next read. Returns false when the buffer
// already sits at the hard cap, which the pipeline treats as an oversized
// frame from a misbehaving client.
func (c *Conn) growRecvBuffer() bool {
	if len(c.recvBuf) >= maxRecvBuffer {
		return false
	}
	size := len(c.recvBuf) * 2
	if size > maxRecvBuffer {
		size = maxRecvBuffer
	}
	grown := make([]byte, size)
	copy(grown, c.recvBuf[:c.recvCursor])
	c.recvBuf = grown
	return true
}
