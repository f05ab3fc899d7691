package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	packetdebug "github.com/emberfell/emberfell/internal/debug"
	"github.com/emberfell/emberfell/internal/protocol"
)

// Handler processes decoded inbound packets and is notified when a
// connection's cleanup runs. Handlers run synchronously on the connection's
// receive goroutine and may enqueue outbound packets on any connection.
type Handler interface {
	Handle(ctx context.Context, c *Conn, p protocol.Inbound) error

	// Disconnected is invoked exactly once per connection, during cleanup,
	// before the connection leaves the registry.
	Disconnected(c *Conn)
}

// ServerConfig carries the network-level tunables for a Server.
type ServerConfig struct {
	Addr           string
	MaxConnections int
	WriteTimeout   time.Duration
	IdleInterval   time.Duration
}

// Server implements the concurrent client connection logic: it accepts TCP
// connections, runs a receive pipeline per connection, and owns the send
// scheduler that all outbound traffic funnels through.
type Server struct {
	config    ServerConfig
	logger    *logrus.Logger
	handler   Handler
	registry  *Registry
	scheduler *Scheduler
}

func NewServer(config ServerConfig, logger *logrus.Logger, handler Handler) *Server {
	s := &Server{
		config:   config,
		logger:   logger,
		handler:  handler,
		registry: NewRegistry(),
	}

	var opts []SchedulerOption
	if config.WriteTimeout > 0 {
		opts = append(opts, WithWriteTimeout(config.WriteTimeout))
	}
	if config.IdleInterval > 0 {
		opts = append(opts, WithIdleInterval(config.IdleInterval))
	}
	s.scheduler = NewScheduler(s.registry, logger, func(c *Conn, err error) {
		s.Disconnect(c)
	}, opts...)

	return s
}

func (s *Server) Registry() *Registry { return s.registry }

// Connections returns a snapshot of all live connections.
func (s *Server) Connections() []*Conn { return s.registry.Snapshot() }

// Signal wakes the send scheduler. Producers call it once per enqueue batch.
func (s *Server) Signal() { s.scheduler.Signal() }

// ListenAndServe opens the TCP socket and enters a blocking loop accepting
// client connections until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("error listening on socket: %w", err)
	}

	s.logger.Infof("waiting for connections on %v", listener.Addr())
	return s.Serve(ctx, listener)
}

// Serve accepts connections from the listener and dispatches them to per
// connection receive goroutines. Accepting is never serialized behind a
// connection's setup or behind the scheduler.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer s.logger.Info("server exiting")

	go s.scheduler.Run(ctx)
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	connections := make(chan net.Conn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for s.config.MaxConnections > 0 && s.registry.Len() >= s.config.MaxConnections {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
			}

			connection, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warnf("failed to accept connection: %v", err)
				continue
			}

			connections <- connection
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Cooperative shutdown: every open socket goes through the same
			// cleanup path as a client-initiated disconnect.
			for _, c := range s.registry.Snapshot() {
				s.Disconnect(c)
			}
			return nil
		case connection := <-connections:
			c := NewConn(connection)
			s.registry.Add(c)
			s.logger.Infof("accepted connection from %s", c.RemoteAddr())
			go s.serveConn(ctx, c)
		}
	}
}

// serveConn is the receive pipeline: a blocking loop dedicated to reading
// data sent from one client. It returns once the connection has closed.
func (s *Server) serveConn(ctx context.Context, c *Conn) {
	defer s.recoverAndDisconnect(c)

	for {
		if c.recvCursor == len(c.recvBuf) && !c.growRecvBuffer() {
			s.logger.Warnf("protocol error from %s: frame exceeds %d byte receive buffer", c.RemoteAddr(), maxRecvBuffer)
			s.Disconnect(c)
			return
		}

		n, err := c.socket.Read(c.recvBuf[c.recvCursor:])
		if n == 0 || err != nil {
			if err != nil && !errors.Is(err, io.EOF) && !c.Disconnected() {
				s.logger.Debugf("read from %s failed: %v", c.RemoteAddr(), err)
			}
			s.Disconnect(c)
			return
		}
		c.recvCursor += n

		packets, consumed, decodeErr := protocol.Decode(c.recvBuf[:c.recvCursor])
		if consumed > 0 {
			// Shift the partial tail to the front so the next read appends
			// after it.
			copy(c.recvBuf, c.recvBuf[consumed:c.recvCursor])
			c.recvCursor -= consumed
		}

		for _, packet := range packets {
			if packetdebug.Enabled() {
				packetdebug.DumpPacket(s.logger, "recv", c.RemoteAddr(), packet)
			}
			if err := s.handler.Handle(ctx, c, packet); err != nil {
				s.logHandlerError(c, packet, err)
				s.Disconnect(c)
				return
			}
		}

		if decodeErr != nil {
			s.logger.Warnf("protocol error from %s: %v", c.RemoteAddr(), decodeErr)
			s.Disconnect(c)
			return
		}
	}
}

func (s *Server) logHandlerError(c *Conn, p protocol.Inbound, err error) {
	switch {
	case errors.Is(err, protocol.ErrUnsupported):
		s.logger.Infof("disconnecting %s: unsupported: %v", c.RemoteAddr(), err)
	case errors.Is(err, protocol.ErrMalformed):
		s.logger.Warnf("disconnecting %s: protocol error: %v", c.RemoteAddr(), err)
	default:
		s.logger.Warnf("disconnecting %s: error handling packet %#02x: %v", c.RemoteAddr(), byte(p.ID()), err)
	}
}

// Catch any panics from packet handling and disconnect the client regardless
// of the state of the connection. A misbehaving client must never take the
// process down.
func (s *Server) recoverAndDisconnect(c *Conn) {
	if err := recover(); err != nil {
		s.logger.Errorf("panic in client communication: %s: %s\n%s", c.RemoteAddr(), err, debug.Stack())
	}
	s.Disconnect(c)
}

// Disconnect runs the cleanup path for a connection. It is idempotent and
// safe to invoke concurrently from the receive pipeline, the scheduler, and
// server shutdown.
func (s *Server) Disconnect(c *Conn) {
	if !c.markDisconnected() {
		return
	}

	// Begin closing the socket without blocking the caller; the scheduler
	// may be mid-pass and must not wait on a peer.
	go func() { _ = c.socket.Close() }()

	// Cancel per-connection timers (keep-alive and friends).
	c.runDisconnectCallbacks()

	// Let the game layer despawn the entity and broadcast the departure.
	if s.handler != nil {
		s.handler.Disconnected(c)
	}

	// Remaining queued units for this connection are discarded.
	c.queue.clear()

	s.registry.Remove(c)

	// Flush any departure broadcasts promptly instead of waiting for the
	// next idle tick.
	s.scheduler.Signal()

	s.logger.Infof("disconnected client %s", c.RemoteAddr())
}
