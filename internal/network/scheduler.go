package network

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberfell/emberfell/internal/protocol"
)

const (
	// defaultWriteTimeout protects the scheduler from a single unresponsive
	// client stalling delivery to everyone else.
	defaultWriteTimeout = 5 * time.Second
	// defaultIdleInterval bounds CPU usage when no signal arrives.
	defaultIdleInterval = 50 * time.Millisecond
)

// Scheduler is the single worker that transmits all outbound traffic. On each
// wake it walks the registry and drains every connection's queue completely
// before moving to the next, preserving per-connection FIFO order. A transmit
// failure disconnects that one connection and never halts the pass.
type Scheduler struct {
	registry *Registry
	logger   *logrus.Logger

	// wake has capacity one: signals raised during a drain coalesce into a
	// single follow-up pass, so a unit enqueued mid-drain is either included
	// in the current pass or picked up by the next.
	wake chan struct{}

	writeTimeout time.Duration
	idleInterval time.Duration

	// onWriteError routes a failed connection into the server's disconnect
	// path. The scheduler itself never propagates transmit failures.
	onWriteError func(c *Conn, err error)
}

// SchedulerOption overrides a Scheduler default.
type SchedulerOption func(*Scheduler)

func WithWriteTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.writeTimeout = d }
}

func WithIdleInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.idleInterval = d }
}

func NewScheduler(registry *Registry, logger *logrus.Logger, onWriteError func(*Conn, error), opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		registry:     registry,
		logger:       logger,
		wake:         make(chan struct{}, 1),
		writeTimeout: defaultWriteTimeout,
		idleInterval: defaultIdleInterval,
		onWriteError: onWriteError,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signal wakes the scheduler. Non-blocking; redundant signals coalesce.
func (s *Scheduler) Signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run executes the send loop until the context is cancelled. The loop only
// exits between passes, never mid-send.
func (s *Scheduler) Run(ctx context.Context) {
	idle := time.NewTicker(s.idleInterval)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-idle.C:
		}

		s.drainAll()
	}
}

func (s *Scheduler) drainAll() {
	for _, c := range s.registry.Snapshot() {
		s.drainConn(c)
	}
}

// drainConn transmits every unit queued for one connection, in order, before
// the scheduler advances to the next connection.
func (s *Scheduler) drainConn(c *Conn) {
	for {
		if c.Disconnected() {
			c.queue.clear()
			return
		}

		unit, ok := c.queue.pop()
		if !ok {
			return
		}

		if err := s.transmit(c, unit.packet); err != nil {
			s.logger.Debugf("send to %s failed: %v", c.RemoteAddr(), err)
			if s.onWriteError != nil {
				s.onWriteError(c, err)
			}
			return
		}

		if unit.onSent != nil {
			unit.onSent()
		}
	}
}

// transmit encodes the packet and writes the whole frame to the socket.
func (s *Scheduler) transmit(c *Conn, p protocol.Outbound) error {
	frame, err := protocol.EncodeFrame(p)
	if err != nil {
		return err
	}

	if err := c.socket.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}

	sent := 0
	for sent < len(frame) {
		n, err := c.socket.Write(frame[sent:])
		if err != nil {
			return err
		}
		sent += n
	}
	return nil
}
