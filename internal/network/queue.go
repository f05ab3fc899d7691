package network

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/emberfell/emberfell/internal/protocol"
)

// outboundUnit pairs a packet with an optional one-shot callback fired by the
// scheduler after the packet has been physically transmitted.
type outboundUnit struct {
	packet protocol.Outbound
	onSent func()
}

// outboundQueue is the per-connection FIFO of pending outbound packets. Any
// goroutine may enqueue; the send scheduler is the only consumer.
type outboundQueue struct {
	mu    sync.Mutex
	units *queue.Queue
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{units: queue.New()}
}

func (q *outboundQueue) push(u outboundUnit) {
	q.mu.Lock()
	q.units.Add(u)
	q.mu.Unlock()
}

func (q *outboundQueue) pop() (outboundUnit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.units.Length() == 0 {
		return outboundUnit{}, false
	}
	return q.units.Remove().(outboundUnit), true
}

func (q *outboundQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.units.Length()
}

// clear discards all pending units. Only valid on disconnect; pending units
// for a live connection are never dropped.
func (q *outboundQueue) clear() {
	q.mu.Lock()
	for q.units.Length() > 0 {
		q.units.Remove()
	}
	q.mu.Unlock()
}
