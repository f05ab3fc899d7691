// Package debug provides opt-in diagnostics for the packet pipeline.
package debug

import (
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/emberfell/emberfell/internal/protocol"
)

var packetLogging atomic.Bool

// SetPacketLogging toggles per-packet dumps globally.
func SetPacketLogging(enabled bool) {
	packetLogging.Store(enabled)
}

// Enabled returns whether the server was set to dump packets.
func Enabled() bool {
	return packetLogging.Load()
}

// DumpPacket writes a full structural dump of a packet to the debug log.
func DumpPacket(logger *logrus.Logger, direction, addr string, p protocol.Packet) {
	logger.Debugf("%s %s packet %#02x:\n%s", direction, addr, byte(p.ID()), spew.Sdump(p))
}
