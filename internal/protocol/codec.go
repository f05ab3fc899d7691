package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Frames on the wire are a little endian uint16 total length (header
// included), a one byte packet ID, and the payload.
const (
	frameHeaderSize = 3

	// MaxFrameSize is the largest frame either side may produce. It is the
	// exact bound imposed by the uint16 length prefix.
	MaxFrameSize = 1<<16 - 1
)

func writeInt32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func readInt32(r *bytes.Reader, v *int32) error {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return err
	}
	*v = int32(binary.LittleEndian.Uint32(b[:]))
	return nil
}

// Strings are encoded as a uint16 byte length followed by UTF-8 bytes.
func writeString(buf *bytes.Buffer, s string) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(s)))
	buf.Write(b[:])
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return "", err
	}
	length := int(binary.LittleEndian.Uint16(b[:]))
	if length > r.Len() {
		return "", fmt.Errorf("string length %d exceeds remaining payload %d: %w", length, r.Len(), ErrMalformed)
	}
	s := make([]byte, length)
	if _, err := io.ReadFull(r, s); err != nil {
		return "", err
	}
	return string(s), nil
}

// EncodeFrame serializes a packet into a complete wire frame.
func EncodeFrame(p Outbound) ([]byte, error) {
	payload, err := p.MarshalPayload()
	if err != nil {
		return nil, fmt.Errorf("marshaling packet %#02x: %w", byte(p.ID()), err)
	}

	size := frameHeaderSize + len(payload)
	if size > MaxFrameSize {
		return nil, fmt.Errorf("packet %#02x overflows frame size (%d bytes)", byte(p.ID()), size)
	}

	frame := make([]byte, size)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(size))
	frame[2] = byte(p.ID())
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// Every packet kind decodes, regardless of its usual direction; the handler
// layer rejects kinds a client has no business sending. Test clients reuse
// this decoder for server-bound traffic.
func newInbound(id ID) (Inbound, bool) {
	switch id {
	case KeepAliveType:
		return &KeepAlive{}, true
	case LoginType:
		return &Login{}, true
	case LoginSuccessType:
		return &LoginSuccess{}, true
	case ChatType:
		return &Chat{}, true
	case SpawnPositionType:
		return &SpawnPosition{}, true
	case ChunkDataType:
		return &ChunkData{}, true
	case BlockChangeType:
		return &BlockChange{}, true
	case PlayerListItemType:
		return &PlayerListItem{}, true
	case ClientSettingsType:
		return &ClientSettings{}, true
	case PluginMessageType:
		return &PluginMessage{}, true
	case KickType:
		return &Kick{}, true
	}
	return nil, false
}

// Decode scans the unconsumed prefix of a connection's receive buffer and
// returns every fully framed packet it contains, in wire order, along with
// the number of bytes consumed. Bytes belonging to a trailing partial frame
// are never consumed, so the caller can retry with more data appended.
func Decode(buf []byte) ([]Inbound, int, error) {
	var packets []Inbound
	consumed := 0

	for {
		remaining := buf[consumed:]
		if len(remaining) < frameHeaderSize {
			return packets, consumed, nil
		}

		size := int(binary.LittleEndian.Uint16(remaining[0:2]))
		if size < frameHeaderSize {
			return packets, consumed, fmt.Errorf("declared frame length %d below header size: %w", size, ErrMalformed)
		}
		if len(remaining) < size {
			// Partial frame; leave it for the next read.
			return packets, consumed, nil
		}

		id := ID(remaining[2])
		packet, known := newInbound(id)
		if !known {
			return packets, consumed, fmt.Errorf("unknown packet %#02x: %w", byte(id), ErrMalformed)
		}
		if err := packet.UnmarshalPayload(remaining[frameHeaderSize:size]); err != nil {
			return packets, consumed, fmt.Errorf("decoding packet %#02x: %w", byte(id), errOrMalformed(err))
		}

		packets = append(packets, packet)
		consumed += size
	}
}

// Truncated or inconsistent payloads surface from the readers as io errors;
// at this layer they all mean the client broke framing.
func errOrMalformed(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrMalformed
	}
	return err
}
