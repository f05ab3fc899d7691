package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ID identifies the kind of a packet within a frame.
type ID byte

const (
	KeepAliveType      ID = 0x00
	LoginType          ID = 0x01
	LoginSuccessType   ID = 0x02
	ChatType           ID = 0x03
	SpawnPositionType  ID = 0x06
	ChunkDataType      ID = 0x33
	BlockChangeType    ID = 0x35
	PlayerListItemType ID = 0xC9
	ClientSettingsType ID = 0xCA
	PluginMessageType  ID = 0xFA
	KickType           ID = 0xFF
)

// Packet is a single protocol unit, inbound or outbound.
type Packet interface {
	ID() ID
}

// Outbound packets know how to marshal their payload for transmission.
type Outbound interface {
	Packet
	MarshalPayload() ([]byte, error)
}

// Inbound packets are reconstructed from a frame payload by the decoder.
type Inbound interface {
	Packet
	UnmarshalPayload(data []byte) error
}

// KeepAlive carries a token the client must echo back. The round trip time
// between the two is the connection's latency estimate.
type KeepAlive struct {
	Token int32
}

func (*KeepAlive) ID() ID { return KeepAliveType }

func (p *KeepAlive) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeInt32(buf, p.Token)
	return buf.Bytes(), nil
}

func (p *KeepAlive) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	return readInt32(r, &p.Token)
}

// Login is the first packet a client sends after connecting.
type Login struct {
	ProtocolVersion int32
	Name            string
}

func (*Login) ID() ID { return LoginType }

func (p *Login) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeInt32(buf, p.ProtocolVersion)
	writeString(buf, p.Name)
	return buf.Bytes(), nil
}

func (p *Login) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	if err := readInt32(r, &p.ProtocolVersion); err != nil {
		return err
	}
	name, err := readString(r)
	if err != nil {
		return err
	}
	p.Name = name
	return nil
}

// LoginSuccess confirms a login and describes the world the player spawns into.
type LoginSuccess struct {
	EntityID   int32
	LevelType  string
	GameMode   byte
	Dimension  byte
	Difficulty byte
	MaxPlayers byte
}

func (*LoginSuccess) ID() ID { return LoginSuccessType }

func (p *LoginSuccess) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeInt32(buf, p.EntityID)
	writeString(buf, p.LevelType)
	buf.WriteByte(p.GameMode)
	buf.WriteByte(p.Dimension)
	buf.WriteByte(p.Difficulty)
	buf.WriteByte(p.MaxPlayers)
	return buf.Bytes(), nil
}

func (p *LoginSuccess) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	if err := readInt32(r, &p.EntityID); err != nil {
		return err
	}
	levelType, err := readString(r)
	if err != nil {
		return err
	}
	p.LevelType = levelType

	rest := make([]byte, 4)
	if _, err := r.Read(rest); err != nil {
		return err
	}
	p.GameMode, p.Dimension, p.Difficulty, p.MaxPlayers = rest[0], rest[1], rest[2], rest[3]
	return nil
}

// Chat carries a single chat line in either direction.
type Chat struct {
	Message string
}

func (*Chat) ID() ID { return ChatType }

func (p *Chat) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeString(buf, p.Message)
	return buf.Bytes(), nil
}

func (p *Chat) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	message, err := readString(r)
	if err != nil {
		return err
	}
	p.Message = message
	return nil
}

// SpawnPosition is the authoritative teleport marking where the client spawns.
type SpawnPosition struct {
	X, Y, Z    float64
	Yaw, Pitch float32
}

func (*SpawnPosition) ID() ID { return SpawnPositionType }

func (p *SpawnPosition) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	for _, v := range []float32{p.Yaw, p.Pitch} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (p *SpawnPosition) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	for _, v := range []*float64{&p.X, &p.Y, &p.Z} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for _, v := range []*float32{&p.Yaw, &p.Pitch} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// ChunkData carries one zlib-compressed chunk column.
type ChunkData struct {
	X, Z int32
	Data []byte
}

func (*ChunkData) ID() ID { return ChunkDataType }

func (p *ChunkData) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeInt32(buf, p.X)
	writeInt32(buf, p.Z)
	writeInt32(buf, int32(len(p.Data)))
	buf.Write(p.Data)
	return buf.Bytes(), nil
}

func (p *ChunkData) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	if err := readInt32(r, &p.X); err != nil {
		return err
	}
	if err := readInt32(r, &p.Z); err != nil {
		return err
	}
	var size int32
	if err := readInt32(r, &size); err != nil {
		return err
	}
	if size < 0 || int(size) != r.Len() {
		return fmt.Errorf("chunk payload length %d does not match remaining %d: %w", size, r.Len(), ErrMalformed)
	}
	p.Data = make([]byte, size)
	_, err := r.Read(p.Data)
	return err
}

// BlockChange announces a single block mutation to clients in the same world.
type BlockChange struct {
	X         int32
	Y         byte
	Z         int32
	BlockType byte
	Meta      byte
}

func (*BlockChange) ID() ID { return BlockChangeType }

func (p *BlockChange) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeInt32(buf, p.X)
	buf.WriteByte(p.Y)
	writeInt32(buf, p.Z)
	buf.WriteByte(p.BlockType)
	buf.WriteByte(p.Meta)
	return buf.Bytes(), nil
}

func (p *BlockChange) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	if err := readInt32(r, &p.X); err != nil {
		return err
	}
	y, err := r.ReadByte()
	if err != nil {
		return err
	}
	p.Y = y
	if err := readInt32(r, &p.Z); err != nil {
		return err
	}
	rest := make([]byte, 2)
	if _, err := r.Read(rest); err != nil {
		return err
	}
	p.BlockType, p.Meta = rest[0], rest[1]
	return nil
}

// PlayerListItem is one row of the player list shown in the client overlay.
type PlayerListItem struct {
	Name    string
	Online  bool
	Latency int16
}

func (*PlayerListItem) ID() ID { return PlayerListItemType }

func (p *PlayerListItem) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeString(buf, p.Name)
	if p.Online {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := binary.Write(buf, binary.LittleEndian, p.Latency); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *PlayerListItem) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	name, err := readString(r)
	if err != nil {
		return err
	}
	p.Name = name
	online, err := r.ReadByte()
	if err != nil {
		return err
	}
	p.Online = online != 0
	return binary.Read(r, binary.LittleEndian, &p.Latency)
}

// ClientSettings is sent by some client builds to negotiate locale and render
// distance. The server recognizes but does not implement it.
type ClientSettings struct {
	Locale       string
	ViewDistance byte
}

func (*ClientSettings) ID() ID { return ClientSettingsType }

func (p *ClientSettings) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeString(buf, p.Locale)
	buf.WriteByte(p.ViewDistance)
	return buf.Bytes(), nil
}

func (p *ClientSettings) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	locale, err := readString(r)
	if err != nil {
		return err
	}
	p.Locale = locale
	vd, err := r.ReadByte()
	if err != nil {
		return err
	}
	p.ViewDistance = vd
	return nil
}

// PluginMessage is an opaque payload addressed to a named plugin channel.
type PluginMessage struct {
	Channel string
	Data    []byte
}

func (*PluginMessage) ID() ID { return PluginMessageType }

func (p *PluginMessage) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeString(buf, p.Channel)
	buf.Write(p.Data)
	return buf.Bytes(), nil
}

func (p *PluginMessage) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	channel, err := readString(r)
	if err != nil {
		return err
	}
	p.Channel = channel
	p.Data = make([]byte, r.Len())
	if len(p.Data) > 0 {
		if _, err := r.Read(p.Data); err != nil {
			return err
		}
	}
	return nil
}

// Kick tells the client why it is being disconnected.
type Kick struct {
	Reason string
}

func (*Kick) ID() ID { return KickType }

func (p *Kick) MarshalPayload() ([]byte, error) {
	buf := &bytes.Buffer{}
	writeString(buf, p.Reason)
	return buf.Bytes(), nil
}

func (p *Kick) UnmarshalPayload(data []byte) error {
	r := bytes.NewReader(data)
	reason, err := readString(r)
	if err != nil {
		return err
	}
	p.Reason = reason
	return nil
}
