package game

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/emberfell/emberfell/internal/network"
	"github.com/emberfell/emberfell/internal/protocol"
	"github.com/emberfell/emberfell/internal/world"
)

// SupportedProtocolVersion is the only client protocol revision this server
// speaks.
const SupportedProtocolVersion = 17

// playerEyeHeight offsets the spawn position so the camera starts above the
// spawn block rather than inside it.
const playerEyeHeight = 1.62

const maxPlayerNameLength = 16

var titleCaser = cases.Title(language.English)

// handleLogin drives the login sequence: validate, optionally encrypt, spawn
// the player entity, and stream the initial world state.
func (b *Backend) handleLogin(_ context.Context, c *network.Conn, pkt *protocol.Login) error {
	if c.State() != network.StateHandshaking {
		return fmt.Errorf("login while %s: %w", c.State(), protocol.ErrMalformed)
	}

	if pkt.ProtocolVersion != SupportedProtocolVersion {
		b.kick(c, fmt.Sprintf("outdated client: server speaks protocol %d", SupportedProtocolVersion))
		return nil
	}
	if !validPlayerName(pkt.Name) {
		return fmt.Errorf("invalid player name %q: %w", pkt.Name, protocol.ErrMalformed)
	}
	if b.playerCount() >= b.Config.Game.MaxPlayers {
		b.kick(c, "the server is full")
		return nil
	}
	if b.playerOnline(pkt.Name) {
		b.kick(c, "a player with that name is already connected")
		return nil
	}

	if b.Config.Game.OnlineMode {
		if err := c.Advance(network.StateEncrypting); err != nil {
			return err
		}
		ok, err := b.Handshake.Negotiate(c)
		if err != nil {
			return fmt.Errorf("encryption handshake with %s: %w", c.RemoteAddr(), err)
		}
		if !ok {
			b.kick(c, "encryption handshake rejected")
			return nil
		}
	}

	if err := c.Advance(network.StateLoggedIn); err != nil {
		return err
	}

	w := b.defaultWorld
	spawn := w.Spawn()
	entity := &world.Entity{
		ID:   world.NextEntityID(),
		Name: pkt.Name,
		Position: world.Position{
			X: spawn.X,
			Y: spawn.Y + playerEyeHeight,
			Z: spawn.Z,
			// Facing matches the spawn point's look direction.
			Yaw:   spawn.Yaw,
			Pitch: spawn.Pitch,
		},
	}
	if err := w.AddEntity(entity); err != nil {
		return fmt.Errorf("registering player entity: %w", err)
	}
	c.SetIdentity(pkt.Name, entity.ID)

	b.recordLastSeen(pkt.Name)

	c.Enqueue(&protocol.LoginSuccess{
		EntityID:   entity.ID,
		LevelType:  b.Config.Game.LevelType,
		GameMode:   byte(b.Config.Game.GameMode),
		Dimension:  byte(b.Config.Game.Dimension),
		Difficulty: byte(b.Config.Game.Difficulty),
		MaxPlayers: byte(b.Config.Game.MaxPlayers),
	})

	if err := b.enqueueSpawnTerrain(c, w); err != nil {
		return err
	}

	c.Enqueue(&protocol.SpawnPosition{
		X:     entity.Position.X,
		Y:     entity.Position.Y,
		Z:     entity.Position.Z,
		Yaw:   entity.Position.Yaw,
		Pitch: entity.Position.Pitch,
	})

	b.startKeepAlive(c)

	b.Logger.Infof("%s logged into %s from %s (entity %d)", pkt.Name, w.Name(), c.RemoteAddr(), entity.ID)
	b.BroadcastChat(fmt.Sprintf("%s joined the game", pkt.Name))
	b.RefreshPlayerList()
	return nil
}

// enqueueSpawnTerrain streams the initial burst of chunk columns. The last
// column carries the sent callback that marks the client ready to spawn, so
// readiness only ever follows the physical transmission of all terrain data.
func (b *Backend) enqueueSpawnTerrain(c *network.Conn, w *world.World) error {
	coords := world.SpawnColumns(w.Spawn(), b.Config.Game.ViewDistance)

	for i, coord := range coords {
		payload, err := w.Chunks().EncodedColumn(coord)
		if err != nil {
			return fmt.Errorf("encoding spawn terrain: %w", err)
		}

		chunk := &protocol.ChunkData{X: coord.X, Z: coord.Z, Data: payload}
		if i < len(coords)-1 {
			c.Enqueue(chunk)
			continue
		}
		c.Enqueue(chunk, func() {
			if err := c.Advance(network.StateReadyToSpawn); err != nil {
				b.Logger.Warnf("marking %s ready to spawn: %v", c.PlayerName(), err)
				return
			}
			b.Logger.Debugf("%s is ready to spawn", c.PlayerName())
		})
	}
	return nil
}

// kick tells the client why it is going away, then disconnects once the
// reason has actually been transmitted.
func (b *Backend) kick(c *network.Conn, reason string) {
	b.Logger.Infof("kicking %s: %s", c.RemoteAddr(), reason)
	c.Enqueue(&protocol.Kick{Reason: titleCaser.String(reason)}, func() {
		b.net.Disconnect(c)
	})
	b.net.Signal()
}

func (b *Backend) recordLastSeen(name string) {
	if b.store == nil {
		return
	}
	record, err := b.store.FindPlayer(name)
	if err != nil {
		b.Logger.Warnf("failed to load player record for %s: %v", name, err)
		return
	}
	if record == nil {
		b.Logger.Debugf("first login for %s", name)
		return
	}
	b.Logger.Debugf("%s last seen %s", name, record.LastSeen)
}

func (b *Backend) playerCount() int {
	count := 0
	for _, c := range b.net.Connections() {
		if loggedIn(c) {
			count++
		}
	}
	return count
}

func (b *Backend) playerOnline(name string) bool {
	for _, c := range b.net.Connections() {
		if loggedIn(c) && strings.EqualFold(c.PlayerName(), name) {
			return true
		}
	}
	return false
}

func validPlayerName(name string) bool {
	if len(name) == 0 || len(name) > maxPlayerNameLength {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
