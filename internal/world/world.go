// Package world holds the server's model of a game world: its entities,
// spawn point, block store, and chunk terrain provider.
package world

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Position is a point in world space plus a look direction.
type Position struct {
	X, Y, Z    float64
	Yaw, Pitch float32
}

// Entity is anything registered in a world's entity registry. Players are
// entities whose ID is shared with their connection.
type Entity struct {
	ID       int32
	Name     string
	Position Position
}

var entityIDCounter atomic.Int32

// NextEntityID allocates a server-unique entity identifier.
func NextEntityID() int32 {
	return entityIDCounter.Add(1)
}

// BlockChange describes a single block mutation within a world.
type BlockChange struct {
	X         int32
	Y         uint8
	Z         int32
	BlockType byte
	Meta      byte
}

type blockPos struct {
	x int32
	y uint8
	z int32
}

type blockState struct {
	blockType byte
	meta      byte
}

// World owns an entity registry and a block store, and publishes block
// changes to explicitly registered observers.
type World struct {
	name   string
	chunks *ChunkProvider

	mu        sync.RWMutex
	spawn     Position
	entities  map[int32]*Entity
	blocks    map[blockPos]blockState
	observers []func(BlockChange)
}

func New(name string, chunks *ChunkProvider) *World {
	return &World{
		name:     name,
		chunks:   chunks,
		spawn:    Position{X: 8, Y: float64(surfaceHeight) + 1, Z: 8},
		entities: make(map[int32]*Entity),
		blocks:   make(map[blockPos]blockState),
	}
}

func (w *World) Name() string           { return w.name }
func (w *World) Chunks() *ChunkProvider { return w.chunks }

func (w *World) Spawn() Position {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.spawn
}

func (w *World) SetSpawn(p Position) {
	w.mu.Lock()
	w.spawn = p
	w.mu.Unlock()
}

// AddEntity registers an entity. Entity IDs are unique within a world; a
// duplicate registration is a programming error surfaced to the caller.
func (w *World) AddEntity(e *Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.entities[e.ID]; exists {
		return fmt.Errorf("entity %d already registered in world %s", e.ID, w.name)
	}
	w.entities[e.ID] = e
	return nil
}

// RemoveEntity drops an entity from the registry, reporting whether it was present.
func (w *World) RemoveEntity(id int32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.entities[id]; !exists {
		return false
	}
	delete(w.entities, id)
	return true
}

// HasEntity reports whether the entity is registered in this world. This is
// how "which world is this client in" queries resolve.
func (w *World) HasEntity(id int32) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, exists := w.entities[id]
	return exists
}

func (w *World) Entity(id int32) (*Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, exists := w.entities[id]
	return e, exists
}

func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// ObserveBlockChanges registers a callback invoked for every block mutation
// in this world. Observers run on the mutating goroutine.
func (w *World) ObserveBlockChanges(fn func(BlockChange)) {
	w.mu.Lock()
	w.observers = append(w.observers, fn)
	w.mu.Unlock()
}

// SetBlock mutates one block and notifies observers.
func (w *World) SetBlock(x int32, y uint8, z int32, blockType, meta byte) {
	w.mu.Lock()
	w.blocks[blockPos{x, y, z}] = blockState{blockType, meta}
	observers := make([]func(BlockChange), len(w.observers))
	copy(observers, w.observers)
	w.mu.Unlock()

	change := BlockChange{X: x, Y: y, Z: z, BlockType: blockType, Meta: meta}
	for _, fn := range observers {
		fn(change)
	}
}

// BlockAt returns the stored override for a block, falling back to the
// generated terrain when the block has never been mutated.
func (w *World) BlockAt(x int32, y uint8, z int32) (byte, byte) {
	w.mu.RLock()
	state, overridden := w.blocks[blockPos{x, y, z}]
	w.mu.RUnlock()

	if overridden {
		return state.blockType, state.meta
	}
	return generatedBlockAt(y), 0
}
