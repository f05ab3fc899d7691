package world

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/patrickmn/go-cache"
)

const (
	// ChunkWidth is the side length of a chunk column in blocks.
	ChunkWidth = 16
	// ChunkHeight is the vertical extent of a chunk column in blocks.
	ChunkHeight = 64

	// Generated terrain layers.
	surfaceHeight = 32

	BlockAir     byte = 0
	BlockStone   byte = 1
	BlockGrass   byte = 2
	BlockDirt    byte = 3
	BlockBedrock byte = 7
)

// ChunkCoord addresses one chunk column.
type ChunkCoord struct {
	X, Z int32
}

// ColumnAt returns the chunk column containing a world position.
func ColumnAt(x, z float64) ChunkCoord {
	return ChunkCoord{
		X: int32(math.Floor(x / ChunkWidth)),
		Z: int32(math.Floor(z / ChunkWidth)),
	}
}

// ChunkProvider generates chunk columns and caches their encoded form, since
// every joining client requests the same spawn-area columns.
type ChunkProvider struct {
	encoded *cache.Cache
}

func NewChunkProvider() *ChunkProvider {
	return &ChunkProvider{
		encoded: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// EncodedColumn returns the zlib-compressed block payload for one column.
func (p *ChunkProvider) EncodedColumn(coord ChunkCoord) ([]byte, error) {
	key := fmt.Sprintf("%d:%d", coord.X, coord.Z)
	if payload, hit := p.encoded.Get(key); hit {
		return payload.([]byte), nil
	}

	raw := generateColumn(coord)

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compressing column %v: %w", coord, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing column %v: %w", coord, err)
	}

	payload := buf.Bytes()
	p.encoded.Set(key, payload, cache.DefaultExpiration)
	return payload, nil
}

// CachedColumns returns how many encoded columns are currently cached.
func (p *ChunkProvider) CachedColumns() int {
	return p.encoded.ItemCount()
}

// generateColumn produces the raw block array for a column, one byte per
// block in x, z, y order.
func generateColumn(ChunkCoord) []byte {
	raw := make([]byte, ChunkWidth*ChunkWidth*ChunkHeight)
	i := 0
	for x := 0; x < ChunkWidth; x++ {
		for z := 0; z < ChunkWidth; z++ {
			for y := 0; y < ChunkHeight; y++ {
				raw[i] = generatedBlockAt(uint8(y))
				i++
			}
		}
	}
	return raw
}

func generatedBlockAt(y uint8) byte {
	switch {
	case y == 0:
		return BlockBedrock
	case y < surfaceHeight-3:
		return BlockStone
	case y < surfaceHeight:
		return BlockDirt
	case y == surfaceHeight:
		return BlockGrass
	}
	return BlockAir
}

// SpawnColumns lists the chunk columns of the initial terrain burst around a
// spawn point, nearest first. The spawn column itself is always included,
// even with a zero view distance.
func SpawnColumns(spawn Position, viewDistance int) []ChunkCoord {
	center := ColumnAt(spawn.X, spawn.Z)

	var coords []ChunkCoord
	for ring := 0; ring <= viewDistance; ring++ {
		for dx := -ring; dx <= ring; dx++ {
			for dz := -ring; dz <= ring; dz++ {
				if max(abs(dx), abs(dz)) != ring {
					continue
				}
				coords = append(coords, ChunkCoord{X: center.X + int32(dx), Z: center.Z + int32(dz)})
			}
		}
	}
	return coords
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
