package world

import (
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zlib"

	"bytes"
)

func TestWorld_EntityRegistry(t *testing.T) {
	w := New("overworld", NewChunkProvider())

	e := &Entity{ID: NextEntityID(), Name: "steve", Position: w.Spawn()}
	if err := w.AddEntity(e); err != nil {
		t.Fatalf("AddEntity() returned an unexpected error: %v", err)
	}
	if err := w.AddEntity(e); err == nil {
		t.Error("AddEntity() with a duplicate ID should have returned an error")
	}

	if !w.HasEntity(e.ID) {
		t.Errorf("HasEntity(%d) = false, want true", e.ID)
	}
	if got, ok := w.Entity(e.ID); !ok || got.Name != "steve" {
		t.Errorf("Entity(%d) = %v, %v; want steve, true", e.ID, got, ok)
	}

	if !w.RemoveEntity(e.ID) {
		t.Errorf("RemoveEntity(%d) = false, want true", e.ID)
	}
	if w.RemoveEntity(e.ID) {
		t.Errorf("second RemoveEntity(%d) = true, want false", e.ID)
	}
	if w.HasEntity(e.ID) {
		t.Errorf("HasEntity(%d) = true after removal", e.ID)
	}
}

func TestWorld_BlockChangeObservers(t *testing.T) {
	w := New("overworld", NewChunkProvider())

	var mu sync.Mutex
	var seen []BlockChange
	w.ObserveBlockChanges(func(change BlockChange) {
		mu.Lock()
		seen = append(seen, change)
		mu.Unlock()
	})

	w.SetBlock(10, 33, -4, BlockStone, 0)
	w.SetBlock(10, 34, -4, BlockAir, 0)

	expected := []BlockChange{
		{X: 10, Y: 33, Z: -4, BlockType: BlockStone},
		{X: 10, Y: 34, Z: -4, BlockType: BlockAir},
	}
	if diff := cmp.Diff(expected, seen); diff != "" {
		t.Errorf("observed changes did not match expected; diff:\n%s", diff)
	}

	if blockType, _ := w.BlockAt(10, 33, -4); blockType != BlockStone {
		t.Errorf("BlockAt() = %d, want %d", blockType, BlockStone)
	}
	// An untouched position falls back to generated terrain.
	if blockType, _ := w.BlockAt(0, surfaceHeight, 0); blockType != BlockGrass {
		t.Errorf("BlockAt() for generated terrain = %d, want %d", blockType, BlockGrass)
	}
}

func TestChunkProvider_EncodedColumnRoundTrip(t *testing.T) {
	p := NewChunkProvider()

	payload, err := p.EncodedColumn(ChunkCoord{X: 0, Z: 0})
	if err != nil {
		t.Fatalf("EncodedColumn() returned an unexpected error: %v", err)
	}

	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("payload is not valid zlib: %v", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("decompressing payload: %v", err)
	}

	if len(raw) != ChunkWidth*ChunkWidth*ChunkHeight {
		t.Fatalf("decompressed column is %d bytes, want %d", len(raw), ChunkWidth*ChunkWidth*ChunkHeight)
	}
	if raw[0] != BlockBedrock {
		t.Errorf("bottom block = %d, want bedrock (%d)", raw[0], BlockBedrock)
	}
	if raw[surfaceHeight] != BlockGrass {
		t.Errorf("surface block = %d, want grass (%d)", raw[surfaceHeight], BlockGrass)
	}
}

func TestChunkProvider_CachesEncodedColumns(t *testing.T) {
	p := NewChunkProvider()

	if _, err := p.EncodedColumn(ChunkCoord{X: 1, Z: 2}); err != nil {
		t.Fatalf("EncodedColumn() returned an unexpected error: %v", err)
	}
	if _, err := p.EncodedColumn(ChunkCoord{X: 1, Z: 2}); err != nil {
		t.Fatalf("EncodedColumn() returned an unexpected error: %v", err)
	}

	if count := p.CachedColumns(); count != 1 {
		t.Errorf("CachedColumns() = %d, want 1", count)
	}
}

func TestSpawnColumns(t *testing.T) {
	tests := []struct {
		name         string
		viewDistance int
		wantCount    int
	}{
		{name: "zero view distance still includes the spawn column", viewDistance: 0, wantCount: 1},
		{name: "radius one", viewDistance: 1, wantCount: 9},
		{name: "radius three", viewDistance: 3, wantCount: 49},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spawn := Position{X: 8, Y: 33, Z: 8}
			coords := SpawnColumns(spawn, tt.viewDistance)

			if len(coords) != tt.wantCount {
				t.Fatalf("SpawnColumns() returned %d columns, want %d", len(coords), tt.wantCount)
			}
			if coords[0] != ColumnAt(spawn.X, spawn.Z) {
				t.Errorf("first column = %v, want the spawn column %v", coords[0], ColumnAt(spawn.X, spawn.Z))
			}
		})
	}
}

func TestColumnAt(t *testing.T) {
	tests := []struct {
		x, z float64
		want ChunkCoord
	}{
		{x: 0, z: 0, want: ChunkCoord{0, 0}},
		{x: 15.9, z: 15.9, want: ChunkCoord{0, 0}},
		{x: 16, z: 0, want: ChunkCoord{1, 0}},
		{x: -0.1, z: -16, want: ChunkCoord{-1, -1}},
	}
	for _, tt := range tests {
		if got := ColumnAt(tt.x, tt.z); got != tt.want {
			t.Errorf("ColumnAt(%v, %v) = %v, want %v", tt.x, tt.z, got, tt.want)
		}
	}
}
