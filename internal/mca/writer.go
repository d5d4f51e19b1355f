package mca

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/logging"
	"github.com/hairlessvillager/region-diff/internal/parallel"
	"golang.org/x/xerrors"
)

// Builder assembles a sparse (x,z) -> Chunk mapping into a complete
// MCA byte image. Cells are set independently and in any order;
// ToBytes does the sector-aligned layout pass.
type Builder struct {
	chunks [CellCount]*Chunk
}

func NewBuilder() *Builder { return &Builder{} }

// Set stores chunk at (x,z). A nil chunk marks the cell absent.
func (b *Builder) Set(x, z int, chunk *Chunk) {
	b.chunks[Index(x, z)] = chunk
}

type compressedCell struct {
	index     int
	payload   []byte // length prefix + magic + compressed bytes (or the large-chunk stub)
	timestamp uint32
}

// ToBytes serializes the builder's contents as a complete MCA image,
// compressing every present Small chunk with kind.
//
// It follows the same two-pass shape as a conventional fixed-header
// binary writer: emit a zeroed header placeholder, append the
// variable-length payload region while recording each cell's sector
// offset and count, then go back and fill in the header with the
// final values.
func (b *Builder) ToBytes(ctx context.Context, kind compress.Kind, threads int, logger *logging.Logger) ([]byte, error) {
	type task struct {
		index int
		chunk *Chunk
	}
	var tasks []task
	for i, c := range b.chunks {
		if c != nil {
			tasks = append(tasks, task{index: i, chunk: c})
		}
	}
	cost := func(t task) int { return len(t.chunk.NBT) }
	cells, err := parallel.Run(ctx, threads, tasks, cost, func(_ context.Context, t task) (compressedCell, error) {
		x, z := XZ(t.index)
		if t.chunk.IsLarge {
			return compressedCell{
				index:     t.index,
				payload:   []byte{0, 0, 0, 1, compress.ToMagic(kind) | 0x80},
				timestamp: t.chunk.Timestamp,
			}, nil
		}
		compressed, err := compress.Compress(kind, t.chunk.NBT)
		if err != nil {
			return compressedCell{}, xerrors.Errorf("mca: write: cell (%d,%d): %w", x, z, err)
		}
		length := uint32(len(compressed) + 1)
		header := make([]byte, 5)
		binary.BigEndian.PutUint32(header[0:4], length)
		header[4] = compress.ToMagic(kind)
		return compressedCell{
			index:     t.index,
			payload:   append(header, compressed...),
			timestamp: t.chunk.Timestamp,
		}, nil
	}, logger)
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]compressedCell, len(cells))
	for _, c := range cells {
		byIndex[c.index] = c
	}

	var buf bytes.Buffer
	buf.Write(make([]byte, headerSize)) // placeholder header, backpatched below

	var locs [CellCount]location
	var timestamps [CellCount]uint32
	for i := 0; i < CellCount; i++ {
		c, ok := byIndex[i]
		if !ok {
			continue
		}
		sectorOffset := buf.Len() / SectorSize
		buf.Write(c.payload)
		sectorCount := (len(c.payload) + SectorSize - 1) / SectorSize
		pad := sectorCount*SectorSize - len(c.payload)
		buf.Write(make([]byte, pad))
		if sectorOffset > 0xFFFFFF || sectorCount > 0xFF {
			x, z := XZ(i)
			return nil, xerrors.Errorf("mca: write: cell (%d,%d) exceeds sector-table limits (offset=%d, count=%d)", x, z, sectorOffset, sectorCount)
		}
		locs[i] = location{sectorOffset: uint32(sectorOffset), sectorCount: uint8(sectorCount)}
		timestamps[i] = c.timestamp
	}

	out := buf.Bytes()
	for i := 0; i < CellCount; i++ {
		off := i * 4
		loc := locs[i]
		out[off] = byte(loc.sectorOffset >> 16)
		out[off+1] = byte(loc.sectorOffset >> 8)
		out[off+2] = byte(loc.sectorOffset)
		out[off+3] = loc.sectorCount
		tsOff := SectorSize + i*4
		binary.BigEndian.PutUint32(out[tsOff:tsOff+4], timestamps[i])
	}
	return out, nil
}
