// Package mca reads and writes Minecraft Anvil region files: the
// 32x32 grid of NBT-encoded chunks backing a world region, framed by
// an 8 KiB sector-indexed header.
package mca

import (
	"context"
	"encoding/binary"

	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/logging"
	"github.com/hairlessvillager/region-diff/internal/parallel"
	"golang.org/x/xerrors"
)

const (
	GridSize   = 32
	CellCount  = GridSize * GridSize
	SectorSize = 4096
	headerSize = 2 * SectorSize
)

// Index returns the row-major cell index for chunk coordinates (x,z),
// both in [0, GridSize).
func Index(x, z int) int { return z*GridSize + x }

// XZ recovers chunk coordinates from a row-major cell index.
func XZ(i int) (x, z int) { return i % GridSize, i / GridSize }

// Chunk is a single present cell: its header timestamp and decoded
// payload. Large chunks have no NBT here; the actual content lives in
// a companion .mcc file (see package mcc) and IsLarge is the only
// signal carried at the MCA level.
type Chunk struct {
	Timestamp uint32
	NBT       []byte
	IsLarge   bool
}

// Reader exposes per-cell access to a parsed MCA byte image. All 1024
// cells are decoded eagerly and in parallel at construction time;
// Get never performs I/O.
type Reader struct {
	timestamps [CellCount]uint32
	chunks     [CellCount]*Chunk // nil means absent
}

type location struct {
	sectorOffset uint32
	sectorCount  uint8
}

// Read parses a complete MCA byte image, decompressing every present
// chunk's payload in parallel across threads workers. logger may be
// nil.
func Read(ctx context.Context, data []byte, threads int, logger *logging.Logger) (*Reader, error) {
	if len(data) < headerSize {
		return nil, xerrors.Errorf("mca: input too short for header (%d bytes)", len(data))
	}

	var locs [CellCount]location
	for i := 0; i < CellCount; i++ {
		off := i * 4
		v := uint32(data[off])<<16 | uint32(data[off+1])<<8 | uint32(data[off+2])
		locs[i] = location{sectorOffset: v, sectorCount: data[off+3]}
	}
	r := &Reader{}
	for i := 0; i < CellCount; i++ {
		tsOff := SectorSize + i*4
		r.timestamps[i] = binary.BigEndian.Uint32(data[tsOff : tsOff+4])
	}

	type task struct {
		index int
		loc   location
	}
	var tasks []task
	for i, loc := range locs {
		if loc.sectorOffset == 0 && loc.sectorCount == 0 {
			continue
		}
		tasks = append(tasks, task{index: i, loc: loc})
	}

	cost := func(t task) int { return int(t.loc.sectorCount) }
	results, err := parallel.Run(ctx, threads, tasks, cost, func(_ context.Context, t task) (*Chunk, error) {
		x, z := XZ(t.index)
		if t.loc.sectorOffset < 2 {
			return nil, xerrors.Errorf("mca: cell (%d,%d): sector offset %d overlaps header", x, z, t.loc.sectorOffset)
		}
		if t.loc.sectorCount == 0 {
			return nil, xerrors.Errorf("mca: cell (%d,%d): zero sector count with nonzero offset", x, z)
		}
		start := int(t.loc.sectorOffset) * SectorSize
		span := int(t.loc.sectorCount) * SectorSize
		if start+span > len(data) {
			return nil, xerrors.Errorf("mca: cell (%d,%d): payload extends past end of file", x, z)
		}
		payload := data[start : start+span]
		if len(payload) < 5 {
			return nil, xerrors.Errorf("mca: cell (%d,%d): payload shorter than length prefix", x, z)
		}
		length := binary.BigEndian.Uint32(payload[0:4])
		if int(length) < 1 || int(length)+4 > len(payload) {
			return nil, xerrors.Errorf("mca: cell (%d,%d): invalid payload length %d", x, z, length)
		}
		magic := payload[4]
		kind, isLarge, err := compress.FromMagic(magic)
		if err != nil {
			return nil, xerrors.Errorf("mca: cell (%d,%d): %w", x, z, err)
		}
		compressed := payload[5 : 4+length]
		if isLarge {
			return &Chunk{Timestamp: r.timestamps[t.index], IsLarge: true}, nil
		}
		raw, err := compress.Decompress(kind, compressed)
		if err != nil {
			return nil, xerrors.Errorf("mca: cell (%d,%d): decompress: %w", x, z, err)
		}
		return &Chunk{Timestamp: r.timestamps[t.index], NBT: raw}, nil
	}, logger)
	if err != nil {
		return nil, err
	}
	// Run re-indexes results to the position within tasks, not to the
	// cell index, so map them back via the original task list.
	for pos, t := range tasks {
		r.chunks[t.index] = results[pos]
	}
	return r, nil
}

// Get returns the cell at (x,z), or nil if absent.
func (r *Reader) Get(x, z int) *Chunk {
	return r.chunks[Index(x, z)]
}

// Timestamp returns the header timestamp at (x,z), independent of
// whether the cell's payload is present (a timestamp can be nonzero
// even for a cell whose location entry is empty, in malformed input;
// callers treat that case as BothNotExist per the diff classification
// rules, not as an error).
func (r *Reader) Timestamp(x, z int) uint32 {
	return r.timestamps[Index(x, z)]
}
