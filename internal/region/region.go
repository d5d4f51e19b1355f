// Package region implements the top-level MCA file differ: per-cell
// classification across the 1024-cell grid, parallel construction,
// and the patch/revert/squash algebra over the five-variant diff tree
// spec.md's Component Design calls out as the outer layer of the
// core.
package region

import (
	"context"

	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/diff"
	"github.com/hairlessvillager/region-diff/internal/logging"
	"github.com/hairlessvillager/region-diff/internal/mca"
	"github.com/hairlessvillager/region-diff/internal/nbt"
	"github.com/hairlessvillager/region-diff/internal/parallel"
	"golang.org/x/xerrors"
)

// runParallel is a thin generic alias for parallel.Run, kept local so
// call sites in this file don't need to spell out the package name
// for every type parameter inference.
func runParallel[T, R any](ctx context.Context, threads int, tasks []T, cost func(T) int, fn func(context.Context, T) (R, error), logger *logging.Logger) ([]R, error) {
	return parallel.Run(ctx, threads, tasks, cost, fn, logger)
}

// CellKind discriminates a single grid cell's diff variant. Order is
// fixed for serialization: BothNotExist, Create, Delete, Update,
// NoChange.
type CellKind int

const (
	BothNotExist CellKind = iota
	Create
	Delete
	Update
	NoChange
)

// CellDiff is the per-cell diff for one of the 1024 MCA grid
// positions.
//
// A Large chunk (mca.Chunk.IsLarge) has no NBT at the MCA level -- its
// content lives in a companion .mcc file handled by package mcc. Per
// the container format, the MCA differ treats Large chunks as opaque
// identity: equality by sentinel alone. OldIsLarge/NewIsLarge record
// which side, if either, was Large; when either is set on an Update
// cell, Blob carries the raw (possibly empty) bytes of each side
// verbatim instead of ChunkDiff describing a structural difference,
// since a Large side has no NBT to decode and structurally diff.
type CellDiff struct {
	Kind       CellKind
	TSDelta    int32
	Blob       diff.Blob
	ChunkDiff  diff.ChunkDiff
	OldIsLarge bool
	NewIsLarge bool
}

// isOpaqueUpdate reports whether an Update cell crosses the Large
// sentinel on at least one side, and so must be patched/reverted/
// squashed as a verbatim pass-through rather than via ChunkDiff.
func (c CellDiff) isOpaqueUpdate() bool {
	return c.Kind == Update && (c.OldIsLarge || c.NewIsLarge)
}

// Diff is the complete structural diff between two MCA files: one
// CellDiff per grid cell, row-major.
type Diff struct {
	Cells [mca.CellCount]CellDiff
}

// FromCompare builds the diff between two parsed MCA readers,
// classifying and diffing every cell in parallel. logger may be nil.
func FromCompare(ctx context.Context, old, new *mca.Reader, threads int, logger *logging.Logger) (*Diff, error) {
	cells, err := runCells(ctx, threads, old, new, logger)
	if err != nil {
		return nil, err
	}
	return &Diff{Cells: cells}, nil
}

func runCells(ctx context.Context, threads int, old, new *mca.Reader, logger *logging.Logger) ([mca.CellCount]CellDiff, error) {
	var out [mca.CellCount]CellDiff
	type idx struct{ i int }
	tasks := make([]idx, mca.CellCount)
	for i := range tasks {
		tasks[i] = idx{i}
	}
	cost := func(t idx) int {
		n := 0
		if oc := getCell(old, t.i); oc != nil {
			n += len(oc.NBT)
		}
		if nc := getCell(new, t.i); nc != nil {
			n += len(nc.NBT)
		}
		return n
	}
	results, err := runParallel(ctx, threads, tasks, cost, func(_ context.Context, t idx) (CellDiff, error) {
		return compareCell(old, new, t.i)
	}, logger)
	if err != nil {
		return out, err
	}
	copy(out[:], results)
	return out, nil
}

func getCell(r *mca.Reader, i int) *mca.Chunk {
	x, z := mca.XZ(i)
	return r.Get(x, z)
}

func compareCell(old, new *mca.Reader, i int) (CellDiff, error) {
	x, z := mca.XZ(i)
	oldTS := old.Timestamp(x, z)
	newTS := new.Timestamp(x, z)
	tsDelta := int32(newTS) - int32(oldTS)

	oldChunk := old.Get(x, z)
	newChunk := new.Get(x, z)

	if oldTS == 0 && newTS == 0 {
		return CellDiff{Kind: BothNotExist}, nil
	}
	if oldChunk == nil && newChunk == nil {
		return CellDiff{Kind: BothNotExist}, nil
	}
	if tsDelta == 0 {
		return CellDiff{Kind: NoChange}, nil
	}
	switch {
	case oldChunk == nil && newChunk != nil:
		return CellDiff{Kind: Create, TSDelta: tsDelta, NewIsLarge: newChunk.IsLarge, Blob: diff.FromCreateBlob(newChunk.NBT)}, nil
	case oldChunk != nil && newChunk == nil:
		return CellDiff{Kind: Delete, TSDelta: -int32(oldTS), OldIsLarge: oldChunk.IsLarge, Blob: diff.FromDeleteBlob(oldChunk.NBT)}, nil
	case oldChunk.IsLarge || newChunk.IsLarge:
		return CellDiff{
			Kind:       Update,
			TSDelta:    tsDelta,
			OldIsLarge: oldChunk.IsLarge,
			NewIsLarge: newChunk.IsLarge,
			Blob:       diff.Blob{Old: oldChunk.NBT, New: newChunk.NBT},
		}, nil
	default:
		oldNBT, err := nbt.Decode(oldChunk.NBT)
		if err != nil {
			return CellDiff{}, xerrors.Errorf("region: cell (%d,%d): decode old: %w", x, z, err)
		}
		newNBT, err := nbt.Decode(newChunk.NBT)
		if err != nil {
			return CellDiff{}, xerrors.Errorf("region: cell (%d,%d): decode new: %w", x, z, err)
		}
		cd, err := diff.FromCompareChunk(oldNBT, newNBT)
		if err != nil {
			return CellDiff{}, xerrors.Errorf("region: cell (%d,%d): %w", x, z, err)
		}
		return CellDiff{Kind: Update, TSDelta: tsDelta, ChunkDiff: cd}, nil
	}
}

// Patch applies d to old, producing a complete new MCA byte image.
// The MCA writer's outer compression is always Zlib, matching the
// fixed compression the original implementation hardcodes -- there is
// no configurable output codec for patch/revert. logger may be nil.
func (d *Diff) Patch(ctx context.Context, old *mca.Reader, threads int, logger *logging.Logger) ([]byte, error) {
	b := mca.NewBuilder()
	for i := 0; i < mca.CellCount; i++ {
		x, z := mca.XZ(i)
		cell := d.Cells[i]
		oldChunk := old.Get(x, z)
		switch cell.Kind {
		case BothNotExist:
			b.Set(x, z, nil)
		case Create:
			if oldChunk != nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): Create but old chunk exists", x, z)
			}
			nbtBytes := cell.Blob.Patch(nil)
			ts := cell.TSDelta
			if ts <= 0 {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): Create with non-positive delta", x, z)
			}
			b.Set(x, z, &mca.Chunk{Timestamp: uint32(ts), NBT: nbtBytes, IsLarge: cell.NewIsLarge})
		case Delete:
			if oldChunk == nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): Delete but old chunk absent", x, z)
			}
			b.Set(x, z, nil)
		case Update:
			if oldChunk == nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): Update but old chunk absent", x, z)
			}
			newTS, err := checkedAddTimestamp(oldChunk.Timestamp, cell.TSDelta)
			if err != nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): %w", x, z, err)
			}
			if cell.isOpaqueUpdate() {
				if oldChunk.IsLarge != cell.OldIsLarge {
					return nil, xerrors.Errorf("region: patch: cell (%d,%d): recorded old-large=%v but input chunk large=%v", x, z, cell.OldIsLarge, oldChunk.IsLarge)
				}
				b.Set(x, z, &mca.Chunk{Timestamp: newTS, NBT: cell.Blob.Patch(nil), IsLarge: cell.NewIsLarge})
				break
			}
			oldNBT, err := nbt.Decode(oldChunk.NBT)
			if err != nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): %w", x, z, err)
			}
			newNBT, err := cell.ChunkDiff.Patch(oldNBT)
			if err != nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): %w", x, z, err)
			}
			newBytes, err := nbt.Encode(newNBT)
			if err != nil {
				return nil, err
			}
			b.Set(x, z, &mca.Chunk{Timestamp: newTS, NBT: newBytes})
		case NoChange:
			if oldChunk == nil {
				return nil, xerrors.Errorf("region: patch: cell (%d,%d): NoChange but old chunk absent", x, z)
			}
			b.Set(x, z, oldChunk)
		default:
			return nil, xerrors.Errorf("region: patch: cell (%d,%d): invalid diff kind %d", x, z, cell.Kind)
		}
	}
	return b.ToBytes(ctx, compress.Zlib, threads, logger)
}

// Revert applies d in reverse to new, recovering the original MCA
// byte image. The MCA writer's outer compression is always Zlib, for
// the same reason noted on Patch. logger may be nil.
func (d *Diff) Revert(ctx context.Context, new *mca.Reader, threads int, logger *logging.Logger) ([]byte, error) {
	b := mca.NewBuilder()
	for i := 0; i < mca.CellCount; i++ {
		x, z := mca.XZ(i)
		cell := d.Cells[i]
		newChunk := new.Get(x, z)
		switch cell.Kind {
		case BothNotExist:
			b.Set(x, z, nil)
		case Delete:
			if newChunk != nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): Delete but new chunk exists", x, z)
			}
			nbtBytes := cell.Blob.Revert(nil)
			ts := -cell.TSDelta
			b.Set(x, z, &mca.Chunk{Timestamp: uint32(ts), NBT: nbtBytes, IsLarge: cell.OldIsLarge})
		case Create:
			if newChunk == nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): Create but new chunk absent", x, z)
			}
			b.Set(x, z, nil)
		case Update:
			if newChunk == nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): Update but new chunk absent", x, z)
			}
			oldTS, err := checkedAddTimestamp(newChunk.Timestamp, -cell.TSDelta)
			if err != nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): %w", x, z, err)
			}
			if cell.isOpaqueUpdate() {
				if newChunk.IsLarge != cell.NewIsLarge {
					return nil, xerrors.Errorf("region: revert: cell (%d,%d): recorded new-large=%v but input chunk large=%v", x, z, cell.NewIsLarge, newChunk.IsLarge)
				}
				b.Set(x, z, &mca.Chunk{Timestamp: oldTS, NBT: cell.Blob.Revert(nil), IsLarge: cell.OldIsLarge})
				break
			}
			newNBT, err := nbt.Decode(newChunk.NBT)
			if err != nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): %w", x, z, err)
			}
			oldNBT, err := cell.ChunkDiff.Revert(newNBT)
			if err != nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): %w", x, z, err)
			}
			oldBytes, err := nbt.Encode(oldNBT)
			if err != nil {
				return nil, err
			}
			b.Set(x, z, &mca.Chunk{Timestamp: oldTS, NBT: oldBytes})
		case NoChange:
			if newChunk == nil {
				return nil, xerrors.Errorf("region: revert: cell (%d,%d): NoChange but new chunk absent", x, z)
			}
			b.Set(x, z, newChunk)
		default:
			return nil, xerrors.Errorf("region: revert: cell (%d,%d): invalid diff kind %d", x, z, cell.Kind)
		}
	}
	return b.ToBytes(ctx, compress.Zlib, threads, logger)
}

func checkedAddTimestamp(base uint32, delta int32) (uint32, error) {
	result := int64(base) + int64(delta)
	if result < 0 || result > int64(^uint32(0)) {
		return 0, xerrors.Errorf("timestamp overflow: base=%d delta=%d", base, delta)
	}
	return uint32(result), nil
}

// Squash composes base (v0->v1) and squashing (v1->v2) into a single
// v0->v2 diff, cell by cell, following the exhaustive variant-pair
// table: Create+Delete annihilate to BothNotExist, Delete+Create
// reconstructs a full Update from the two blobs, NoChange followed by
// a Delete or Update clones the later cell, a Create or Update
// followed by NoChange clones the earlier one, and any pair outside
// the table is an error.
func Squash(ctx context.Context, base, squashing *Diff, threads int, logger *logging.Logger) (*Diff, error) {
	type idx struct{ i int }
	tasks := make([]idx, mca.CellCount)
	for i := range tasks {
		tasks[i] = idx{i}
	}
	results, err := runParallel(ctx, threads, tasks, nil, func(_ context.Context, t idx) (CellDiff, error) {
		return squashCell(base.Cells[t.i], squashing.Cells[t.i])
	}, logger)
	if err != nil {
		return nil, err
	}
	out := &Diff{}
	copy(out.Cells[:], results)
	return out, nil
}

func squashCell(b, s CellDiff) (CellDiff, error) {
	switch {
	case b.Kind == BothNotExist && s.Kind == BothNotExist:
		return CellDiff{Kind: BothNotExist}, nil
	case b.Kind == Create && s.Kind == Delete:
		return CellDiff{Kind: BothNotExist}, nil
	case b.Kind == Delete && s.Kind == Create:
		if b.OldIsLarge || s.NewIsLarge {
			// Delete and Create already carry the raw (possibly
			// opaque) bytes of their respective sides verbatim, so no
			// decode is needed to reconstruct the direct v0->v2 Update.
			return CellDiff{
				Kind:       Update,
				TSDelta:    b.TSDelta + s.TSDelta,
				OldIsLarge: b.OldIsLarge,
				NewIsLarge: s.NewIsLarge,
				Blob:       diff.Blob{Old: b.Blob.Old, New: s.Blob.New},
			}, nil
		}
		oldNBT, err := nbt.Decode(b.Blob.Old)
		if err != nil {
			return CellDiff{}, err
		}
		newNBT, err := nbt.Decode(s.Blob.New)
		if err != nil {
			return CellDiff{}, err
		}
		cd, err := diff.FromCompareChunk(oldNBT, newNBT)
		if err != nil {
			return CellDiff{}, err
		}
		return CellDiff{Kind: Update, TSDelta: b.TSDelta + s.TSDelta, ChunkDiff: cd}, nil
	case b.Kind == BothNotExist && s.Kind == Create:
		return s, nil
	case b.Kind == Delete && s.Kind == BothNotExist:
		return b, nil
	case b.Kind == Update && s.Kind == Update:
		if b.isOpaqueUpdate() || s.isOpaqueUpdate() {
			return squashOpaqueUpdate(b, s)
		}
		cd, err := diff.SquashChunk(b.ChunkDiff, s.ChunkDiff)
		if err != nil {
			return CellDiff{}, err
		}
		return CellDiff{Kind: Update, TSDelta: b.TSDelta + s.TSDelta, ChunkDiff: cd}, nil
	case b.Kind == Create && s.Kind == Update:
		if b.NewIsLarge {
			return CellDiff{}, xerrors.Errorf("region: squash: cannot structurally diff through a Large intermediate chunk")
		}
		if s.isOpaqueUpdate() {
			return CellDiff{Kind: Create, TSDelta: b.TSDelta + s.TSDelta, NewIsLarge: s.NewIsLarge, Blob: diff.Blob{Old: b.Blob.Old, New: s.Blob.New}}, nil
		}
		patchedNBT, err := patchedChunkBytes(b.Blob.New, s.ChunkDiff)
		if err != nil {
			return CellDiff{}, err
		}
		return CellDiff{Kind: Create, TSDelta: b.TSDelta + s.TSDelta, Blob: diff.Blob{Old: b.Blob.Old, New: patchedNBT}}, nil
	case b.Kind == Update && s.Kind == Delete:
		if s.OldIsLarge {
			return CellDiff{}, xerrors.Errorf("region: squash: cannot structurally diff through a Large intermediate chunk")
		}
		if b.isOpaqueUpdate() {
			return CellDiff{Kind: Delete, TSDelta: b.TSDelta + s.TSDelta, OldIsLarge: b.OldIsLarge, Blob: diff.Blob{Old: b.Blob.Old, New: s.Blob.New}}, nil
		}
		revertedNBT, err := revertedChunkBytes(s.Blob.Old, b.ChunkDiff)
		if err != nil {
			return CellDiff{}, err
		}
		return CellDiff{Kind: Delete, TSDelta: b.TSDelta + s.TSDelta, Blob: diff.Blob{Old: revertedNBT, New: s.Blob.New}}, nil
	case b.Kind == NoChange && s.Kind == NoChange:
		return CellDiff{Kind: NoChange}, nil
	case b.Kind == NoChange && (s.Kind == Delete || s.Kind == Update):
		return s, nil
	case (b.Kind == Create || b.Kind == Update) && s.Kind == NoChange:
		return b, nil
	default:
		return CellDiff{}, xerrors.Errorf("region: invalid squash combination (base=%d, squashing=%d)", b.Kind, s.Kind)
	}
}

// squashOpaqueUpdate composes two Update cells where at least one
// crosses the Large sentinel. The Large side of either cell carries no
// NBT, so the composition works directly on raw bytes (nil where
// opaque) instead of structurally squashing a ChunkDiff.
func squashOpaqueUpdate(b, s CellDiff) (CellDiff, error) {
	tsDelta := b.TSDelta + s.TSDelta
	switch {
	case b.isOpaqueUpdate() && s.isOpaqueUpdate():
		if b.NewIsLarge != s.OldIsLarge {
			return CellDiff{}, xerrors.Errorf("region: squash: opaque update continuity mismatch (base new-large=%v, squashing old-large=%v)", b.NewIsLarge, s.OldIsLarge)
		}
		return CellDiff{Kind: Update, TSDelta: tsDelta, OldIsLarge: b.OldIsLarge, NewIsLarge: s.NewIsLarge, Blob: diff.Blob{Old: b.Blob.Old, New: s.Blob.New}}, nil
	case b.isOpaqueUpdate():
		if b.NewIsLarge {
			return CellDiff{}, xerrors.Errorf("region: squash: cannot structurally diff through a Large intermediate chunk")
		}
		newBytes, err := patchedChunkBytes(b.Blob.New, s.ChunkDiff)
		if err != nil {
			return CellDiff{}, err
		}
		return CellDiff{Kind: Update, TSDelta: tsDelta, OldIsLarge: b.OldIsLarge, Blob: diff.Blob{Old: b.Blob.Old, New: newBytes}}, nil
	case s.isOpaqueUpdate():
		if s.OldIsLarge {
			return CellDiff{}, xerrors.Errorf("region: squash: cannot structurally diff through a Large intermediate chunk")
		}
		oldBytes, err := revertedChunkBytes(s.Blob.Old, b.ChunkDiff)
		if err != nil {
			return CellDiff{}, err
		}
		return CellDiff{Kind: Update, TSDelta: tsDelta, NewIsLarge: s.NewIsLarge, Blob: diff.Blob{Old: oldBytes, New: s.Blob.New}}, nil
	default:
		return CellDiff{}, xerrors.Errorf("region: squash: invalid opaque update combination")
	}
}

func patchedChunkBytes(oldNBTBytes []byte, cd diff.ChunkDiff) ([]byte, error) {
	oldNBT, err := nbt.Decode(oldNBTBytes)
	if err != nil {
		return nil, err
	}
	newNBT, err := cd.Patch(oldNBT)
	if err != nil {
		return nil, err
	}
	return nbt.Encode(newNBT)
}

func revertedChunkBytes(newNBTBytes []byte, cd diff.ChunkDiff) ([]byte, error) {
	newNBT, err := nbt.Decode(newNBTBytes)
	if err != nil {
		return nil, err
	}
	oldNBT, err := cd.Revert(newNBT)
	if err != nil {
		return nil, err
	}
	return nbt.Encode(oldNBT)
}
