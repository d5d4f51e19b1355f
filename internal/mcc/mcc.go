// Package mcc diffs standalone .mcc files: oversized chunks that don't
// fit the 255-sector MCA cell limit and are stored externally, as a
// single Zlib-compressed NBT document with no region framing at all.
package mcc

import (
	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/diff"
	"github.com/hairlessvillager/region-diff/internal/nbt"
	"golang.org/x/xerrors"
)

// Kind discriminates an MCCDiff's variant.
type Kind int

const (
	Create Kind = iota
	Delete
	Update
)

// ChunkLike is the subset of a chunk differ's interface MCCDiff needs
// to patch and revert. diff.ChunkDiff and diff.EntitiesChunkDiff both
// satisfy it.
type ChunkLike interface {
	Patch(old nbt.Value) (nbt.Value, error)
	Revert(new nbt.Value) (nbt.Value, error)
}

// MCCDiff wraps a chunk differ D for an entire standalone .mcc file.
// D is instantiated as diff.ChunkDiff for the common case (a .mcc
// payload carrying a full chunk compound); the entity-only sibling
// diff.EntitiesChunkDiff also satisfies ChunkLike for symmetry with
// in-MCA chunks, but is not used by the region-diff CLI.
type MCCDiff[D ChunkLike] struct {
	Kind   Kind
	Blob   diff.Blob
	Update D
}

// FromCompare builds the diff between two .mcc file bodies, both
// Zlib-compressed NBT documents. An empty byte slice represents an
// absent file; comparing two absent files is fatal, since a diff with
// nothing on either side is not a meaningful .mcc diff.
func FromCompare[D ChunkLike](old, new []byte, compareFn func(old, new nbt.Value) (D, error)) (MCCDiff[D], error) {
	switch {
	case len(old) == 0 && len(new) == 0:
		return MCCDiff[D]{}, xerrors.New("mcc: cannot compare two empty MCC files")
	case len(old) == 0:
		decompressed, err := compress.Decompress(compress.Zlib, new)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: decompress new: %w", err)
		}
		return MCCDiff[D]{Kind: Create, Blob: diff.FromCreateBlob(decompressed)}, nil
	case len(new) == 0:
		decompressed, err := compress.Decompress(compress.Zlib, old)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: decompress old: %w", err)
		}
		return MCCDiff[D]{Kind: Delete, Blob: diff.FromDeleteBlob(decompressed)}, nil
	default:
		oldNBT, err := decodeMCC(old)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: old: %w", err)
		}
		newNBT, err := decodeMCC(new)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: new: %w", err)
		}
		d, err := compareFn(oldNBT, newNBT)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: compare: %w", err)
		}
		return MCCDiff[D]{Kind: Update, Update: d}, nil
	}
}

// FromSquash composes base (v0->v1) and squashing (v1->v2) into a
// single v0->v2 MCCDiff. Create+Delete has no representation (a file
// created then deleted within the squashed window is indistinguishable
// from one that never existed at the MCA cell level, but at the
// standalone-file level there is no BothNotExist variant to collapse
// into) and is fatal.
func FromSquash[D ChunkLike](base, squashing MCCDiff[D], compareFn func(old, new nbt.Value) (D, error), squashFn func(base, squashing D) (D, error)) (MCCDiff[D], error) {
	switch {
	case base.Kind == Create && squashing.Kind == Update:
		baseNBT, err := nbt.Decode(base.Blob.New)
		if err != nil {
			return MCCDiff[D]{}, err
		}
		squashedNBT, err := squashing.Update.Patch(baseNBT)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: squash: %w", err)
		}
		squashedBytes, err := nbt.Encode(squashedNBT)
		if err != nil {
			return MCCDiff[D]{}, err
		}
		return MCCDiff[D]{Kind: Create, Blob: diff.FromCreateBlob(squashedBytes)}, nil
	case base.Kind == Create && squashing.Kind == Delete:
		return MCCDiff[D]{}, xerrors.New("mcc: squashing a Create then Delete diff results in no change, which has no MCCDiff representation")
	case base.Kind == Update && squashing.Kind == Update:
		d, err := squashFn(base.Update, squashing.Update)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: squash: %w", err)
		}
		return MCCDiff[D]{Kind: Update, Update: d}, nil
	case base.Kind == Update && squashing.Kind == Delete:
		squashingNBT, err := nbt.Decode(squashing.Blob.Old)
		if err != nil {
			return MCCDiff[D]{}, err
		}
		baseNBT, err := base.Update.Revert(squashingNBT)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: squash: %w", err)
		}
		baseBytes, err := nbt.Encode(baseNBT)
		if err != nil {
			return MCCDiff[D]{}, err
		}
		return MCCDiff[D]{Kind: Delete, Blob: diff.FromDeleteBlob(baseBytes)}, nil
	case base.Kind == Delete && squashing.Kind == Create:
		oldNBT, err := nbt.Decode(base.Blob.Old)
		if err != nil {
			return MCCDiff[D]{}, err
		}
		newNBT, err := nbt.Decode(squashing.Blob.New)
		if err != nil {
			return MCCDiff[D]{}, err
		}
		d, err := compareFn(oldNBT, newNBT)
		if err != nil {
			return MCCDiff[D]{}, xerrors.Errorf("mcc: squash: %w", err)
		}
		return MCCDiff[D]{Kind: Update, Update: d}, nil
	default:
		return MCCDiff[D]{}, xerrors.Errorf("mcc: invalid squash combination (base=%d, squashing=%d)", base.Kind, squashing.Kind)
	}
}

// Patch applies d to old, an empty-or-Zlib-compressed .mcc body,
// producing the new file body, freshly Zlib-compressed.
func (d MCCDiff[D]) Patch(old []byte) ([]byte, error) {
	switch d.Kind {
	case Create:
		if len(old) != 0 {
			return nil, xerrors.New("mcc: cannot apply a Create diff to a non-empty file")
		}
		patched := d.Blob.Patch(nil)
		return compress.Compress(compress.Zlib, patched)
	case Delete:
		return nil, nil
	case Update:
		oldNBT, err := decodeMCC(old)
		if err != nil {
			return nil, xerrors.Errorf("mcc: patch: %w", err)
		}
		newNBT, err := d.Update.Patch(oldNBT)
		if err != nil {
			return nil, xerrors.Errorf("mcc: patch: %w", err)
		}
		newBytes, err := nbt.Encode(newNBT)
		if err != nil {
			return nil, err
		}
		return compress.Compress(compress.Zlib, newBytes)
	default:
		return nil, xerrors.Errorf("mcc: patch: invalid diff kind %d", d.Kind)
	}
}

// Revert applies d in reverse to new, recovering the original file
// body.
func (d MCCDiff[D]) Revert(new []byte) ([]byte, error) {
	switch d.Kind {
	case Create:
		return nil, nil
	case Delete:
		if len(new) != 0 {
			return nil, xerrors.New("mcc: cannot apply a Delete diff to a non-empty file")
		}
		reverted := d.Blob.Revert(nil)
		return compress.Compress(compress.Zlib, reverted)
	case Update:
		newNBT, err := decodeMCC(new)
		if err != nil {
			return nil, xerrors.Errorf("mcc: revert: %w", err)
		}
		oldNBT, err := d.Update.Revert(newNBT)
		if err != nil {
			return nil, xerrors.Errorf("mcc: revert: %w", err)
		}
		oldBytes, err := nbt.Encode(oldNBT)
		if err != nil {
			return nil, err
		}
		return compress.Compress(compress.Zlib, oldBytes)
	default:
		return nil, xerrors.Errorf("mcc: revert: invalid diff kind %d", d.Kind)
	}
}

func decodeMCC(data []byte) (nbt.Value, error) {
	raw, err := compress.Decompress(compress.Zlib, data)
	if err != nil {
		return nbt.Value{}, xerrors.Errorf("decompress: %w", err)
	}
	return nbt.Decode(raw)
}
