package region

import (
	"context"
	"testing"

	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/diff"
	"github.com/hairlessvillager/region-diff/internal/mca"
	"github.com/hairlessvillager/region-diff/internal/nbt"
)

func encodeChunk(t *testing.T, dataVersion int32) []byte {
	t.Helper()
	v := nbt.Value{
		Tag:          nbt.TagCompound,
		CompoundKeys: []string{"DataVersion"},
		Compound:     map[string]nbt.Value{"DataVersion": nbt.Int32Value(dataVersion)},
	}
	b, err := nbt.Encode(v)
	if err != nil {
		t.Fatalf("nbt.Encode: %v", err)
	}
	return b
}

func buildReader(t *testing.T, cells map[[2]int]*mca.Chunk) *mca.Reader {
	t.Helper()
	b := mca.NewBuilder()
	for xz, c := range cells {
		b.Set(xz[0], xz[1], c)
	}
	data, err := b.ToBytes(context.Background(), compress.Zlib, 2, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	r, err := mca.Read(context.Background(), data, 2, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return r
}

func TestCompareCellClassifiesEveryVariant(t *testing.T) {
	old := buildReader(t, map[[2]int]*mca.Chunk{
		{0, 0}: {Timestamp: 10, NBT: encodeChunk(t, 1)}, // deleted
		{1, 0}: {Timestamp: 20, NBT: encodeChunk(t, 1)}, // updated
		{2, 0}: {Timestamp: 30, NBT: encodeChunk(t, 1)}, // unchanged
	})
	new := buildReader(t, map[[2]int]*mca.Chunk{
		{1, 0}: {Timestamp: 25, NBT: encodeChunk(t, 2)}, // updated
		{2, 0}: {Timestamp: 30, NBT: encodeChunk(t, 1)}, // unchanged
		{3, 0}: {Timestamp: 40, NBT: encodeChunk(t, 1)}, // created
	})

	d, err := FromCompare(context.Background(), old, new, 2, nil)
	if err != nil {
		t.Fatalf("FromCompare: %v", err)
	}

	want := map[[2]int]CellKind{
		{0, 0}: Delete,
		{1, 0}: Update,
		{2, 0}: NoChange,
		{3, 0}: Create,
		{4, 0}: BothNotExist,
	}
	for xz, kind := range want {
		got := d.Cells[mca.Index(xz[0], xz[1])].Kind
		if got != kind {
			t.Fatalf("cell %v: Kind = %v, want %v", xz, got, kind)
		}
	}
}

func TestPatchRevertRoundTrip(t *testing.T) {
	old := buildReader(t, map[[2]int]*mca.Chunk{
		{0, 0}: {Timestamp: 10, NBT: encodeChunk(t, 1)},
		{1, 0}: {Timestamp: 20, NBT: encodeChunk(t, 1)},
	})
	new := buildReader(t, map[[2]int]*mca.Chunk{
		{1, 0}: {Timestamp: 25, NBT: encodeChunk(t, 2)},
		{2, 0}: {Timestamp: 40, NBT: encodeChunk(t, 1)},
	})

	d, err := FromCompare(context.Background(), old, new, 2, nil)
	if err != nil {
		t.Fatalf("FromCompare: %v", err)
	}

	patched, err := d.Patch(context.Background(), old, 2, nil)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	patchedReader, err := mca.Read(context.Background(), patched, 2, nil)
	if err != nil {
		t.Fatalf("Read(patched): %v", err)
	}
	if c := patchedReader.Get(0, 0); c != nil {
		t.Fatalf("cell (0,0) should have been deleted, got %+v", c)
	}
	if c := patchedReader.Get(2, 0); c == nil || c.Timestamp != 40 {
		t.Fatalf("cell (2,0) mismatch: %+v", c)
	}

	reverted, err := d.Revert(context.Background(), patchedReader, 2, nil)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	revertedReader, err := mca.Read(context.Background(), reverted, 2, nil)
	if err != nil {
		t.Fatalf("Read(reverted): %v", err)
	}
	if c := revertedReader.Get(0, 0); c == nil || c.Timestamp != 10 {
		t.Fatalf("cell (0,0) not restored: %+v", c)
	}
	if c := revertedReader.Get(2, 0); c != nil {
		t.Fatalf("cell (2,0) should have been reverted away, got %+v", c)
	}
}

// TestLargeChunkIsOpaque exercises a cell whose old or new side is a
// Large chunk (IsLarge, no NBT at the MCA level). Per the container
// format, such cells must compare, patch and revert as verbatim
// identity rather than attempt a structural NBT diff.
func TestLargeChunkIsOpaque(t *testing.T) {
	old := buildReader(t, map[[2]int]*mca.Chunk{
		{5, 5}: {Timestamp: 100, NBT: encodeChunk(t, 1)}, // small -> large
		{6, 5}: {Timestamp: 200, IsLarge: true},          // large -> small
	})
	new := buildReader(t, map[[2]int]*mca.Chunk{
		{5, 5}: {Timestamp: 150, IsLarge: true},
		{6, 5}: {Timestamp: 250, NBT: encodeChunk(t, 2)},
	})

	d, err := FromCompare(context.Background(), old, new, 2, nil)
	if err != nil {
		t.Fatalf("FromCompare: %v", err)
	}

	c1 := d.Cells[mca.Index(5, 5)]
	if c1.Kind != Update || c1.OldIsLarge || !c1.NewIsLarge {
		t.Fatalf("cell (5,5): got %+v, want Update with NewIsLarge", c1)
	}
	c2 := d.Cells[mca.Index(6, 5)]
	if c2.Kind != Update || !c2.OldIsLarge || c2.NewIsLarge {
		t.Fatalf("cell (6,5): got %+v, want Update with OldIsLarge", c2)
	}

	patched, err := d.Patch(context.Background(), old, 2, nil)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	patchedReader, err := mca.Read(context.Background(), patched, 2, nil)
	if err != nil {
		t.Fatalf("Read(patched): %v", err)
	}
	if c := patchedReader.Get(5, 5); c == nil || !c.IsLarge || c.Timestamp != 150 {
		t.Fatalf("cell (5,5) after patch: %+v, want Large at ts 150", c)
	}
	if c := patchedReader.Get(6, 5); c == nil || c.IsLarge || c.Timestamp != 250 {
		t.Fatalf("cell (6,5) after patch: %+v, want Small at ts 250", c)
	}

	reverted, err := d.Revert(context.Background(), patchedReader, 2, nil)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	revertedReader, err := mca.Read(context.Background(), reverted, 2, nil)
	if err != nil {
		t.Fatalf("Read(reverted): %v", err)
	}
	if c := revertedReader.Get(5, 5); c == nil || c.IsLarge || c.Timestamp != 100 {
		t.Fatalf("cell (5,5) after revert: %+v, want Small at ts 100", c)
	}
	if c := revertedReader.Get(6, 5); c == nil || !c.IsLarge || c.Timestamp != 200 {
		t.Fatalf("cell (6,5) after revert: %+v, want Large at ts 200", c)
	}
}

func TestSquashThroughLargeIntermediateRejectsStructuralDiff(t *testing.T) {
	base := CellDiff{Kind: Create, TSDelta: 10, NewIsLarge: true}
	squashing := CellDiff{Kind: Update, TSDelta: 5, ChunkDiff: diff.ChunkDiff{}}
	if _, err := squashCell(base, squashing); err == nil {
		t.Fatal("expected error squashing a structural Update onto a Large Create")
	}
}

func TestSquashComposesOpaqueUpdates(t *testing.T) {
	b := CellDiff{Kind: Update, TSDelta: 5, NewIsLarge: true, Blob: diff.Blob{Old: []byte("v0"), New: nil}}
	s := CellDiff{Kind: Update, TSDelta: 7, OldIsLarge: true, Blob: diff.Blob{Old: nil, New: []byte("v2")}}
	squashed, err := squashCell(b, s)
	if err != nil {
		t.Fatalf("squashCell: %v", err)
	}
	if squashed.Kind != Update || squashed.TSDelta != 12 {
		t.Fatalf("squashed = %+v, want Update with TSDelta 12", squashed)
	}
	if string(squashed.Blob.Old) != "v0" || string(squashed.Blob.New) != "v2" {
		t.Fatalf("squashed blob = %+v, want Old=v0 New=v2", squashed.Blob)
	}
}

func TestSquashOpaqueUpdateContinuityMismatch(t *testing.T) {
	// Both cells are opaque (each has a Large side), but b's New side and
	// s's Old side disagree on whether the intermediate chunk was Large --
	// an inconsistent diff chain.
	b := CellDiff{Kind: Update, NewIsLarge: true}
	s := CellDiff{Kind: Update, NewIsLarge: true} // OldIsLarge false: discontinuous with b.NewIsLarge
	if _, err := squashOpaqueUpdate(b, s); err == nil {
		t.Fatal("expected continuity mismatch error")
	}
}
