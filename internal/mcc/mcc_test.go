package mcc

import (
	"bytes"
	"testing"

	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/diff"
	"github.com/hairlessvillager/region-diff/internal/nbt"
)

func chunkNBT(dataVersion int32) nbt.Value {
	return nbt.Value{
		Tag:          nbt.TagCompound,
		CompoundKeys: []string{"DataVersion", "block_entities", "sections"},
		Compound: map[string]nbt.Value{
			"DataVersion":    nbt.Int32Value(dataVersion),
			"block_entities": {Tag: nbt.TagList, ListElem: nbt.TagEnd},
			"sections":       {Tag: nbt.TagList, ListElem: nbt.TagEnd},
		},
	}
}

func compressedMCC(t *testing.T, v nbt.Value) []byte {
	t.Helper()
	raw, err := nbt.Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := compress.Compress(compress.Zlib, raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	return out
}

func decompressedNBT(t *testing.T, data []byte) nbt.Value {
	t.Helper()
	raw, err := compress.Decompress(compress.Zlib, data)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	v, err := nbt.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestFromCompareEmptyBothIsFatal(t *testing.T) {
	if _, err := FromCompare(nil, nil, diff.FromCompareChunk); err == nil {
		t.Fatal("expected error comparing two empty MCC files")
	}
}

func TestPatchRevertRoundTrip(t *testing.T) {
	v1 := compressedMCC(t, chunkNBT(1))
	v2 := compressedMCC(t, chunkNBT(2))

	d, err := FromCompare(v1, v2, diff.FromCompareChunk)
	if err != nil {
		t.Fatalf("FromCompare: %v", err)
	}
	patched, err := d.Patch(v1)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if got, want := decompressedNBT(t, patched), decompressedNBT(t, v2); !bytes.Equal(mustEncode(t, got), mustEncode(t, want)) {
		t.Fatalf("patched mismatch")
	}
	reverted, err := d.Revert(v2)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if got, want := decompressedNBT(t, reverted), decompressedNBT(t, v1); !bytes.Equal(mustEncode(t, got), mustEncode(t, want)) {
		t.Fatalf("reverted mismatch")
	}
}

func TestCreateDeleteRoundTrip(t *testing.T) {
	v1 := compressedMCC(t, chunkNBT(1))

	created, err := FromCompare(nil, v1, diff.FromCompareChunk)
	if err != nil {
		t.Fatalf("FromCompare create: %v", err)
	}
	if created.Kind != Create {
		t.Fatalf("expected Create, got %d", created.Kind)
	}
	patched, err := created.Patch(nil)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !bytes.Equal(mustEncode(t, decompressedNBT(t, patched)), mustEncode(t, decompressedNBT(t, v1))) {
		t.Fatalf("created patch mismatch")
	}

	deleted, err := FromCompare(v1, nil, diff.FromCompareChunk)
	if err != nil {
		t.Fatalf("FromCompare delete: %v", err)
	}
	if deleted.Kind != Delete {
		t.Fatalf("expected Delete, got %d", deleted.Kind)
	}
	reverted, err := deleted.Revert(nil)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !bytes.Equal(mustEncode(t, decompressedNBT(t, reverted)), mustEncode(t, decompressedNBT(t, v1))) {
		t.Fatalf("deleted revert mismatch")
	}
}

func TestSquashUpdateUpdate(t *testing.T) {
	v1 := compressedMCC(t, chunkNBT(1))
	v2 := compressedMCC(t, chunkNBT(2))
	v3 := compressedMCC(t, chunkNBT(3))

	d12, err := FromCompare(v1, v2, diff.FromCompareChunk)
	if err != nil {
		t.Fatalf("FromCompare v1->v2: %v", err)
	}
	d23, err := FromCompare(v2, v3, diff.FromCompareChunk)
	if err != nil {
		t.Fatalf("FromCompare v2->v3: %v", err)
	}
	squashed, err := FromSquash(d12, d23, diff.FromCompareChunk, diff.SquashChunk)
	if err != nil {
		t.Fatalf("FromSquash: %v", err)
	}
	patched, err := squashed.Patch(v1)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if !bytes.Equal(mustEncode(t, decompressedNBT(t, patched)), mustEncode(t, decompressedNBT(t, v3))) {
		t.Fatalf("squashed patch mismatch")
	}
	reverted, err := squashed.Revert(v3)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if !bytes.Equal(mustEncode(t, decompressedNBT(t, reverted)), mustEncode(t, decompressedNBT(t, v1))) {
		t.Fatalf("squashed revert mismatch")
	}
}

func TestSquashCreateThenDeleteIsFatal(t *testing.T) {
	v1 := compressedMCC(t, chunkNBT(1))
	created, err := FromCompare(nil, v1, diff.FromCompareChunk)
	if err != nil {
		t.Fatal(err)
	}
	deleted, err := FromCompare(v1, nil, diff.FromCompareChunk)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := FromSquash(created, deleted, diff.FromCompareChunk, diff.SquashChunk); err == nil {
		t.Fatal("expected error squashing Create then Delete")
	}
}

func mustEncode(t *testing.T, v nbt.Value) []byte {
	t.Helper()
	b, err := nbt.Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return b
}
