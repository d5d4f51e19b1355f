package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hairlessvillager/region-diff/internal/nbt"
)

func chestAt(x, y, z int32, id string, extra int32) nbt.Value {
	return nbt.Value{
		Tag:          nbt.TagCompound,
		CompoundKeys: []string{"x", "y", "z", "id", "extra"},
		Compound: map[string]nbt.Value{
			"x":     nbt.Int32Value(x),
			"y":     nbt.Int32Value(y),
			"z":     nbt.Int32Value(z),
			"id":    nbt.StringValue(id),
			"extra": nbt.Int32Value(extra),
		},
	}
}

func listOf(elems ...nbt.Value) nbt.Value {
	return nbt.Value{Tag: nbt.TagList, ListElem: nbt.TagCompound, List: elems}
}

func TestBlockEntitiesRoundTrip(t *testing.T) {
	old := listOf(
		chestAt(1, 2, 3, "minecraft:chest", 1),
		chestAt(4, 5, 6, "minecraft:furnace", 2),
	)
	new := listOf(
		chestAt(1, 2, 3, "minecraft:chest", 99),
		chestAt(7, 8, 9, "minecraft:barrel", 3),
	)

	d, err := FromCompareBlockEntities(old, new)
	if err != nil {
		t.Fatalf("FromCompareBlockEntities: %v", err)
	}
	patched, err := d.Patch(old)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if diff := cmp.Diff(normalizeList(new), normalizeList(patched)); diff != "" {
		t.Fatalf("patched mismatch (-want +got):\n%s", diff)
	}
	reverted, err := d.Revert(new)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if diff := cmp.Diff(normalizeList(old), normalizeList(reverted)); diff != "" {
		t.Fatalf("reverted mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockEntitiesSquash(t *testing.T) {
	v0 := listOf(chestAt(1, 1, 1, "minecraft:chest", 1))
	v1 := listOf(chestAt(1, 1, 1, "minecraft:chest", 2))
	v2 := listOf(chestAt(1, 1, 1, "minecraft:chest", 3))

	d01, err := FromCompareBlockEntities(v0, v1)
	if err != nil {
		t.Fatal(err)
	}
	d12, err := FromCompareBlockEntities(v1, v2)
	if err != nil {
		t.Fatal(err)
	}
	squashed, err := SquashBlockEntities(d01, d12)
	if err != nil {
		t.Fatalf("SquashBlockEntities: %v", err)
	}
	patched, err := squashed.Patch(v0)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if diff := cmp.Diff(normalizeList(v2), normalizeList(patched)); diff != "" {
		t.Fatalf("squash patch mismatch (-want +got):\n%s", diff)
	}
}

func entityAt(uuid [4]int32, health int32) nbt.Value {
	return nbt.Value{
		Tag:          nbt.TagCompound,
		CompoundKeys: []string{"UUID", "Health"},
		Compound: map[string]nbt.Value{
			"UUID":   {Tag: nbt.TagIntArray, IntArray: uuid[:]},
			"Health": nbt.Int32Value(health),
		},
	}
}

func TestEntitiesRoundTrip(t *testing.T) {
	old := listOf(entityAt([4]int32{1, 2, 3, 4}, 20), entityAt([4]int32{5, 6, 7, 8}, 10))
	new := listOf(entityAt([4]int32{1, 2, 3, 4}, 5), entityAt([4]int32{9, 9, 9, 9}, 20))

	d, err := FromCompareEntities(old, new)
	if err != nil {
		t.Fatalf("FromCompareEntities: %v", err)
	}
	patched, err := d.Patch(old)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if diff := cmp.Diff(normalizeList(new), normalizeList(patched)); diff != "" {
		t.Fatalf("patched mismatch (-want +got):\n%s", diff)
	}
	reverted, err := d.Revert(new)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if diff := cmp.Diff(normalizeList(old), normalizeList(reverted)); diff != "" {
		t.Fatalf("reverted mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	oldChunk := nbt.Value{
		Tag:          nbt.TagCompound,
		CompoundKeys: []string{"DataVersion", "block_entities", "sections"},
		Compound: map[string]nbt.Value{
			"DataVersion":     nbt.Int32Value(3700),
			"block_entities":  listOf(chestAt(1, 1, 1, "minecraft:chest", 1)),
			"sections": {Tag: nbt.TagList, ListElem: nbt.TagCompound, List: []nbt.Value{
				{Tag: nbt.TagCompound, CompoundKeys: []string{"Y"}, Compound: map[string]nbt.Value{"Y": {Tag: nbt.TagByte, Byte: 0}}},
				{Tag: nbt.TagCompound, CompoundKeys: []string{"Y"}, Compound: map[string]nbt.Value{"Y": {Tag: nbt.TagByte, Byte: 1}}},
			}},
		},
	}
	newChunk := nbt.Value{
		Tag:          nbt.TagCompound,
		CompoundKeys: []string{"DataVersion", "block_entities", "sections"},
		Compound: map[string]nbt.Value{
			"DataVersion":     nbt.Int32Value(3701),
			"block_entities":  listOf(chestAt(1, 1, 1, "minecraft:chest", 2)),
			"sections": {Tag: nbt.TagList, ListElem: nbt.TagCompound, List: []nbt.Value{
				{Tag: nbt.TagCompound, CompoundKeys: []string{"Y"}, Compound: map[string]nbt.Value{"Y": {Tag: nbt.TagByte, Byte: 0}}},
				{Tag: nbt.TagCompound, CompoundKeys: []string{"Y"}, Compound: map[string]nbt.Value{"Y": {Tag: nbt.TagByte, Byte: 2}}},
			}},
		},
	}

	d, err := FromCompareChunk(oldChunk, newChunk)
	if err != nil {
		t.Fatalf("FromCompareChunk: %v", err)
	}
	patched, err := d.Patch(oldChunk)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	patchedBytes, _ := nbt.Encode(patched)
	newBytes, _ := nbt.Encode(newChunk)
	if string(patchedBytes) != string(newBytes) {
		t.Fatalf("patched chunk mismatch")
	}
	reverted, err := d.Revert(newChunk)
	if err != nil {
		t.Fatalf("Revert: %v", err)
	}
	revertedBytes, _ := nbt.Encode(reverted)
	oldBytes, _ := nbt.Encode(oldChunk)
	if string(revertedBytes) != string(oldBytes) {
		t.Fatalf("reverted chunk mismatch")
	}
}

func TestChunkSectionCountMismatchIsFatal(t *testing.T) {
	a := nbt.Value{Tag: nbt.TagCompound, Compound: map[string]nbt.Value{
		"sections": {Tag: nbt.TagList, ListElem: nbt.TagCompound, List: []nbt.Value{{Tag: nbt.TagCompound, Compound: map[string]nbt.Value{}}}},
	}}
	b := nbt.Value{Tag: nbt.TagCompound, Compound: map[string]nbt.Value{
		"sections": {Tag: nbt.TagList, ListElem: nbt.TagCompound, List: []nbt.Value{}},
	}}
	if _, err := FromCompareChunk(a, b); err == nil {
		t.Fatal("expected section count mismatch error")
	}
}

// normalizeList re-encodes then decodes a list value so that NBT
// compound-key insertion order differences (irrelevant to equality)
// don't cause spurious mismatches in these tests.
func normalizeList(v nbt.Value) nbt.Value {
	encoded, err := nbt.Encode(v)
	if err != nil {
		panic(err)
	}
	decoded, err := nbt.Decode(encoded)
	if err != nil {
		panic(err)
	}
	return decoded
}
