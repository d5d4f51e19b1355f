package diffwire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hairlessvillager/region-diff/internal/diff"
	"github.com/hairlessvillager/region-diff/internal/mca"
	"github.com/hairlessvillager/region-diff/internal/myers"
	"github.com/hairlessvillager/region-diff/internal/region"
)

func sampleDiff() *region.Diff {
	d := &region.Diff{}
	d.Cells[0] = region.CellDiff{Kind: region.NoChange}
	d.Cells[1] = region.CellDiff{
		Kind:    region.Create,
		TSDelta: 42,
		Blob:    diff.FromCreateBlob([]byte("hello new chunk")),
	}
	d.Cells[2] = region.CellDiff{
		Kind:    region.Delete,
		TSDelta: -7,
		Blob:    diff.FromDeleteBlob([]byte("gone")),
	}
	d.Cells[3] = region.CellDiff{
		Kind:    region.Update,
		TSDelta: 3,
		ChunkDiff: diff.ChunkDiff{
			BlockEntities: diff.BlockEntitiesDiff{
				OldXYZList: []diff.XYZ{{1, 2, 3}},
				NewXYZList: []diff.XYZ{{1, 2, 3}},
				Map: map[diff.XYZ]diff.BlockEntityDiff{
					{1, 2, 3}: {Kind: diff.BEUpdateSameID, Myers: myers.FromCompare([]byte("abc"), []byte("abd"))},
				},
			},
			Sections: []myers.Diff{myers.FromCompare([]byte("section0"), []byte("section0x"))},
			Others:   myers.FromCompare([]byte("others-old"), []byte("others-new")),
		},
	}
	d.Cells[4] = region.CellDiff{
		Kind:       region.Update,
		TSDelta:    11,
		OldIsLarge: false,
		NewIsLarge: true,
		Blob:       diff.Blob{Old: []byte("small-before"), New: nil},
	}
	for i := 5; i < mca.CellCount; i++ {
		d.Cells[i] = region.CellDiff{Kind: region.BothNotExist}
	}
	return d
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := sampleDiff()
	encoded, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(d, decoded); diff != "" {
		t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	d := sampleDiff()
	a, err := Encode(d)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("repeated encode of the same diff produced different bytes")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	if _, err := Decode([]byte("XXXX\x01")); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	bad := append([]byte{}, formatMagic[:]...)
	bad = append(bad, 0xFF)
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected unsupported version error")
	}
}
