// Package diff implements the structural NBT-level differs: blob
// (store-both), keyed collections (block entities, entities), and the
// chunk differ that composes them.
package diff

// Blob is the degenerate "store both sides verbatim" diff, used for
// creations, deletions, and ID-changing replacements where a
// structural diff does not apply.
type Blob struct {
	Old []byte
	New []byte
}

func FromCreateBlob(new []byte) Blob { return Blob{New: append([]byte(nil), new...)} }
func FromDeleteBlob(old []byte) Blob { return Blob{Old: append([]byte(nil), old...)} }

func (b Blob) Patch(_ []byte) []byte  { return b.New }
func (b Blob) Revert(_ []byte) []byte { return b.Old }

// SquashBlob composes base (v0->v1) and squashing (v1->v2) blobs.
func SquashBlob(base, squashing Blob) Blob {
	return Blob{Old: base.Old, New: squashing.New}
}
