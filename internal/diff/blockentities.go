package diff

import (
	"bytes"
	"sort"

	"github.com/hairlessvillager/region-diff/internal/myers"
	"github.com/hairlessvillager/region-diff/internal/nbt"
	"golang.org/x/xerrors"
)

// XYZ keys a block entity by its integer coordinates.
type XYZ [3]int32

// BEKind discriminates a single block entity's diff variant. Variant
// order is fixed (see the diff artifact's serialized discriminants):
// Create, Delete, UpdateSameID, UpdateDiffID.
type BEKind int

const (
	BECreate BEKind = iota
	BEDelete
	BEUpdateSameID
	BEUpdateDiffID
)

// BlockEntityDiff is the per-key diff for one block entity slot.
// UpdateSameID carries a structural Myers diff (used when the old and
// new entity share an `id`); UpdateDiffID falls back to Blob because
// the NBT schema is assumed to have changed along with the id.
type BlockEntityDiff struct {
	Kind  BEKind
	Blob  Blob
	Myers myers.Diff
}

// BlockEntitiesDiff is the keyed-collection diff over a chunk's
// block_entities list. The old/new key-order lists are preserved
// verbatim so Patch/Revert can reconstruct the exact original
// ordering of entries that were not touched by the diff.
type BlockEntitiesDiff struct {
	OldXYZList []XYZ
	NewXYZList []XYZ
	Map        map[XYZ]BlockEntityDiff
}

func extractXYZ(v nbt.Value) (XYZ, error) {
	x, ok1 := v.Field("x")
	y, ok2 := v.Field("y")
	z, ok3 := v.Field("z")
	if !ok1 || !ok2 || !ok3 || x.Tag != nbt.TagInt || y.Tag != nbt.TagInt || z.Tag != nbt.TagInt {
		return XYZ{}, xerrors.Errorf("diff: block entity missing integer x/y/z fields: %w", nbt.ErrTypeMismatch)
	}
	return XYZ{x.Int, y.Int, z.Int}, nil
}

func extractID(v nbt.Value) (string, error) {
	id, ok := v.Field("id")
	if !ok || id.Tag != nbt.TagString {
		return "", xerrors.Errorf("diff: block entity missing string id field: %w", nbt.ErrTypeMismatch)
	}
	return id.Str, nil
}

// buildBEMaps decodes an NBT list of block entity compounds into a
// key->value map and the list's original key order. Duplicate keys
// are rejected: two block entities at the same coordinate are not a
// representable input.
func buildBEMaps(list nbt.Value) (map[XYZ]nbt.Value, []XYZ, error) {
	m := make(map[XYZ]nbt.Value, len(list.List))
	keys := make([]XYZ, 0, len(list.List))
	for i, elem := range list.List {
		key, err := extractXYZ(elem)
		if err != nil {
			return nil, nil, xerrors.Errorf("diff: block entity %d: %w", i, err)
		}
		if _, exists := m[key]; exists {
			return nil, nil, xerrors.Errorf("diff: duplicate block entity at %v", key)
		}
		m[key] = elem
		keys = append(keys, key)
	}
	return m, keys, nil
}

func buildBEList(m map[XYZ]nbt.Value, order []XYZ) nbt.Value {
	list := make([]nbt.Value, 0, len(order))
	for _, k := range order {
		list = append(list, m[k])
	}
	elem := nbt.TagCompound
	if len(list) == 0 {
		elem = nbt.TagEnd
	}
	return nbt.Value{Tag: nbt.TagList, ListElem: elem, List: list}
}

// FromCompareBlockEntities builds the diff between two block_entities
// NBT lists.
func FromCompareBlockEntities(old, new nbt.Value) (BlockEntitiesDiff, error) {
	oldMap, oldKeys, err := buildBEMaps(old)
	if err != nil {
		return BlockEntitiesDiff{}, err
	}
	newMap, newKeys, err := buildBEMaps(new)
	if err != nil {
		return BlockEntitiesDiff{}, err
	}

	result := BlockEntitiesDiff{OldXYZList: oldKeys, NewXYZList: newKeys, Map: make(map[XYZ]BlockEntityDiff)}
	for _, key := range allKeys(oldMap, newMap) {
		oldVal, oldOK := oldMap[key]
		newVal, newOK := newMap[key]
		switch {
		case !oldOK && !newOK:
			return BlockEntitiesDiff{}, xerrors.Errorf("diff: block entity %v not present on either side", key)
		case oldOK && !newOK:
			oldBytes, err := nbt.Encode(oldVal)
			if err != nil {
				return BlockEntitiesDiff{}, err
			}
			result.Map[key] = BlockEntityDiff{Kind: BEDelete, Blob: FromDeleteBlob(oldBytes)}
		case !oldOK && newOK:
			newBytes, err := nbt.Encode(newVal)
			if err != nil {
				return BlockEntitiesDiff{}, err
			}
			result.Map[key] = BlockEntityDiff{Kind: BECreate, Blob: FromCreateBlob(newBytes)}
		default:
			oldBytes, err := nbt.Encode(oldVal)
			if err != nil {
				return BlockEntitiesDiff{}, err
			}
			newBytes, err := nbt.Encode(newVal)
			if err != nil {
				return BlockEntitiesDiff{}, err
			}
			if bytes.Equal(oldBytes, newBytes) {
				// Unchanged entries get no map entry; Patch and Revert
				// carry them over from the input list.
				continue
			}
			oldID, err1 := extractID(oldVal)
			newID, err2 := extractID(newVal)
			if err1 != nil || err2 != nil || oldID != newID {
				result.Map[key] = BlockEntityDiff{Kind: BEUpdateDiffID, Blob: Blob{Old: oldBytes, New: newBytes}}
			} else {
				result.Map[key] = BlockEntityDiff{Kind: BEUpdateSameID, Myers: myers.FromCompare(oldBytes, newBytes)}
			}
		}
	}
	return result, nil
}

func allKeys(a, b map[XYZ]nbt.Value) []XYZ {
	seen := make(map[XYZ]bool, len(a)+len(b))
	var keys []XYZ
	for k := range a {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return xyzLess(keys[i], keys[j]) })
	return keys
}

func xyzLess(a, b XYZ) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}

// Patch applies d to the old block_entities NBT list.
func (d BlockEntitiesDiff) Patch(old nbt.Value) (nbt.Value, error) {
	m, _, err := buildBEMaps(old)
	if err != nil {
		return nbt.Value{}, err
	}
	for key, entry := range d.Map {
		switch entry.Kind {
		case BECreate:
			v, err := nbt.Decode(entry.Blob.Patch(nil))
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		case BEDelete:
			delete(m, key)
		case BEUpdateSameID, BEUpdateDiffID:
			cur, ok := m[key]
			if !ok {
				return nbt.Value{}, xerrors.Errorf("diff: patch: block entity %v missing for update", key)
			}
			curBytes, err := nbt.Encode(cur)
			if err != nil {
				return nbt.Value{}, err
			}
			var patched []byte
			if entry.Kind == BEUpdateSameID {
				patched, err = entry.Myers.Patch(curBytes)
			} else {
				patched = entry.Blob.Patch(curBytes)
			}
			if err != nil {
				return nbt.Value{}, err
			}
			v, err := nbt.Decode(patched)
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		default:
			return nbt.Value{}, xerrors.Errorf("diff: patch: invalid block entity diff kind %d", entry.Kind)
		}
	}
	return buildBEList(m, d.NewXYZList), nil
}

// Revert applies d in reverse to the new block_entities NBT list.
func (d BlockEntitiesDiff) Revert(new nbt.Value) (nbt.Value, error) {
	m, _, err := buildBEMaps(new)
	if err != nil {
		return nbt.Value{}, err
	}
	for key, entry := range d.Map {
		switch entry.Kind {
		case BEDelete:
			v, err := nbt.Decode(entry.Blob.Revert(nil))
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		case BECreate:
			delete(m, key)
		case BEUpdateSameID, BEUpdateDiffID:
			cur, ok := m[key]
			if !ok {
				return nbt.Value{}, xerrors.Errorf("diff: revert: block entity %v missing for update", key)
			}
			curBytes, err := nbt.Encode(cur)
			if err != nil {
				return nbt.Value{}, err
			}
			var reverted []byte
			if entry.Kind == BEUpdateSameID {
				reverted, err = entry.Myers.Revert(curBytes)
			} else {
				reverted = entry.Blob.Revert(curBytes)
			}
			if err != nil {
				return nbt.Value{}, err
			}
			v, err := nbt.Decode(reverted)
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		default:
			return nbt.Value{}, xerrors.Errorf("diff: revert: invalid block entity diff kind %d", entry.Kind)
		}
	}
	return buildBEList(m, d.OldXYZList), nil
}

// SquashBlockEntities composes base (v0->v1) and squashing (v1->v2).
func SquashBlockEntities(base, squashing BlockEntitiesDiff) (BlockEntitiesDiff, error) {
	result := BlockEntitiesDiff{OldXYZList: base.OldXYZList, NewXYZList: squashing.NewXYZList, Map: make(map[XYZ]BlockEntityDiff)}
	for _, key := range beUnionKeys(base.Map, squashing.Map) {
		b, bOK := base.Map[key]
		s, sOK := squashing.Map[key]
		switch {
		case !bOK && sOK:
			result.Map[key] = s
		case bOK && !sOK:
			result.Map[key] = b
		case bOK && sOK:
			merged, drop, err := squashBE(b, s)
			if err != nil {
				return BlockEntitiesDiff{}, xerrors.Errorf("diff: squash block entity %v: %w", key, err)
			}
			if !drop {
				result.Map[key] = merged
			}
		}
	}
	return result, nil
}

func beUnionKeys(a, b map[XYZ]BlockEntityDiff) []XYZ {
	seen := make(map[XYZ]bool, len(a)+len(b))
	var keys []XYZ
	for k := range a {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func squashBE(base, squashing BlockEntityDiff) (result BlockEntityDiff, drop bool, err error) {
	switch {
	case base.Kind == BECreate && squashing.Kind == BEDelete:
		return BlockEntityDiff{}, true, nil
	case base.Kind == BEDelete && squashing.Kind == BECreate:
		return BlockEntityDiff{Kind: BEUpdateDiffID, Blob: Blob{Old: base.Blob.Old, New: squashing.Blob.New}}, false, nil
	case base.Kind == BECreate && squashing.Kind == BEUpdateSameID:
		patched, err := squashing.Myers.Patch(base.Blob.New)
		if err != nil {
			return BlockEntityDiff{}, false, err
		}
		return BlockEntityDiff{Kind: BECreate, Blob: FromCreateBlob(patched)}, false, nil
	case base.Kind == BECreate && squashing.Kind == BEUpdateDiffID:
		return BlockEntityDiff{Kind: BECreate, Blob: FromCreateBlob(squashing.Blob.New)}, false, nil
	case base.Kind == BEUpdateSameID && squashing.Kind == BEDelete:
		reverted, err := base.Myers.Revert(squashing.Blob.Old)
		if err != nil {
			return BlockEntityDiff{}, false, err
		}
		return BlockEntityDiff{Kind: BEDelete, Blob: FromDeleteBlob(reverted)}, false, nil
	case base.Kind == BEUpdateDiffID && squashing.Kind == BEDelete:
		return BlockEntityDiff{Kind: BEDelete, Blob: FromDeleteBlob(base.Blob.Old)}, false, nil
	case base.Kind == BEUpdateSameID && squashing.Kind == BEUpdateDiffID:
		reverted, err := base.Myers.Revert(squashing.Blob.Old)
		if err != nil {
			return BlockEntityDiff{}, false, err
		}
		return BlockEntityDiff{Kind: BEUpdateDiffID, Blob: Blob{Old: reverted, New: squashing.Blob.New}}, false, nil
	case base.Kind == BEUpdateDiffID && squashing.Kind == BEUpdateSameID:
		patched, err := squashing.Myers.Patch(base.Blob.New)
		if err != nil {
			return BlockEntityDiff{}, false, err
		}
		return BlockEntityDiff{Kind: BEUpdateDiffID, Blob: Blob{Old: base.Blob.Old, New: patched}}, false, nil
	case base.Kind == BEUpdateSameID && squashing.Kind == BEUpdateSameID:
		merged, err := myers.Squash(base.Myers, squashing.Myers)
		if err != nil {
			return BlockEntityDiff{}, false, err
		}
		return BlockEntityDiff{Kind: BEUpdateSameID, Myers: merged}, false, nil
	case base.Kind == BEUpdateDiffID && squashing.Kind == BEUpdateDiffID:
		return BlockEntityDiff{Kind: BEUpdateDiffID, Blob: SquashBlob(base.Blob, squashing.Blob)}, false, nil
	default:
		return BlockEntityDiff{}, false, xerrors.Errorf("diff: invalid block entity squash combination (base=%d, squashing=%d)", base.Kind, squashing.Kind)
	}
}
