package diff

import (
	"sort"

	"github.com/hairlessvillager/region-diff/internal/myers"
	"github.com/hairlessvillager/region-diff/internal/nbt"
	"golang.org/x/xerrors"
)

// UUID keys an entity by its 128-bit identifier, stored in NBT as a
// 4-element IntArray under the "UUID" field.
type UUID [4]int32

// EKind discriminates a single entity's diff variant. Unlike block
// entities, there is no id-mismatch case: an entity's UUID never
// changes across an update, so Update always carries a structural
// Myers diff.
type EKind int

const (
	ECreate EKind = iota
	EDelete
	EUpdate
)

type EntityDiff struct {
	Kind  EKind
	Blob  Blob
	Myers myers.Diff
}

// EntitiesDiff is the keyed-collection diff over a chunk's Entities
// list, keyed by UUID.
type EntitiesDiff struct {
	OldUUIDList []UUID
	NewUUIDList []UUID
	Map         map[UUID]EntityDiff
}

func extractUUID(v nbt.Value) (UUID, error) {
	f, ok := v.Field("UUID")
	if !ok || f.Tag != nbt.TagIntArray || len(f.IntArray) != 4 {
		return UUID{}, xerrors.Errorf("diff: entity missing 4-element UUID field: %w", nbt.ErrTypeMismatch)
	}
	return UUID{f.IntArray[0], f.IntArray[1], f.IntArray[2], f.IntArray[3]}, nil
}

func buildEntityMaps(list nbt.Value) (map[UUID]nbt.Value, []UUID, error) {
	m := make(map[UUID]nbt.Value, len(list.List))
	keys := make([]UUID, 0, len(list.List))
	for i, elem := range list.List {
		key, err := extractUUID(elem)
		if err != nil {
			return nil, nil, xerrors.Errorf("diff: entity %d: %w", i, err)
		}
		if _, exists := m[key]; exists {
			return nil, nil, xerrors.Errorf("diff: duplicate entity %v", key)
		}
		m[key] = elem
		keys = append(keys, key)
	}
	return m, keys, nil
}

func buildEntityList(m map[UUID]nbt.Value, order []UUID) nbt.Value {
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

func FromCompareEntities(old, new nbt.Value) (EntitiesDiff, error) {
	oldMap, oldKeys, err := buildEntityMaps(old)
	if err != nil {
		return EntitiesDiff{}, err
	}
	newMap, newKeys, err := buildEntityMaps(new)
	if err != nil {
		return EntitiesDiff{}, err
	}

	result := EntitiesDiff{OldUUIDList: oldKeys, NewUUIDList: newKeys, Map: make(map[UUID]EntityDiff)}
	for _, key := range entityUnionKeys(oldMap, newMap) {
		oldVal, oldOK := oldMap[key]
		newVal, newOK := newMap[key]
		switch {
		case !oldOK && !newOK:
			return EntitiesDiff{}, xerrors.Errorf("diff: entity %v not present on either side", key)
		case oldOK && !newOK:
			oldBytes, err := nbt.Encode(oldVal)
			if err != nil {
				return EntitiesDiff{}, err
			}
			result.Map[key] = EntityDiff{Kind: EDelete, Blob: FromDeleteBlob(oldBytes)}
		case !oldOK && newOK:
			newBytes, err := nbt.Encode(newVal)
			if err != nil {
				return EntitiesDiff{}, err
			}
			result.Map[key] = EntityDiff{Kind: ECreate, Blob: FromCreateBlob(newBytes)}
		default:
			oldBytes, err := nbt.Encode(oldVal)
			if err != nil {
				return EntitiesDiff{}, err
			}
			newBytes, err := nbt.Encode(newVal)
			if err != nil {
				return EntitiesDiff{}, err
			}
			result.Map[key] = EntityDiff{Kind: EUpdate, Myers: myers.FromCompare(oldBytes, newBytes)}
		}
	}
	return result, nil
}

func entityUnionKeys(a, b map[UUID]nbt.Value) []UUID {
	seen := make(map[UUID]bool, len(a)+len(b))
	var keys []UUID
	for k := range a {
		seen[k] = true
		keys = append(keys, k)
	}
	for k := range b {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return uuidLess(keys[i], keys[j]) })
	return keys
}

func uuidLess(a, b UUID) bool {
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (d EntitiesDiff) Patch(old nbt.Value) (nbt.Value, error) {
	m, _, err := buildEntityMaps(old)
	if err != nil {
		return nbt.Value{}, err
	}
	for key, entry := range d.Map {
		switch entry.Kind {
		case ECreate:
			v, err := nbt.Decode(entry.Blob.Patch(nil))
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		case EDelete:
			delete(m, key)
		case EUpdate:
			cur, ok := m[key]
			if !ok {
				return nbt.Value{}, xerrors.Errorf("diff: patch: entity %v missing for update", key)
			}
			curBytes, err := nbt.Encode(cur)
			if err != nil {
				return nbt.Value{}, err
			}
			patched, err := entry.Myers.Patch(curBytes)
			if err != nil {
				return nbt.Value{}, err
			}
			v, err := nbt.Decode(patched)
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		default:
			return nbt.Value{}, xerrors.Errorf("diff: patch: invalid entity diff kind %d", entry.Kind)
		}
	}
	return buildEntityList(m, d.NewUUIDList), nil
}

func (d EntitiesDiff) Revert(new nbt.Value) (nbt.Value, error) {
	m, _, err := buildEntityMaps(new)
	if err != nil {
		return nbt.Value{}, err
	}
	for key, entry := range d.Map {
		switch entry.Kind {
		case EDelete:
			v, err := nbt.Decode(entry.Blob.Revert(nil))
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		case ECreate:
			delete(m, key)
		case EUpdate:
			cur, ok := m[key]
			if !ok {
				return nbt.Value{}, xerrors.Errorf("diff: revert: entity %v missing for update", key)
			}
			curBytes, err := nbt.Encode(cur)
			if err != nil {
				return nbt.Value{}, err
			}
			reverted, err := entry.Myers.Revert(curBytes)
			if err != nil {
				return nbt.Value{}, err
			}
			v, err := nbt.Decode(reverted)
			if err != nil {
				return nbt.Value{}, err
			}
			m[key] = v
		default:
			return nbt.Value{}, xerrors.Errorf("diff: revert: invalid entity diff kind %d", entry.Kind)
		}
	}
	return buildEntityList(m, d.OldUUIDList), nil
}

func SquashEntities(base, squashing EntitiesDiff) (EntitiesDiff, error) {
	result := EntitiesDiff{OldUUIDList: base.OldUUIDList, NewUUIDList: squashing.NewUUIDList, Map: make(map[UUID]EntityDiff)}
	for _, key := range entityDiffUnionKeys(base.Map, squashing.Map) {
		b, bOK := base.Map[key]
		s, sOK := squashing.Map[key]
		switch {
		case !bOK && sOK:
			result.Map[key] = s
		case bOK && !sOK:
			result.Map[key] = b
		case bOK && sOK:
			merged, drop, err := squashEntity(b, s)
			if err != nil {
				return EntitiesDiff{}, xerrors.Errorf("diff: squash entity %v: %w", key, err)
			}
			if !drop {
				result.Map[key] = merged
			}
		}
	}
	return result, nil
}

func entityDiffUnionKeys(a, b map[UUID]EntityDiff) []UUID {
	seen := make(map[UUID]bool, len(a)+len(b))
	var keys []UUID
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

func squashEntity(base, squashing EntityDiff) (result EntityDiff, drop bool, err error) {
	switch {
	case base.Kind == ECreate && squashing.Kind == EDelete:
		return EntityDiff{}, true, nil
	case base.Kind == EDelete && squashing.Kind == ECreate:
		return EntityDiff{Kind: EUpdate, Myers: myers.FromCompare(base.Blob.Old, squashing.Blob.New)}, false, nil
	case base.Kind == ECreate && squashing.Kind == EUpdate:
		patched, err := squashing.Myers.Patch(base.Blob.New)
		if err != nil {
			return EntityDiff{}, false, err
		}
		return EntityDiff{Kind: ECreate, Blob: FromCreateBlob(patched)}, false, nil
	case base.Kind == EUpdate && squashing.Kind == EDelete:
		reverted, err := base.Myers.Revert(squashing.Blob.Old)
		if err != nil {
			return EntityDiff{}, false, err
		}
		return EntityDiff{Kind: EDelete, Blob: FromDeleteBlob(reverted)}, false, nil
	case base.Kind == EUpdate && squashing.Kind == EUpdate:
		merged, err := myers.Squash(base.Myers, squashing.Myers)
		if err != nil {
			return EntityDiff{}, false, err
		}
		return EntityDiff{Kind: EUpdate, Myers: merged}, false, nil
	default:
		return EntityDiff{}, false, xerrors.Errorf("diff: invalid entity squash combination (base=%d, squashing=%d)", base.Kind, squashing.Kind)
	}
}
