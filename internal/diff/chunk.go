package diff

import (
	"github.com/hairlessvillager/region-diff/internal/myers"
	"github.com/hairlessvillager/region-diff/internal/nbt"
	"golang.org/x/xerrors"
)

const (
	blockEntitiesKey = "block_entities"
	sectionsKey      = "sections"
	entitiesKey      = "Entities"
)

// ChunkDiff decomposes a chunk's root NBT compound into its
// block_entities collection, a fixed-length array of per-section
// Myers diffs, and a residual Myers diff over everything else.
type ChunkDiff struct {
	BlockEntities BlockEntitiesDiff
	Sections      []myers.Diff
	Others        myers.Diff
}

func emptyList() nbt.Value {
	return nbt.Value{Tag: nbt.TagList, ListElem: nbt.TagEnd}
}

func fieldOrEmptyList(v nbt.Value, key string) nbt.Value {
	if f, ok := v.Field(key); ok {
		return f
	}
	return emptyList()
}

func othersOf(v nbt.Value, excludeKeys ...string) nbt.Value {
	out := v
	for _, k := range excludeKeys {
		out = out.WithoutField(k)
	}
	return out
}

// FromCompareChunk builds the diff between two chunk root compounds.
func FromCompareChunk(old, new nbt.Value) (ChunkDiff, error) {
	oldBE := fieldOrEmptyList(old, blockEntitiesKey)
	newBE := fieldOrEmptyList(new, blockEntitiesKey)
	beDiff, err := FromCompareBlockEntities(oldBE, newBE)
	if err != nil {
		return ChunkDiff{}, xerrors.Errorf("diff: chunk: block_entities: %w", err)
	}

	oldSections := fieldOrEmptyList(old, sectionsKey).List
	newSections := fieldOrEmptyList(new, sectionsKey).List
	if len(oldSections) != len(newSections) {
		return ChunkDiff{}, xerrors.Errorf("diff: chunk: section count mismatch (old=%d, new=%d)", len(oldSections), len(newSections))
	}
	sectionDiffs := make([]myers.Diff, len(oldSections))
	for i := range oldSections {
		oldBytes, err := nbt.Encode(oldSections[i])
		if err != nil {
			return ChunkDiff{}, xerrors.Errorf("diff: chunk: section %d: %w", i, err)
		}
		newBytes, err := nbt.Encode(newSections[i])
		if err != nil {
			return ChunkDiff{}, xerrors.Errorf("diff: chunk: section %d: %w", i, err)
		}
		sectionDiffs[i] = myers.FromCompare(oldBytes, newBytes)
	}

	oldOthers, err := nbt.Encode(othersOf(old, blockEntitiesKey, sectionsKey))
	if err != nil {
		return ChunkDiff{}, err
	}
	newOthers, err := nbt.Encode(othersOf(new, blockEntitiesKey, sectionsKey))
	if err != nil {
		return ChunkDiff{}, err
	}

	return ChunkDiff{
		BlockEntities: beDiff,
		Sections:      sectionDiffs,
		Others:        myers.FromCompare(oldOthers, newOthers),
	}, nil
}

// Patch applies d to the old chunk root compound.
func (d ChunkDiff) Patch(old nbt.Value) (nbt.Value, error) {
	oldSections := fieldOrEmptyList(old, sectionsKey).List
	if len(oldSections) != len(d.Sections) {
		return nbt.Value{}, xerrors.Errorf("diff: chunk: patch: section count mismatch (old=%d, diff=%d)", len(oldSections), len(d.Sections))
	}
	newSections := make([]nbt.Value, len(oldSections))
	for i, sectionDiff := range d.Sections {
		oldBytes, err := nbt.Encode(oldSections[i])
		if err != nil {
			return nbt.Value{}, err
		}
		newBytes, err := sectionDiff.Patch(oldBytes)
		if err != nil {
			return nbt.Value{}, xerrors.Errorf("diff: chunk: patch: section %d: %w", i, err)
		}
		v, err := nbt.Decode(newBytes)
		if err != nil {
			return nbt.Value{}, err
		}
		newSections[i] = v
	}

	oldBE := fieldOrEmptyList(old, blockEntitiesKey)
	newBE, err := d.BlockEntities.Patch(oldBE)
	if err != nil {
		return nbt.Value{}, xerrors.Errorf("diff: chunk: patch: block_entities: %w", err)
	}

	oldOthersBytes, err := nbt.Encode(othersOf(old, blockEntitiesKey, sectionsKey))
	if err != nil {
		return nbt.Value{}, err
	}
	newOthersBytes, err := d.Others.Patch(oldOthersBytes)
	if err != nil {
		return nbt.Value{}, xerrors.Errorf("diff: chunk: patch: others: %w", err)
	}
	newOthers, err := nbt.Decode(newOthersBytes)
	if err != nil {
		return nbt.Value{}, err
	}

	result := newOthers
	result = result.WithField(blockEntitiesKey, newBE)
	result = result.WithField(sectionsKey, nbt.Value{Tag: nbt.TagList, ListElem: fieldOrEmptyList(old, sectionsKey).ListElem, List: newSections})
	return result, nil
}

// Revert applies d in reverse to the new chunk root compound.
func (d ChunkDiff) Revert(new nbt.Value) (nbt.Value, error) {
	newSections := fieldOrEmptyList(new, sectionsKey).List
	if len(newSections) != len(d.Sections) {
		return nbt.Value{}, xerrors.Errorf("diff: chunk: revert: section count mismatch (new=%d, diff=%d)", len(newSections), len(d.Sections))
	}
	oldSections := make([]nbt.Value, len(newSections))
	for i, sectionDiff := range d.Sections {
		newBytes, err := nbt.Encode(newSections[i])
		if err != nil {
			return nbt.Value{}, err
		}
		oldBytes, err := sectionDiff.Revert(newBytes)
		if err != nil {
			return nbt.Value{}, xerrors.Errorf("diff: chunk: revert: section %d: %w", i, err)
		}
		v, err := nbt.Decode(oldBytes)
		if err != nil {
			return nbt.Value{}, err
		}
		oldSections[i] = v
	}

	newBE := fieldOrEmptyList(new, blockEntitiesKey)
	oldBE, err := d.BlockEntities.Revert(newBE)
	if err != nil {
		return nbt.Value{}, xerrors.Errorf("diff: chunk: revert: block_entities: %w", err)
	}

	newOthersBytes, err := nbt.Encode(othersOf(new, blockEntitiesKey, sectionsKey))
	if err != nil {
		return nbt.Value{}, err
	}
	oldOthersBytes, err := d.Others.Revert(newOthersBytes)
	if err != nil {
		return nbt.Value{}, xerrors.Errorf("diff: chunk: revert: others: %w", err)
	}
	oldOthers, err := nbt.Decode(oldOthersBytes)
	if err != nil {
		return nbt.Value{}, err
	}

	result := oldOthers
	result = result.WithField(blockEntitiesKey, oldBE)
	result = result.WithField(sectionsKey, nbt.Value{Tag: nbt.TagList, ListElem: fieldOrEmptyList(new, sectionsKey).ListElem, List: oldSections})
	return result, nil
}

// SquashChunk composes base (v0->v1) and squashing (v1->v2).
func SquashChunk(base, squashing ChunkDiff) (ChunkDiff, error) {
	if len(base.Sections) != len(squashing.Sections) {
		return ChunkDiff{}, xerrors.Errorf("diff: chunk: squash: section count mismatch (base=%d, squashing=%d)", len(base.Sections), len(squashing.Sections))
	}
	be, err := SquashBlockEntities(base.BlockEntities, squashing.BlockEntities)
	if err != nil {
		return ChunkDiff{}, xerrors.Errorf("diff: chunk: squash: block_entities: %w", err)
	}
	sections := make([]myers.Diff, len(base.Sections))
	for i := range base.Sections {
		sections[i], err = myers.Squash(base.Sections[i], squashing.Sections[i])
		if err != nil {
			return ChunkDiff{}, xerrors.Errorf("diff: chunk: squash: section %d: %w", i, err)
		}
	}
	others, err := myers.Squash(base.Others, squashing.Others)
	if err != nil {
		return ChunkDiff{}, xerrors.Errorf("diff: chunk: squash: others: %w", err)
	}
	return ChunkDiff{BlockEntities: be, Sections: sections, Others: others}, nil
}

// EntitiesChunkDiff is a sibling of ChunkDiff that keys by the Entities
// list instead of block_entities/sections; every other field, sections
// included, goes into the residual Myers diff. It satisfies
// mcc.ChunkLike, but the MCC tests instantiate MCCDiff with ChunkDiff.
type EntitiesChunkDiff struct {
	Entities EntitiesDiff
	Others   myers.Diff
}

func FromCompareEntitiesChunk(old, new nbt.Value) (EntitiesChunkDiff, error) {
	oldE := fieldOrEmptyList(old, entitiesKey)
	newE := fieldOrEmptyList(new, entitiesKey)
	eDiff, err := FromCompareEntities(oldE, newE)
	if err != nil {
		return EntitiesChunkDiff{}, xerrors.Errorf("diff: entities chunk: %w", err)
	}
	oldOthers, err := nbt.Encode(othersOf(old, entitiesKey))
	if err != nil {
		return EntitiesChunkDiff{}, err
	}
	newOthers, err := nbt.Encode(othersOf(new, entitiesKey))
	if err != nil {
		return EntitiesChunkDiff{}, err
	}
	return EntitiesChunkDiff{Entities: eDiff, Others: myers.FromCompare(oldOthers, newOthers)}, nil
}

func (d EntitiesChunkDiff) Patch(old nbt.Value) (nbt.Value, error) {
	oldE := fieldOrEmptyList(old, entitiesKey)
	newE, err := d.Entities.Patch(oldE)
	if err != nil {
		return nbt.Value{}, err
	}
	oldOthersBytes, err := nbt.Encode(othersOf(old, entitiesKey))
	if err != nil {
		return nbt.Value{}, err
	}
	newOthersBytes, err := d.Others.Patch(oldOthersBytes)
	if err != nil {
		return nbt.Value{}, err
	}
	newOthers, err := nbt.Decode(newOthersBytes)
	if err != nil {
		return nbt.Value{}, err
	}
	return newOthers.WithField(entitiesKey, newE), nil
}

func (d EntitiesChunkDiff) Revert(new nbt.Value) (nbt.Value, error) {
	newE := fieldOrEmptyList(new, entitiesKey)
	oldE, err := d.Entities.Revert(newE)
	if err != nil {
		return nbt.Value{}, err
	}
	newOthersBytes, err := nbt.Encode(othersOf(new, entitiesKey))
	if err != nil {
		return nbt.Value{}, err
	}
	oldOthersBytes, err := d.Others.Revert(newOthersBytes)
	if err != nil {
		return nbt.Value{}, err
	}
	oldOthers, err := nbt.Decode(oldOthersBytes)
	if err != nil {
		return nbt.Value{}, err
	}
	return oldOthers.WithField(entitiesKey, oldE), nil
}

func SquashEntitiesChunk(base, squashing EntitiesChunkDiff) (EntitiesChunkDiff, error) {
	e, err := SquashEntities(base.Entities, squashing.Entities)
	if err != nil {
		return EntitiesChunkDiff{}, err
	}
	others, err := myers.Squash(base.Others, squashing.Others)
	if err != nil {
		return EntitiesChunkDiff{}, err
	}
	return EntitiesChunkDiff{Entities: e, Others: others}, nil
}
