// Package diffwire serializes a region.Diff tree to a self-describing
// binary artifact and back. The format is a direct, hand-rolled binary
// encoding built on encoding/binary and bufio -- the tree shape is
// small and fixed, so no generic reflection-based codec is warranted.
package diffwire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/hairlessvillager/region-diff/internal/diff"
	"github.com/hairlessvillager/region-diff/internal/mca"
	"github.com/hairlessvillager/region-diff/internal/myers"
	"github.com/hairlessvillager/region-diff/internal/region"
	"golang.org/x/xerrors"
)

var formatMagic = [4]byte{'R', 'G', 'D', 'F'}

const formatVersion = 1

// Encode serializes d into the artifact format: a 4-byte magic, a
// 1-byte version, then one CellDiff per grid cell in row-major order.
func Encode(d *region.Diff) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if _, err := w.Write(formatMagic[:]); err != nil {
		return nil, err
	}
	if err := w.WriteByte(formatVersion); err != nil {
		return nil, err
	}
	for i := 0; i < mca.CellCount; i++ {
		if err := writeCellDiff(w, d.Cells[i]); err != nil {
			return nil, xerrors.Errorf("diffwire: encode: cell %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses an artifact produced by Encode.
func Decode(data []byte) (*region.Diff, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, xerrors.Errorf("diffwire: decode: read magic: %w", err)
	}
	if magic != formatMagic {
		return nil, xerrors.Errorf("diffwire: decode: bad magic %q", magic)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, xerrors.Errorf("diffwire: decode: read version: %w", err)
	}
	if version != formatVersion {
		return nil, xerrors.Errorf("diffwire: decode: unsupported format version %d", version)
	}
	d := &region.Diff{}
	for i := 0; i < mca.CellCount; i++ {
		cell, err := readCellDiff(r)
		if err != nil {
			return nil, xerrors.Errorf("diffwire: decode: cell %d: %w", i, err)
		}
		d.Cells[i] = cell
	}
	return d, nil
}

func writeUvarint(w *bufio.Writer, x uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], x)
	_, err := w.Write(buf[:n])
	return err
}

func readUvarint(r *bufio.Reader) (uint64, error) {
	return binary.ReadUvarint(r)
}

func writeInt32(w *bufio.Writer, x int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(x))
	_, err := w.Write(buf[:])
	return err
}

func readInt32(r *bufio.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func writeBytes(w *bufio.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeBool(w *bufio.Writer, v bool) error {
	var b byte
	if v {
		b = 1
	}
	return w.WriteByte(b)
}

func readBool(r *bufio.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func writeCellDiff(w *bufio.Writer, c region.CellDiff) error {
	if err := writeUvarint(w, uint64(c.Kind)); err != nil {
		return err
	}
	switch c.Kind {
	case region.BothNotExist, region.NoChange:
		return nil
	case region.Create:
		if err := writeInt32(w, c.TSDelta); err != nil {
			return err
		}
		if err := writeBool(w, c.NewIsLarge); err != nil {
			return err
		}
		return writeBlob(w, c.Blob)
	case region.Delete:
		if err := writeInt32(w, c.TSDelta); err != nil {
			return err
		}
		if err := writeBool(w, c.OldIsLarge); err != nil {
			return err
		}
		return writeBlob(w, c.Blob)
	case region.Update:
		if err := writeInt32(w, c.TSDelta); err != nil {
			return err
		}
		if err := writeBool(w, c.OldIsLarge); err != nil {
			return err
		}
		if err := writeBool(w, c.NewIsLarge); err != nil {
			return err
		}
		if c.OldIsLarge || c.NewIsLarge {
			return writeBlob(w, c.Blob)
		}
		return writeChunkDiff(w, c.ChunkDiff)
	default:
		return xerrors.Errorf("diffwire: invalid cell kind %d", c.Kind)
	}
}

func readCellDiff(r *bufio.Reader) (region.CellDiff, error) {
	kind, err := readUvarint(r)
	if err != nil {
		return region.CellDiff{}, err
	}
	switch region.CellKind(kind) {
	case region.BothNotExist, region.NoChange:
		return region.CellDiff{Kind: region.CellKind(kind)}, nil
	case region.Create:
		tsDelta, err := readInt32(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		newIsLarge, err := readBool(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		blob, err := readBlob(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		return region.CellDiff{Kind: region.Create, TSDelta: tsDelta, NewIsLarge: newIsLarge, Blob: blob}, nil
	case region.Delete:
		tsDelta, err := readInt32(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		if tsDelta >= 0 {
			return region.CellDiff{}, xerrors.Errorf("diffwire: decode: Delete cell has non-negative ts_delta %d", tsDelta)
		}
		oldIsLarge, err := readBool(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		blob, err := readBlob(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		return region.CellDiff{Kind: region.Delete, TSDelta: tsDelta, OldIsLarge: oldIsLarge, Blob: blob}, nil
	case region.Update:
		tsDelta, err := readInt32(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		oldIsLarge, err := readBool(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		newIsLarge, err := readBool(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		if oldIsLarge || newIsLarge {
			blob, err := readBlob(r)
			if err != nil {
				return region.CellDiff{}, err
			}
			return region.CellDiff{Kind: region.Update, TSDelta: tsDelta, OldIsLarge: oldIsLarge, NewIsLarge: newIsLarge, Blob: blob}, nil
		}
		cd, err := readChunkDiff(r)
		if err != nil {
			return region.CellDiff{}, err
		}
		return region.CellDiff{Kind: region.Update, TSDelta: tsDelta, ChunkDiff: cd}, nil
	default:
		return region.CellDiff{}, xerrors.Errorf("diffwire: invalid cell kind %d", kind)
	}
}

func writeBlob(w *bufio.Writer, b diff.Blob) error {
	if err := writeBytes(w, b.Old); err != nil {
		return err
	}
	return writeBytes(w, b.New)
}

func readBlob(r *bufio.Reader) (diff.Blob, error) {
	old, err := readBytes(r)
	if err != nil {
		return diff.Blob{}, err
	}
	new, err := readBytes(r)
	if err != nil {
		return diff.Blob{}, err
	}
	return diff.Blob{Old: old, New: new}, nil
}

func writeMyersDiff(w *bufio.Writer, m myers.Diff) error {
	if err := writeBytes(w, m.OldText); err != nil {
		return err
	}
	if err := writeBytes(w, m.NewText); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(m.Replaces))); err != nil {
		return err
	}
	for _, rep := range m.Replaces {
		if err := writeUvarint(w, uint64(rep.OldIdx)); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(rep.OldLen)); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(rep.NewIdx)); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(rep.NewLen)); err != nil {
			return err
		}
	}
	return nil
}

func readMyersDiff(r *bufio.Reader) (myers.Diff, error) {
	oldText, err := readBytes(r)
	if err != nil {
		return myers.Diff{}, err
	}
	newText, err := readBytes(r)
	if err != nil {
		return myers.Diff{}, err
	}
	n, err := readUvarint(r)
	if err != nil {
		return myers.Diff{}, err
	}
	replaces := make([]myers.Replace, n)
	for i := range replaces {
		oldIdx, err := readUvarint(r)
		if err != nil {
			return myers.Diff{}, err
		}
		oldLen, err := readUvarint(r)
		if err != nil {
			return myers.Diff{}, err
		}
		newIdx, err := readUvarint(r)
		if err != nil {
			return myers.Diff{}, err
		}
		newLen, err := readUvarint(r)
		if err != nil {
			return myers.Diff{}, err
		}
		replaces[i] = myers.Replace{OldIdx: int(oldIdx), OldLen: int(oldLen), NewIdx: int(newIdx), NewLen: int(newLen)}
	}
	return myers.Diff{OldText: oldText, NewText: newText, Replaces: replaces}, nil
}

func writeXYZList(w *bufio.Writer, list []diff.XYZ) error {
	if err := writeUvarint(w, uint64(len(list))); err != nil {
		return err
	}
	for _, k := range list {
		if err := writeXYZ(w, k); err != nil {
			return err
		}
	}
	return nil
}

func readXYZList(r *bufio.Reader) ([]diff.XYZ, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	list := make([]diff.XYZ, n)
	for i := range list {
		k, err := readXYZ(r)
		if err != nil {
			return nil, err
		}
		list[i] = k
	}
	return list, nil
}

func writeXYZ(w *bufio.Writer, k diff.XYZ) error {
	for _, v := range k {
		if err := writeInt32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readXYZ(r *bufio.Reader) (diff.XYZ, error) {
	var k diff.XYZ
	for i := range k {
		v, err := readInt32(r)
		if err != nil {
			return diff.XYZ{}, err
		}
		k[i] = v
	}
	return k, nil
}

func writeUUIDList(w *bufio.Writer, list []diff.UUID) error {
	if err := writeUvarint(w, uint64(len(list))); err != nil {
		return err
	}
	for _, k := range list {
		if err := writeUUID(w, k); err != nil {
			return err
		}
	}
	return nil
}

func readUUIDList(r *bufio.Reader) ([]diff.UUID, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	list := make([]diff.UUID, n)
	for i := range list {
		k, err := readUUID(r)
		if err != nil {
			return nil, err
		}
		list[i] = k
	}
	return list, nil
}

func writeUUID(w *bufio.Writer, k diff.UUID) error {
	for _, v := range k {
		if err := writeInt32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readUUID(r *bufio.Reader) (diff.UUID, error) {
	var k diff.UUID
	for i := range k {
		v, err := readInt32(r)
		if err != nil {
			return diff.UUID{}, err
		}
		k[i] = v
	}
	return k, nil
}

func sortedXYZKeys(m map[diff.XYZ]diff.BlockEntityDiff) []diff.XYZ {
	keys := make([]diff.XYZ, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return xyzLess(keys[i], keys[j]) })
	return keys
}

func xyzLess(a, b diff.XYZ) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func sortedUUIDKeys(m map[diff.UUID]diff.EntityDiff) []diff.UUID {
	keys := make([]diff.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return uuidLess(keys[i], keys[j]) })
	return keys
}

func uuidLess(a, b diff.UUID) bool {
	for i := 0; i < 4; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func writeBlockEntitiesDiff(w *bufio.Writer, be diff.BlockEntitiesDiff) error {
	if err := writeXYZList(w, be.OldXYZList); err != nil {
		return err
	}
	if err := writeXYZList(w, be.NewXYZList); err != nil {
		return err
	}
	keys := sortedXYZKeys(be.Map)
	if err := writeUvarint(w, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := writeXYZ(w, k); err != nil {
			return err
		}
		if err := writeBlockEntityDiff(w, be.Map[k]); err != nil {
			return err
		}
	}
	return nil
}

func readBlockEntitiesDiff(r *bufio.Reader) (diff.BlockEntitiesDiff, error) {
	oldList, err := readXYZList(r)
	if err != nil {
		return diff.BlockEntitiesDiff{}, err
	}
	newList, err := readXYZList(r)
	if err != nil {
		return diff.BlockEntitiesDiff{}, err
	}
	n, err := readUvarint(r)
	if err != nil {
		return diff.BlockEntitiesDiff{}, err
	}
	m := make(map[diff.XYZ]diff.BlockEntityDiff, n)
	for i := uint64(0); i < n; i++ {
		k, err := readXYZ(r)
		if err != nil {
			return diff.BlockEntitiesDiff{}, err
		}
		v, err := readBlockEntityDiff(r)
		if err != nil {
			return diff.BlockEntitiesDiff{}, err
		}
		m[k] = v
	}
	return diff.BlockEntitiesDiff{OldXYZList: oldList, NewXYZList: newList, Map: m}, nil
}

func writeBlockEntityDiff(w *bufio.Writer, e diff.BlockEntityDiff) error {
	if err := writeUvarint(w, uint64(e.Kind)); err != nil {
		return err
	}
	switch e.Kind {
	case diff.BEUpdateSameID:
		return writeMyersDiff(w, e.Myers)
	case diff.BECreate, diff.BEDelete, diff.BEUpdateDiffID:
		return writeBlob(w, e.Blob)
	default:
		return xerrors.Errorf("diffwire: invalid block entity diff kind %d", e.Kind)
	}
}

func readBlockEntityDiff(r *bufio.Reader) (diff.BlockEntityDiff, error) {
	kind, err := readUvarint(r)
	if err != nil {
		return diff.BlockEntityDiff{}, err
	}
	switch diff.BEKind(kind) {
	case diff.BEUpdateSameID:
		m, err := readMyersDiff(r)
		if err != nil {
			return diff.BlockEntityDiff{}, err
		}
		return diff.BlockEntityDiff{Kind: diff.BEUpdateSameID, Myers: m}, nil
	case diff.BECreate, diff.BEDelete, diff.BEUpdateDiffID:
		b, err := readBlob(r)
		if err != nil {
			return diff.BlockEntityDiff{}, err
		}
		return diff.BlockEntityDiff{Kind: diff.BEKind(kind), Blob: b}, nil
	default:
		return diff.BlockEntityDiff{}, xerrors.Errorf("diffwire: invalid block entity diff kind %d", kind)
	}
}

func writeEntitiesDiff(w *bufio.Writer, ed diff.EntitiesDiff) error {
	if err := writeUUIDList(w, ed.OldUUIDList); err != nil {
		return err
	}
	if err := writeUUIDList(w, ed.NewUUIDList); err != nil {
		return err
	}
	keys := sortedUUIDKeys(ed.Map)
	if err := writeUvarint(w, uint64(len(keys))); err != nil {
		return err
	}
	for _, k := range keys {
		if err := writeUUID(w, k); err != nil {
			return err
		}
		if err := writeEntityDiff(w, ed.Map[k]); err != nil {
			return err
		}
	}
	return nil
}

func readEntitiesDiff(r *bufio.Reader) (diff.EntitiesDiff, error) {
	oldList, err := readUUIDList(r)
	if err != nil {
		return diff.EntitiesDiff{}, err
	}
	newList, err := readUUIDList(r)
	if err != nil {
		return diff.EntitiesDiff{}, err
	}
	n, err := readUvarint(r)
	if err != nil {
		return diff.EntitiesDiff{}, err
	}
	m := make(map[diff.UUID]diff.EntityDiff, n)
	for i := uint64(0); i < n; i++ {
		k, err := readUUID(r)
		if err != nil {
			return diff.EntitiesDiff{}, err
		}
		v, err := readEntityDiff(r)
		if err != nil {
			return diff.EntitiesDiff{}, err
		}
		m[k] = v
	}
	return diff.EntitiesDiff{OldUUIDList: oldList, NewUUIDList: newList, Map: m}, nil
}

func writeEntityDiff(w *bufio.Writer, e diff.EntityDiff) error {
	if err := writeUvarint(w, uint64(e.Kind)); err != nil {
		return err
	}
	switch e.Kind {
	case diff.EUpdate:
		return writeMyersDiff(w, e.Myers)
	case diff.ECreate, diff.EDelete:
		return writeBlob(w, e.Blob)
	default:
		return xerrors.Errorf("diffwire: invalid entity diff kind %d", e.Kind)
	}
}

func readEntityDiff(r *bufio.Reader) (diff.EntityDiff, error) {
	kind, err := readUvarint(r)
	if err != nil {
		return diff.EntityDiff{}, err
	}
	switch diff.EKind(kind) {
	case diff.EUpdate:
		m, err := readMyersDiff(r)
		if err != nil {
			return diff.EntityDiff{}, err
		}
		return diff.EntityDiff{Kind: diff.EUpdate, Myers: m}, nil
	case diff.ECreate, diff.EDelete:
		b, err := readBlob(r)
		if err != nil {
			return diff.EntityDiff{}, err
		}
		return diff.EntityDiff{Kind: diff.EKind(kind), Blob: b}, nil
	default:
		return diff.EntityDiff{}, xerrors.Errorf("diffwire: invalid entity diff kind %d", kind)
	}
}

func writeChunkDiff(w *bufio.Writer, cd diff.ChunkDiff) error {
	if err := writeBlockEntitiesDiff(w, cd.BlockEntities); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(cd.Sections))); err != nil {
		return err
	}
	for _, s := range cd.Sections {
		if err := writeMyersDiff(w, s); err != nil {
			return err
		}
	}
	return writeMyersDiff(w, cd.Others)
}

func readChunkDiff(r *bufio.Reader) (diff.ChunkDiff, error) {
	be, err := readBlockEntitiesDiff(r)
	if err != nil {
		return diff.ChunkDiff{}, err
	}
	n, err := readUvarint(r)
	if err != nil {
		return diff.ChunkDiff{}, err
	}
	sections := make([]myers.Diff, n)
	for i := range sections {
		sections[i], err = readMyersDiff(r)
		if err != nil {
			return diff.ChunkDiff{}, err
		}
	}
	others, err := readMyersDiff(r)
	if err != nil {
		return diff.ChunkDiff{}, err
	}
	return diff.ChunkDiff{BlockEntities: be, Sections: sections, Others: others}, nil
}
