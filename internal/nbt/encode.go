package nbt

import (
	"bytes"
	"encoding/binary"
	"math"

	"golang.org/x/xerrors"
)

// Encode serializes v as a complete NBT document under an empty root
// name, matching the shape Decode expects to read back.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(v.Tag))
	if v.Tag != TagEnd {
		writeName(&buf, "")
	}
	if err := writePayload(&buf, v); err != nil {
		return nil, xerrors.Errorf("nbt: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func writeName(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, uint16(len(s)))
	buf.WriteString(s)
}

func writePayload(buf *bytes.Buffer, v Value) error {
	switch v.Tag {
	case TagEnd:
		return nil
	case TagByte:
		return binary.Write(buf, binary.BigEndian, v.Byte)
	case TagShort:
		return binary.Write(buf, binary.BigEndian, v.Short)
	case TagInt:
		return binary.Write(buf, binary.BigEndian, v.Int)
	case TagLong:
		return binary.Write(buf, binary.BigEndian, v.Long)
	case TagFloat:
		return binary.Write(buf, binary.BigEndian, math.Float32bits(v.Float))
	case TagDouble:
		return binary.Write(buf, binary.BigEndian, math.Float64bits(v.Double))
	case TagByteArray:
		if err := binary.Write(buf, binary.BigEndian, int32(len(v.ByteArray))); err != nil {
			return err
		}
		for _, b := range v.ByteArray {
			buf.WriteByte(byte(b))
		}
		return nil
	case TagString:
		writeName(buf, v.Str)
		return nil
	case TagList:
		buf.WriteByte(byte(v.ListElem))
		if err := binary.Write(buf, binary.BigEndian, int32(len(v.List))); err != nil {
			return err
		}
		for i, elem := range v.List {
			if elem.Tag != v.ListElem && len(v.List) > 0 {
				return xerrors.Errorf("nbt: list element %d has tag %d, want %d", i, elem.Tag, v.ListElem)
			}
			if err := writePayload(buf, elem); err != nil {
				return xerrors.Errorf("nbt: list element %d: %w", i, err)
			}
		}
		return nil
	case TagCompound:
		for _, k := range v.CompoundKeys {
			child := v.Compound[k]
			buf.WriteByte(byte(child.Tag))
			writeName(buf, k)
			if err := writePayload(buf, child); err != nil {
				return xerrors.Errorf("nbt: field %q: %w", k, err)
			}
		}
		buf.WriteByte(byte(TagEnd))
		return nil
	case TagIntArray:
		if err := binary.Write(buf, binary.BigEndian, int32(len(v.IntArray))); err != nil {
			return err
		}
		for _, x := range v.IntArray {
			if err := binary.Write(buf, binary.BigEndian, x); err != nil {
				return err
			}
		}
		return nil
	case TagLongArray:
		if err := binary.Write(buf, binary.BigEndian, int32(len(v.LongArray))); err != nil {
			return err
		}
		for _, x := range v.LongArray {
			if err := binary.Write(buf, binary.BigEndian, x); err != nil {
				return err
			}
		}
		return nil
	default:
		return xerrors.Errorf("nbt: unknown tag %d", v.Tag)
	}
}
