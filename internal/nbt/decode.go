package nbt

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/xerrors"
)

// Decode parses a complete uncompressed NBT document: a single named
// root tag (almost always a TAG_Compound). The name is discarded; the
// differs operate on values, not on the root's own name.
func Decode(data []byte) (Value, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	tag, err := readByte(r)
	if err != nil {
		return Value{}, xerrors.Errorf("nbt: read root tag: %w", err)
	}
	if Tag(tag) == TagEnd {
		return Value{Tag: TagEnd}, nil
	}
	if _, err := readName(r); err != nil {
		return Value{}, xerrors.Errorf("nbt: read root name: %w", err)
	}
	v, err := readPayload(r, Tag(tag))
	if err != nil {
		return Value{}, xerrors.Errorf("nbt: read root payload: %w", err)
	}
	return v, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readName(r io.Reader) (string, error) {
	var l uint16
	if err := binary.Read(r, binary.BigEndian, &l); err != nil {
		return "", err
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readPayload(r io.Reader, tag Tag) (Value, error) {
	switch tag {
	case TagByte:
		var x int8
		if err := binary.Read(r, binary.BigEndian, &x); err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Byte: x}, nil
	case TagShort:
		var x int16
		if err := binary.Read(r, binary.BigEndian, &x); err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Short: x}, nil
	case TagInt:
		var x int32
		if err := binary.Read(r, binary.BigEndian, &x); err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Int: x}, nil
	case TagLong:
		var x int64
		if err := binary.Read(r, binary.BigEndian, &x); err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Long: x}, nil
	case TagFloat:
		var x uint32
		if err := binary.Read(r, binary.BigEndian, &x); err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Float: math.Float32frombits(x)}, nil
	case TagDouble:
		var x uint64
		if err := binary.Read(r, binary.BigEndian, &x); err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Double: math.Float64frombits(x)}, nil
	case TagByteArray:
		n, err := readInt32(r)
		if err != nil {
			return Value{}, err
		}
		arr := make([]int8, n)
		for i := range arr {
			b, err := readByte(r)
			if err != nil {
				return Value{}, err
			}
			arr[i] = int8(b)
		}
		return Value{Tag: tag, ByteArray: arr}, nil
	case TagString:
		s, err := readName(r)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, Str: s}, nil
	case TagList:
		elemTag, err := readByte(r)
		if err != nil {
			return Value{}, err
		}
		n, err := readInt32(r)
		if err != nil {
			return Value{}, err
		}
		if n < 0 {
			return Value{}, xerrors.Errorf("nbt: negative list length %d", n)
		}
		elems := make([]Value, n)
		for i := range elems {
			v, err := readPayload(r, Tag(elemTag))
			if err != nil {
				return Value{}, xerrors.Errorf("nbt: list element %d: %w", i, err)
			}
			elems[i] = v
		}
		return Value{Tag: tag, ListElem: Tag(elemTag), List: elems}, nil
	case TagCompound:
		keys := make([]string, 0, 8)
		m := make(map[string]Value, 8)
		for {
			childTag, err := readByte(r)
			if err != nil {
				return Value{}, err
			}
			if Tag(childTag) == TagEnd {
				break
			}
			name, err := readName(r)
			if err != nil {
				return Value{}, err
			}
			child, err := readPayload(r, Tag(childTag))
			if err != nil {
				return Value{}, xerrors.Errorf("nbt: field %q: %w", name, err)
			}
			if _, exists := m[name]; !exists {
				keys = append(keys, name)
			}
			m[name] = child
		}
		return Value{Tag: tag, Compound: m, CompoundKeys: keys}, nil
	case TagIntArray:
		n, err := readInt32(r)
		if err != nil {
			return Value{}, err
		}
		arr := make([]int32, n)
		for i := range arr {
			v, err := readInt32(r)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{Tag: tag, IntArray: arr}, nil
	case TagLongArray:
		n, err := readInt32(r)
		if err != nil {
			return Value{}, err
		}
		arr := make([]int64, n)
		for i := range arr {
			var v int64
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Value{Tag: tag, LongArray: arr}, nil
	default:
		return Value{}, xerrors.Errorf("nbt: unknown tag %d", tag)
	}
}

func readInt32(r io.Reader) (int32, error) {
	var x int32
	if err := binary.Read(r, binary.BigEndian, &x); err != nil {
		return 0, err
	}
	return x, nil
}
