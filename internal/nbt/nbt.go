// Package nbt decodes and encodes Minecraft's Named Binary Tag format.
//
// No third-party NBT library was found anywhere in the reference
// corpus this module was built from, so this package is a hand-rolled,
// standard-library-only codec (see the project's DESIGN.md for the
// justification). It implements only what the region differs need:
// the full value tree plus structural helpers for splitting a root
// compound into named fields and iterating lists of compounds.
package nbt

import (
	"golang.org/x/xerrors"
)

// Tag identifies the type of an NBT value.
type Tag byte

const (
	TagEnd Tag = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// Value is a single node of the NBT tree. Exactly one of the typed
// fields below is meaningful, selected by Tag.
type Value struct {
	Tag Tag

	Byte   int8
	Short  int16
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Str    string

	ByteArray []int8
	IntArray  []int32
	LongArray []int64

	// List holds the elements of a TAG_List. ListElem is the element
	// tag; it is TagEnd for an empty list.
	List     []Value
	ListElem Tag

	// Compound holds the named children of a TAG_Compound, in
	// encounter order (NBT compounds are logically unordered, but
	// preserving encounter order keeps serialization deterministic).
	Compound     map[string]Value
	CompoundKeys []string
}

// Int32Value builds a TAG_Int value. Helpers like this exist for the
// scalar kinds the differs actually construct; the rest are reached
// via literal Value{} composition.
func Int32Value(v int32) Value { return Value{Tag: TagInt, Int: v} }

// StringValue builds a TAG_String value.
func StringValue(v string) Value { return Value{Tag: TagString, Str: v} }

// Field looks up a named child of a compound value.
func (v Value) Field(name string) (Value, bool) {
	if v.Tag != TagCompound {
		return Value{}, false
	}
	child, ok := v.Compound[name]
	return child, ok
}

// WithField returns a copy of the compound v with name set to child,
// preserving key order (appending name if it is new).
func (v Value) WithField(name string, child Value) Value {
	out := v.clone()
	if out.Compound == nil {
		out.Compound = make(map[string]Value, 1)
	}
	if _, exists := out.Compound[name]; !exists {
		out.CompoundKeys = append(append([]string(nil), out.CompoundKeys...), name)
	}
	out.Compound[name] = child
	return out
}

// WithoutField returns a copy of the compound v with name removed.
func (v Value) WithoutField(name string) Value {
	out := v.clone()
	delete(out.Compound, name)
	keys := make([]string, 0, len(out.CompoundKeys))
	for _, k := range out.CompoundKeys {
		if k != name {
			keys = append(keys, k)
		}
	}
	out.CompoundKeys = keys
	return out
}

func (v Value) clone() Value {
	out := v
	if v.Compound != nil {
		out.Compound = make(map[string]Value, len(v.Compound))
		for k, val := range v.Compound {
			out.Compound[k] = val
		}
		out.CompoundKeys = append([]string(nil), v.CompoundKeys...)
	}
	if v.List != nil {
		out.List = append([]Value(nil), v.List...)
	}
	return out
}

// ErrTypeMismatch is wrapped into errors raised when a structural
// helper (keying by xyz, by UUID, by id string) finds an NBT shape it
// did not expect.
var ErrTypeMismatch = xerrors.New("nbt: type mismatch")
