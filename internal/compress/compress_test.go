package compress

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 37)
	for _, kind := range []Kind{GZip, Zlib, None, LZ4} {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			compressed, err := Compress(kind, payload)
			if err != nil {
				t.Fatalf("Compress: %v", err)
			}
			got, err := Decompress(kind, compressed)
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(payload))
			}
		})
	}
}

func TestMagicRoundTrip(t *testing.T) {
	for _, kind := range []Kind{GZip, Zlib, None, LZ4} {
		magic := ToMagic(kind)
		gotKind, isLarge, err := FromMagic(magic)
		if err != nil {
			t.Fatalf("FromMagic(%#x): %v", magic, err)
		}
		if isLarge {
			t.Fatalf("FromMagic(%#x): unexpectedly large", magic)
		}
		if gotKind != kind {
			t.Fatalf("FromMagic(%#x) = %v, want %v", magic, gotKind, kind)
		}
	}
}

func TestMagicLargeChunkBit(t *testing.T) {
	magic := ToMagic(Zlib) | largeChunkBit
	kind, isLarge, err := FromMagic(magic)
	if err != nil {
		t.Fatalf("FromMagic: %v", err)
	}
	if !isLarge {
		t.Fatal("expected isLarge")
	}
	if kind != Zlib {
		t.Fatalf("kind = %v, want Zlib", kind)
	}
}

func TestFromMagicInvalid(t *testing.T) {
	if _, _, err := FromMagic(0x09); err == nil {
		t.Fatal("expected error for invalid magic")
	}
}
