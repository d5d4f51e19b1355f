package mca

import (
	"bytes"
	"context"
	"testing"

	"github.com/hairlessvillager/region-diff/internal/compress"
)

func TestWriteReadRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Set(0, 0, &Chunk{Timestamp: 100, NBT: []byte("chunk at 0,0")})
	b.Set(5, 5, &Chunk{Timestamp: 200, NBT: bytes.Repeat([]byte("x"), 9000)}) // over two sectors before compression; Zlib shrinks it to one
	b.Set(31, 31, &Chunk{Timestamp: 300, IsLarge: true})

	data, err := b.ToBytes(context.Background(), compress.Zlib, 4, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}

	r, err := Read(context.Background(), data, 4, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	c := r.Get(0, 0)
	if c == nil || !bytes.Equal(c.NBT, []byte("chunk at 0,0")) || c.Timestamp != 100 {
		t.Fatalf("cell (0,0) mismatch: %+v", c)
	}
	c = r.Get(5, 5)
	if c == nil || !bytes.Equal(c.NBT, bytes.Repeat([]byte("x"), 9000)) || c.Timestamp != 200 {
		t.Fatalf("cell (5,5) mismatch")
	}
	c = r.Get(31, 31)
	if c == nil || !c.IsLarge || c.Timestamp != 300 {
		t.Fatalf("cell (31,31) mismatch: %+v", c)
	}
	if r.Get(1, 1) != nil {
		t.Fatalf("cell (1,1) should be absent")
	}
	if r.Timestamp(1, 1) != 0 {
		t.Fatalf("absent cell timestamp should be 0")
	}
}

func TestReadRejectsHeaderOverlap(t *testing.T) {
	b := NewBuilder()
	b.Set(0, 0, &Chunk{Timestamp: 1, NBT: []byte("x")})
	data, err := b.ToBytes(context.Background(), compress.None, 2, nil)
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	// Corrupt the location entry for cell 0 to point inside the header.
	data[3] = 1 // keep a nonzero sector count; the next line sets the offset to sector 1, inside the header
	data[0], data[1], data[2] = 0, 0, 1
	if _, err := Read(context.Background(), data, 2, nil); err == nil {
		t.Fatal("expected header-overlap error")
	}
}
