// Package compress implements the four compression codecs used to store
// chunk payloads inside an MCA container: GZip, Zlib, None, and LZ4.
package compress

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/pgzip"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/xerrors"
)

// Kind identifies a compression algorithm by its MCA wire magic byte.
type Kind byte

const (
	GZip Kind = 1
	Zlib Kind = 2
	None Kind = 3
	LZ4  Kind = 4
)

// largeChunkBit marks an MCA payload as stored externally in an .mcc file.
// It is layered on top of the magic byte, not a Kind of its own.
const largeChunkBit byte = 0x80

func (k Kind) String() string {
	switch k {
	case GZip:
		return "gzip"
	case Zlib:
		return "zlib"
	case None:
		return "none"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ToMagic returns the single-byte MCA wire representation of k.
func ToMagic(k Kind) byte {
	return byte(k)
}

// FromMagic recovers a Kind from an MCA wire byte, stripping the external
// large-chunk sentinel bit first. isLarge reports whether that bit was set.
func FromMagic(magic byte) (k Kind, isLarge bool, err error) {
	isLarge = magic&largeChunkBit != 0
	base := magic &^ largeChunkBit
	switch Kind(base) {
	case GZip, Zlib, None, LZ4:
		return Kind(base), isLarge, nil
	default:
		return 0, false, xerrors.Errorf("compress: invalid magic byte %#x", magic)
	}
}

// Compress encodes in using the algorithm identified by kind.
func Compress(kind Kind, in []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case GZip:
		w := pgzip.NewWriter(&buf)
		if _, err := w.Write(in); err != nil {
			return nil, xerrors.Errorf("compress: gzip write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, xerrors.Errorf("compress: gzip close: %w", err)
		}
	case Zlib:
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(in); err != nil {
			return nil, xerrors.Errorf("compress: zlib write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, xerrors.Errorf("compress: zlib close: %w", err)
		}
	case None:
		buf.Write(in)
	case LZ4:
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(in); err != nil {
			return nil, xerrors.Errorf("compress: lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, xerrors.Errorf("compress: lz4 close: %w", err)
		}
	default:
		return nil, xerrors.Errorf("compress: unsupported kind %v", kind)
	}
	return buf.Bytes(), nil
}

// Decompress decodes in using the algorithm identified by kind.
func Decompress(kind Kind, in []byte) ([]byte, error) {
	var r io.Reader
	switch kind {
	case GZip:
		gr, err := pgzip.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, xerrors.Errorf("decompress: gzip: %w", err)
		}
		defer gr.Close()
		r = gr
	case Zlib:
		zr, err := zlib.NewReader(bytes.NewReader(in))
		if err != nil {
			return nil, xerrors.Errorf("decompress: zlib: %w", err)
		}
		defer zr.Close()
		r = zr
	case None:
		r = bytes.NewReader(in)
	case LZ4:
		r = lz4.NewReader(bytes.NewReader(in))
	default:
		return nil, xerrors.Errorf("decompress: unsupported kind %v", kind)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, xerrors.Errorf("decompress: %v: %w", kind, err)
	}
	return out, nil
}
