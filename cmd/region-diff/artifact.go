package main

import (
	"os"

	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/diffwire"
	"github.com/hairlessvillager/region-diff/internal/region"
	"golang.org/x/xerrors"
)

// writeDiffArtifact serializes d and writes it to path, wrapped in a
// single outer compression layer selected by kind. The first byte of
// the file is the same magic byte the MCA format uses for a cell's
// compression kind, reused here for the artifact's outer wrapper.
func writeDiffArtifact(path string, d *region.Diff, kind compress.Kind) error {
	encoded, err := diffwire.Encode(d)
	if err != nil {
		return xerrors.Errorf("serialize diff: %w", err)
	}
	compressed, err := compress.Compress(kind, encoded)
	if err != nil {
		return xerrors.Errorf("compress diff artifact: %w", err)
	}
	out := append([]byte{compress.ToMagic(kind)}, compressed...)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return xerrors.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readDiffArtifact(path string) (*region.Diff, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read %s: %w", path, err)
	}
	if len(raw) < 1 {
		return nil, xerrors.Errorf("%s: empty diff artifact", path)
	}
	kind, isLarge, err := compress.FromMagic(raw[0])
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}
	if isLarge {
		return nil, xerrors.Errorf("%s: malformed diff artifact: large-chunk bit set on outer wrapper", path)
	}
	decompressed, err := compress.Decompress(kind, raw[1:])
	if err != nil {
		return nil, xerrors.Errorf("decompress %s: %w", path, err)
	}
	d, err := diffwire.Decode(decompressed)
	if err != nil {
		return nil, xerrors.Errorf("parse %s: %w", path, err)
	}
	return d, nil
}
