package main

import (
	"context"
	"flag"

	"github.com/hairlessvillager/region-diff/internal/config"
	"github.com/hairlessvillager/region-diff/internal/region"
	"golang.org/x/xerrors"
)

func cmdSquash(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("squash", flag.ExitOnError)
	compressionType := fset.String("compression-type", "zlib", "outer compression applied to the squashed diff artifact: gzip, zlib, none, lz4")
	fset.Usage = usage(fset, "region-diff squash [-compression-type=zlib] <d01> <d12> <out.diff>")
	if err := fset.Parse(args); err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) != 3 {
		fset.Usage()
		return xerrors.New("squash: expected exactly 3 positional arguments")
	}
	d01Path, d12Path, outPath := rest[0], rest[1], rest[2]

	outKind, err := parseCompressionType(*compressionType)
	if err != nil {
		return err
	}

	d01, err := readDiffArtifact(d01Path)
	if err != nil {
		return err
	}
	d12, err := readDiffArtifact(d12Path)
	if err != nil {
		return err
	}

	logger := newLogger()
	squashed, err := region.Squash(ctx, d01, d12, config.Get().Threads, logger)
	if err != nil {
		return xerrors.Errorf("squash: %w", err)
	}
	return writeDiffArtifact(outPath, squashed, outKind)
}
