package main

import (
	"context"
	"flag"

	"github.com/hairlessvillager/region-diff/internal/config"
	"github.com/hairlessvillager/region-diff/internal/region"
	"golang.org/x/xerrors"
)

func cmdDiff(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("diff", flag.ExitOnError)
	compressionType := fset.String("compression-type", "zlib", "outer compression applied to the serialized diff artifact: gzip, zlib, none, lz4")
	fset.Usage = usage(fset, "region-diff diff [-compression-type=zlib] <old.mca> <new.mca> <out.diff>")
	if err := fset.Parse(args); err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) != 3 {
		fset.Usage()
		return xerrors.New("diff: expected exactly 3 positional arguments")
	}
	oldPath, newPath, outPath := rest[0], rest[1], rest[2]

	outKind, err := parseCompressionType(*compressionType)
	if err != nil {
		return err
	}

	logger := newLogger()
	oldReader, err := loadMCA(ctx, oldPath, logger)
	if err != nil {
		return err
	}
	newReader, err := loadMCA(ctx, newPath, logger)
	if err != nil {
		return err
	}

	d, err := region.FromCompare(ctx, oldReader, newReader, config.Get().Threads, logger)
	if err != nil {
		return xerrors.Errorf("diff: %w", err)
	}
	return writeDiffArtifact(outPath, d, outKind)
}
