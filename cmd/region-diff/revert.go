package main

import (
	"context"
	"flag"

	"github.com/hairlessvillager/region-diff/internal/config"
	"golang.org/x/xerrors"
)

func cmdRevert(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("revert", flag.ExitOnError)
	fset.Usage = usage(fset, "region-diff revert <diff> <new.mca> <out.mca>")
	if err := fset.Parse(args); err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) != 3 {
		fset.Usage()
		return xerrors.New("revert: expected exactly 3 positional arguments")
	}
	diffPath, newPath, outPath := rest[0], rest[1], rest[2]

	logger := newLogger()
	d, err := readDiffArtifact(diffPath)
	if err != nil {
		return err
	}
	newReader, err := loadMCA(ctx, newPath, logger)
	if err != nil {
		return err
	}

	data, err := d.Revert(ctx, newReader, config.Get().Threads, logger)
	if err != nil {
		return xerrors.Errorf("revert: %w", err)
	}
	return saveMCA(outPath, data)
}
