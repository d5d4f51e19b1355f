package main

import (
	"context"
	"flag"

	"github.com/hairlessvillager/region-diff/internal/config"
	"golang.org/x/xerrors"
)

func cmdPatch(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("patch", flag.ExitOnError)
	fset.Usage = usage(fset, "region-diff patch <diff> <old.mca> <out.mca>")
	if err := fset.Parse(args); err != nil {
		return err
	}
	rest := fset.Args()
	if len(rest) != 3 {
		fset.Usage()
		return xerrors.New("patch: expected exactly 3 positional arguments")
	}
	diffPath, oldPath, outPath := rest[0], rest[1], rest[2]

	logger := newLogger()
	d, err := readDiffArtifact(diffPath)
	if err != nil {
		return err
	}
	oldReader, err := loadMCA(ctx, oldPath, logger)
	if err != nil {
		return err
	}

	data, err := d.Patch(ctx, oldReader, config.Get().Threads, logger)
	if err != nil {
		return xerrors.Errorf("patch: %w", err)
	}
	return saveMCA(outPath, data)
}
