package main

import (
	"context"
	"os"

	"github.com/hairlessvillager/region-diff/internal/config"
	"github.com/hairlessvillager/region-diff/internal/logging"
	"github.com/hairlessvillager/region-diff/internal/mca"
	"golang.org/x/xerrors"
)

func loadMCA(ctx context.Context, path string, logger *logging.Logger) (*mca.Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("read %s: %w", path, err)
	}
	cfg := config.Get()
	r, err := mca.Read(ctx, data, cfg.Threads, logger)
	if err != nil {
		return nil, xerrors.Errorf("parse %s: %w", path, err)
	}
	return r, nil
}

func saveMCA(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xerrors.Errorf("write %s: %w", path, err)
	}
	return nil
}

func newLogger() *logging.Logger {
	return logging.New(config.Get().LogLevel, os.Stderr)
}
