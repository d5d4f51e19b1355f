// Command region-diff computes, applies, reverts, and composes
// structural diffs between Minecraft Anvil (.mca) region files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	regiondiff "github.com/hairlessvillager/region-diff"
	"github.com/hairlessvillager/region-diff/internal/compress"
	"github.com/hairlessvillager/region-diff/internal/config"
	"golang.org/x/xerrors"
)

var (
	debug    = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	threads  = flag.Int("threads", 4, "number of worker goroutines for parallel cell processing")
	logLevel = flag.String("log", "none", "log verbosity: none, verbose, debug, trace")
)

func parseCompressionType(s string) (compress.Kind, error) {
	switch s {
	case "gzip":
		return compress.GZip, nil
	case "zlib", "":
		return compress.Zlib, nil
	case "none":
		return compress.None, nil
	case "lz4":
		return compress.LZ4, nil
	default:
		return 0, xerrors.Errorf("unrecognized -compression-type %q", s)
	}
}

type cmd struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	level, err := config.ParseLogLevel(*logLevel)
	if err != nil {
		return err
	}
	cfg := config.Config{Threads: *threads, LogLevel: level}
	if err := cfg.Validate(); err != nil {
		return err
	}
	config.Init(cfg)

	verbs := map[string]cmd{
		"diff":   {cmdDiff},
		"patch":  {cmdPatch},
		"revert": {cmdRevert},
		"squash": {cmdSquash},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "syntax: region-diff [-flags] <command> [-flags] <args>\n")
		fmt.Fprintf(os.Stderr, "commands: diff | patch | revert | squash\n")
		os.Exit(2)
	}
	verb, rest := args[0], args[1:]
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: region-diff <command> [options]\n")
		os.Exit(2)
	}

	ctx, canc := regiondiff.InterruptibleContext()
	defer canc()
	if err := v.fn(ctx, rest); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return regiondiff.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
