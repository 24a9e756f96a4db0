package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/MaxLiang-91/HF-Download/internal/config"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
)

func runClean(args []string) int {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)

	dir := fs.String("dir", "", "Directory to remove the manifest from")
	configPath := fs.String("config", "", "Path to a YAML config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: hfdl clean [options]

Remove the batch manifest from a directory. Downloaded files are left
alone; only the resume bookkeeping is discarded.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(*configPath, config.Config{Dir: *dir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}

	store, err := manifest.OpenDir(cfg.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer store.Close()

	if err := store.Clear(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	fmt.Fprintf(os.Stderr, "[hfdl] Manifest removed from %s\n", cfg.Dir)
	return ExitSuccess
}
