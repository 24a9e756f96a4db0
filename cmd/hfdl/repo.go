package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MaxLiang-91/HF-Download/internal/batch"
	"github.com/MaxLiang-91/HF-Download/internal/config"
	"github.com/MaxLiang-91/HF-Download/internal/downloader"
	hfdlhttp "github.com/MaxLiang-91/HF-Download/internal/http"
	"github.com/MaxLiang-91/HF-Download/internal/hub"
	"github.com/MaxLiang-91/HF-Download/internal/progress"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
)

func runRepo(args []string) int {
	fs := flag.NewFlagSet("repo", flag.ExitOnError)

	url := fs.String("url", "", "Repository tree URL or owner/name (required)")
	dir := fs.String("dir", "", "Destination directory")
	mirror := fs.String("mirror", "", "Mirror base URL for listing and downloads")
	configPath := fs.String("config", "", "Path to a YAML config file")
	userAgent := fs.String("user-agent", "", "User-Agent header override")
	chunkSize := fs.String("chunk-size", "", "Read chunk size (e.g. 8KB, 1MB)")
	retryAttempts := fs.Int("retry-attempts", 0, "Attempts per file before giving up")
	retryWait := fs.Duration("retry-wait", 0, "Wait between retry attempts")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	verbose := fs.Bool("v", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: hfdl repo [options]

Download every file in a repository tree, preserving subdirectories.
Files already on disk at their full size are skipped, partial files
resume, and a manifest is written so an interrupted run can be
continued with 'hfdl resume'.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	override := config.Config{
		URL:       *url,
		Dir:       *dir,
		Mirror:    *mirror,
		UserAgent: *userAgent,
		Retry: config.RetryConfig{
			Attempts: *retryAttempts,
			Wait:     *retryWait,
		},
	}
	if *chunkSize != "" {
		n, err := progress.ParseBytes(*chunkSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -chunk-size: %v\n", err)
			return ExitInvalidArgs
		}
		override.ChunkSize = int(n)
	}

	cfg, err := loadConfig(*configPath, override)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	if *quiet {
		cfg.Progress = false
	}

	if cfg.URL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	ref, err := hub.ParseRepo(cfg.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUnresolvableURL
	}

	log := newLogger(*verbose)

	client := hfdlhttp.NewClient(hfdlhttp.Options{
		UserAgent:             cfg.UserAgent,
		ProbeTimeout:          cfg.Timeouts.Probe,
		ListTimeout:           cfg.Timeouts.List,
		ResponseHeaderTimeout: cfg.Timeouts.ResponseHeader,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\n[hfdl] Received interrupt, shutting down...")
		cancel()
	}()

	lister := hub.NewLister(client, hub.ListerOptions{Base: cfg.Mirror, Logger: log})
	files, err := lister.ListFiles(ctx, *ref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing %s: %v\n", ref, err)
		return ExitListFailed
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no files found in %s\n", ref)
		return ExitListFailed
	}
	fmt.Fprintf(os.Stderr, "[hfdl] Found %d files in %s\n", len(files), ref)

	store, err := manifest.OpenDir(cfg.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitGeneralError
	}
	defer store.Close()

	var events chan progress.Event
	var renderer *progress.Renderer
	if cfg.Progress {
		events = make(chan progress.Event, 64)
		renderer = progress.NewRenderer(progress.Options{Output: os.Stderr})
		renderer.Start(events)
	}

	err = batch.Run(ctx, files, cfg.Dir, batch.Options{
		Client:      client,
		ChunkSize:   cfg.ChunkSize,
		Attempts:    cfg.Retry.Attempts,
		RetryWait:   cfg.Retry.Wait,
		OriginalURL: cfg.URL,
		Store:       store,
		Events:      events,
		Logger:      log,
	})
	if renderer != nil {
		close(events)
		renderer.Wait()
	}

	if errors.Is(err, downloader.ErrCancelled) {
		fmt.Fprintln(os.Stderr, "[hfdl] Cancelled; run 'hfdl resume' to continue")
		return ExitCancelled
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "[hfdl] Run 'hfdl resume' to retry the failed files")
		return ExitTransferFailed
	}

	fmt.Fprintf(os.Stderr, "[hfdl] Saved %d files to %s\n", len(files), cfg.Dir)
	return ExitSuccess
}
