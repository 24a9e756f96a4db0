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
	"github.com/MaxLiang-91/HF-Download/internal/progress"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
)

func runResume(args []string) int {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)

	dir := fs.String("dir", "", "Directory holding the interrupted download")
	configPath := fs.String("config", "", "Path to a YAML config file")
	userAgent := fs.String("user-agent", "", "User-Agent header override")
	chunkSize := fs.String("chunk-size", "", "Read chunk size (e.g. 8KB, 1MB)")
	retryAttempts := fs.Int("retry-attempts", 0, "Attempts per file before giving up")
	retryWait := fs.Duration("retry-wait", 0, "Wait between retry attempts")
	quiet := fs.Bool("quiet", false, "Suppress progress output")
	verbose := fs.Bool("v", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: hfdl resume [options]

Continue an interrupted repository download using the manifest left in
the destination directory. Complete files are skipped and partial files
pick up from their current size.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	override := config.Config{
		Dir:       *dir,
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

	var events chan progress.Event
	var renderer *progress.Renderer
	if cfg.Progress {
		events = make(chan progress.Event, 64)
		renderer = progress.NewRenderer(progress.Options{Output: os.Stderr})
		renderer.Start(events)
	}

	err = batch.Resume(ctx, cfg.Dir, batch.Options{
		Client:    client,
		ChunkSize: cfg.ChunkSize,
		Attempts:  cfg.Retry.Attempts,
		RetryWait: cfg.Retry.Wait,
		Events:    events,
		Logger:    log,
	})
	if renderer != nil {
		close(events)
		renderer.Wait()
	}

	if errors.Is(err, manifest.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "[hfdl] No manifest in %s, nothing to resume\n", cfg.Dir)
		return ExitGeneralError
	}
	if errors.Is(err, downloader.ErrCancelled) {
		fmt.Fprintln(os.Stderr, "[hfdl] Cancelled; run 'hfdl resume' to continue")
		return ExitCancelled
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitTransferFailed
	}

	fmt.Fprintln(os.Stderr, "[hfdl] Resume complete")
	return ExitSuccess
}
