package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MaxLiang-91/HF-Download/internal/downloader"
	hfdlhttp "github.com/MaxLiang-91/HF-Download/internal/http"
	"github.com/MaxLiang-91/HF-Download/internal/progress"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
	"github.com/rs/zerolog"
)

// Options configures a batch run.
type Options struct {
	// Client issues every probe and streaming request in the batch.
	// Default: a client with hfdlhttp.DefaultOptions
	Client *hfdlhttp.Client

	// ChunkSize, Attempts and RetryWait are passed through to each
	// file's transfer. Zero values use the downloader defaults.
	ChunkSize int
	Attempts  int
	RetryWait time.Duration

	// OriginalURL is recorded in the manifest so an interrupted batch
	// can be traced back to the request that started it.
	OriginalURL string

	// Store persists the batch manifest next to the files.
	// nil turns persistence off.
	Store *manifest.Store

	// Events receives the per-file transfer events plus batch-level
	// status lines. Optional.
	Events chan<- progress.Event

	// Logger receives batch debug logging. Default: disabled.
	Logger zerolog.Logger
}

// emitter delivers batch-level events; a nil channel drops them.
type emitter struct {
	events chan<- progress.Event
}

func (e emitter) status(name, msg string) {
	if e.events == nil {
		return
	}
	e.events <- progress.Event{Kind: progress.KindStatus, Name: name, Message: msg}
}

func (e emitter) progress(name string, downloaded, total int64) {
	if e.events == nil {
		return
	}
	e.events <- progress.Event{Kind: progress.KindProgress, Name: name, Downloaded: downloaded, Total: total}
}

// Run transfers files into dir sequentially, in listing order.
//
// Each file is classified against its declared size before anything is
// fetched: already present at full size means skip without any network
// traffic, partially present means resume from the on-disk offset, and
// absent means a fresh download. One file failing does not stop the
// batch; the remaining files still run and Run returns an aggregate
// error at the end. Cancelling ctx stops the batch at the next file
// boundary (the active transfer stops at its next chunk) and returns
// downloader.ErrCancelled.
//
// When a Store is configured, the manifest is saved before the first
// transfer and cleared only after a fully successful run, so an
// interrupted batch can be picked up again with Resume.
func Run(ctx context.Context, files []manifest.FileEntry, dir string, opts Options) error {
	if opts.Client == nil {
		opts.Client = hfdlhttp.NewClient(hfdlhttp.DefaultOptions())
	}

	m := manifest.New(opts.OriginalURL, dir, files)
	log := opts.Logger.With().Str("batch", m.ID).Logger()
	emit := emitter{events: opts.Events}

	log.Info().Int("files", len(files)).Str("dir", dir).Msg("batch starting")

	if opts.Store != nil {
		if err := opts.Store.Save(ctx, m); err != nil {
			// The manifest only advises resumption; failing to write it
			// must not stop the batch.
			log.Warn().Err(err).Msg("manifest save failed, batch will not be resumable")
		}
	}

	var errs []error
	for i, entry := range files {
		if ctx.Err() != nil {
			emit.status("", "batch cancelled")
			return downloader.ErrCancelled
		}

		dest := filepath.Join(dir, filepath.FromSlash(entry.Filename))
		var onDisk int64
		if fi, err := os.Stat(dest); err == nil {
			onDisk = fi.Size()
		}

		flog := log.With().Str("file", entry.Filename).Int("index", i+1).Logger()
		switch {
		case entry.Size > 0 && onDisk == entry.Size:
			flog.Debug().Msg("already complete, skipping")
			emit.status(entry.Filename, "file exists, skipping")
			emit.progress(entry.Filename, entry.Size, entry.Size)
			continue
		case onDisk > 0:
			// The transfer announces the resume itself.
			flog.Debug().Int64("offset", onDisk).Msg("partial file, resuming")
		default:
			flog.Debug().Msg("not present, downloading")
			emit.status(entry.Filename, "downloading")
		}

		err := downloader.Transfer(ctx, entry.URL, dest, nil, downloader.Options{
			Client:    opts.Client,
			ChunkSize: opts.ChunkSize,
			Attempts:  opts.Attempts,
			RetryWait: opts.RetryWait,
			Events:    opts.Events,
			Logger:    opts.Logger,
		})
		if errors.Is(err, downloader.ErrCancelled) {
			emit.status("", "batch cancelled")
			return downloader.ErrCancelled
		}
		if err != nil {
			flog.Error().Err(err).Msg("file failed")
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		emit.status("", fmt.Sprintf("batch finished: %d of %d files failed", len(errs), len(files)))
		return fmt.Errorf("batch: %d of %d files failed: %w", len(errs), len(files), errors.Join(errs...))
	}

	if opts.Store != nil {
		if err := opts.Store.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("manifest clear failed")
		}
	}
	emit.status("", "batch complete")
	return nil
}

// Resume reopens the manifest in dir and re-runs its batch. Files that
// finished before the interruption classify as skips, so only the
// remainder actually transfers. Returns manifest.ErrNotFound when dir
// holds no manifest.
//
// The manifest's recorded save directory is advisory; the files are
// taken to live in dir, where the manifest itself was found.
func Resume(ctx context.Context, dir string, opts Options) error {
	store := opts.Store
	if store == nil {
		s, err := manifest.OpenDir(dir)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
		opts.Store = s
	}

	m, err := store.Load(ctx)
	if err != nil {
		return err
	}
	opts.OriginalURL = m.OriginalURL

	return Run(ctx, m.Files, dir, opts)
}
