package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	hfdlhttp "github.com/MaxLiang-91/HF-Download/internal/http"
	"github.com/MaxLiang-91/HF-Download/internal/progress"
)

// Defaults for Options fields left zero.
const (
	DefaultChunkSize = 8 * 1024
	DefaultAttempts  = 3
	DefaultRetryWait = 2 * time.Second
)

// ErrCancelled is returned when a transfer stops because its Control was
// cancelled or its context ended. Cancellation is a normal terminal
// outcome, not a failure; callers branch on it with errors.Is. The
// partial file is left in place for a later resume.
var ErrCancelled = errors.New("downloader: transfer cancelled")

// transientError marks failures worth retrying: connection errors,
// timeouts, and truncated streams. Authoritative HTTP statuses and local
// file errors are never wrapped in it.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return e.err.Error()
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Options configures a transfer.
type Options struct {
	// Client issues the size probe and the streaming GET.
	// Default: a client with hfdlhttp.DefaultOptions
	Client *hfdlhttp.Client

	// ChunkSize is the read/write granularity of the streaming loop.
	// Pause and cancel take effect at chunk boundaries.
	// Default: 8 KiB
	ChunkSize int

	// Attempts bounds the total tries for transient network failures.
	// Default: 3
	Attempts int

	// RetryWait is the fixed wait between attempts.
	// Default: 2s
	RetryWait time.Duration

	// Events receives status and progress events in emission order.
	// Sends block when the channel is full, so a slow consumer slows
	// the transfer rather than losing events. Optional.
	Events chan<- progress.Event

	// Logger receives debug logging. Default: disabled.
	Logger zerolog.Logger
}

// emitter delivers events for one transfer under its display name.
type emitter struct {
	events chan<- progress.Event
	name   string
}

func (e emitter) status(msg string) {
	if e.events == nil {
		return
	}
	e.events <- progress.Event{Kind: progress.KindStatus, Name: e.name, Message: msg}
}

func (e emitter) progress(downloaded, total int64) {
	if e.events == nil {
		return
	}
	e.events <- progress.Event{Kind: progress.KindProgress, Name: e.name, Downloaded: downloaded, Total: total}
}

// Transfer downloads url to dest with resume support.
//
// An existing file at dest is treated as a partial download and continued
// with a range request; a file already matching the probed remote size is
// reported complete without any GET. Transient network failures are
// retried with the resume offset re-read from disk, so bytes that arrived
// before the failure are never fetched again. HTTP error statuses fail
// immediately.
//
// ctl carries pause/cancel signals; pass nil when no external control is
// needed. Cancelling ctl or ctx stops the transfer at a chunk boundary
// and returns ErrCancelled, leaving the partial file for a later resume.
// Any other non-nil error is a real failure.
func Transfer(ctx context.Context, url, dest string, ctl *Control, opts Options) error {
	if opts.Client == nil {
		opts.Client = hfdlhttp.NewClient(hfdlhttp.DefaultOptions())
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = DefaultRetryWait
	}
	if ctl == nil {
		ctl = NewControl()
	}

	emit := emitter{events: opts.Events, name: filepath.Base(dest)}
	log := opts.Logger.With().Str("dest", dest).Logger()

	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			emit.status("error: cannot create destination directory")
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	var downloaded int64
	if fi, err := os.Stat(dest); err == nil {
		downloaded = fi.Size()
	}

	total := opts.Client.ProbeSize(ctx, url)
	log.Debug().Int64("size", total).Int64("on_disk", downloaded).Msg("probed remote size")

	if downloaded > 0 && total > 0 && downloaded == total {
		emit.status("file exists, skipping")
		emit.progress(total, total)
		return nil
	}

	if downloaded > 0 {
		emit.status("resuming download")
		log.Debug().Int64("offset", downloaded).Msg("resuming from partial file")
	}
	if total > 0 {
		emit.progress(downloaded, total)
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if attempt > 1 {
			emit.status("retrying...")
			log.Warn().Int("attempt", attempt).Err(lastErr).Msg("retrying after transient failure")

			select {
			case <-time.After(opts.RetryWait):
			case <-ctx.Done():
				emit.status("download cancelled")
				return ErrCancelled
			}

			// The file may have grown before the failure; resume from
			// what is actually on disk, not from a stale counter.
			downloaded = 0
			if fi, err := os.Stat(dest); err == nil {
				downloaded = fi.Size()
			}
		}

		err := streamOnce(ctx, ctl, opts, url, dest, downloaded, total, emit, log)
		if err == nil {
			emit.status("download complete")
			return nil
		}
		if errors.Is(err, ErrCancelled) {
			emit.status("download cancelled")
			return ErrCancelled
		}

		var statusErr *hfdlhttp.StatusError
		if errors.As(err, &statusErr) {
			emit.status(fmt.Sprintf("download failed: HTTP %d", statusErr.Code))
			return fmt.Errorf("transfer %s: %w", emit.name, err)
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			emit.status(fmt.Sprintf("error: %v", err))
			return fmt.Errorf("transfer %s: %w", emit.name, err)
		}
		lastErr = err
	}

	emit.status(fmt.Sprintf("error: %v", lastErr))
	return fmt.Errorf("transfer %s failed after %d attempts: %w", emit.name, opts.Attempts, lastErr)
}

// streamOnce performs a single GET attempt from offset and streams the
// body to dest. Transient network failures come back wrapped in
// *transientError; everything else is terminal for the transfer.
func streamOnce(ctx context.Context, ctl *Control, opts Options, url, dest string, offset, total int64, emit emitter, log zerolog.Logger) error {
	resp, err := opts.Client.Stream(ctx, url, offset)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return &transientError{err}
	}

	// A server that ignores the range request sends the whole file with
	// a 200. Resume is impossible then: drop the offset and take the
	// full body from the top.
	if offset > 0 && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		log.Debug().Int("status", resp.StatusCode).Msg("range not honored, restarting from byte 0")
		offset = 0
		resp, err = opts.Client.Stream(ctx, url, 0)
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return &transientError{err}
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &hfdlhttp.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(dest, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", dest, err)
	}
	defer f.Close()

	downloaded := offset
	buf := make([]byte, opts.ChunkSize)
	for {
		if ctl.Paused() && !ctl.Cancelled() {
			log.Debug().Msg("paused")
			ctl.wait(ctx)
		}
		if ctl.Cancelled() || ctx.Err() != nil {
			return ErrCancelled
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write %s: %w", dest, werr)
			}
			downloaded += int64(n)
			if total > 0 {
				emit.progress(downloaded, total)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			return &transientError{rerr}
		}
	}
}
