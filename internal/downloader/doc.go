// Package downloader implements the resumable transfer engine.
//
// A transfer moves one URL to one local file. Existing bytes at the
// destination are continued with an HTTP range request rather than
// refetched, and a destination already matching the remote size is
// recognized and skipped without transferring anything. The body streams
// in fixed-size chunks; between chunks the engine honors cooperative
// pause and cancel signals delivered through a per-call [Control].
//
// # Failure policy
//
// Transient network failures (connection errors, timeouts, truncated
// streams) are retried a bounded number of times with a fixed wait, each
// time re-reading the resume offset from the file on disk. HTTP error
// statuses are authoritative and fail immediately. Cancellation is not a
// failure: it surfaces as [ErrCancelled] with the partial file kept for
// a later resume.
//
// # Usage
//
//	ctl := downloader.NewControl()
//	go func() {
//	    // wire ctl.Pause / ctl.Resume / ctl.Cancel to the caller's UI
//	}()
//
//	err := downloader.Transfer(ctx, url, dest, ctl, downloader.Options{
//	    Events: events,
//	})
//	if errors.Is(err, downloader.ErrCancelled) {
//	    // stopped on request, partial file kept
//	}
package downloader
