// Package batch sequences multiple resumable transfers over a file set.
//
// Transfers run strictly sequentially in listing order, which keeps at
// most one writer per destination path. Before each file the batch
// compares what is on disk against the declared size from the listing:
// complete files are skipped without touching the network, partial
// files resume, absent files download fresh.
//
// # Manifest lifecycle
//
// When a Store is configured, Run saves a manifest of the file set
// before the first transfer. A batch that stops early leaves the
// manifest in place, and Resume picks the remainder up using on-disk
// sizes; byte offsets are never persisted. The manifest is cleared only
// after a run in which every file completed or was already complete.
package batch
