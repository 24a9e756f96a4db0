// Package manifest persists batch download state alongside the downloaded
// files.
//
// A manifest records which files a batch run intends to fetch, where from,
// and how large each one is expected to be. It is written before the first
// transfer starts and deleted once every file has completed, so its
// presence marks an interrupted batch that can be resumed. Storage is
// bucket-shaped via gocloud.dev/blob: production uses a fileblob bucket on
// the save directory itself, tests use memblob.
//
// # Lifecycle
//
// Use [New] to build a manifest for a fresh batch and [Store.Save] to
// persist it. [Store.Load] returns [ErrNotFound] when no manifest exists.
// [Store.Clear] removes it and tolerates it already being gone.
//
// Per-file byte offsets are never stored. Resume re-derives progress from
// the sizes of the files on disk, which cannot go stale the way a
// snapshot can.
//
// # Storage Layout
//
//	{saveDir}/.hfdl-manifest.json
//
// # Manifest Format
//
//	{
//	  "id": "7f9d6a32-...",
//	  "original_url": "https://hf-mirror.com/org/model",
//	  "save_directory": "/data/models/model",
//	  "files": [
//	    {"filename": "model.safetensors", "url": "https://...", "size": 4294967296},
//	    ...
//	  ],
//	  "created_at": "2025-06-02T10:30:00Z"
//	}
package manifest
