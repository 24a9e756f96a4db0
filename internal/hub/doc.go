// Package hub resolves HuggingFace-style URLs and lists repository trees.
//
// Input URLs come in three shapes:
//   - tree URLs (".../owner/model/tree/branch[/subpath]") naming a
//     repository subtree to download in full
//   - single-file URLs (".../owner/model/resolve/branch/path" or the
//     "/blob/" web view of the same file)
//   - opaque http(s) URLs downloaded as-is
//
// [Resolve] classifies input into exactly one of these, canonicalizing
// single-file URLs onto the primary mirror. [Lister.ListFiles] expands a
// tree reference into its flat file list via the hub's JSON API.
//
// # Usage
//
//	res, err := hub.Resolve(raw)
//	if res.IsTree() {
//	    files, err := lister.ListFiles(ctx, *res.Repo)
//	    // ...
//	}
package hub
