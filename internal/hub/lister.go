package hub

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	hfdlhttp "github.com/MaxLiang-91/HF-Download/internal/http"
	"github.com/MaxLiang-91/HF-Download/pkg/manifest"
)

// ListerOptions configures a Lister.
type ListerOptions struct {
	// Base is the scheme and host the tree API and download URLs are
	// built on.
	// Default: https://hf-mirror.com
	Base string

	// Logger receives debug logging. Default: disabled.
	Logger zerolog.Logger
}

// Lister fetches the flat file listing of a repository subtree.
type Lister struct {
	client *hfdlhttp.Client
	opts   ListerOptions
}

// NewLister creates a lister on top of client.
func NewLister(client *hfdlhttp.Client, opts ListerOptions) *Lister {
	if opts.Base == "" {
		opts.Base = "https://" + PrimaryHost
	}
	return &Lister{client: client, opts: opts}
}

// treeItem is one entry of the tree API's JSON array. Entries carry more
// fields than this; only these three matter here.
type treeItem struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ListFiles queries the tree endpoint for ref and returns its files in
// listing order, each with a direct download URL. Entries whose type is
// not "file" (subdirectories) are dropped without recursing into them.
// Any request or decode failure returns an error and no entries; callers
// never see a partial listing.
func (l *Lister) ListFiles(ctx context.Context, ref RepoRef) ([]manifest.FileEntry, error) {
	branch := ref.Branch
	if branch == "" {
		branch = "main"
	}

	apiURL := fmt.Sprintf("%s/api/models/%s/%s/tree/%s", l.opts.Base, ref.Owner, ref.Name, branch)
	if ref.Subpath != "" {
		apiURL += "/" + ref.Subpath
	}

	var items []treeItem
	if err := l.client.GetJSON(ctx, apiURL, &items); err != nil {
		return nil, fmt.Errorf("hub: list %s: %w", ref, err)
	}

	files := make([]manifest.FileEntry, 0, len(items))
	for _, item := range items {
		if item.Type != "file" {
			continue
		}
		files = append(files, manifest.FileEntry{
			Filename: item.Path,
			URL:      fmt.Sprintf("%s/%s/%s/resolve/%s/%s", l.opts.Base, ref.Owner, ref.Name, branch, item.Path),
			Size:     item.Size,
		})
	}

	l.opts.Logger.Debug().
		Stringer("repo", ref).
		Int("entries", len(items)).
		Int("files", len(files)).
		Msg("listed repository tree")

	return files, nil
}
